package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

func (m *ApiHandler) segments(ctx *gin.Context) {
	result := m.AnalysisHandler.Latest()
	if result == nil {
		returnErrorJsonCode(fmt.Errorf("no analysis run available"), ctx, 404)
		return
	}

	ctx.JSON(200, gin.H{
		"runId":    result.RunID,
		"profiles": result.ClusterProfiles,
		"metrics":  result.ClusterMetrics,
	})
}
