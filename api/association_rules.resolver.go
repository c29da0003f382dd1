package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

func (m *ApiHandler) associationRules(ctx *gin.Context) {
	result := m.AnalysisHandler.Latest()
	if result == nil {
		returnErrorJsonCode(fmt.Errorf("no analysis run available"), ctx, 404)
		return
	}

	ctx.JSON(200, gin.H{
		"runId":            result.RunID,
		"frequentItemsets": result.Itemsets,
		"rules":            result.Rules,
	})
}
