package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

type recommendationsRequest struct {
	// CurrentProducts are product flag columns the customer already holds,
	// e.g. ["deposit_flag", "fund_flag"].
	CurrentProducts []string `json:"currentProducts"`
}

func (m *ApiHandler) recommendations(ctx *gin.Context) {
	req := recommendationsRequest{}
	if err := ctx.BindJSON(&req); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to parse request: %w", err), ctx, 400)
		return
	}

	recs, err := m.AnalysisHandler.Recommendations(req.CurrentProducts)
	if err != nil {
		returnErrorJson(fmt.Errorf("failed to compute recommendations: %w", err), ctx)
		return
	}

	ctx.JSON(200, gin.H{
		"recommendations": recs,
	})
}
