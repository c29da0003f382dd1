package api

import (
	"fmt"

	"bankiq/internal/explain"

	"github.com/gin-gonic/gin"
)

type explainCustomersRequest struct {
	Source string `json:"source"`
	TopN   int    `json:"topN"`
}

type customerExplanation struct {
	CustomerID string `json:"customerId"`
	explain.BatchExplanation
}

// explainCustomers re-loads the customer base and attributes every customer's
// high-value score to its top contributing features.
func (m *ApiHandler) explainCustomers(ctx *gin.Context) {
	req := explainCustomersRequest{}
	if err := ctx.BindJSON(&req); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to parse request: %w", err), ctx, 400)
		return
	}
	if req.TopN <= 0 {
		req.TopN = 3
	}

	customers, _, err := m.loadFrames(req.Source)
	if err != nil {
		returnErrorJson(fmt.Errorf("failed to load customer data: %w", err), ctx)
		return
	}

	x, err := m.AnalysisHandler.PrepareScoringData(customers)
	if err != nil {
		returnErrorJson(err, ctx)
		return
	}
	explanations, err := m.AnalysisHandler.ExplainCustomers(x, req.TopN)
	if err != nil {
		returnErrorJson(err, ctx)
		return
	}

	out := make([]customerExplanation, len(explanations))
	ids := customers.IDs()
	for i, e := range explanations {
		out[i] = customerExplanation{BatchExplanation: e}
		if ids != nil {
			out[i].CustomerID = ids[i]
		}
	}

	ctx.JSON(200, gin.H{
		"explanations": out,
	})
}
