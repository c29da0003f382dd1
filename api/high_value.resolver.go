package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

func (m *ApiHandler) highValueModel(ctx *gin.Context) {
	result := m.AnalysisHandler.Latest()
	if result == nil {
		returnErrorJsonCode(fmt.Errorf("no analysis run available"), ctx, 404)
		return
	}

	ctx.JSON(200, gin.H{
		"runId":              result.RunID,
		"metrics":            result.ModelMetrics,
		"featureImportances": result.Importances,
	})
}

type scoreCustomersRequest struct {
	Source string `json:"source"`
}

type customerScore struct {
	CustomerID  string  `json:"customerId"`
	Probability float64 `json:"probability"`
}

// scoreCustomers re-loads the customer base and scores every customer with
// the fitted high-value model.
func (m *ApiHandler) scoreCustomers(ctx *gin.Context) {
	req := scoreCustomersRequest{}
	if err := ctx.BindJSON(&req); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to parse request: %w", err), ctx, 400)
		return
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
	probs, err := m.AnalysisHandler.ScoreCustomers(x)
	if err != nil {
		returnErrorJson(err, ctx)
		return
	}

	scores := make([]customerScore, len(probs))
	ids := customers.IDs()
	for i, p := range probs {
		scores[i] = customerScore{Probability: p}
		if ids != nil {
			scores[i].CustomerID = ids[i]
		}
	}

	ctx.JSON(200, gin.H{
		"scores": scores,
	})
}
