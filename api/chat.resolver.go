package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	Question string `json:"question"`
}

func (m *ApiHandler) chat(ctx *gin.Context) {
	req := chatRequest{}
	if err := ctx.BindJSON(&req); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to parse request: %w", err), ctx, 400)
		return
	}
	if req.Question == "" {
		returnErrorJsonCode(fmt.Errorf("question is required"), ctx, 400)
		return
	}

	answer, err := m.AnalysisHandler.AnswerQuestion(ctx, req.Question)
	if err != nil {
		returnErrorJson(fmt.Errorf("failed to answer question: %w", err), ctx)
		return
	}

	ctx.JSON(200, gin.H{
		"answer": answer,
	})
}
