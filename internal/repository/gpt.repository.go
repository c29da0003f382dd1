package repository

import (
	"context"
	"fmt"

	"github.com/ayush6624/go-chatgpt"
)

type GptRepository interface {
	AnswerAnalyticsQuestion(ctx context.Context, analysisContext, question string) (string, error)
}

type gptRepositoryHandler struct {
	GptClient *chatgpt.Client
}

func NewGptRepository(apiKey string) (GptRepository, error) {
	client, err := chatgpt.NewClient(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to construct gpt client: %w", err)
	}

	return gptRepositoryHandler{
		GptClient: client,
	}, nil
}

const assistantPrompt = `
You are an analytics assistant for a retail bank. You will be given a summary
of the latest customer analytics run (product association rules, customer
segments, high-value prediction metrics, and an asset trend forecast), then a
question from a relationship manager.

Answer using only the numbers in the summary. Be concise and concrete: name
the products, segments, and percentages involved. If the summary does not
contain the information needed, say so instead of guessing. Do not invent
customers, figures, or rules that are not in the summary.
`

func (h gptRepositoryHandler) AnswerAnalyticsQuestion(ctx context.Context, analysisContext, question string) (string, error) {
	res, err := h.GptClient.Send(ctx, &chatgpt.ChatCompletionRequest{
		Model: chatgpt.GPT35Turbo,
		Messages: []chatgpt.ChatMessage{
			{
				Role:    chatgpt.ChatGPTModelRoleSystem,
				Content: assistantPrompt + "\n\nAnalysis summary:\n" + analysisContext,
			},
			{
				Role:    chatgpt.ChatGPTModelRoleUser,
				Content: question,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to send chat request: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", fmt.Errorf("chat response contained no choices")
	}

	return res.Choices[0].Message.Content, nil
}
