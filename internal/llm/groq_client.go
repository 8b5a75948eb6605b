package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/rohankatakam/gittime/internal/config"
)

// groqBackend talks to Groq's OpenAI-compatible endpoint. LLM_BASE_URL
// points it at any other compatible server.
type groqBackend struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func newGroqBackend(cfg config.LLMConfig) *groqBackend {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = config.GroqBaseURL
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &groqBackend{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}
}

func (b *groqBackend) complete(ctx context.Context, systemPrompt, userPrompt string) (string, int64, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		Temperature: b.temperature,
		MaxTokens:   b.maxTokens,
	})
	if err != nil {
		return "", 0, err
	}

	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("groq returned no choices")
	}

	return resp.Choices[0].Message.Content, int64(resp.Usage.TotalTokens), nil
}
