package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/rohankatakam/gittime/internal/config"
)

// openAIBackend uses the official OpenAI SDK
type openAIBackend struct {
	client      openai.Client
	model       openai.ChatModel
	temperature float64
	maxTokens   int64
}

func newOpenAIBackend(cfg config.LLMConfig) *openAIBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// failures surface to the caller as-is
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &openAIBackend{
		client:      openai.NewClient(opts...),
		model:       openai.ChatModel(cfg.Model),
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
	}
}

func (b *openAIBackend) complete(ctx context.Context, systemPrompt, userPrompt string) (string, int64, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model:       b.model,
		Temperature: openai.Float(b.temperature),
	}
	if b.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(b.maxTokens)
	}

	completion, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", 0, err
	}

	if len(completion.Choices) == 0 {
		return "", 0, fmt.Errorf("openai returned no choices")
	}

	return completion.Choices[0].Message.Content, completion.Usage.TotalTokens, nil
}
