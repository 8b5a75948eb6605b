package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rohankatakam/gittime/internal/config"
	"github.com/rohankatakam/gittime/internal/errors"
)

// Provider represents the LLM provider
type Provider string

const (
	ProviderGroq   Provider = config.ProviderGroq
	ProviderOpenAI Provider = config.ProviderOpenAI
	ProviderGemini Provider = config.ProviderGemini
)

// completer is one provider backend. tokens is 0 when the provider does not report usage.
type completer interface {
	complete(ctx context.Context, systemPrompt, userPrompt string) (text string, tokens int64, err error)
}

// Client provides a single Complete call over Groq, OpenAI or Gemini.
// Safe for concurrent use; one instance is shared by every request.
type Client struct {
	provider Provider
	model    string
	backend  completer
	limiter  *RateLimiter
	timeout  time.Duration
	logger   *slog.Logger
}

// NewClient creates the LLM client for the configured provider. When a
// Redis address is configured, calls are additionally gated by the shared
// RateLimiter; an unreachable Redis only disables that guard.
func NewClient(ctx context.Context, cfg config.LLMConfig) (*Client, error) {
	logger := slog.Default().With("component", "llm")

	if cfg.APIKey == "" {
		return nil, errors.ConfigErrorf("no API key configured for LLM provider %q", cfg.Provider)
	}
	if cfg.Model == "" {
		cfg.Model = config.DefaultModel(cfg.Provider)
	}

	c := &Client{
		provider: Provider(cfg.Provider),
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		logger:   logger,
	}

	switch c.provider {
	case ProviderGroq:
		c.backend = newGroqBackend(cfg)
	case ProviderOpenAI:
		c.backend = newOpenAIBackend(cfg)
	case ProviderGemini:
		gemini, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.backend = gemini
	default:
		return nil, errors.ConfigErrorf("unknown LLM provider %q", cfg.Provider)
	}

	if cfg.RedisAddr != "" {
		limiter, err := NewRateLimiter(cfg.RedisAddr, cfg.Provider)
		if err != nil {
			logger.Warn("shared rate limiter unavailable, continuing without it", "redis_addr", cfg.RedisAddr, "error", err)
		} else {
			c.limiter = limiter
		}
	}

	logger.Info("llm client initialized", "provider", c.provider, "model", c.model, "shared_limiter", c.limiter != nil)
	return c, nil
}

// Provider returns the active LLM provider
func (c *Client) Provider() Provider {
	return c.provider
}

// Model returns the model every completion is sent to
func (c *Client) Model() string {
	return c.model
}

// Complete sends a system and user prompt and returns the raw text response
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.CheckAndIncrementWithRetry(ctx, estimateTokens(systemPrompt, userPrompt)); err != nil {
			return "", fmt.Errorf("llm quota: %w", err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, tokens, err := c.backend.complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", c.provider, err)
	}

	c.logger.Debug("completion",
		"provider", c.provider,
		"model", c.model,
		"prompt_length", len(userPrompt),
		"response_length", len(text),
		"tokens_used", tokens,
		"duration", time.Since(start),
	)
	return text, nil
}

// Close releases the shared limiter's Redis connection, if any
func (c *Client) Close() error {
	if c.limiter != nil {
		return c.limiter.Close()
	}
	return nil
}

// estimateTokens approximates prompt size at four characters per token
func estimateTokens(prompts ...string) int64 {
	var n int
	for _, p := range prompts {
		n += len(p)
	}
	return int64(n/4 + 1)
}
