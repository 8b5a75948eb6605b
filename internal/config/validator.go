package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohankatakam/gittime/internal/errors"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// Validate checks the configuration needed to run the analysis pipelines
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	c.validateServer(result)
	c.validateGitHub(result)
	c.validateLLM(result)

	if c.Analysis.DetailWorkers < 1 {
		result.AddError("analysis.detail_workers must be at least 1, got %d", c.Analysis.DetailWorkers)
	}

	return result
}

// RequireValid returns a config error when validation fails
func (c *Config) RequireValid() error {
	result := c.Validate()
	if result.HasErrors() {
		return errors.ConfigError(result.Error())
	}
	return nil
}

func (c *Config) validateServer(result *ValidationResult) {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		result.AddError("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
}

func (c *Config) validateGitHub(result *ValidationResult) {
	if c.GitHub.Token == "" || strings.HasPrefix(c.GitHub.Token, "ghp_your") {
		result.AddWarning("GITHUB_TOKEN is not set. GitHub API is limited to 60 requests/hour.")
	}

	if c.GitHub.RateLimit <= 0 {
		result.AddError("GITHUB_RATE_LIMIT must be positive, got %d", c.GitHub.RateLimit)
	}

	if c.GitHub.Timeout <= 0 {
		result.AddError("github.timeout must be positive")
	}

	if c.GitHub.BaseURL != "" {
		if _, err := url.Parse(c.GitHub.BaseURL); err != nil {
			result.AddError("GITHUB_API_URL is invalid: %v", err)
		}
	}
}

func (c *Config) validateLLM(result *ValidationResult) {
	switch c.LLM.Provider {
	case ProviderGroq, ProviderOpenAI, ProviderGemini:
	default:
		result.AddError("LLM_PROVIDER must be one of groq, openai, gemini; got %q", c.LLM.Provider)
	}

	if c.LLM.APIKey == "" || strings.HasPrefix(c.LLM.APIKey, "gsk_your") {
		result.AddError("%s is not set. Set it via environment variable, .env or `gittime configure`.", c.APIKeyEnvVar())
	}

	if c.LLM.Model == "" {
		result.AddWarning("LLM_MODEL is not set, will use the provider default")
	}

	if c.LLM.BaseURL != "" {
		if _, err := url.Parse(c.LLM.BaseURL); err != nil {
			result.AddError("LLM_BASE_URL is invalid: %v", err)
		}
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		result.AddError("llm.temperature must be within [0, 2], got %.2f", c.LLM.Temperature)
	}
}
