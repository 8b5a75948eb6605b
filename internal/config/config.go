package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings
type Config struct {
	// HTTP server settings
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// GitHub configuration
	GitHub GitHubConfig `yaml:"github" mapstructure:"github"`

	// LLM provider configuration
	LLM LLMConfig `yaml:"llm" mapstructure:"llm"`

	// Pipeline tuning
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`

	// Log output
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type GitHubConfig struct {
	Token     string        `yaml:"token" mapstructure:"token"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"` // empty = api.github.com
	RateLimit int           `yaml:"rate_limit" mapstructure:"rate_limit"` // Requests per second
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // "groq", "openai", "gemini"
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UseKeychain bool          `yaml:"use_keychain" mapstructure:"use_keychain"`
	RedisAddr   string        `yaml:"redis_addr" mapstructure:"redis_addr"` // empty disables the shared quota guard
}

type AnalysisConfig struct {
	DetailWorkers int `yaml:"detail_workers" mapstructure:"detail_workers"` // concurrent commit-detail fetches
}

type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json" mapstructure:"json"`
	File  string `yaml:"file" mapstructure:"file"`
}

// Provider defaults
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultGroqModel   = "llama-3.3-70b-versatile"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.0-flash"
	GroqBaseURL        = "https://api.groq.com/openai/v1"
)

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            10000,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		GitHub: GitHubConfig{
			RateLimit: 10, // 10 requests per second
			Timeout:   30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    ProviderGroq,
			Model:       DefaultGroqModel,
			Temperature: 0.2,
			MaxTokens:   8000,
			Timeout:     120 * time.Second,
			UseKeychain: true,
		},
		Analysis: AnalysisConfig{
			DetailWorkers: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Unmarshal only overwrites keys present in the file
	cfg := Default()

	// Load from environment variables
	v.SetEnvPrefix("GITTIME")
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".gittime")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".gittime"))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			// godotenv never overrides variables that are already set
			_ = godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".gittime", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	// Server
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		cfg.Server.Host = host
	}

	// GitHub configuration
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.Atoi(rateLimit); err == nil {
			cfg.GitHub.RateLimit = rate
		}
	}
	if baseURL := os.Getenv("GITHUB_API_URL"); baseURL != "" {
		cfg.GitHub.BaseURL = baseURL
	}

	// LLM provider. Precedence: 1. Env var 2. Keychain 3. Config file
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
		if os.Getenv("LLM_MODEL") == "" {
			cfg.LLM.Model = DefaultModel(provider)
		}
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if key := os.Getenv(apiKeyEnvVar(cfg.LLM.Provider)); key != "" {
		cfg.LLM.APIKey = key
	}
	if url := os.Getenv("LLM_BASE_URL"); url != "" {
		cfg.LLM.BaseURL = url
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.LLM.RedisAddr = addr
	}

	if cfg.LLM.UseKeychain {
		km := NewKeyringManager()
		if cfg.LLM.APIKey == "" {
			if key, err := km.GetAPIKey(); err == nil && key != "" {
				cfg.LLM.APIKey = key
			}
		}
		if cfg.GitHub.Token == "" {
			if token, err := km.GetGitHubToken(); err == nil && token != "" {
				cfg.GitHub.Token = token
			}
		}
	}

	// Analysis
	if workers := os.Getenv("DETAIL_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			cfg.Analysis.DetailWorkers = n
		}
	}

	// Logging
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if file := os.Getenv("LOG_FILE"); file != "" {
		cfg.Logging.File = expandPath(file)
	}
}

// apiKeyEnvVar returns the environment variable holding the key for a provider
func apiKeyEnvVar(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

// APIKeyEnvVar is the environment variable consulted for the configured provider
func (c *Config) APIKeyEnvVar() string {
	return apiKeyEnvVar(c.LLM.Provider)
}

// DefaultModel returns the model used when a provider is chosen without one
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderGemini:
		return DefaultGeminiModel
	default:
		return DefaultGroqModel
	}
}

// Addr returns the listen address for the HTTP server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Masked returns a copy safe to print: secrets are replaced by MaskAPIKey
func (c *Config) Masked() *Config {
	out := *c
	out.GitHub.Token = MaskAPIKey(c.GitHub.Token)
	out.LLM.APIKey = MaskAPIKey(c.LLM.APIKey)
	return &out
}

// YAML renders the configuration as YAML
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save saves configuration to file. Secrets that live in the keychain are not written.
func (c *Config) Save(path string) error {
	out := *c
	if out.LLM.UseKeychain {
		out.LLM.APIKey = ""
		out.GitHub.Token = ""
	}

	data, err := out.YAML()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultPath is where `gittime configure` writes the config file
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".gittime", "config.yaml")
}
