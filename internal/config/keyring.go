package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "GitTime"

	// KeyringAPIKeyItem is the key for the LLM provider API key
	KeyringAPIKeyItem = "llm-api-key"

	// KeyringGitHubTokenItem is the key for GitHub token
	KeyringGitHubTokenItem = "github-token"
)

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// SaveAPIKey stores the LLM API key in the OS keychain
func (km *KeyringManager) SaveAPIKey(apiKey string) error {
	return km.set(KeyringAPIKeyItem, apiKey, "api key")
}

// GetAPIKey retrieves the LLM API key from the OS keychain
func (km *KeyringManager) GetAPIKey() (string, error) {
	return km.get(KeyringAPIKeyItem, "api key")
}

// DeleteAPIKey removes the LLM API key from the OS keychain
func (km *KeyringManager) DeleteAPIKey() error {
	return km.delete(KeyringAPIKeyItem, "api key")
}

// GetGitHubToken retrieves GitHub token from OS keychain
func (km *KeyringManager) GetGitHubToken() (string, error) {
	return km.get(KeyringGitHubTokenItem, "github token")
}

// SetGitHubToken stores GitHub token securely in OS keychain
func (km *KeyringManager) SetGitHubToken(token string) error {
	return km.set(KeyringGitHubTokenItem, token, "github token")
}

// DeleteGitHubToken removes GitHub token from OS keychain
func (km *KeyringManager) DeleteGitHubToken() error {
	return km.delete(KeyringGitHubTokenItem, "github token")
}

func (km *KeyringManager) set(item, value, label string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", label)
	}

	if err := keyring.Set(KeyringService, item, value); err != nil {
		km.logger.Error("failed to save secret to keychain", "item", item, "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.Info("secret saved to keychain", "service", KeyringService, "item", item)
	return nil
}

func (km *KeyringManager) get(item, label string) (string, error) {
	value, err := keyring.Get(KeyringService, item)
	if err == keyring.ErrNotFound {
		// Not an error - just not set yet
		return "", nil
	}
	if err != nil {
		km.logger.Debug("failed to read secret from keychain", "item", item, "error", err)
		return "", fmt.Errorf("failed to read %s from OS keychain: %w", label, err)
	}

	km.logger.Debug("secret retrieved from keychain", "item", item)
	return value, nil
}

func (km *KeyringManager) delete(item, label string) error {
	err := keyring.Delete(KeyringService, item)
	if err == keyring.ErrNotFound {
		// Already deleted, not an error
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s from OS keychain: %w", label, err)
	}

	km.logger.Info("secret deleted from keychain", "item", item)
	return nil
}

// IsAvailable checks if OS keychain is available
// Returns false on headless systems (CI/CD) where keychain isn't available
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(KeyringService, "test-availability")
	if err == keyring.ErrNotFound {
		return true
	}
	if err != nil {
		km.logger.Debug("keychain not available", "error", err)
		return false
	}
	return true
}

// KeySourceInfo describes where the LLM API key is coming from
type KeySourceInfo struct {
	Source      string // "env", "keychain", "config", "none"
	Secure      bool
	Recommended string
}

// GetAPIKeySource determines where the API key is coming from
func (km *KeyringManager) GetAPIKeySource(cfg *Config) KeySourceInfo {
	if os.Getenv(cfg.APIKeyEnvVar()) != "" {
		return KeySourceInfo{
			Source:      "env",
			Secure:      true,
			Recommended: "Using environment variable " + cfg.APIKeyEnvVar(),
		}
	}

	if key, _ := km.GetAPIKey(); key != "" {
		return KeySourceInfo{
			Source:      "keychain",
			Secure:      true,
			Recommended: "Stored securely in OS keychain",
		}
	}

	if cfg.LLM.APIKey != "" {
		return KeySourceInfo{
			Source:      "config",
			Secure:      false,
			Recommended: "Plaintext storage detected. Run: gittime configure",
		}
	}

	return KeySourceInfo{
		Source:      "none",
		Recommended: "No API key configured. Run: gittime configure",
	}
}

// MaskAPIKey masks an API key for display
// Shows first 7 chars and last 4 chars: "gsk_abc...wxyz"
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return "(not set)"
	}
	if len(apiKey) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", apiKey[:7], apiKey[len(apiKey)-4:])
}
