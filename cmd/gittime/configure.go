package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/gittime/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Interactive setup for the LLM provider and credentials (with OS keychain support)",
	Long: `Walk through gittime configuration step-by-step.

This will configure:
1. LLM provider (groq, openai or gemini) and model
2. LLM API key (stored in OS keychain by default)
3. GitHub token (optional, raises the API limit from 60 to 5000 requests/hour)`,
	RunE: runConfigure,
}

var clearCredentials bool

func init() {
	configureCmd.Flags().BoolVar(&clearCredentials, "clear", false, "remove the stored LLM key and GitHub token from the OS keychain")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	fmt.Println("🔧 gittime configuration")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	if clearCredentials {
		return clearKeychain(config.NewKeyringManager())
	}

	reader := bufio.NewReader(os.Stdin)

	configPath := config.DefaultPath()
	if cfgFile != "" {
		configPath = cfgFile
	}
	loadedCfg, err := config.Load(configPath)
	if err != nil {
		loadedCfg = config.Default()
	}

	km := config.NewKeyringManager()
	keychainAvailable := km.IsAvailable()
	if !keychainAvailable {
		fmt.Println("⚠️  OS keychain not available (headless system or Linux without libsecret)")
		fmt.Println("   Credentials will be stored in the config file instead.")
		fmt.Println()
	}

	// Step 1: provider and model
	fmt.Println("Step 1/3: LLM provider")
	fmt.Printf("Current: %s (%s)\n", loadedCfg.LLM.Provider, loadedCfg.LLM.Model)
	fmt.Print("Provider [groq/openai/gemini] or press Enter to keep current: ")
	if provider := readLine(reader); provider != "" && provider != loadedCfg.LLM.Provider {
		switch provider {
		case config.ProviderGroq, config.ProviderOpenAI, config.ProviderGemini:
			loadedCfg.LLM.Provider = provider
			loadedCfg.LLM.Model = ""
		default:
			fmt.Printf("⚠️  Unknown provider %q, keeping %s\n", provider, loadedCfg.LLM.Provider)
		}
	}
	fmt.Print("Model or press Enter for the default: ")
	if model := readLine(reader); model != "" {
		loadedCfg.LLM.Model = model
	}
	if loadedCfg.LLM.Model == "" {
		loadedCfg.LLM.Model = config.DefaultModel(loadedCfg.LLM.Provider)
	}
	fmt.Printf("✅ Using %s (%s)\n\n", loadedCfg.LLM.Provider, loadedCfg.LLM.Model)

	// Step 2: LLM API key
	fmt.Println("Step 2/3: LLM API key")
	source := km.GetAPIKeySource(loadedCfg)
	fmt.Printf("Current: %s\n", source.Recommended)
	apiKey, err := promptSecret(reader, fmt.Sprintf("Enter %s (Enter to keep current): ", loadedCfg.APIKeyEnvVar()))
	if err != nil {
		return err
	}
	if apiKey != "" {
		storeSecret(keychainAvailable, apiKey, km.SaveAPIKey, &loadedCfg.LLM.APIKey, loadedCfg)
	}
	fmt.Println()

	// Step 3: GitHub token
	fmt.Println("Step 3/3: GitHub token (optional)")
	token, err := promptSecret(reader, "Enter GITHUB_TOKEN (Enter to skip): ")
	if err != nil {
		return err
	}
	if token != "" {
		storeSecret(keychainAvailable, token, km.SetGitHubToken, &loadedCfg.GitHub.Token, loadedCfg)
	}
	fmt.Println()

	if err := loadedCfg.Save(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Printf("✅ Configuration saved to %s\n", configPath)
	fmt.Println()
	fmt.Println("Next: gittime serve   or   gittime analyze owner/repo")
	return nil
}

// storeSecret saves value to the keychain, falling back to the config file
func storeSecret(keychainAvailable bool, value string, save func(string) error, field *string, cfg *config.Config) {
	if keychainAvailable {
		err := save(value)
		if err == nil {
			*field = ""
			cfg.LLM.UseKeychain = true
			fmt.Println("✅ Saved to OS keychain")
			return
		}
		fmt.Printf("⚠️  Failed to save to keychain: %v\n", err)
	}
	*field = value
	cfg.LLM.UseKeychain = false
	fmt.Println("✅ Saved to config file (plaintext)")
}

func promptSecret(reader *bufio.Reader, prompt string) (string, error) {
	if config.IsInteractive() {
		return config.ReadSecret(os.Stdout, prompt)
	}
	fmt.Print(prompt)
	return readLine(reader), nil
}

func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// clearKeychain removes both secrets; a missing entry is not an error
func clearKeychain(km *config.KeyringManager) error {
	if err := km.DeleteAPIKey(); err != nil {
		return fmt.Errorf("failed to remove LLM API key: %w", err)
	}
	if err := km.DeleteGitHubToken(); err != nil {
		return fmt.Errorf("failed to remove GitHub token: %w", err)
	}
	fmt.Println("✅ Removed stored credentials from the OS keychain")
	return nil
}
