package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/gittime/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect gittime configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := cfg.Masked().YAML()
		if err != nil {
			return err
		}
		fmt.Print(string(data))

		source := config.NewKeyringManager().GetAPIKeySource(cfg)
		fmt.Printf("\n# LLM key source: %s (%s)\n", source.Source, source.Recommended)

		if result := cfg.Validate(); result.HasErrors() || len(result.Warnings) > 0 {
			fmt.Println()
			for _, e := range result.Errors {
				fmt.Printf("# error: %s\n", e)
			}
			for _, w := range result.Warnings {
				fmt.Printf("# warning: %s\n", w)
			}
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
