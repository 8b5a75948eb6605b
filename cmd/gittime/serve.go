package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/gittime/internal/agent"
	"github.com/rohankatakam/gittime/internal/api"
	"github.com/rohankatakam/gittime/internal/config"
	"github.com/rohankatakam/gittime/internal/github"
	"github.com/rohankatakam/gittime/internal/llm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the analysis API:

  POST /api/analyze            {"repo_url": "..."}
  POST /api/feature-timeline   {"repo": "...", "feature": {...}}
  POST /api/feature-evolution  {"repo": "...", "feature": {...}}
  GET  /api/health`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "listen host (overrides HOST)")
	serveCmd.Flags().Int("port", 0, "listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzer, closeFn, err := buildAnalyzer(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	return api.NewServer(analyzer, cfg.Server, logger).Run(ctx)
}

// buildAnalyzer validates cfg and wires the GitHub and LLM clients
func buildAnalyzer(ctx context.Context, cfg *config.Config) (*agent.Analyzer, func(), error) {
	result := cfg.Validate()
	for _, w := range result.Warnings {
		logger.Warn(w)
	}
	if result.HasErrors() {
		return nil, nil, cfg.RequireValid()
	}

	gh, err := github.NewClient(cfg.GitHub)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	logger.WithField("provider", llmClient.Provider()).
		WithField("model", llmClient.Model()).
		WithField("detail_workers", cfg.Analysis.DetailWorkers).
		Debug("Analyzer ready")

	analyzer := agent.NewAnalyzer(gh, llmClient, agent.Options{DetailWorkers: cfg.Analysis.DetailWorkers})
	return analyzer, func() { llmClient.Close() }, nil
}
