package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/gittime/internal/agent"
	"github.com/rohankatakam/gittime/internal/github"
	"github.com/rohankatakam/gittime/internal/models"
)

var featureFile string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <repo>",
	Short: "List the features of a repository",
	Long: `Identify the user-facing features of a GitHub repository and print them as JSON.

<repo> is either owner/repo or a github.com URL.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(args[0], func(ctx context.Context, a *agent.Analyzer, owner, repo string) (any, error) {
			features, err := a.AnalyzeRepo(ctx, owner, repo)
			if err != nil {
				return nil, err
			}
			return map[string]any{"repo": owner + "/" + repo, "features": features}, nil
		})
	},
}

var timelineCmd = &cobra.Command{
	Use:   "timeline <repo> --feature-file feature.json",
	Short: "Build the version timeline of one feature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feature, err := readFeature(featureFile)
		if err != nil {
			return err
		}
		return runPipeline(args[0], func(ctx context.Context, a *agent.Analyzer, owner, repo string) (any, error) {
			versions, err := a.FeatureTimeline(ctx, owner, repo, feature)
			if err != nil {
				return nil, err
			}
			return map[string]any{"feature_id": feature.ID, "versions": versions}, nil
		})
	},
}

var evolutionCmd = &cobra.Command{
	Use:   "evolution <repo> --feature-file feature.json",
	Short: "Explain how one feature evolved commit by commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feature, err := readFeature(featureFile)
		if err != nil {
			return err
		}
		return runPipeline(args[0], func(ctx context.Context, a *agent.Analyzer, owner, repo string) (any, error) {
			evolution, err := a.FeatureEvolution(ctx, owner, repo, feature)
			if err != nil {
				return nil, err
			}
			return map[string]any{"feature_id": feature.ID, "evolution": evolution}, nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{timelineCmd, evolutionCmd} {
		c.Flags().StringVarP(&featureFile, "feature-file", "f", "", "JSON file holding one feature from `gittime analyze` (- for stdin)")
		c.MarkFlagRequired("feature-file")
	}
}

// runPipeline resolves ref, builds the analyzer and prints fn's result as JSON
func runPipeline(ref string, fn func(ctx context.Context, a *agent.Analyzer, owner, repo string) (any, error)) error {
	owner, repo, err := github.ParseRepoURL(ref)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzer, closeFn, err := buildAnalyzer(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	logger.WithField("repo", owner+"/"+repo).Info("Analyzing repository")
	out, err := fn(ctx, analyzer, owner, repo)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// readFeature loads a feature and derives its id from the name when missing
func readFeature(path string) (models.Feature, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return models.Feature{}, fmt.Errorf("failed to read feature: %w", err)
	}

	var feature models.Feature
	if err := json.Unmarshal(data, &feature); err != nil {
		return models.Feature{}, fmt.Errorf("failed to parse feature: %w", err)
	}
	if feature.Name == "" {
		return models.Feature{}, fmt.Errorf("feature has no name")
	}
	return agent.NormalizeFeature(feature), nil
}
