package agent

import (
	"context"
	"log/slog"

	"github.com/rohankatakam/gittime/internal/errors"
	"github.com/rohankatakam/gittime/internal/models"
)

// Options tunes the pipelines
type Options struct {
	// DetailWorkers bounds concurrent commit-detail fetches (1 = sequential)
	DetailWorkers int
}

// Analyzer runs the three pipelines and turns their results into values or
// errors. It holds no per-request state and is safe for concurrent use.
type Analyzer struct {
	discovery *DiscoveryPipeline
	timeline  *TimelinePipeline
	evolution *EvolutionPipeline
	logger    *slog.Logger
}

// NewAnalyzer wires the pipelines to shared GitHub and LLM clients
func NewAnalyzer(gh GitHubAPI, llm LLMClient, opts Options) *Analyzer {
	workers := opts.DetailWorkers
	if workers < 1 {
		workers = 1
	}
	return &Analyzer{
		discovery: NewDiscoveryPipeline(gh, llm),
		timeline:  NewTimelinePipeline(gh, llm, workers),
		evolution: NewEvolutionPipeline(gh, llm, workers),
		logger:    slog.Default().With("component", "analyzer"),
	}
}

// AnalyzeRepo returns the features of owner/repo. An unparseable model
// response yields no features rather than an error.
func (a *Analyzer) AnalyzeRepo(ctx context.Context, owner, repo string) ([]models.Feature, error) {
	result := a.discovery.Run(ctx, owner, repo)
	if result.OK() {
		return result.Value, nil
	}

	if !result.Failure.IsFatal() {
		a.logger.Warn("feature discovery degraded to empty result",
			"repo", owner+"/"+repo,
			"kind", result.Failure.Kind(),
			"error", result.Failure,
		)
		return []models.Feature{}, nil
	}
	return nil, result.Failure
}

// FeatureTimeline returns the version timeline of feature, oldest first.
// Every failure, including an unparseable model response, is an error.
func (a *Analyzer) FeatureTimeline(ctx context.Context, owner, repo string, feature models.Feature) ([]models.VersionEntry, error) {
	return a.timeline.Run(ctx, owner, repo, NormalizeFeature(feature)).Unwrap()
}

// FeatureEvolution returns the per-commit narrative of feature, oldest first.
// Every failure, including an unparseable model response, is an error.
func (a *Analyzer) FeatureEvolution(ctx context.Context, owner, repo string, feature models.Feature) ([]models.CommitEvolution, error) {
	return a.evolution.Run(ctx, owner, repo, NormalizeFeature(feature)).Unwrap()
}

// IsRepositoryFailure reports whether err came from the repository lookup
// (rate limited, not found, or otherwise inaccessible).
func IsRepositoryFailure(err error) bool {
	switch errors.GetType(err) {
	case errors.ErrorTypeRateLimited, errors.ErrorTypeNotFound, errors.ErrorTypeAccess:
		return true
	}
	return false
}
