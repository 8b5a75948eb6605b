package agent

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/gittime/internal/errors"
	"github.com/rohankatakam/gittime/internal/github"
	"github.com/rohankatakam/gittime/internal/models"
)

// recentCommitLimit is how far back every pipeline looks
const recentCommitLimit = 100

// GitHubAPI is the subset of the GitHub client the pipelines call
type GitHubAPI interface {
	FetchRepository(ctx context.Context, owner, name string) (*models.Repository, error)
	FetchReadme(ctx context.Context, owner, name string) (string, error)
	FetchTree(ctx context.Context, owner, name, ref string) ([]models.TreeEntry, error)
	FetchCommits(ctx context.Context, owner, name string, limit int) ([]models.Commit, error)
	FetchCommitDetail(ctx context.Context, owner, name, sha string) (*models.CommitDetail, error)
	FetchTags(ctx context.Context, owner, name string) ([]models.Tag, error)
	FetchReleases(ctx context.Context, owner, name string) ([]models.Release, error)
}

// LLMClient sends one system and user prompt and returns the raw text
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Result is the terminal outcome of a pipeline: Value when Failure is nil
type Result[T any] struct {
	Value   T
	Failure *errors.Error
}

// Success wraps a pipeline payload
func Success[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Failure wraps a pipeline failure
func Failure[T any](err *errors.Error) Result[T] {
	return Result[T]{Failure: err}
}

// OK reports whether the pipeline succeeded
func (r Result[T]) OK() bool {
	return r.Failure == nil
}

// Unwrap returns the payload or the failure as an error
func (r Result[T]) Unwrap() (T, error) {
	if r.Failure != nil {
		var zero T
		return zero, r.Failure
	}
	return r.Value, nil
}

// pipelineState is implemented by every per-pipeline state value
type pipelineState interface {
	failure() *errors.Error
}

// Stage is one step of a pipeline. Run receives the previous state by value
// and returns the next one.
type Stage[S pipelineState] struct {
	Name string
	Run  func(ctx context.Context, state S) S
}

// runStages threads state through stages in order. Once a stage records a
// failure no later stage runs and the failed state is returned unchanged.
func runStages[S pipelineState](ctx context.Context, logger *slog.Logger, state S, stages ...Stage[S]) S {
	for _, stage := range stages {
		if f := state.failure(); f != nil {
			logger.Debug("skipping stage after failure", "stage", stage.Name, "kind", f.Kind())
			break
		}

		start := time.Now()
		state = stage.Run(ctx, state)
		logger.Debug("stage finished", "stage", stage.Name, "duration", time.Since(start))
	}
	return state
}

// detailFetcher loads commit details with bounded concurrency
type detailFetcher struct {
	github  GitHubAPI
	workers int
	logger  *slog.Logger
}

// tryFetchDetail never fails: a commit whose detail cannot be loaded is
// skipped by the caller and the cause is only logged.
func (f *detailFetcher) tryFetchDetail(ctx context.Context, owner, repo, sha string) (*models.CommitDetail, bool) {
	detail, err := f.github.FetchCommitDetail(ctx, owner, repo, sha)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			// cancelled; fetchAll reports it once
		case github.IsRateLimited(err):
			f.logger.Warn("commit detail skipped, rate limited", "sha", shortSHA(sha), "error", err)
		default:
			f.logger.Warn("commit detail skipped", "sha", shortSHA(sha), "status", github.StatusCode(err), "error", err)
		}
		return nil, false
	}
	return detail, true
}

// fetchAll returns details aligned with commits; skipped commits are nil.
// The only error is cancellation of ctx.
func (f *detailFetcher) fetchAll(ctx context.Context, owner, repo string, commits []models.Commit) ([]*models.CommitDetail, error) {
	details := make([]*models.CommitDetail, len(commits))

	workers := f.workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range commits {
		g.Go(func() error {
			if detail, ok := f.tryFetchDetail(gctx, owner, repo, c.SHA); ok {
				details[i] = detail
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// fetchRecentCommits loads the commit window every gather stage starts from
func fetchRecentCommits(ctx context.Context, gh GitHubAPI, owner, repo string) ([]models.Commit, *errors.Error) {
	commits, err := gh.FetchCommits(ctx, owner, repo, recentCommitLimit)
	if err != nil {
		return nil, errors.UpstreamError(err, "failed to list commits")
	}
	return commits, nil
}

// fetchReleasesSummary loads tags and releases and formats them
func fetchReleasesSummary(ctx context.Context, gh GitHubAPI, owner, repo string) (string, []models.Release, []models.Tag, *errors.Error) {
	tags, err := gh.FetchTags(ctx, owner, repo)
	if err != nil {
		return "", nil, nil, errors.UpstreamError(err, "failed to list tags")
	}
	releases, err := gh.FetchReleases(ctx, owner, repo)
	if err != nil {
		return "", nil, nil, errors.UpstreamError(err, "failed to list releases")
	}
	return ReleasesSummary(releases, tags), releases, tags, nil
}
