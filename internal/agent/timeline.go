package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rohankatakam/gittime/internal/errors"
	"github.com/rohankatakam/gittime/internal/models"
)

// fallbackCommitCount is used when no commit touches the feature's files
const fallbackCommitCount = 30

// timelineState flows through gatherRelevantCommits → buildTimeline
type timelineState struct {
	Owner           string
	Repo            string
	Feature         models.Feature
	CommitsText     string // oldest first, one commitLine per row
	ReleasesSummary string
	Versions        []models.VersionEntry
	Err             *errors.Error
}

func (s timelineState) failure() *errors.Error { return s.Err }

// TimelinePipeline builds the version timeline of one feature
type TimelinePipeline struct {
	github  GitHubAPI
	llm     LLMClient
	details *detailFetcher
	logger  *slog.Logger
}

// NewTimelinePipeline creates the timeline pipeline. workers bounds concurrent
// commit-detail fetches; 1 fetches strictly one at a time.
func NewTimelinePipeline(gh GitHubAPI, llm LLMClient, workers int) *TimelinePipeline {
	logger := slog.Default().With("component", "timeline")
	return &TimelinePipeline{
		github:  gh,
		llm:     llm,
		details: &detailFetcher{github: gh, workers: workers, logger: logger},
		logger:  logger,
	}
}

// Run executes gatherRelevantCommits → buildTimeline
func (p *TimelinePipeline) Run(ctx context.Context, owner, repo string, feature models.Feature) Result[[]models.VersionEntry] {
	logger := p.logger.With("repo", owner+"/"+repo, "feature", feature.Name)

	final := runStages(ctx, logger, timelineState{Owner: owner, Repo: repo, Feature: feature},
		Stage[timelineState]{Name: "gather_relevant_commits", Run: p.gatherRelevantCommits},
		Stage[timelineState]{Name: "build_timeline", Run: p.buildTimeline},
	)

	if final.Err != nil {
		return Failure[[]models.VersionEntry](final.Err)
	}
	return Success(final.Versions)
}

// gatherRelevantCommits keeps the commits touching the feature's files. With
// no match it falls back to the most recent commits so the model always has
// history to work from.
func (p *TimelinePipeline) gatherRelevantCommits(ctx context.Context, s timelineState) timelineState {
	commits, ferr := fetchRecentCommits(ctx, p.github, s.Owner, s.Repo)
	if ferr != nil {
		s.Err = ferr
		return s
	}

	details, err := p.details.fetchAll(ctx, s.Owner, s.Repo, commits)
	if err != nil {
		s.Err = errors.UpstreamError(err, "commit detail fetch aborted")
		return s
	}

	var lines []string
	for i, c := range commits {
		if details[i] != nil && touchesFeature(details[i], s.Feature.Files) {
			lines = append(lines, commitLine(c))
		}
	}

	if len(lines) == 0 {
		recent := commits
		if len(recent) > fallbackCommitCount {
			recent = recent[:fallbackCommitCount]
		}
		p.logger.Info("no commits touch feature files, using most recent", "feature", s.Feature.Name, "count", len(recent))
		for _, c := range recent {
			lines = append(lines, commitLine(c))
		}
	}

	releasesSummary, _, _, ferr := fetchReleasesSummary(ctx, p.github, s.Owner, s.Repo)
	if ferr != nil {
		s.Err = ferr
		return s
	}

	// API order is newest first
	s.CommitsText = strings.Join(reversed(lines), "\n")
	s.ReleasesSummary = releasesSummary
	return s
}

// buildTimeline asks the model for the milestones, oldest first
func (p *TimelinePipeline) buildTimeline(ctx context.Context, s timelineState) timelineState {
	prompt := buildTimelinePrompt(s.Feature, s.CommitsText, s.ReleasesSummary)

	response, err := p.llm.Complete(ctx, versionTimelineSystem, prompt)
	if err != nil {
		s.Err = errors.UpstreamError(err, "timeline generation failed")
		return s
	}

	versions, err := parseJSON[[]models.VersionEntry](response)
	if err != nil {
		s.Err = errors.ParseError(err, "failed to parse timeline")
		s.Versions = []models.VersionEntry{}
		return s
	}

	if versions == nil {
		versions = []models.VersionEntry{}
	}
	s.Versions = versions
	return s
}
