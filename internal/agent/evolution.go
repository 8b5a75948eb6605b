package agent

import (
	"context"
	"log/slog"

	"github.com/rohankatakam/gittime/internal/errors"
	"github.com/rohankatakam/gittime/internal/models"
)

const noAnalysisText = "No analysis available."

// evolutionState flows through fetchRelevantCommitDetails → analyzeEvolution
type evolutionState struct {
	Owner     string
	Repo      string
	Feature   models.Feature
	Commits   []models.CommitEvolution // oldest first, EvolutionSummary unset
	Evolution []models.CommitEvolution
	Err       *errors.Error
}

func (s evolutionState) failure() *errors.Error { return s.Err }

// summaryItem is one element of the model's evolution array
type summaryItem struct {
	SHA              string `json:"sha"`
	EvolutionSummary string `json:"evolution_summary"`
}

// EvolutionPipeline explains a feature commit by commit
type EvolutionPipeline struct {
	github  GitHubAPI
	llm     LLMClient
	details *detailFetcher
	logger  *slog.Logger
}

// NewEvolutionPipeline creates the evolution pipeline
func NewEvolutionPipeline(gh GitHubAPI, llm LLMClient, workers int) *EvolutionPipeline {
	logger := slog.Default().With("component", "evolution")
	return &EvolutionPipeline{
		github:  gh,
		llm:     llm,
		details: &detailFetcher{github: gh, workers: workers, logger: logger},
		logger:  logger,
	}
}

// Run executes fetchRelevantCommitDetails → analyzeEvolution
func (p *EvolutionPipeline) Run(ctx context.Context, owner, repo string, feature models.Feature) Result[[]models.CommitEvolution] {
	logger := p.logger.With("repo", owner+"/"+repo, "feature", feature.Name)

	final := runStages(ctx, logger, evolutionState{Owner: owner, Repo: repo, Feature: feature},
		Stage[evolutionState]{Name: "fetch_relevant_commit_details", Run: p.fetchRelevantCommitDetails},
		Stage[evolutionState]{Name: "analyze_evolution", Run: p.analyzeEvolution},
	)

	if final.Err != nil {
		return Failure[[]models.CommitEvolution](final.Err)
	}
	return Success(final.Evolution)
}

// fetchRelevantCommitDetails keeps commits touching the feature's files,
// reduced to the relevant files. Unlike the timeline there is no fallback:
// no relevant commit fails the pipeline.
func (p *EvolutionPipeline) fetchRelevantCommitDetails(ctx context.Context, s evolutionState) evolutionState {
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

	var relevant []models.CommitEvolution
	for i, c := range commits {
		if details[i] == nil || !touchesFeature(details[i], s.Feature.Files) {
			continue
		}
		relevant = append(relevant, relevantCommit(c, details[i], s.Feature.Files))
	}

	if len(relevant) == 0 {
		s.Err = errors.NoRelevantCommitsError("no commits found touching this feature's files")
		return s
	}

	// API order is newest first
	s.Commits = reversed(relevant)
	return s
}

// relevantCommit projects a commit onto the feature: only relevant files,
// truncated patches, totals over those files alone.
func relevantCommit(c models.Commit, detail *models.CommitDetail, featureFiles []string) models.CommitEvolution {
	ce := models.CommitEvolution{
		SHA:          shortSHA(c.SHA),
		Date:         c.Date.Format("2006-01-02"),
		Message:      firstLine(c.Message),
		Author:       c.AuthorName,
		FilesChanged: []models.FileChange{},
	}

	for _, f := range detail.Files {
		if !isRelevantFile(f.Filename, featureFiles) {
			continue
		}
		status := f.Status
		if status == "" {
			status = "modified"
		}
		ce.TotalAdditions += f.Additions
		ce.TotalDeletions += f.Deletions
		ce.FilesChanged = append(ce.FilesChanged, models.FileChange{
			Filename:  f.Filename,
			Status:    status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Patch:     truncate(f.Patch, gatherPatchBudget),
		})
	}
	return ce
}

// analyzeEvolution asks the model for one summary per commit, capped at the
// oldest evolutionCommitLimit commits, and merges them back by short sha.
func (p *EvolutionPipeline) analyzeEvolution(ctx context.Context, s evolutionState) evolutionState {
	commits := s.Commits
	if len(commits) > evolutionCommitLimit {
		commits = commits[:evolutionCommitLimit]
	}

	response, err := p.llm.Complete(ctx, evolutionSystem, buildEvolutionPrompt(s.Feature, commits))
	if err != nil {
		s.Err = errors.UpstreamError(err, "evolution analysis failed")
		return s
	}

	summaries, err := parseJSON[[]summaryItem](response)
	if err != nil {
		s.Err = errors.ParseError(err, "failed to parse evolution analysis")
		s.Evolution = []models.CommitEvolution{}
		return s
	}

	bySHA := make(map[string]string, len(summaries))
	for _, item := range summaries {
		bySHA[shortSHA(item.SHA)] = item.EvolutionSummary
	}

	evolution := make([]models.CommitEvolution, 0, len(commits))
	for _, c := range commits {
		summary, ok := bySHA[c.SHA]
		if !ok {
			summary = noAnalysisText
		}
		c.EvolutionSummary = summary
		evolution = append(evolution, c)
	}

	s.Evolution = evolution
	return s
}
