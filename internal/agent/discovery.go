package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rohankatakam/gittime/internal/errors"
	"github.com/rohankatakam/gittime/internal/github"
	"github.com/rohankatakam/gittime/internal/models"
)

// discoveryState flows through fetchContext → identifyFeatures
type discoveryState struct {
	Owner    string
	Repo     string
	Context  *models.RepositoryContext
	Features []models.Feature
	Err      *errors.Error
}

func (s discoveryState) failure() *errors.Error { return s.Err }

// featureItem is one element of the model's feature array
type featureItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Files       []string `json:"files"`
}

// DiscoveryPipeline infers the feature list of a repository
type DiscoveryPipeline struct {
	github GitHubAPI
	llm    LLMClient
	logger *slog.Logger
}

// NewDiscoveryPipeline creates the feature discovery pipeline
func NewDiscoveryPipeline(gh GitHubAPI, llm LLMClient) *DiscoveryPipeline {
	return &DiscoveryPipeline{
		github: gh,
		llm:    llm,
		logger: slog.Default().With("component", "discovery"),
	}
}

// Run executes fetchContext → identifyFeatures. A parse failure of the model
// output is reported as a low-severity Failure with no features.
func (p *DiscoveryPipeline) Run(ctx context.Context, owner, repo string) Result[[]models.Feature] {
	logger := p.logger.With("repo", owner+"/"+repo)

	final := runStages(ctx, logger, discoveryState{Owner: owner, Repo: repo},
		Stage[discoveryState]{Name: "fetch_context", Run: p.fetchContext},
		Stage[discoveryState]{Name: "identify_features", Run: p.identifyFeatures},
	)

	if final.Err != nil {
		return Failure[[]models.Feature](final.Err)
	}
	return Success(final.Features)
}

// fetchContext gathers README, tree, commits, tags and releases. Only the
// repository lookup and the list calls are fatal; a missing tree is not.
func (p *DiscoveryPipeline) fetchContext(ctx context.Context, s discoveryState) discoveryState {
	info, err := p.github.FetchRepository(ctx, s.Owner, s.Repo)
	if err != nil {
		s.Err = classifyRepositoryError(err, s.Owner, s.Repo)
		return s
	}

	readme, err := p.github.FetchReadme(ctx, s.Owner, s.Repo)
	if err != nil {
		s.Err = errors.UpstreamError(err, "failed to fetch README")
		return s
	}

	tree, err := p.github.FetchTree(ctx, s.Owner, s.Repo, info.DefaultBranch)
	if err != nil {
		p.logger.Warn("tree unavailable, continuing without file paths", "repo", s.Owner+"/"+s.Repo, "error", err)
		tree = nil
	}

	paths := make([]string, 0, len(tree))
	for _, entry := range tree {
		if entry.Type == "blob" {
			paths = append(paths, entry.Path)
		}
	}

	commits, ferr := fetchRecentCommits(ctx, p.github, s.Owner, s.Repo)
	if ferr != nil {
		s.Err = ferr
		return s
	}

	releasesSummary, releases, tags, ferr := fetchReleasesSummary(ctx, p.github, s.Owner, s.Repo)
	if ferr != nil {
		s.Err = ferr
		return s
	}

	s.Context = &models.RepositoryContext{
		Readme:          readme,
		TreePaths:       paths,
		CommitsSummary:  CommitsSummary(commits),
		ReleasesSummary: releasesSummary,
		Commits:         commits,
		Releases:        releases,
		Tags:            tags,
	}
	return s
}

// identifyFeatures asks the model for the feature list
func (p *DiscoveryPipeline) identifyFeatures(ctx context.Context, s discoveryState) discoveryState {
	response, err := p.llm.Complete(ctx, identifyFeaturesSystem, buildDiscoveryPrompt(s.Context))
	if err != nil {
		s.Err = errors.UpstreamError(err, "feature identification failed")
		return s
	}

	items, err := parseJSON[[]featureItem](response)
	if err != nil {
		s.Err = errors.ParseError(err, "failed to parse AI response")
		s.Features = []models.Feature{}
		return s
	}

	features := make([]models.Feature, 0, len(items))
	for _, item := range items {
		if item.Name == "" {
			continue
		}
		files := item.Files
		if len(files) > maxFeatureFiles {
			files = files[:maxFeatureFiles]
		}
		features = append(features, NormalizeFeature(models.Feature{
			Name:        item.Name,
			Description: item.Description,
			Files:       files,
		}))
	}

	s.Features = features
	return s
}

// classifyRepositoryError maps a failed repository lookup to rate-limited,
// not-found or generic access failure by the status GitHub answered with.
func classifyRepositoryError(err error, owner, repo string) *errors.Error {
	switch github.StatusCode(err) {
	case http.StatusForbidden, http.StatusTooManyRequests:
		return errors.RateLimitedError(err, "GitHub API rate limit exceeded. Set GITHUB_TOKEN in your environment or .env file")
	case http.StatusNotFound:
		return errors.NotFoundError(err, fmt.Sprintf("Repository '%s/%s' not found. Check the URL and make sure it's a public repo", owner, repo))
	default:
		return errors.AccessError(err, "Could not access repository")
	}
}
