package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/rohankatakam/gittime/internal/config"
	"github.com/rohankatakam/gittime/internal/models"
)

const (
	commitsPerPage  = 100
	releasesPerPage = 50
)

// Client wraps the GitHub API client with rate limiting and a one-time
// unauthenticated fallback when the configured token is rejected.
type Client struct {
	authed      *github.Client
	anon        *github.Client
	authFailed  atomic.Bool
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a new GitHub client with rate limiting
func NewClient(cfg config.GitHubConfig) (*Client, error) {
	// WithAuthToken rewrites the transport of the http.Client it is given,
	// so the anonymous client needs one of its own
	anon := github.NewClient(&http.Client{Timeout: cfg.Timeout})
	authed := anon
	if cfg.Token != "" {
		authed = github.NewClient(&http.Client{Timeout: cfg.Timeout}).WithAuthToken(cfg.Token)
	}

	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url: %w", err)
		}
		if !strings.HasSuffix(base.Path, "/") {
			base.Path += "/"
		}
		anon.BaseURL = base
		authed.BaseURL = base
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	return &Client{
		authed:      authed,
		anon:        anon,
		rateLimiter: rate.NewLimiter(limit, 1),
		logger:      slog.Default().With("component", "github"),
	}, nil
}

// call runs fn against the active client. A 401 with a configured token drops
// the token for the rest of the process and retries once without it, so
// public repositories keep working with a stale token.
func call[T any](ctx context.Context, c *Client, fn func(gh *github.Client) (T, *github.Response, error)) (T, error) {
	var zero T
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return zero, fmt.Errorf("rate limiter: %w", err)
	}

	gh := c.authed
	if c.authFailed.Load() {
		gh = c.anon
	}

	v, resp, err := fn(gh)
	if err != nil && gh != c.anon && resp != nil && resp.StatusCode == http.StatusUnauthorized {
		if c.authFailed.CompareAndSwap(false, true) {
			c.logger.Warn("github token rejected, continuing unauthenticated")
		}
		v, _, err = fn(c.anon)
	}
	if err != nil {
		return zero, err
	}
	return v, nil
}

// FetchRepository gets repository metadata
func (c *Client) FetchRepository(ctx context.Context, owner, name string) (*models.Repository, error) {
	repo, err := call(ctx, c, func(gh *github.Client) (*github.Repository, *github.Response, error) {
		return gh.Repositories.Get(ctx, owner, name)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch repository: %w", err)
	}

	defaultBranch := repo.GetDefaultBranch()
	if defaultBranch == "" {
		defaultBranch = "main"
	}

	return &models.Repository{
		Owner:         owner,
		Name:          name,
		FullName:      repo.GetFullName(),
		URL:           repo.GetHTMLURL(),
		DefaultBranch: defaultBranch,
		Description:   repo.GetDescription(),
	}, nil
}

// FetchReadme returns the decoded README. A repository without one yields "".
func (c *Client) FetchReadme(ctx context.Context, owner, name string) (string, error) {
	content, err := call(ctx, c, func(gh *github.Client) (*github.RepositoryContent, *github.Response, error) {
		return gh.Repositories.GetReadme(ctx, owner, name, nil)
	})
	if err != nil {
		if StatusCode(err) == http.StatusNotFound {
			return "", nil
		}
		return "", fmt.Errorf("fetch readme: %w", err)
	}

	text, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode readme: %w", err)
	}
	return text, nil
}

// FetchTree returns the recursive tree at ref
func (c *Client) FetchTree(ctx context.Context, owner, name, ref string) ([]models.TreeEntry, error) {
	tree, err := call(ctx, c, func(gh *github.Client) (*github.Tree, *github.Response, error) {
		return gh.Git.GetTree(ctx, owner, name, ref, true)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch tree: %w", err)
	}

	entries := make([]models.TreeEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		entries = append(entries, models.TreeEntry{
			Path: entry.GetPath(),
			Type: entry.GetType(),
		})
	}
	return entries, nil
}

// FetchCommits returns up to limit most recent commits on the default branch, newest first
func (c *Client) FetchCommits(ctx context.Context, owner, name string, limit int) ([]models.Commit, error) {
	if limit <= 0 || limit > commitsPerPage {
		limit = commitsPerPage
	}
	opts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: limit},
	}

	commits, err := call(ctx, c, func(gh *github.Client) ([]*github.RepositoryCommit, *github.Response, error) {
		return gh.Repositories.ListCommits(ctx, owner, name, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch commits: %w", err)
	}

	out := make([]models.Commit, 0, len(commits))
	for _, commit := range commits {
		out = append(out, models.Commit{
			SHA:        commit.GetSHA(),
			Message:    commit.GetCommit().GetMessage(),
			AuthorName: commit.GetCommit().GetAuthor().GetName(),
			Date:       commit.GetCommit().GetCommitter().GetDate().Time,
		})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FetchCommitDetail returns the file-level diff of one commit
func (c *Client) FetchCommitDetail(ctx context.Context, owner, name, sha string) (*models.CommitDetail, error) {
	commit, err := call(ctx, c, func(gh *github.Client) (*github.RepositoryCommit, *github.Response, error) {
		return gh.Repositories.GetCommit(ctx, owner, name, sha, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch commit %s: %w", sha, err)
	}

	detail := &models.CommitDetail{
		SHA:   commit.GetSHA(),
		Files: make([]models.CommitFile, 0, len(commit.Files)),
	}
	for _, f := range commit.Files {
		detail.Files = append(detail.Files, models.CommitFile{
			Filename:  f.GetFilename(),
			Status:    f.GetStatus(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Patch:     f.GetPatch(),
		})
	}
	return detail, nil
}

// FetchTags returns the first page of tags
func (c *Client) FetchTags(ctx context.Context, owner, name string) ([]models.Tag, error) {
	tags, err := call(ctx, c, func(gh *github.Client) ([]*github.RepositoryTag, *github.Response, error) {
		return gh.Repositories.ListTags(ctx, owner, name, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch tags: %w", err)
	}

	out := make([]models.Tag, 0, len(tags))
	for _, tag := range tags {
		out = append(out, models.Tag{
			Name:      tag.GetName(),
			CommitSHA: tag.GetCommit().GetSHA(),
		})
	}
	return out, nil
}

// FetchReleases returns up to 50 most recent releases
func (c *Client) FetchReleases(ctx context.Context, owner, name string) ([]models.Release, error) {
	opts := &github.ListOptions{PerPage: releasesPerPage}
	releases, err := call(ctx, c, func(gh *github.Client) ([]*github.RepositoryRelease, *github.Response, error) {
		return gh.Repositories.ListReleases(ctx, owner, name, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch releases: %w", err)
	}

	out := make([]models.Release, 0, len(releases))
	for _, r := range releases {
		release := models.Release{
			TagName:   r.GetTagName(),
			Name:      r.GetName(),
			Body:      r.GetBody(),
			CreatedAt: r.GetCreatedAt().Time,
		}
		if r.PublishedAt != nil {
			t := r.PublishedAt.Time
			release.PublishedAt = &t
		}
		out = append(out, release)
	}
	return out, nil
}

// StatusCode extracts the HTTP status GitHub answered with, or 0 when the
// failure never reached GitHub (timeout, DNS, cancellation).
func StatusCode(err error) int {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return http.StatusForbidden
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return http.StatusForbidden
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode
	}
	return 0
}

// IsRateLimited reports whether err is a primary or secondary rate-limit rejection
func IsRateLimited(err error) bool {
	code := StatusCode(err)
	return code == http.StatusForbidden || code == http.StatusTooManyRequests
}
