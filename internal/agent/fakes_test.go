package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	gogithub "github.com/google/go-github/v57/github"

	"github.com/rohankatakam/gittime/internal/models"
)

// fakeGitHub serves canned repository data. Maps are read-only once a test
// starts, so concurrent detail fetches are safe.
type fakeGitHub struct {
	repo        *models.Repository
	repoErr     error
	readme      string
	tree        []models.TreeEntry
	treeErr     error
	commits     []models.Commit
	details     map[string]*models.CommitDetail
	detailErrs  map[string]error
	tags        []models.Tag
	releases    []models.Release
	detailCalls atomic.Int32
}

func (f *fakeGitHub) FetchRepository(ctx context.Context, owner, name string) (*models.Repository, error) {
	if f.repoErr != nil {
		return nil, f.repoErr
	}
	if f.repo != nil {
		return f.repo, nil
	}
	return &models.Repository{Owner: owner, Name: name, FullName: owner + "/" + name, DefaultBranch: "main"}, nil
}

func (f *fakeGitHub) FetchReadme(ctx context.Context, owner, name string) (string, error) {
	return f.readme, nil
}

func (f *fakeGitHub) FetchTree(ctx context.Context, owner, name, ref string) ([]models.TreeEntry, error) {
	return f.tree, f.treeErr
}

func (f *fakeGitHub) FetchCommits(ctx context.Context, owner, name string, limit int) ([]models.Commit, error) {
	if len(f.commits) > limit {
		return f.commits[:limit], nil
	}
	return f.commits, nil
}

func (f *fakeGitHub) FetchCommitDetail(ctx context.Context, owner, name, sha string) (*models.CommitDetail, error) {
	f.detailCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.detailErrs[sha]; ok {
		return nil, err
	}
	if d, ok := f.details[sha]; ok {
		return d, nil
	}
	return &models.CommitDetail{SHA: sha}, nil
}

func (f *fakeGitHub) FetchTags(ctx context.Context, owner, name string) ([]models.Tag, error) {
	return f.tags, nil
}

func (f *fakeGitHub) FetchReleases(ctx context.Context, owner, name string) ([]models.Release, error) {
	return f.releases, nil
}

// fakeLLM returns a fixed response and records the prompts it was sent
type fakeLLM struct {
	response string
	err      error

	mu     sync.Mutex
	calls  int
	system string
	user   string
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.system = systemPrompt
	f.user = userPrompt
	return f.response, f.err
}

func (f *fakeLLM) lastUser() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var baseDate = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

// testSHA returns a 40-char sha whose 7-char prefix is unique per i
func testSHA(i int) string {
	return fmt.Sprintf("%07x%033d", i+0xa000000, i)
}

// makeCommits returns n commits newest first, one day apart
func makeCommits(n int) []models.Commit {
	commits := make([]models.Commit, n)
	for i := range commits {
		commits[i] = models.Commit{
			SHA:        testSHA(i),
			Message:    fmt.Sprintf("commit %d\n\nbody", i),
			AuthorName: "dev",
			Date:       baseDate.AddDate(0, 0, -i),
		}
	}
	return commits
}

// touching returns a detail that changes the given files
func touching(sha string, files ...string) *models.CommitDetail {
	d := &models.CommitDetail{SHA: sha}
	for _, f := range files {
		d.Files = append(d.Files, models.CommitFile{Filename: f, Status: "modified", Additions: 1, Deletions: 1, Patch: "@@ " + f})
	}
	return d
}

// statusError builds the error go-github returns for a non-2xx response
func statusError(code int) error {
	return &gogithub.ErrorResponse{
		Response: &http.Response{
			StatusCode: code,
			Request:    &http.Request{Method: http.MethodGet, URL: &url.URL{Scheme: "https", Host: "api.github.com", Path: "/repos/octo/hello"}},
		},
		Message: http.StatusText(code),
	}
}
