package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/gittime/internal/config"
)

func newTestClient(t *testing.T, token string, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.GitHubConfig{
		Token:   token,
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestFetchRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/hello", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"full_name":"octo/hello","html_url":"https://github.com/octo/hello","default_branch":"trunk","description":"demo"}`)
	})
	client := newTestClient(t, "", mux)

	repo, err := client.FetchRepository(context.Background(), "octo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "octo/hello", repo.FullName)
	assert.Equal(t, "trunk", repo.DefaultBranch)
	assert.Equal(t, "demo", repo.Description)
}

func TestFetchRepository_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"not found", http.StatusNotFound},
		{"forbidden", http.StatusForbidden},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"message":"nope"}`)
			}))

			_, err := client.FetchRepository(context.Background(), "octo", "hello")
			require.Error(t, err)
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestCall_RetriesUnauthenticatedOn401(t *testing.T) {
	var authed, anon atomic.Int32
	client := newTestClient(t, "stale-token", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			authed.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Bad credentials"}`)
			return
		}
		anon.Add(1)
		fmt.Fprint(w, `{"full_name":"octo/hello","default_branch":"main"}`)
	}))

	repo, err := client.FetchRepository(context.Background(), "octo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "octo/hello", repo.FullName)

	// the token stays dropped for later calls
	_, err = client.FetchRepository(context.Background(), "octo", "hello")
	require.NoError(t, err)

	assert.Equal(t, int32(1), authed.Load())
	assert.Equal(t, int32(2), anon.Load())
}

func TestCall_RetryOmitsRejectedToken(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	client := newTestClient(t, "stale-token", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Bad credentials"}`)
	}))

	_, err := client.FetchRepository(context.Background(), "octo", "hello")
	require.Error(t, err)
	assert.Equal(t, []string{"Bearer stale-token", ""}, seen)
}

func TestCall_ConcurrentCallersAllRetryOn401(t *testing.T) {
	var anon atomic.Int32
	client := newTestClient(t, "stale-token", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Bad credentials"}`)
			return
		}
		anon.Add(1)
		fmt.Fprint(w, `{"sha":"abc","files":[]}`)
	}))

	// every caller that saw the 401 must retry, not only the first to flip the flag
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = client.FetchCommitDetail(context.Background(), "octo", "hello", "abc")
		}()
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.Equal(t, int32(8), anon.Load())
}

func TestFetchReadme(t *testing.T) {
	t.Run("decodes content", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString([]byte("# Hello\nA chat app."))
		client := newTestClient(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/octo/hello/readme", r.URL.Path)
			fmt.Fprintf(w, `{"type":"file","encoding":"base64","content":%q}`, encoded)
		}))

		readme, err := client.FetchReadme(context.Background(), "octo", "hello")
		require.NoError(t, err)
		assert.Equal(t, "# Hello\nA chat app.", readme)
	})

	t.Run("missing readme is empty", func(t *testing.T) {
		client := newTestClient(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
		}))

		readme, err := client.FetchReadme(context.Background(), "octo", "hello")
		require.NoError(t, err)
		assert.Empty(t, readme)
	})
}

func TestFetchCommitsAndDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/hello/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		fmt.Fprint(w, `[
			{"sha":"aaaaaaa111","commit":{"message":"add oauth login\n\nbody","author":{"name":"Ada"},"committer":{"date":"2024-01-02T10:00:00Z"}}},
			{"sha":"bbbbbbb222","commit":{"message":"initial","author":{"name":"Bob"},"committer":{"date":"2024-01-01T10:00:00Z"}}}
		]`)
	})
	mux.HandleFunc("/repos/octo/hello/commits/aaaaaaa111", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sha":"aaaaaaa111","files":[{"filename":"src/auth/login.ts","status":"modified","additions":3,"deletions":1,"patch":"@@ -1 +1 @@"}]}`)
	})
	client := newTestClient(t, "", mux)

	commits, err := client.FetchCommits(context.Background(), "octo", "hello", 100)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "aaaaaaa111", commits[0].SHA)
	assert.Equal(t, "Ada", commits[0].AuthorName)
	assert.Equal(t, "2024-01-02", commits[0].Date.Format("2006-01-02"))

	detail, err := client.FetchCommitDetail(context.Background(), "octo", "hello", "aaaaaaa111")
	require.NoError(t, err)
	require.Len(t, detail.Files, 1)
	assert.Equal(t, "src/auth/login.ts", detail.Files[0].Filename)
	assert.Equal(t, 3, detail.Files[0].Additions)
}

func TestFetchReleasesAndTags(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/hello/releases", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		fmt.Fprint(w, `[{"tag_name":"v1.0.0","name":"First","body":"notes","created_at":"2024-02-01T00:00:00Z","published_at":"2024-02-02T00:00:00Z"}]`)
	})
	mux.HandleFunc("/repos/octo/hello/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":"v1.0.0","commit":{"sha":"ccccccc333"}}]`)
	})
	client := newTestClient(t, "", mux)

	releases, err := client.FetchReleases(context.Background(), "octo", "hello")
	require.NoError(t, err)
	require.Len(t, releases, 1)
	require.NotNil(t, releases[0].PublishedAt)
	assert.Equal(t, "2024-02-02", releases[0].PublishedAt.Format("2006-01-02"))

	tags, err := client.FetchTags(context.Background(), "octo", "hello")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "ccccccc333", tags[0].CommitSHA)
}

func TestFetchTree(t *testing.T) {
	client := newTestClient(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/hello/git/trees/main", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		fmt.Fprint(w, `{"sha":"t","tree":[{"path":"src","type":"tree"},{"path":"src/main.go","type":"blob"}]}`)
	}))

	entries, err := client.FetchTree(context.Background(), "octo", "hello", "main")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "blob", entries[1].Type)
}

func TestStatusCode_NonGitHubError(t *testing.T) {
	assert.Equal(t, 0, StatusCode(context.DeadlineExceeded))
	assert.False(t, IsRateLimited(nil))
}
