package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/gittime/internal/config"
	"github.com/rohankatakam/gittime/internal/errors"
	"github.com/rohankatakam/gittime/internal/models"
)

// MockAnalyzer implements Analyzer for testing
type MockAnalyzer struct {
	AnalyzeRepoFunc      func(ctx context.Context, owner, repo string) ([]models.Feature, error)
	FeatureTimelineFunc  func(ctx context.Context, owner, repo string, feature models.Feature) ([]models.VersionEntry, error)
	FeatureEvolutionFunc func(ctx context.Context, owner, repo string, feature models.Feature) ([]models.CommitEvolution, error)
}

func (m *MockAnalyzer) AnalyzeRepo(ctx context.Context, owner, repo string) ([]models.Feature, error) {
	if m.AnalyzeRepoFunc != nil {
		return m.AnalyzeRepoFunc(ctx, owner, repo)
	}
	return []models.Feature{}, nil
}

func (m *MockAnalyzer) FeatureTimeline(ctx context.Context, owner, repo string, feature models.Feature) ([]models.VersionEntry, error) {
	if m.FeatureTimelineFunc != nil {
		return m.FeatureTimelineFunc(ctx, owner, repo, feature)
	}
	return []models.VersionEntry{}, nil
}

func (m *MockAnalyzer) FeatureEvolution(ctx context.Context, owner, repo string, feature models.Feature) ([]models.CommitEvolution, error) {
	if m.FeatureEvolutionFunc != nil {
		return m.FeatureEvolutionFunc(ctx, owner, repo, feature)
	}
	return []models.CommitEvolution{}, nil
}

func setupTestServer(analyzer Analyzer) http.Handler {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewServer(analyzer, config.Default().Server, log).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	h := setupTestServer(&MockAnalyzer{})
	w := doJSON(t, h, http.MethodGet, "/api/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := setupTestServer(&MockAnalyzer{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestAnalyze(t *testing.T) {
	var gotOwner, gotRepo string
	mock := &MockAnalyzer{
		AnalyzeRepoFunc: func(ctx context.Context, owner, repo string) ([]models.Feature, error) {
			gotOwner, gotRepo = owner, repo
			return []models.Feature{{ID: "9780edad68", Name: "OAuth Login", Files: []string{"auth.ts"}, Versions: []models.VersionEntry{}}}, nil
		},
	}
	h := setupTestServer(mock)

	w := doJSON(t, h, http.MethodPost, "/api/analyze", map[string]string{"repo_url": "https://github.com/octo/chat.git"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "octo", gotOwner)
	assert.Equal(t, "chat", gotRepo)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "octo/chat", resp.Repo)
	require.Len(t, resp.Features, 1)
	assert.Equal(t, "9780edad68", resp.Features[0].ID)
}

func TestAnalyze_EmptyFeaturesIsArray(t *testing.T) {
	h := setupTestServer(&MockAnalyzer{})
	w := doJSON(t, h, http.MethodPost, "/api/analyze", map[string]string{"repo_url": "octo/chat"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"repo":"octo/chat","features":[]}`, w.Body.String())
}

func TestAnalyze_BadInput(t *testing.T) {
	called := false
	mock := &MockAnalyzer{
		AnalyzeRepoFunc: func(ctx context.Context, owner, repo string) ([]models.Feature, error) {
			called = true
			return nil, nil
		},
	}
	h := setupTestServer(mock)

	tests := []struct {
		name string
		body any
		kind string
	}{
		{"invalid reference", map[string]string{"repo_url": "not a valid url"}, "InvalidRepositoryReference"},
		{"missing field", map[string]string{}, "InvalidRequest"},
		{"malformed json", "{", "InvalidRequest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, "/api/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.kind, decodeError(t, w).Kind)
		})
	}
	assert.False(t, called)
}

func TestAnalyze_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"not found", errors.NotFoundError(fmt.Errorf("404"), "Repository 'octo/chat' not found"), http.StatusNotFound, "RepositoryNotFound"},
		{"rate limited", errors.RateLimitedError(fmt.Errorf("403"), "GitHub API rate limit exceeded"), http.StatusNotFound, "AccessRateLimited"},
		{"access", errors.AccessError(fmt.Errorf("502"), "Could not access repository"), http.StatusNotFound, "RepositoryAccessError"},
		{"upstream", errors.UpstreamError(fmt.Errorf("503"), "feature identification failed"), http.StatusInternalServerError, "UpstreamFailure"},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError, "Internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTestServer(&MockAnalyzer{
				AnalyzeRepoFunc: func(ctx context.Context, owner, repo string) ([]models.Feature, error) {
					return nil, tt.err
				},
			})
			w := doJSON(t, h, http.MethodPost, "/api/analyze", map[string]string{"repo_url": "octo/chat"})
			assert.Equal(t, tt.status, w.Code)

			resp := decodeError(t, w)
			assert.Equal(t, tt.kind, resp.Kind)
			assert.NotEmpty(t, resp.Detail)
		})
	}
}

func TestAnalyze_DetailIncludesCause(t *testing.T) {
	h := setupTestServer(&MockAnalyzer{
		AnalyzeRepoFunc: func(ctx context.Context, owner, repo string) ([]models.Feature, error) {
			return nil, errors.AccessError(fmt.Errorf("dial tcp: lookup api.github.com: no such host"), "Could not access repository")
		},
	})
	w := doJSON(t, h, http.MethodPost, "/api/analyze", map[string]string{"repo_url": "octo/chat"})

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "RepositoryAccessError", resp.Kind)
	assert.Equal(t, "Could not access repository: dial tcp: lookup api.github.com: no such host", resp.Detail)
}

func TestFeatureTimeline(t *testing.T) {
	var got models.Feature
	mock := &MockAnalyzer{
		FeatureTimelineFunc: func(ctx context.Context, owner, repo string, feature models.Feature) ([]models.VersionEntry, error) {
			got = feature
			return []models.VersionEntry{{Version: "v1.0.0", Date: "2024-06-30", Description: "Initial OAuth flow."}}, nil
		},
	}
	h := setupTestServer(mock)

	body := map[string]any{
		"repo":    "octo/chat",
		"feature": map[string]any{"name": "OAuth Login", "description": "d", "files": []string{"auth.ts"}},
	}
	w := doJSON(t, h, http.MethodPost, "/api/feature-timeline", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// a feature sent without an id gets one derived from its name
	assert.Equal(t, "9780edad68", got.ID)
	assert.JSONEq(t, `{"feature_id":"9780edad68","versions":[{"version":"v1.0.0","date":"2024-06-30","description":"Initial OAuth flow."}]}`, w.Body.String())
}

func TestFeatureTimeline_Errors(t *testing.T) {
	h := setupTestServer(&MockAnalyzer{
		FeatureTimelineFunc: func(ctx context.Context, owner, repo string, feature models.Feature) ([]models.VersionEntry, error) {
			return nil, errors.ParseError(fmt.Errorf("invalid character"), "failed to parse timeline")
		},
	})

	w := doJSON(t, h, http.MethodPost, "/api/feature-timeline", map[string]any{
		"repo":    "octo/chat",
		"feature": map[string]any{"id": "f1", "name": "OAuth Login"},
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "ResponseParseFailure", resp.Kind)
	assert.Equal(t, "failed to parse timeline: invalid character", resp.Detail)

	w = doJSON(t, h, http.MethodPost, "/api/feature-timeline", map[string]any{"repo": "octo/chat"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRequest", decodeError(t, w).Kind)

	w = doJSON(t, h, http.MethodPost, "/api/feature-timeline", map[string]any{
		"repo":    "nope",
		"feature": map[string]any{"name": "OAuth Login"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRepositoryReference", decodeError(t, w).Kind)
}

func TestFeatureEvolution(t *testing.T) {
	mock := &MockAnalyzer{
		FeatureEvolutionFunc: func(ctx context.Context, owner, repo string, feature models.Feature) ([]models.CommitEvolution, error) {
			assert.Equal(t, "f1", feature.ID)
			return []models.CommitEvolution{{
				SHA:              "abc1234",
				Date:             "2024-06-30",
				Message:          "add login",
				Author:           "dev",
				FilesChanged:     []models.FileChange{{Filename: "auth.ts", Status: "added", Additions: 3}},
				TotalAdditions:   3,
				EvolutionSummary: "Introduced login.",
			}}, nil
		},
	}
	h := setupTestServer(mock)

	w := doJSON(t, h, http.MethodPost, "/api/feature-evolution", map[string]any{
		"repo":    "https://github.com/octo/chat",
		"feature": map[string]any{"id": "f1", "name": "OAuth Login", "files": []string{"auth.ts"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp evolutionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "f1", resp.FeatureID)
	require.Len(t, resp.Evolution, 1)
	assert.Equal(t, "Introduced login.", resp.Evolution[0].EvolutionSummary)
}

func TestFeatureEvolution_NoRelevantCommits(t *testing.T) {
	h := setupTestServer(&MockAnalyzer{
		FeatureEvolutionFunc: func(ctx context.Context, owner, repo string, feature models.Feature) ([]models.CommitEvolution, error) {
			return nil, errors.NoRelevantCommitsError("no commits found touching this feature's files")
		},
	})

	w := doJSON(t, h, http.MethodPost, "/api/feature-evolution", map[string]any{
		"repo":    "octo/chat",
		"feature": map[string]any{"name": "OAuth Login"},
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "NoRelevantCommits", resp.Kind)
	assert.Equal(t, "no commits found touching this feature's files", resp.Detail)
}

func TestCORSPreflight(t *testing.T) {
	h := setupTestServer(&MockAnalyzer{})
	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig(t *testing.T) {
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	assert.True(t, corsConfig([]string{"https://a.example", "*"}).AllowAllOrigins)

	cfg := corsConfig([]string{"https://a.example"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://a.example"}, cfg.AllowOrigins)
}
