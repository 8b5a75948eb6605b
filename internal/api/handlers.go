package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rohankatakam/gittime/internal/agent"
	"github.com/rohankatakam/gittime/internal/errors"
	"github.com/rohankatakam/gittime/internal/github"
	"github.com/rohankatakam/gittime/internal/models"
)

type analyzeRequest struct {
	RepoURL string `json:"repo_url" binding:"required"`
}

type analyzeResponse struct {
	Repo     string           `json:"repo"`
	Features []models.Feature `json:"features"`
}

type featureRequest struct {
	Repo    string         `json:"repo" binding:"required"`
	Feature models.Feature `json:"feature"`
}

type timelineResponse struct {
	FeatureID string                `json:"feature_id"`
	Versions  []models.VersionEntry `json:"versions"`
}

type evolutionResponse struct {
	FeatureID string                   `json:"feature_id"`
	Evolution []models.CommitEvolution `json:"evolution"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, errors.InvalidRequestError(err, "repo_url is required"))
		return
	}

	owner, repo, err := github.ParseRepoURL(req.RepoURL)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}

	features, err := s.analyzer.AnalyzeRepo(c.Request.Context(), owner, repo)
	if err != nil {
		status := http.StatusInternalServerError
		if agent.IsRepositoryFailure(err) {
			status = http.StatusNotFound
		}
		s.writeError(c, status, err)
		return
	}

	c.JSON(http.StatusOK, analyzeResponse{Repo: owner + "/" + repo, Features: features})
}

func (s *Server) handleFeatureTimeline(c *gin.Context) {
	owner, repo, feature, ok := s.bindFeatureRequest(c)
	if !ok {
		return
	}

	versions, err := s.analyzer.FeatureTimeline(c.Request.Context(), owner, repo, feature)
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, timelineResponse{FeatureID: feature.ID, Versions: versions})
}

func (s *Server) handleFeatureEvolution(c *gin.Context) {
	owner, repo, feature, ok := s.bindFeatureRequest(c)
	if !ok {
		return
	}

	evolution, err := s.analyzer.FeatureEvolution(c.Request.Context(), owner, repo, feature)
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, evolutionResponse{FeatureID: feature.ID, Evolution: evolution})
}

// bindFeatureRequest decodes {repo, feature} and writes a 400 on bad input.
// The returned feature always carries an id.
func (s *Server) bindFeatureRequest(c *gin.Context) (string, string, models.Feature, bool) {
	var req featureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, errors.InvalidRequestError(err, "repo and feature are required"))
		return "", "", models.Feature{}, false
	}
	if req.Feature.Name == "" {
		s.writeError(c, http.StatusBadRequest, errors.InvalidRequestError(nil, "feature.name is required"))
		return "", "", models.Feature{}, false
	}

	owner, repo, err := github.ParseRepoURL(req.Repo)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return "", "", models.Feature{}, false
	}

	return owner, repo, agent.NormalizeFeature(req.Feature), true
}

func (s *Server) writeError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.WithField("request_id", c.GetString("request_id")).
			WithField("kind", errors.KindOf(err)).
			WithError(err).
			Error("analysis failed")
	}

	c.AbortWithStatusJSON(status, errorResponse{Detail: err.Error(), Kind: errors.KindOf(err)})
}
