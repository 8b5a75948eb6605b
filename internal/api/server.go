package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/gittime/internal/config"
	"github.com/rohankatakam/gittime/internal/models"
)

// Analyzer is the analysis facade the handlers call into
type Analyzer interface {
	AnalyzeRepo(ctx context.Context, owner, repo string) ([]models.Feature, error)
	FeatureTimeline(ctx context.Context, owner, repo string, feature models.Feature) ([]models.VersionEntry, error)
	FeatureEvolution(ctx context.Context, owner, repo string, feature models.Feature) ([]models.CommitEvolution, error)
}

const requestIDHeader = "X-Request-ID"

// Server is the gittime HTTP API
type Server struct {
	analyzer Analyzer
	router   *gin.Engine
	cfg      config.ServerConfig
	log      *logrus.Logger
}

// NewServer creates the API server and registers its routes
func NewServer(analyzer Analyzer, cfg config.ServerConfig, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(accessLog(log))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	s := &Server{
		analyzer: analyzer,
		router:   router,
		cfg:      cfg,
		log:      log,
	}

	api := router.Group("/api")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/feature-timeline", s.handleFeatureTimeline)
		api.POST("/feature-evolution", s.handleFeatureEvolution)
		api.GET("/health", s.handleHealth)
	}

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("API server listening")
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log.Info("Shutting down API server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"*"},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// requestID tags every request, reusing the caller's id when present
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Warn("request failed")
		default:
			entry.Debug("request served")
		}
	}
}
