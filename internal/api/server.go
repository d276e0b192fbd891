// Package api exposes the analysis service over HTTP. Route shapes mirror
// the historical consumers: /api/analyze and /api/analyze/text serve the
// web shape, /api/extension/analyze the extension shape, and /api/v1/verify
// the flat legacy shape. /api/jobs is the async contract over the same
// orchestrator calls.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/credence-dev/credence/internal/jobs"
	"github.com/credence-dev/credence/internal/model"
	"github.com/credence-dev/credence/internal/pipeline"
)

// Analyzer runs one full analysis; satisfied by the pipeline orchestrator.
type Analyzer interface {
	AnalyzeURL(ctx context.Context, rawURL, sessionID string) (*pipeline.Outcome, error)
	AnalyzeText(ctx context.Context, text, title, sessionID string) (*pipeline.Outcome, error)
}

// ImagePredictor is the direct image-check capability of the secondary
// classifier. Nil prediction means the predictor is unavailable.
type ImagePredictor interface {
	PredictImage(ctx context.Context, filename string, data []byte) *model.SecondaryPrediction
}

// Deps are the server's collaborators. Jobs and Predictor may be nil; the
// corresponding endpoints then degrade (sync-only analysis, 503 predict).
type Deps struct {
	Analyzer  Analyzer
	Jobs      *jobs.Manager
	Predictor ImagePredictor
	Logger    zerolog.Logger
	Version   string
}

// Server routes HTTP requests onto the analysis pipeline.
type Server struct {
	analyzer  Analyzer
	jobs      *jobs.Manager
	predictor ImagePredictor
	logger    zerolog.Logger
	version   string
}

// New creates the HTTP server.
func New(deps Deps) *Server {
	return &Server{
		analyzer:  deps.Analyzer,
		jobs:      deps.Jobs,
		predictor: deps.Predictor,
		logger:    deps.Logger.With().Str("component", "api").Logger(),
		version:   deps.Version,
	}
}

// Router constructs the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	api.POST("/analyze", s.handleAnalyze)
	api.POST("/analyze/text", s.handleAnalyzeText)
	api.POST("/extension/analyze", s.handleExtensionAnalyze)
	api.POST("/jobs", s.handleEnqueueJob)
	api.GET("/jobs/:id", s.handleJobStatus)
	api.POST("/predict/image", s.handlePredictImage)

	r.POST("/api/v1/verify", s.handleVerify)

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, cfg model.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info().Str("addr", cfg.Addr).Msg("http server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info().Msg("http server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// requestLog logs each request with its status and duration.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := s.logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = s.logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{
		"status":  "ok",
		"service": "credence",
		"version": s.version,
	}
	if s.jobs != nil {
		health["queueDepth"] = s.jobs.QueueDepth()
	}
	c.JSON(http.StatusOK, health)
}
