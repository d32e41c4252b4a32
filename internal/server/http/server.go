// Package httpserver implements the HTTP REST API for the literature
// aggregation service. It exposes search and source-plan endpoints on top
// of the aggregation pipeline along with health and readiness probes.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/litmesh/literature-aggregation-service/internal/observability"
	"github.com/litmesh/literature-aggregation-service/internal/pipeline"
)

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// DefaultMaxResults caps the ranked work list when a search request
	// does not carry its own limit.
	DefaultMaxResults int
}

// Server is the HTTP REST API server. Every search request runs against
// the shared pipeline; requests that restrict sources get a narrowed
// pipeline assembled from the same configuration.
type Server struct {
	router          chi.Router
	httpServer      *http.Server
	pipeline        *pipeline.Pipeline
	pipelineCfg     pipeline.Config
	maxResults      int
	shutdownTimeout time.Duration
	logger          zerolog.Logger
}

// NewServer creates the HTTP server around a pipeline configuration. The
// configuration is validated once up front so a bad wiring fails at
// startup rather than on the first request.
func NewServer(cfg Config, pipelineCfg pipeline.Config, logger zerolog.Logger) (*Server, error) {
	pl, err := pipeline.New(pipelineCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	s := &Server{
		pipeline:        pl,
		pipelineCfg:     pipelineCfg,
		maxResults:      cfg.DefaultMaxResults,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          observability.WithComponent(logger, "http-server"),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// buildRouter wires middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReadiness)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/sources", s.handleSources)
	})

	return r
}

// Start begins serving HTTP requests. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return nil
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error envelope with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, detail string) {
	writeJSON(w, statusCode, errorResponse{Error: code, Detail: detail})
}
