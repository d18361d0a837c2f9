// Package server provides the HTTP API for ClinBrief.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/clinbrief/clinbrief/internal/agent"
	"github.com/clinbrief/clinbrief/internal/config"
	"github.com/clinbrief/clinbrief/internal/indexer"
	"github.com/clinbrief/clinbrief/internal/search"
	"github.com/clinbrief/clinbrief/internal/storage"
)

// Server is the HTTP server for the ClinBrief API.
type Server struct {
	engine   *search.Engine
	indexer  *indexer.Indexer
	pipeline *agent.Pipeline
	storage  storage.Storage
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
// pipeline may be nil when no chat model is configured; the research endpoint
// then responds 503.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	pipeline *agent.Pipeline,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:   engine,
		indexer:  idx,
		pipeline: pipeline,
		storage:  store,
		config:   cfg,
		logger:   logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(s.requestLogger)

	limiter := newClientLimiter(s.config.RateLimit.RequestsPerMinute, s.config.RateLimit.Burst)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(limiter.middleware)
		r.Use(s.audit)
		r.Post("/search", s.handleSearch)
		r.Post("/research", s.handleResearch)
		r.Post("/documents", s.handleIndexDocument)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
