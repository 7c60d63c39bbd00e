// Package server provides the HTTP API for interviewd.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/interviewd/internal/config"
	"github.com/hyperjump/interviewd/internal/indexer"
	"github.com/hyperjump/interviewd/internal/interview"
	"github.com/hyperjump/interviewd/internal/retrieval"
	"github.com/hyperjump/interviewd/internal/search"
	"github.com/hyperjump/interviewd/internal/storage"
)

// Server is the HTTP server for the interviewd API.
type Server struct {
	interviews *interview.Service
	indexer    *indexer.Indexer
	storage    storage.Storage
	retriever  *retrieval.Retriever
	rules      *search.Engine
	config     *config.Config
	logger     *zap.Logger
	server     *http.Server
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithRetriever enables the session context debug endpoint.
func WithRetriever(r *retrieval.Retriever) Option {
	return func(s *Server) { s.retriever = r }
}

// WithRuleSearch enables rule full-text search.
func WithRuleSearch(e *search.Engine) Option {
	return func(s *Server) { s.rules = e }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	interviews *interview.Service,
	idx *indexer.Indexer,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		interviews: interviews,
		indexer:    idx,
		storage:    store,
		config:     cfg,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	if s.config.Metrics.Enabled {
		r.Handle(s.config.Metrics.Path, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleStartSession)
			r.Get("/", s.handleListSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Post("/messages", s.handleChat)
				r.Post("/finalize", s.handleFinalize)
				r.Get("/status", s.handleStatus)
				r.Get("/rules", s.handleSessionRules)
				r.Post("/extract", s.handleReextract)
				r.Get("/context", s.handleContext)
				r.Post("/documents", s.handleUploadDocument)
				r.Get("/documents", s.handleDocumentStats)
				r.Delete("/documents", s.handleDeleteSessionDocuments)
				r.Delete("/documents/{docID}", s.handleDeleteDocument)
			})
		})
		r.Get("/rules", s.handleListRules)
		r.Get("/rules/search", s.handleSearchRules)
		r.Patch("/rules/{ruleID}", s.handleUpdateRule)
		r.Get("/stats", s.handleStats)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("server starting", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
