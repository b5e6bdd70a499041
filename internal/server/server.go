// Package server provides the Query API and Admin API for kensaku.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/lifecycle"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// Retriever answers queries. *retrieval.Pipeline implements it.
type Retriever interface {
	Query(ctx context.Context, text string, category models.Category) (*models.RetrievalResult, error)
}

// Admin runs resets and reports stats. *lifecycle.Controller implements it.
type Admin interface {
	Trigger(mode lifecycle.Mode) error
	Stats(ctx context.Context) (*models.Stats, error)
	LastReport() *lifecycle.Report
}

// EventSink accepts file events for asynchronous ingestion. *indexer.Pool implements it.
type EventSink interface {
	Submit(ctx context.Context, ev models.FileEvent) error
}

// Documents lists, reads, stores and removes files under the category roots.
// *documents.Library implements it.
type Documents interface {
	List(ctx context.Context) ([]models.SourceDocument, error)
	Content(ctx context.Context, path string) (string, error)
	Save(category models.Category, name string, r io.Reader) (models.FileEvent, error)
	Remove(path string) (models.FileEvent, error)
}

// Server is the HTTP server for the kensaku API.
type Server struct {
	retriever Retriever
	admin     Admin
	events    EventSink
	documents Documents
	config    *config.ServerConfig
	logger    *zap.Logger
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithEventSink enables POST /api/v1/events.
func WithEventSink(sink EventSink) Option {
	return func(s *Server) { s.events = sink }
}

// WithDocuments enables the /api/v1/documents routes.
func WithDocuments(d Documents) Option {
	return func(s *Server) { s.documents = d }
}

// NewServer creates a server with the given dependencies.
func NewServer(retriever Retriever, admin Admin, cfg *config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		retriever: retriever,
		admin:     admin,
		config:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Post("/events", s.handleEvent)
		r.Route("/documents", func(r chi.Router) {
			r.Use(s.requireDocuments)
			r.Get("/", s.handleListDocuments)
			r.Get("/content", s.handleDocumentContent)
			r.Post("/upload", s.handleUploadDocument)
			r.Post("/delete", s.handleDeleteDocument)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reset", s.handleReset)
			r.Get("/stats", s.handleStats)
		})
	})
	r.Get("/health", s.handleHealth)
	return r
}

// requestLogger logs each request through zap at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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
