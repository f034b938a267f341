// Package server exposes a read-only HTTP API over a deduplication engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/steveyegge/gripes/internal/deduplication"
	"github.com/steveyegge/gripes/internal/embed"
	"github.com/steveyegge/gripes/internal/events"
	"github.com/steveyegge/gripes/internal/pipeline"
)

// RunHistory is the slice of the SQLite store the API reads run history from
type RunHistory interface {
	ListRuns(ctx context.Context, limit int) ([]*pipeline.RunReport, error)
	GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.RunEvent, error)
}

// Options holds the optional collaborators. Endpoints whose collaborator is nil answer 404.
type Options struct {
	Product string
	// Embedder enables /api/match
	Embedder embed.Embedder
	// History enables /api/runs and /api/runs/{id}/events
	History RunHistory
	Logger  *log.Logger
}

// Server serves the engine's clusters and matrix as JSON and CSV
type Server struct {
	engine *deduplication.Engine
	opts   Options
	logger *log.Logger
	router *chi.Mux
}

// New builds the router. The engine may keep changing underneath; every response is
// built from a fresh snapshot.
func New(engine *deduplication.Engine, opts Options) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{engine: engine, opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/clusters", s.handleClusters)
		r.Get("/clusters/{id}", s.handleCluster)
		r.Get("/matrix", s.handleMatrix)
		r.Get("/top", s.handleTop)
		r.Get("/stats", s.handleStats)
		r.Get("/export.csv", s.handleExportCSV)
		r.Get("/matrix.csv", s.handleMatrixCSV)
		r.Get("/match", s.handleMatch)
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{id}/events", s.handleRunEvents)
	})
	s.router = r

	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("HTTP API stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return nil
}

// requestLogger logs one line per request at debug level, errors at warn
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		kv := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		}
		if status >= 500 {
			s.logger.Warn("request failed", kv...)
			return
		}
		s.logger.Debug("request", kv...)
	})
}
