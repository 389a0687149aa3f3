// Package server is a read-only HTTP API over the audit run history.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/lumen/internal/history"
	"github.com/raysh454/lumen/internal/logging"
	"github.com/raysh454/lumen/internal/metrics"
	"github.com/raysh454/lumen/internal/report"
)

// RunStore is what the API reads from; *history.Store implements it.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]history.RunSummary, error)
	GetReport(ctx context.Context, id string) (*report.Report, error)
	PageHistory(ctx context.Context, name string, limit int) ([]history.PageTrend, error)
}

// Server is the HTTP API surface.
type Server struct {
	cfg      Config
	store    RunStore
	router   chi.Router
	logger   logging.Logger
	recorder *metrics.Recorder

	mu       sync.Mutex
	observed string
}

// NewServer builds the router over store.
func NewServer(cfg Config, store RunStore) (*Server, error) {
	if store == nil {
		return nil, errors.New("server: nil store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}

	rec := metrics.NewRecorder()
	s := &Server{
		cfg:      cfg,
		store:    store,
		router:   chi.NewRouter(),
		logger:   logger.With(logging.Field{Key: "component", Value: "server"}),
		recorder: rec,
	}
	s.routes(metrics.NewHTTPMetrics(rec.Registry))
	return s, nil
}

func (s *Server) routes(m *metrics.HTTPMetrics) {
	r := s.router

	r.Use(s.corsMiddleware)
	r.Use(m.Middleware)

	r.Options("/*", s.optionsHandler("GET"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", s.handleMetrics)

	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{runID}", s.handleGetRun)
	r.Get("/runs/{runID}/summary", s.handleRunSummary)
	r.Get("/runs/{runID}/pages/{page}", s.handleGetPage)
	r.Get("/runs/{runID}/diff/{head}", s.handleDiff)
	r.Get("/pages/{page}/history", s.handlePageHistory)

	if s.cfg.ArtifactDir != "" {
		r.Get("/artifacts/{file}", s.handleArtifact)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}
	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}
	s.logger.Debug("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := s.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", logging.Field{Key: "addr", Value: srv.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// storeError maps a history error to a response.
func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, history.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Warn(op, logging.Field{Key: "error", Value: err.Error()})
	writeError(w, http.StatusInternalServerError, err.Error())
}

func limitParam(r *http.Request, def int) int {
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			return v
		}
	}
	return def
}

// --- HTTP handlers ---

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), limitParam(r, 50))
	if err != nil {
		s.storeError(w, "listing runs", err)
		return
	}
	writeJSON(w, http.StatusOK, ListRunsResponse{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rep, err := s.store.GetReport(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.storeError(w, "getting run", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	rep, err := s.store.GetReport(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.storeError(w, "getting run summary", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = report.RenderSummary(w, rep)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	rep, err := s.store.GetReport(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.storeError(w, "getting run page", err)
		return
	}
	name := chi.URLParam(r, "page")
	page, ok := rep.Page(name)
	if !ok {
		writeError(w, http.StatusNotFound, "page not found")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	base, err := s.store.GetReport(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.storeError(w, "getting base run", err)
		return
	}
	head, err := s.store.GetReport(r.Context(), chi.URLParam(r, "head"))
	if err != nil {
		s.storeError(w, "getting head run", err)
		return
	}
	writeJSON(w, http.StatusOK, report.DiffReports(base, head))
}

func (s *Server) handlePageHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "page")
	trends, err := s.store.PageHistory(r.Context(), name, limitParam(r, 20))
	if err != nil {
		s.storeError(w, "getting page history", err)
		return
	}
	writeJSON(w, http.StatusOK, PageHistoryResponse{Page: name, Trends: trends})
}

// handleMetrics refreshes the run gauges from the latest run before
// serving the registry.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if rep, err := s.store.GetReport(r.Context(), history.Latest); err == nil {
		s.mu.Lock()
		if rep.RunID != s.observed {
			s.recorder.Observe(rep)
			s.observed = rep.RunID
		}
		s.mu.Unlock()
	} else if !errors.Is(err, history.ErrRunNotFound) {
		s.logger.Warn("loading latest run for metrics", logging.Field{Key: "error", Value: err.Error()})
	}
	s.recorder.Handler().ServeHTTP(w, r)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	if file != filepath.Base(file) || strings.HasPrefix(file, ".") {
		writeError(w, http.StatusBadRequest, "invalid artifact name")
		return
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".png", ".jpg", ".json":
	default:
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	http.ServeFile(w, r, filepath.Join(s.cfg.ArtifactDir, file))
}
