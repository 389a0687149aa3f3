// Package fixturesite serves a small site with known contrast defects.
// Each page has versions; version 1 is broken and later versions fix the
// defects, so two audit runs around a version bump produce a history diff.
package fixturesite

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raysh454/lumen/internal/logging"
)

// Site is the fixture HTTP handler.
type Site struct {
	cfg      Config
	logger   logging.Logger
	router   chi.Router
	pages    map[string]PageDefinition
	versions map[string]int // path -> current version
	mu       sync.RWMutex
}

// PageInfo describes one page on the control endpoint.
type PageInfo struct {
	Path           string `json:"path"`
	Description    string `json:"description"`
	CurrentVersion int    `json:"current_version"`
	MaxVersion     int    `json:"max_version"`
}

// New builds the site. A nil logger discards output.
func New(cfg Config, logger logging.Logger) *Site {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.InitialVersion < 1 {
		cfg.InitialVersion = 1
	}
	s := &Site{
		cfg:      cfg,
		logger:   logger.With(logging.Field{Key: "component", Value: "fixturesite"}),
		router:   chi.NewRouter(),
		pages:    map[string]PageDefinition{},
		versions: map[string]int{},
	}
	for _, p := range Pages() {
		s.pages[p.Path] = p
		s.versions[p.Path] = cfg.InitialVersion
	}
	s.routes()
	return s
}

func (s *Site) routes() {
	for path := range s.pages {
		s.router.Get(path, s.pageHandler(path))
	}
	s.router.Get("/fixture/versions", s.handleVersions)
	s.router.Post("/fixture/set-version", s.handleSetVersion)
	s.router.Post("/fixture/bump-all", s.handleBumpAll)
	s.router.Post("/fixture/reset", s.handleReset)
}

// ServeHTTP implements http.Handler.
func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on cfg.Addr until ctx is canceled.
func (s *Site) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("fixture site listening", logging.Field{Key: "addr", Value: srv.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Version reports the current version of the page at path.
func (s *Site) Version(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[path]
}

// SetVersion switches one page, clamped to the versions it defines.
func (s *Site) SetVersion(path string, version int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[path]
	if !ok {
		return false
	}
	s.versions[path] = clamp(version, p.MaxVersion())
	return true
}

func clamp(v, maxV int) int {
	if v < 1 {
		return 1
	}
	if v > maxV {
		return maxV
	}
	return v
}

func (s *Site) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		page := s.pages[path]
		version := s.versions[path]
		s.mu.RUnlock()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(page.render(version)))
	}
}

func (s *Site) handleVersions(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	pages := make([]PageInfo, 0, len(s.pages))
	for path, p := range s.pages {
		pages = append(pages, PageInfo{
			Path:           path,
			Description:    p.Description,
			CurrentVersion: s.versions[path],
			MaxVersion:     p.MaxVersion(),
		})
	}
	s.mu.RUnlock()

	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	writeJSON(w, http.StatusOK, pages)
}

func (s *Site) handleSetVersion(w http.ResponseWriter, r *http.Request) {
	path := r.FormValue("path")
	version, err := strconv.Atoi(r.FormValue("version"))
	if err != nil {
		http.Error(w, "invalid version number", http.StatusBadRequest)
		return
	}
	if !s.SetVersion(path, version) {
		http.Error(w, "unknown page", http.StatusNotFound)
		return
	}
	s.logger.Info("page version set",
		logging.Field{Key: "path", Value: path},
		logging.Field{Key: "version", Value: s.Version(path)})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "path": path, "version": s.Version(path)})
}

func (s *Site) handleBumpAll(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	for path, p := range s.pages {
		s.versions[path] = clamp(s.versions[path]+1, p.MaxVersion())
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "all versions bumped"})
}

func (s *Site) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	for path := range s.versions {
		s.versions[path] = 1
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "all versions reset to 1"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
