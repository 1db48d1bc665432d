// Package web exposes the admin HTTP API: runtime stats, hot-editable
// configuration documents, and the recent delivery archive.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"linkdispatch/internal/config"
	"linkdispatch/internal/monitor"
	"linkdispatch/internal/storage"
)

const maxDocumentBytes = 1 << 20

// Server serves the admin API. Config and rules PUTs are validated before
// they touch disk, so a bad edit never reaches the running dispatcher.
type Server struct {
	token      string
	mon        *monitor.Monitor
	archive    storage.Archive
	configPath string
	rulesPath  string
	log        *slog.Logger

	srv *http.Server
}

// New creates an admin API server. The archive may be nil.
func New(addr, token string, mon *monitor.Monitor, archive storage.Archive,
	configPath, rulesPath string, log *slog.Logger) *Server {
	s := &Server{
		token:      token,
		mon:        mon,
		archive:    archive,
		configPath: configPath,
		rulesPath:  rulesPath,
		log:        log,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Routes builds the chi router with bearer-token auth on every endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.auth)

	r.Get("/api/stats", s.handleStats)
	r.Get("/api/rules", s.handleGetRules)
	r.Put("/api/rules", s.handlePutRules)
	r.Get("/api/config", s.handleGetConfig)
	r.Put("/api/config", s.handlePutConfig)
	r.Get("/api/archive/recent", s.handleRecentDeliveries)
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.log.Info("admin api listening", "addr", s.srv.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("admin api: %w", err)
	}
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("Authorization")
		want := "Bearer " + s.token
		if s.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.mon.Snapshot())
}

func (s *Server) handleGetRules(w http.ResponseWriter, _ *http.Request) {
	s.serveDocument(w, s.rulesPath)
}

func (s *Server) handlePutRules(w http.ResponseWriter, r *http.Request) {
	s.storeDocument(w, r, s.rulesPath, func(data []byte) error {
		_, err := config.ParseRules(data)
		return err
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	s.serveDocument(w, s.configPath)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	s.storeDocument(w, r, s.configPath, func(data []byte) error {
		_, err := config.Parse(data)
		return err
	})
}

func (s *Server) handleRecentDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "archive disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	deliveries, err := s.archive.RecentDeliveries(r.Context(), limit)
	if err != nil {
		s.log.Error("query archive", "error", err)
		writeError(w, http.StatusInternalServerError, "archive query failed")
		return
	}
	if deliveries == nil {
		deliveries = []storage.Delivery{}
	}
	writeJSON(w, http.StatusOK, deliveries)
}

func (s *Server) serveDocument(w http.ResponseWriter, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.log.Error("read document", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "read failed")
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	_, _ = w.Write(data)
}

// storeDocument validates the uploaded document and rewrites the file only
// when validation passes. The running dispatcher picks the change up on its
// next reload.
func (s *Server) storeDocument(w http.ResponseWriter, r *http.Request, path string, validate func([]byte) error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}
	if err := validate(data); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.log.Error("write document", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "write failed")
		return
	}
	s.log.Info("document updated", "path", path)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
