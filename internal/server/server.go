// Package server exposes the generation pipeline and capture store over HTTP
// and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dbcoach/dbcoach-go/internal/capture"
	"github.com/dbcoach/dbcoach-go/internal/db"
	"github.com/dbcoach/dbcoach-go/internal/metrics"
	"github.com/dbcoach/dbcoach-go/internal/models"
	"github.com/dbcoach/dbcoach-go/internal/parser"
	"github.com/dbcoach/dbcoach-go/internal/pipeline"
)

// Server wires the HTTP surface to the pipeline, capture store, and project
// storage. The db client may be nil; project endpoints then return 503.
type Server struct {
	store   *capture.Store
	runner  *pipeline.Runner
	db      *db.Client
	metrics *metrics.Collector
	logger  *slog.Logger

	http *http.Server
}

// New creates a server listening on addr.
func New(addr string, store *capture.Store, runner *pipeline.Runner, dbClient *db.Client, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:   store,
		runner:  runner,
		db:      dbClient,
		metrics: collector,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws/generate", s.handleGenerateWS)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /api/sessions/{id}/schema", s.handleSessionSchema)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	mux.HandleFunc("GET /api/projects/{id}/queries", s.handleProjectQueries)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           withLogging(logger, mux),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0, // websocket streams stay open
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the server's root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}
	sessions := s.store.SavedSessions(r.Context(), userID)
	if sessions == nil {
		sessions = []*models.StreamingSession{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	data := s.store.GetSessionData(r.Context(), r.PathValue("id"))
	if data == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// handleSessionSchema extracts schema artifacts from a session's captured
// design output.
func (s *Server) handleSessionSchema(w http.ResponseWriter, r *http.Request) {
	data := s.store.GetSessionData(r.Context(), r.PathValue("id"))
	if data == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var schemaText string
	for _, chunk := range data.Chunks {
		if chunk.Kind == models.ContentSchema {
			schemaText += chunk.Content
		}
	}
	if schemaText == "" {
		for _, task := range data.Session.Tasks {
			schemaText += task.Content
		}
	}

	tables := parser.ExtractTables(schemaText)
	writeJSON(w, http.StatusOK, map[string]any{
		"tables":        tables,
		"relationships": parser.Relationships(tables),
		"stats":         parser.Stats(tables),
		"diagram":       parser.Diagram(tables),
	})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "project storage unavailable")
		return
	}
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}
	projects, err := s.db.ListProjects(r.Context(), userID)
	if err != nil {
		s.logger.Error("list projects failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "list projects failed")
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "project storage unavailable")
		return
	}
	project, err := s.db.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("get project failed", "project_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "get project failed")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleProjectQueries(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "project storage unavailable")
		return
	}
	queries, err := s.db.GetProjectQueries(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("get project queries failed", "project_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "get project queries failed")
		return
	}
	if queries == nil {
		queries = []models.Query{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": queries})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "project storage unavailable")
		return
	}
	if err := s.db.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		s.logger.Error("delete project failed", "project_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "delete project failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusServiceUnavailable, "metrics disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
