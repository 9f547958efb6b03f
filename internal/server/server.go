// Package server exposes the HTTP surface: health probes and on-demand
// report generation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/leynos/ghillie/internal/clock"
	"github.com/leynos/ghillie/internal/faults"
	"github.com/leynos/ghillie/internal/report"
	"github.com/leynos/ghillie/internal/storage"
)

// Server handles HTTP requests for probes and report generation.
type Server struct {
	reports    *report.Service
	clock      clock.Clock
	mux        *http.ServeMux
	httpServer *http.Server
}

// Config holds the server's collaborators. Reports may be nil in
// health-only mode; the report endpoint then answers 503.
type Config struct {
	Reports *report.Service
	Clock   clock.Clock
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(cfg Config) *Server {
	s := &Server{
		reports: cfg.Reports,
		clock:   cfg.Clock,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ready", s.handleReady)
	s.mux.HandleFunc("/reports/repositories/", s.handleGenerateReport)

	return s
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Handler returns the HTTP handler for use with custom servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ReportResponse is the metadata returned for a generated report.
type ReportResponse struct {
	ReportID    string `json:"report_id"`
	Repository  string `json:"repository"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	GeneratedAt string `json:"generated_at"`
	Status      string `json:"status"`
	Model       string `json:"model"`
}

// Problem is the error body shape.
type Problem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// handleGenerateReport handles POST /reports/repositories/{owner}/{name}
func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeProblem(w, http.StatusMethodNotAllowed, "Method not allowed", "use POST")
		return
	}
	if s.reports == nil {
		s.writeProblem(w, http.StatusServiceUnavailable, "Reporting unavailable",
			"the server is running in health-only mode")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/reports/repositories/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		s.writeProblem(w, http.StatusBadRequest, "Invalid repository path",
			"expected /reports/repositories/{owner}/{name}")
		return
	}
	owner, name := parts[0], parts[1]

	generated, err := s.reports.RunForRepository(r.Context(), owner, name, s.clock.Now())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeProblem(w, http.StatusNotFound, "Repository not found",
				"no tracked repository "+owner+"/"+name)
			return
		}
		status := http.StatusInternalServerError
		if faults.Categorize(err) == faults.CategoryTransient {
			status = http.StatusBadGateway
		}
		s.writeProblem(w, status, "Report generation failed", err.Error())
		return
	}
	if generated == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ReportResponse{
		ReportID:    generated.ID,
		Repository:  owner + "/" + name,
		WindowStart: generated.WindowStart.UTC().Format(time.RFC3339),
		WindowEnd:   generated.WindowEnd.UTC().Format(time.RFC3339),
		GeneratedAt: generated.GeneratedAt.UTC().Format(time.RFC3339),
		Status:      string(generated.MachineSummary.Status),
		Model:       generated.Model,
	})
}

func (s *Server) writeProblem(w http.ResponseWriter, status int, title, description string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{Title: title, Description: description})
}
