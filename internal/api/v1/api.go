// Package v1 implements the native REST API.
package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pickrr/pickrr/internal/downloads"
	"github.com/pickrr/pickrr/internal/reconcile"
	"github.com/pickrr/pickrr/internal/request"
	"github.com/pickrr/pickrr/internal/settings"
)

// Server is the v1 API server.
type Server struct {
	store     *request.Store
	settings  *settings.Store
	manager   *downloads.Manager
	reconcile *reconcile.Job
	webhook   http.Handler
	health    map[string]HealthChecker
	log       *slog.Logger
}

// New creates a new v1 API server. manager, reconcile and webhook may be nil
// when the corresponding collaborator isn't configured; their routes answer
// 503.
func New(store *request.Store, st *settings.Store, log *slog.Logger) *Server {
	return &Server{
		store:    store,
		settings: st,
		health:   make(map[string]HealthChecker),
		log:      log.With("component", "api"),
	}
}

// SetManager configures the download manager (requires the download client).
func (s *Server) SetManager(m *downloads.Manager) {
	s.manager = m
}

// SetReconcileJob configures the reconciliation job (requires the upstream
// client).
func (s *Server) SetReconcileJob(j *reconcile.Job) {
	s.reconcile = j
}

// SetWebhookHandler mounts the webhook endpoint.
func (s *Server) SetWebhookHandler(h http.Handler) {
	s.webhook = h
}

// AddHealthCheck registers a named collaborator for the status endpoint.
func (s *Server) AddHealthCheck(name string, hc HealthChecker) {
	s.health[name] = hc
}

// RegisterRoutes registers API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Ingestion
	mux.HandleFunc("POST /api/v1/webhook/overseerr", s.handleWebhook)
	mux.HandleFunc("POST /api/v1/requests/sync", s.requireReconcile(s.syncRequests))

	// Requests
	mux.HandleFunc("GET /api/v1/requests", s.listRequests)
	mux.HandleFunc("GET /api/v1/requests/{id}", s.getRequest)
	mux.HandleFunc("DELETE /api/v1/requests/{id}", s.requireManager(s.rejectRequest))

	// Downloads
	mux.HandleFunc("POST /api/v1/download", s.requireManager(s.grab))
	mux.HandleFunc("GET /api/v1/downloads", s.requireManager(s.listDownloads))
	mux.HandleFunc("POST /api/v1/downloads/remove", s.requireManager(s.removeDownload))

	// System
	mux.HandleFunc("GET /api/v1/status", s.getStatus)
	mux.HandleFunc("GET /api/v1/settings/{key}", s.getSetting)
	mux.HandleFunc("PUT /api/v1/settings/{key}", s.putSetting)
}

// requireManager wraps a handler and returns 503 if the download manager is
// not configured.
func (s *Server) requireManager(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.manager == nil {
			writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Download client not configured")
			return
		}
		next(w, r)
	}
}

// requireReconcile wraps a handler and returns 503 if the reconciliation job
// is not configured.
func (s *Server) requireReconcile(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.reconcile == nil {
			writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Upstream manager not configured")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhook == nil {
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Webhook pipeline not configured")
		return
	}
	s.webhook.ServeHTTP(w, r)
}

// Error response
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: errCode})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
