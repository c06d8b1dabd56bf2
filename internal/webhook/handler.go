package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pickrr/pickrr/internal/settings"
)

// SecretKey is the settings key holding the shared webhook secret.
const SecretKey = "WEBHOOK_SECRET"

// Handler is the webhook HTTP endpoint. It answers 200 for everything past
// authentication and parsing, so the upstream manager never retry-storms a
// transient failure.
type Handler struct {
	ingester *Ingester
	queue    *Queue
	settings *settings.Store
	log      *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(ingester *Ingester, queue *Queue, st *settings.Store, log *slog.Logger) *Handler {
	return &Handler{
		ingester: ingester,
		queue:    queue,
		settings: st,
		log:      log.With("component", "webhook"),
	}
}

func respond(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// authorized checks the shared secret against, in priority order, the
// x-webhook-secret header, a bearer token, and the secret query parameter.
// An empty configured secret disables the check.
func (h *Handler) authorized(r *http.Request) bool {
	secret, err := h.settings.Get(SecretKey)
	if err != nil {
		// A settings read failure is not a secret mismatch; 401 is
		// reserved for that. Fail open and let ingestion decide.
		h.log.Error("read webhook secret", "error", err)
		return true
	}
	if secret == "" {
		return true
	}
	if v := r.Header.Get("x-webhook-secret"); v != "" {
		return v == secret
	}
	if v := r.Header.Get("Authorization"); v != "" {
		return strings.TrimPrefix(v, "Bearer ") == secret
	}
	return r.URL.Query().Get("secret") == secret
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "invalid webhook secret"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}
	payload, err := parsePayload(body)
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}

	if payload.NotificationType != EventMediaApproved && payload.NotificationType != EventMediaAutoApproved {
		h.log.Debug("ignoring webhook event", "type", payload.NotificationType)
		respond(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	job, err := payload.job()
	if err != nil {
		h.log.Warn("webhook payload missing fields", "error", err)
		respond(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err := h.ingester.Ingest(r.Context(), job); err != nil {
		h.log.Warn("webhook fast path failed, queueing",
			"upstream_id", job.UpstreamID, "error", err)
		if qerr := h.queue.Enqueue(job); qerr != nil {
			h.log.Error("enqueue webhook job", "upstream_id", job.UpstreamID, "error", qerr)
		}
		respond(w, http.StatusOK, map[string]string{"status": "queued"})
		return
	}

	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
