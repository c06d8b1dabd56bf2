package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pickrr/pickrr/internal/downloads"
	"github.com/pickrr/pickrr/internal/request"
)

func (s *Server) grab(w http.ResponseWriter, r *http.Request) {
	var in downloads.GrabInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	torrent, err := s.manager.Grab(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, downloads.ErrNoSource):
			writeError(w, http.StatusBadRequest, "NO_SOURCE", err.Error())
		case errors.Is(err, request.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Request not found")
		default:
			writeError(w, http.StatusInternalServerError, "GRAB_FAILED", err.Error())
		}
		return
	}
	if torrent == nil {
		// Unlinked grab: nothing was recorded, only submitted.
		writeJSON(w, http.StatusCreated, map[string]string{"status": "submitted"})
		return
	}
	writeJSON(w, http.StatusCreated, torrent)
}

func (s *Server) listDownloads(w http.ResponseWriter, r *http.Request) {
	views, err := s.manager.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "CLIENT_ERROR", err.Error())
		return
	}
	if views == nil {
		views = []downloads.View{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) removeDownload(w http.ResponseWriter, r *http.Request) {
	var in downloads.RemoveInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if in.Hash == "" {
		writeError(w, http.StatusBadRequest, "MISSING_HASH", "hash is required")
		return
	}

	if err := s.manager.Remove(r.Context(), in); err != nil {
		if errors.Is(err, downloads.ErrBadAction) {
			writeError(w, http.StatusBadRequest, "INVALID_ACTION", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "REMOVE_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
