package v1

import (
	"context"
	"encoding/json"
	"net/http"
)

// HealthChecker is a collaborator that can report reachability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type statusResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:   "ok",
		Services: make(map[string]string, len(s.health)),
	}
	for name, hc := range s.health {
		if err := hc.Health(r.Context()); err != nil {
			resp.Services[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Services[name] = "ok"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getSetting(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, err := s.settings.Get(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

type putSettingRequest struct {
	Value string `json:"value"`
}

func (s *Server) putSetting(w http.ResponseWriter, r *http.Request) {
	var req putSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	key := r.PathValue("key")
	if err := s.settings.Set(key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}
