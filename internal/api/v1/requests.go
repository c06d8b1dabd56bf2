package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/pickrr/pickrr/internal/request"
)

// requestResponse is the API representation of a request.
type requestResponse struct {
	ID          string  `json:"id"`
	UpstreamID  int64   `json:"upstreamId"`
	CatalogID   int64   `json:"catalogId"`
	MediaKind   string  `json:"mediaKind"`
	Title       string  `json:"title"`
	Year        *int    `json:"year,omitempty"`
	PosterURL   *string `json:"posterUrl,omitempty"`
	Overview    *string `json:"overview,omitempty"`
	Seasons     []int   `json:"seasons,omitempty"`
	Status      string  `json:"status"`
	RequestedBy string  `json:"requestedBy"`
	RequestedAt string  `json:"requestedAt"`
	UpdatedAt   string  `json:"updatedAt"`

	Torrents []torrentResponse `json:"torrents,omitempty"`
}

// torrentResponse is the API representation of one season's selection.
type torrentResponse struct {
	ID           int64   `json:"id"`
	SeasonNumber int     `json:"seasonNumber"`
	Title        string  `json:"title"`
	Indexer      string  `json:"indexer"`
	SizeBytes    int64   `json:"size"`
	Seeders      int     `json:"seeders"`
	Leechers     int     `json:"leechers"`
	DownloadURL  *string `json:"downloadUrl,omitempty"`
	MagnetURL    *string `json:"magnetUrl,omitempty"`
	InfoURL      *string `json:"infoUrl,omitempty"`
	ClientHash   *string `json:"clientHash,omitempty"`
	SelectedBy   string  `json:"selectedBy"`
	SelectedAt   string  `json:"selectedAt"`
}

func torrentsToResponse(torrents []*request.Torrent) []torrentResponse {
	out := make([]torrentResponse, len(torrents))
	for i, t := range torrents {
		out[i] = torrentResponse{
			ID:           t.ID,
			SeasonNumber: t.SeasonNumber,
			Title:        t.Title,
			Indexer:      t.Indexer,
			SizeBytes:    t.SizeBytes,
			Seeders:      t.Seeders,
			Leechers:     t.Leechers,
			DownloadURL:  t.DownloadURL,
			MagnetURL:    t.MagnetURL,
			InfoURL:      t.InfoURL,
			ClientHash:   t.ClientHash,
			SelectedBy:   t.SelectedBy,
			SelectedAt:   t.SelectedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return out
}

func requestToResponse(r *request.Request) requestResponse {
	return requestResponse{
		ID:          r.ID,
		UpstreamID:  r.UpstreamID,
		CatalogID:   r.CatalogID,
		MediaKind:   string(r.MediaKind),
		Title:       r.Title,
		Year:        r.Year,
		PosterURL:   r.PosterURL,
		Overview:    r.Overview,
		Seasons:     r.Seasons,
		Status:      string(r.Status),
		RequestedBy: r.RequestedBy,
		RequestedAt: r.RequestedAt.UTC().Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   r.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func (s *Server) listRequests(w http.ResponseWriter, r *http.Request) {
	var filter request.Filter
	// "all" means no filter, matching the upstream UI's default tab.
	if raw := r.URL.Query().Get("status"); raw != "" && raw != "all" {
		for _, part := range strings.Split(raw, ",") {
			st := request.Status(strings.TrimSpace(part))
			if !st.Valid() {
				writeError(w, http.StatusBadRequest, "INVALID_STATUS", "unknown status "+string(st))
				return
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}

	items, err := s.store.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}

	resp := make([]requestResponse, len(items))
	for i, item := range items {
		resp[i] = requestToResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, request.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Request not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}

	torrents, err := s.store.TorrentsForRequest(req.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}

	resp := requestToResponse(req)
	resp.Torrents = torrentsToResponse(torrents)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) rejectRequest(w http.ResponseWriter, r *http.Request) {
	stopDownload := r.URL.Query().Get("stopDownload") == "true"

	err := s.manager.Reject(r.Context(), r.PathValue("id"), stopDownload)
	if err != nil {
		if errors.Is(err, request.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Request not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "REJECT_FAILED", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) syncRequests(w http.ResponseWriter, r *http.Request) {
	result, err := s.reconcile.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SYNC_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
