package arr

import (
	"context"
	"fmt"
	"net/http"
)

// Sonarr manages the series library.
type Sonarr struct {
	client
}

// NewSonarr creates a Sonarr client. Pass a nil http.Client for defaults.
func NewSonarr(baseURL, apiKey string, hc *http.Client) *Sonarr {
	return &Sonarr{client: newClient(baseURL, apiKey, hc)}
}

// ScanDownloads triggers a scan of the completed downloads folder so
// finished episodes get imported into the library.
func (s *Sonarr) ScanDownloads(ctx context.Context) error {
	return s.command(ctx, "DownloadedEpisodesScan")
}

type sonarrSeries struct {
	ID     int64 `json:"id"`
	TmdbID int64 `json:"tmdbId"`
}

// Remove deletes the series with the given catalog id from the library,
// keeping files on disk. The series endpoint has no tmdbId filter, so the
// list is fetched and matched client-side.
func (s *Sonarr) Remove(ctx context.Context, catalogID int64) error {
	var series []sonarrSeries
	if err := s.do(ctx, http.MethodGet, "/api/v3/series", nil, &series); err != nil {
		return err
	}
	for _, sr := range series {
		if sr.TmdbID == catalogID {
			del := fmt.Sprintf("/api/v3/series/%d?deleteFiles=false", sr.ID)
			return s.do(ctx, http.MethodDelete, del, nil, nil)
		}
	}
	return nil
}

// Health checks reachability of the Sonarr API.
func (s *Sonarr) Health(ctx context.Context) error {
	return s.health(ctx)
}
