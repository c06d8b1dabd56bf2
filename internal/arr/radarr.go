package arr

import (
	"context"
	"fmt"
	"net/http"
)

// Radarr manages the movie library.
type Radarr struct {
	client
}

// NewRadarr creates a Radarr client. Pass a nil http.Client for defaults.
func NewRadarr(baseURL, apiKey string, hc *http.Client) *Radarr {
	return &Radarr{client: newClient(baseURL, apiKey, hc)}
}

// ScanDownloads triggers a scan of the completed downloads folder so
// finished movies get imported into the library.
func (r *Radarr) ScanDownloads(ctx context.Context) error {
	return r.command(ctx, "DownloadedMoviesScan")
}

type radarrMovie struct {
	ID     int64 `json:"id"`
	TmdbID int64 `json:"tmdbId"`
}

// Remove deletes the movie with the given catalog id from the library,
// keeping files on disk. A movie that isn't in the library is not an error.
func (r *Radarr) Remove(ctx context.Context, catalogID int64) error {
	var movies []radarrMovie
	path := fmt.Sprintf("/api/v3/movie?tmdbId=%d", catalogID)
	if err := r.do(ctx, http.MethodGet, path, nil, &movies); err != nil {
		return err
	}
	if len(movies) == 0 {
		return nil
	}
	del := fmt.Sprintf("/api/v3/movie/%d?deleteFiles=false", movies[0].ID)
	return r.do(ctx, http.MethodDelete, del, nil, nil)
}

// Health checks reachability of the Radarr API.
func (r *Radarr) Health(ctx context.Context) error {
	return r.health(ctx)
}
