// Package request tracks media requests and their per-season torrent
// selections, mirroring the upstream request manager through an idempotent
// upsert key (the upstream request id).
package request

import (
	"time"
)

// MediaKind distinguishes movies from series.
type MediaKind string

const (
	KindMovie  MediaKind = "movie"
	KindSeries MediaKind = "series"
)

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool {
	return k == KindMovie || k == KindSeries
}

// Request represents one upstream media request tracked locally.
type Request struct {
	ID          string // opaque, stable
	UpstreamID  int64  // the upstream manager's request id; unique
	CatalogID   int64  // metadata-provider id
	MediaKind   MediaKind
	Title       string
	Year        *int
	PosterURL   *string
	Overview    *string
	Seasons     []int // ascending, values >= 1; nil for movies and full-series requests
	Status      Status
	RequestedBy string
	RequestedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Torrent is the selection made for one (request, season) pair.
// Season 0 means "the movie" or a full-series pack.
type Torrent struct {
	ID           int64
	RequestID    string
	SeasonNumber int
	Title        string
	Indexer      string
	SizeBytes    int64
	Seeders      int
	Leechers     int
	DownloadURL  *string
	MagnetURL    *string
	InfoURL      *string
	ClientHash   *string // set once handed to the download client; cleared on manual removal
	SelectedBy   string
	SelectedAt   time.Time
}

// Selection joins a Torrent with the request fields the completion poller
// needs to build the merged downloads view.
type Selection struct {
	Torrent
	RequestStatus Status
	RequestTitle  string
	MediaKind     MediaKind
	CatalogID     int64
	UpstreamID    int64
	PosterURL     *string
}
