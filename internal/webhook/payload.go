package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pickrr/pickrr/internal/request"
)

// Event types that trigger ingestion. Everything else is acknowledged and
// dropped so the upstream manager never retries.
const (
	EventMediaApproved     = "MEDIA_APPROVED"
	EventMediaAutoApproved = "MEDIA_AUTO_APPROVED"
)

// flexInt64 decodes from either a JSON number or a numeric string. The
// upstream webhook template interpolates ids as strings.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("numeric field: %w", err)
	}
	*f = flexInt64(n)
	return nil
}

// Payload is the inbound webhook notification.
type Payload struct {
	NotificationType string `json:"notification_type"`
	Subject          string `json:"subject"`
	Media            struct {
		MediaType string    `json:"media_type"`
		TmdbID    flexInt64 `json:"tmdbId"`
		Status    string    `json:"status"`
	} `json:"media"`
	Request struct {
		ID flexInt64 `json:"id"`
		// Older webhook templates interpolate the id under request_id.
		LegacyID            flexInt64 `json:"request_id"`
		RequestedByUsername string    `json:"requestedBy_username"`
	} `json:"request"`
}

func parsePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Job carries the extracted fields through to Ingester and Queue.
type Job struct {
	UpstreamID  int64
	CatalogID   int64
	MediaKind   request.MediaKind
	Title       string
	RequestedBy string
}

// job converts a payload into an ingestion job, or reports what's missing.
func (p *Payload) job() (Job, error) {
	var kind request.MediaKind
	switch p.Media.MediaType {
	case "movie":
		kind = request.KindMovie
	case "tv":
		kind = request.KindSeries
	default:
		return Job{}, fmt.Errorf("unknown media type %q", p.Media.MediaType)
	}
	id := p.Request.ID
	if id <= 0 {
		id = p.Request.LegacyID
	}
	if id <= 0 {
		return Job{}, fmt.Errorf("missing request id")
	}
	if p.Media.TmdbID <= 0 {
		return Job{}, fmt.Errorf("missing catalog id")
	}
	requester := p.Request.RequestedByUsername
	if requester == "" {
		requester = "unknown"
	}
	return Job{
		UpstreamID:  int64(id),
		CatalogID:   int64(p.Media.TmdbID),
		MediaKind:   kind,
		Title:       p.Subject,
		RequestedBy: requester,
	}, nil
}
