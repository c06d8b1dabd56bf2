package overseerr

import (
	"fmt"
	"time"

	"github.com/pickrr/pickrr/internal/request"
)

// RequestStatus is the approval state of an upstream request.
type RequestStatus int

const (
	StatusPending  RequestStatus = 1
	StatusApproved RequestStatus = 2
	StatusDeclined RequestStatus = 3
)

// Media is the media block attached to an upstream request.
type Media struct {
	ID        int64  `json:"id"`
	TmdbID    int64  `json:"tmdbId"`
	MediaType string `json:"mediaType"`
	Status    int    `json:"status"`
}

// Season is one requested season of a series.
type Season struct {
	SeasonNumber int `json:"seasonNumber"`
}

// User identifies the requesting user.
type User struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// Request is one entry from the upstream request listing. Fields are
// validated at the boundary rather than trusted; see Validate.
type Request struct {
	ID          int64         `json:"id"`
	Status      RequestStatus `json:"status"`
	Media       *Media        `json:"media"`
	Seasons     []Season      `json:"seasons"`
	RequestedBy *User         `json:"requestedBy"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Validate checks the fields every consumer depends on.
func (r *Request) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("request missing id")
	}
	if r.Media == nil || r.Media.TmdbID <= 0 {
		return fmt.Errorf("request %d missing media or catalog id", r.ID)
	}
	if r.Media.MediaType != "movie" && r.Media.MediaType != "tv" {
		return fmt.Errorf("request %d has unknown media type %q", r.ID, r.Media.MediaType)
	}
	return nil
}

// Declined reports whether the upstream request was rejected.
func (r *Request) Declined() bool {
	return r.Status == StatusDeclined
}

// Kind maps the upstream media type to the local media kind.
func (r *Request) Kind() request.MediaKind {
	if r.Media != nil && r.Media.MediaType == "tv" {
		return request.KindSeries
	}
	return request.KindMovie
}

// MediaStatus returns the upstream media availability, defaulting to
// unknown when the media block is absent.
func (r *Request) MediaStatus() request.UpstreamMediaStatus {
	if r.Media == nil || r.Media.Status == 0 {
		return request.MediaUnknown
	}
	return request.UpstreamMediaStatus(r.Media.Status)
}

// SeasonNumbers returns the requested season numbers, dropping season 0
// (the upstream "specials" entry, which is never a real request target).
func (r *Request) SeasonNumbers() []int {
	var seasons []int
	for _, s := range r.Seasons {
		if s.SeasonNumber >= 1 {
			seasons = append(seasons, s.SeasonNumber)
		}
	}
	return seasons
}

// Requester returns the display name of the requesting user, preferring the
// friendly name over the login.
func (r *Request) Requester() string {
	if r.RequestedBy == nil {
		return "unknown"
	}
	if r.RequestedBy.DisplayName != "" {
		return r.RequestedBy.DisplayName
	}
	if r.RequestedBy.Username != "" {
		return r.RequestedBy.Username
	}
	return "unknown"
}

// PageInfo describes the pagination state of a listing response.
type PageInfo struct {
	Pages   int `json:"pages"`
	Page    int `json:"page"`
	Results int `json:"results"`
}

// Page is one page of the upstream request listing.
type Page struct {
	PageInfo PageInfo  `json:"pageInfo"`
	Results  []Request `json:"results"`
}
