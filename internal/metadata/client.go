// Package metadata resolves catalog ids to display metadata via TMDB.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pickrr/pickrr/internal/request"
)

const defaultBaseURL = "https://api.themoviedb.org/3"
const defaultImageBase = "https://image.tmdb.org/t/p/w500"
const defaultCacheTTL = 24 * time.Hour

// ErrNotFound is returned when a title doesn't exist in TMDB.
var ErrNotFound = errors.New("title not found")

// Media is the resolved display metadata for one catalog id.
type Media struct {
	CatalogID   int64
	MediaKind   request.MediaKind
	Title       string
	Year        *int
	Overview    string
	PosterURL   *string
	BackdropURL *string
	Rating      float64
}

// Client is a TMDB API client.
type Client struct {
	apiKey     string
	baseURL    string
	imageBase  string
	httpClient *http.Client
	cache      *cache
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithImageBase sets the poster/backdrop URL prefix.
func WithImageBase(url string) Option {
	return func(c *Client) {
		c.imageBase = url
	}
}

// WithCacheTTL sets the cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = newCache(ttl)
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new TMDB client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		imageBase: defaultImageBase,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache: newCache(defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// tmdbResponse covers both the movie and tv detail payloads; movies use
// title/release_date, series use name/first_air_date.
type tmdbResponse struct {
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
}

// Lookup fetches metadata for a catalog id.
func (c *Client) Lookup(ctx context.Context, catalogID int64, kind request.MediaKind) (*Media, error) {
	if m, ok := c.cache.get(catalogID, kind); ok {
		return m, nil
	}

	endpoint := "movie"
	if kind == request.KindSeries {
		endpoint = "tv"
	}
	url := fmt.Sprintf("%s/%s/%d?api_key=%s", c.baseURL, endpoint, catalogID, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TMDB API error: %s", resp.Status)
	}

	var body tmdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	m := &Media{
		CatalogID: catalogID,
		MediaKind: kind,
		Overview:  body.Overview,
		Rating:    body.VoteAverage,
	}

	m.Title = body.Title
	date := body.ReleaseDate
	if kind == request.KindSeries {
		m.Title = body.Name
		date = body.FirstAirDate
	}
	if len(date) >= 4 {
		var year int
		if _, err := fmt.Sscanf(date[:4], "%d", &year); err == nil {
			m.Year = &year
		}
	}
	if body.PosterPath != "" {
		poster := c.imageBase + body.PosterPath
		m.PosterURL = &poster
	}
	if body.BackdropPath != "" {
		backdrop := c.imageBase + body.BackdropPath
		m.BackdropURL = &backdrop
	}

	c.cache.set(catalogID, kind, m)
	return m, nil
}
