// Package qbit is a client for the qBittorrent Web API v2.
package qbit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const cookieLifetime = time.Hour

// Torrent is one entry from the torrent listing.
type Torrent struct {
	Hash         string  `json:"hash"`
	Name         string  `json:"name"`
	Size         int64   `json:"size"`
	Progress     float64 `json:"progress"`
	DLSpeed      int64   `json:"dlspeed"`
	UPSpeed      int64   `json:"upspeed"`
	NumSeeds     int     `json:"num_seeds"`
	NumLeechs    int     `json:"num_leechs"`
	ETA          int64   `json:"eta"`
	State        string  `json:"state"`
	SavePath     string  `json:"save_path"`
	Category     string  `json:"category"`
	Tags         string  `json:"tags"`
	AddedOn      int64   `json:"added_on"`
	CompletionOn int64   `json:"completion_on"`
}

// Complete reports whether the torrent has finished downloading. Seeding
// states count as complete even when progress reporting lags.
func (t Torrent) Complete() bool {
	if t.Progress >= 1.0 {
		return true
	}
	switch t.State {
	case "uploading", "stalledUP", "pausedUP", "stoppedUP", "queuedUP", "forcedUP", "checkingUP":
		return true
	}
	return false
}

// Errored reports whether the client flagged the torrent as broken.
func (t Torrent) Errored() bool {
	return t.State == "error" || t.State == "missingFiles"
}

// AddOptions control where and how a torrent is added.
type AddOptions struct {
	SavePath string
	Category string
	Tags     string
}

// Client talks to a qBittorrent instance. The WebUI uses cookie auth, so
// the client logs in lazily and caches the session cookie.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	mu         sync.Mutex
	cookie     string
	cookieFrom time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new qBittorrent client.
func NewClient(baseURL, username, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) login(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cookie != "" && time.Since(c.cookieFrom) < cookieLifetime {
		return c.cookie, nil
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "Ok." {
		return "", fmt.Errorf("login rejected: %s %q", resp.Status, string(body))
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == "SID" {
			c.cookie = ck.Name + "=" + ck.Value
			c.cookieFrom = time.Now()
			return c.cookie, nil
		}
	}
	return "", fmt.Errorf("login response missing session cookie")
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.cookie = ""
	c.mu.Unlock()
}

// do performs an authenticated request, retrying once after re-login if the
// cached session has expired server-side.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	for attempt := 0; attempt < 2; attempt++ {
		cookie, err := c.login(ctx)
		if err != nil {
			return err
		}

		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Cookie", cookie)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}

		if resp.StatusCode == http.StatusForbidden {
			resp.Body.Close()
			c.invalidate()
			continue
		}

		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("qbittorrent API error: %s %s: %s", method, path, resp.Status)
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("qbittorrent session rejected after re-login")
}

// Add submits a torrent by .torrent URL or magnet link.
func (c *Client) Add(ctx context.Context, urlOrMagnet string, opts AddOptions) error {
	form := url.Values{}
	form.Set("urls", urlOrMagnet)
	if opts.SavePath != "" {
		form.Set("savepath", opts.SavePath)
	}
	if opts.Category != "" {
		form.Set("category", opts.Category)
	}
	if opts.Tags != "" {
		form.Set("tags", opts.Tags)
	}
	return c.do(ctx, http.MethodPost, "/api/v2/torrents/add", form, nil)
}

// Torrents lists all torrents known to the client.
func (c *Client) Torrents(ctx context.Context) ([]Torrent, error) {
	var out []Torrent
	if err := c.do(ctx, http.MethodGet, "/api/v2/torrents/info", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecentAndActive lists torrents that are still downloading, errored, or
// finished within the last 24 hours. Old completed torrents are noise for
// status views and matching.
func (c *Client) RecentAndActive(ctx context.Context) ([]Torrent, error) {
	all, err := c.Torrents(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-24 * time.Hour).Unix()

	var out []Torrent
	for _, t := range all {
		if t.Progress < 1.0 || t.Errored() || t.CompletionOn >= cutoff {
			out = append(out, t)
		}
	}
	return out, nil
}

// HashByName finds the hash of a torrent by its exact name. Used as a
// best-effort lookup right after adding by URL, where the hash isn't known
// up front.
func (c *Client) HashByName(ctx context.Context, name string) (string, error) {
	all, err := c.Torrents(ctx)
	if err != nil {
		return "", err
	}
	for _, t := range all {
		if t.Name == name {
			return t.Hash, nil
		}
	}
	return "", fmt.Errorf("no torrent named %q", name)
}

// Pause pauses a torrent.
func (c *Client) Pause(ctx context.Context, hash string) error {
	form := url.Values{}
	form.Set("hashes", hash)
	return c.do(ctx, http.MethodPost, "/api/v2/torrents/pause", form, nil)
}

// Resume resumes a paused torrent.
func (c *Client) Resume(ctx context.Context, hash string) error {
	form := url.Values{}
	form.Set("hashes", hash)
	return c.do(ctx, http.MethodPost, "/api/v2/torrents/resume", form, nil)
}

// Delete removes a torrent, optionally deleting its downloaded files.
func (c *Client) Delete(ctx context.Context, hash string, deleteFiles bool) error {
	form := url.Values{}
	form.Set("hashes", hash)
	form.Set("deleteFiles", strconv.FormatBool(deleteFiles))
	return c.do(ctx, http.MethodPost, "/api/v2/torrents/delete", form, nil)
}

// Health checks that the WebUI is reachable and credentials work.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/api/v2/app/version", nil, nil)
}
