// Package overseerr is a client for the upstream request manager.
package overseerr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotFound is returned when a request doesn't exist upstream.
var ErrNotFound = errors.New("upstream request not found")

// Client talks to the Overseerr v1 API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Overseerr client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("overseerr API error: %s %s: %s", method, path, resp.Status)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Requests fetches one page of the upstream request listing.
func (c *Client) Requests(ctx context.Context, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	skip := (page - 1) * pageSize

	var out Page
	path := fmt.Sprintf("/api/v1/request?take=%d&skip=%d&sort=added", pageSize, skip)
	if err := c.do(ctx, http.MethodGet, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Approve marks an upstream request as approved.
func (c *Client) Approve(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/request/%d/approve", id), nil)
}

// Delete removes an upstream request.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/request/%d", id), nil)
}

// MarkRequestAvailable flags the media behind a request as available. The
// availability flag lives on the media record, not the request, so this
// resolves the request first.
func (c *Client) MarkRequestAvailable(ctx context.Context, requestID int64) error {
	var req Request
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/request/%d", requestID), &req); err != nil {
		return err
	}
	if req.Media == nil || req.Media.ID <= 0 {
		return fmt.Errorf("request %d has no media record", requestID)
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/media/%d/available", req.Media.ID), nil)
}

// Health checks reachability of the upstream API.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/api/v1/status", nil)
}
