// Package arr holds clients for the downstream library managers.
package arr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LibraryManager is what the download pipeline needs from a library
// manager: trigger an import scan after a download completes, and remove a
// title when its request is rejected.
type LibraryManager interface {
	ScanDownloads(ctx context.Context) error
	Remove(ctx context.Context, catalogID int64) error
	Health(ctx context.Context) error
}

// client is the shared HTTP plumbing for the v3 *arr APIs.
type client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newClient(baseURL, apiKey string, hc *http.Client) client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: hc,
	}
}

func (c client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error: %s %s: %s", method, path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c client) command(ctx context.Context, name string) error {
	payload := fmt.Sprintf(`{"name":%q}`, name)
	return c.do(ctx, http.MethodPost, "/api/v3/command", strings.NewReader(payload), nil)
}

func (c client) health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/api/v3/system/status", nil, nil)
}
