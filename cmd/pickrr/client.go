package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client wraps HTTP calls to the pickrr server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new pickrr API client.
func NewClient(serverURL string) *Client {
	return &Client{
		baseURL: serverURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) get(path string, result any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func (c *Client) post(path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", reader)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func (c *Client) delete(path string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (c *Client) put(path string, body any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	req, err := http.NewRequest(http.MethodPut, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// API response types (mirror server types)

type RequestResponse struct {
	ID          string  `json:"id"`
	UpstreamID  int64   `json:"upstreamId"`
	CatalogID   int64   `json:"catalogId"`
	MediaKind   string  `json:"mediaKind"`
	Title       string  `json:"title"`
	Year        *int    `json:"year,omitempty"`
	Seasons     []int   `json:"seasons,omitempty"`
	Status      string  `json:"status"`
	RequestedBy string  `json:"requestedBy"`
	RequestedAt string  `json:"requestedAt"`
	PosterURL   *string `json:"posterUrl,omitempty"`
}

type SyncResult struct {
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Pruned   int      `json:"pruned"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

type DownloadLink struct {
	RequestID    string `json:"requestId"`
	RequestTitle string `json:"requestTitle"`
	MediaKind    string `json:"mediaKind"`
	SeasonNumber int    `json:"seasonNumber"`
	Status       string `json:"status"`
}

type DownloadView struct {
	Hash     string        `json:"hash"`
	Name     string        `json:"name"`
	Size     int64         `json:"size"`
	Progress float64       `json:"progress"`
	DLSpeed  int64         `json:"dlspeed"`
	Seeds    int           `json:"seeds"`
	Peers    int           `json:"peers"`
	ETA      int64         `json:"eta"`
	State    string        `json:"state"`
	Linked   *DownloadLink `json:"linked,omitempty"`
}

type StatusResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Requests lists requests, optionally filtered by status.
func (c *Client) Requests(status string) ([]RequestResponse, error) {
	path := "/api/v1/requests"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out []RequestResponse
	if err := c.get(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sync triggers a reconciliation pass.
func (c *Client) Sync() (*SyncResult, error) {
	var out SyncResult
	if err := c.post("/api/v1/requests/sync", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reject removes a request, optionally stopping its active download.
func (c *Client) Reject(id string, stopDownload bool) error {
	path := "/api/v1/requests/" + url.PathEscape(id)
	if stopDownload {
		path += "?stopDownload=true"
	}
	return c.delete(path)
}

// Downloads lists the merged downloads view.
func (c *Client) Downloads() ([]DownloadView, error) {
	var out []DownloadView
	if err := c.get("/api/v1/downloads", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveDownload pauses, resumes or deletes one client torrent.
func (c *Client) RemoveDownload(hash, action string, deleteFiles bool) error {
	body := map[string]any{"hash": hash, "action": action, "deleteFiles": deleteFiles}
	return c.post("/api/v1/downloads/remove", body, nil)
}

// Status fetches collaborator health.
func (c *Client) Status() (*StatusResponse, error) {
	var out StatusResponse
	if err := c.get("/api/v1/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetSetting writes one settings key.
func (c *Client) SetSetting(key, value string) error {
	return c.put("/api/v1/settings/"+url.PathEscape(key), map[string]string{"value": value})
}

// GetSetting reads one settings key.
func (c *Client) GetSetting(key string) (string, error) {
	var out map[string]string
	if err := c.get("/api/v1/settings/"+url.PathEscape(key), &out); err != nil {
		return "", err
	}
	return out["value"], nil
}
