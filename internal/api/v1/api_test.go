package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	_ "modernc.org/sqlite"

	"github.com/pickrr/pickrr/internal/downloads"
	"github.com/pickrr/pickrr/internal/migrations"
	"github.com/pickrr/pickrr/internal/overseerr"
	"github.com/pickrr/pickrr/internal/qbit"
	"github.com/pickrr/pickrr/internal/reconcile"
	"github.com/pickrr/pickrr/internal/reconcile/mocks"
	"github.com/pickrr/pickrr/internal/request"
	"github.com/pickrr/pickrr/internal/settings"
)

// stubTorrenter is a no-op download client for API-level tests.
type stubTorrenter struct {
	torrents []qbit.Torrent
	addErr   error
}

func (s *stubTorrenter) Add(ctx context.Context, source string, opts qbit.AddOptions) error {
	return s.addErr
}

func (s *stubTorrenter) RecentAndActive(ctx context.Context) ([]qbit.Torrent, error) {
	return s.torrents, nil
}

func (s *stubTorrenter) HashByName(ctx context.Context, name string) (string, error) {
	return "", errors.New("not found")
}

func (s *stubTorrenter) Pause(ctx context.Context, hash string) error  { return nil }
func (s *stubTorrenter) Resume(ctx context.Context, hash string) error { return nil }
func (s *stubTorrenter) Delete(ctx context.Context, hash string, deleteFiles bool) error {
	return nil
}

type stubUpstream struct{}

func (stubUpstream) Approve(ctx context.Context, id int64) error              { return nil }
func (stubUpstream) Delete(ctx context.Context, id int64) error               { return nil }
func (stubUpstream) MarkRequestAvailable(ctx context.Context, id int64) error { return nil }

type stubHealth struct{ err error }

func (s stubHealth) Health(ctx context.Context) error { return s.err }

type testAPI struct {
	store   *request.Store
	client  *stubTorrenter
	manager *downloads.Manager
	server  *Server
	mux     *http.ServeMux
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(migrations.InitialSQL)
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := &testAPI{
		store:  request.NewStore(db),
		client: &stubTorrenter{},
	}
	st := settings.NewStore(db)
	a.manager = downloads.NewManager(a.store, a.client, stubUpstream{}, nil, nil, st, "pickrr", log)

	a.server = New(a.store, st, log)
	a.server.SetManager(a.manager)
	a.mux = http.NewServeMux()
	a.server.RegisterRoutes(a.mux)
	return a
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	w := httptest.NewRecorder()
	a.mux.ServeHTTP(w, req)
	return w
}

func (a *testAPI) seed(t *testing.T, upstreamID int64, status request.Status) *request.Request {
	t.Helper()
	r := &request.Request{
		UpstreamID:  upstreamID,
		CatalogID:   603,
		MediaKind:   request.KindMovie,
		Title:       "The Matrix",
		Status:      request.StatusAwaitingSelection,
		RequestedBy: "alice",
	}
	require.NoError(t, a.store.Upsert(r))
	if r.Status != status {
		require.NoError(t, a.store.SetStatus(r.ID, status))
	}
	return r
}

func TestAPI_ListRequests(t *testing.T) {
	a := setupAPI(t)
	a.seed(t, 1, request.StatusAwaitingSelection)
	a.seed(t, 2, request.StatusDownloading)

	w := a.do(t, http.MethodGet, "/api/v1/requests", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp []requestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestAPI_ListRequests_StatusFilter(t *testing.T) {
	a := setupAPI(t)
	a.seed(t, 1, request.StatusAwaitingSelection)
	a.seed(t, 2, request.StatusDownloading)

	w := a.do(t, http.MethodGet, "/api/v1/requests?status=downloading", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp []requestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "downloading", resp[0].Status)

	// "all" is not a status, it just means no filter.
	w = a.do(t, http.MethodGet, "/api/v1/requests?status=all", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)

	w = a.do(t, http.MethodGet, "/api/v1/requests?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_GetRequest(t *testing.T) {
	a := setupAPI(t)
	r := a.seed(t, 1, request.StatusAwaitingSelection)

	w := a.do(t, http.MethodGet, "/api/v1/requests/"+r.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp requestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "The Matrix", resp.Title)
	assert.Equal(t, int64(1), resp.UpstreamID)
	assert.Empty(t, resp.Torrents)

	w = a.do(t, http.MethodGet, "/api/v1/requests/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_GetRequest_EmbedsTorrentsBySeason(t *testing.T) {
	a := setupAPI(t)
	r := a.seed(t, 1, request.StatusDownloading)

	for _, season := range []int{2, 1} {
		require.NoError(t, a.store.UpsertTorrent(&request.Torrent{
			RequestID:    r.ID,
			SeasonNumber: season,
			Title:        fmt.Sprintf("Show.S%02d", season),
			Indexer:      "idx",
			SelectedBy:   "alice",
		}))
	}

	w := a.do(t, http.MethodGet, "/api/v1/requests/"+r.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp requestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Torrents, 2)
	assert.Equal(t, 1, resp.Torrents[0].SeasonNumber)
	assert.Equal(t, 2, resp.Torrents[1].SeasonNumber)
	assert.Equal(t, "idx", resp.Torrents[0].Indexer)
}

func TestAPI_Grab(t *testing.T) {
	a := setupAPI(t)
	r := a.seed(t, 42, request.StatusAwaitingSelection)

	body := `{"requestId":"` + r.ID + `","seasonNumber":0,"title":"The.Matrix.1080p","indexer":"idx","magnetUrl":"magnet:?xt=urn:btih:abc","selectedBy":"alice"}`
	w := a.do(t, http.MethodPost, "/api/v1/download", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	got, err := a.store.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, request.StatusDownloading, got.Status)
}

func TestAPI_Grab_Unlinked(t *testing.T) {
	a := setupAPI(t)

	body := `{"title":"Some.Movie.2160p","indexer":"idx","mediaKind":"movie","magnetUrl":"magnet:?xt=urn:btih:abc"}`
	w := a.do(t, http.MethodPost, "/api/v1/download", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "submitted")

	reqs, err := a.store.List(request.Filter{})
	require.NoError(t, err)
	assert.Empty(t, reqs, "ad-hoc grab creates no request")
}

func TestAPI_Grab_Validation(t *testing.T) {
	a := setupAPI(t)
	r := a.seed(t, 42, request.StatusAwaitingSelection)

	w := a.do(t, http.MethodPost, "/api/v1/download",
		`{"requestId":"`+r.ID+`","title":"x","indexer":"idx"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/api/v1/download",
		`{"requestId":"missing","title":"x","indexer":"idx","magnetUrl":"magnet:?xt=urn:btih:abc"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodPost, "/api/v1/download", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_ListDownloads_EmptyArray(t *testing.T) {
	a := setupAPI(t)

	w := a.do(t, http.MethodGet, "/api/v1/downloads", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestAPI_RemoveDownload(t *testing.T) {
	a := setupAPI(t)

	w := a.do(t, http.MethodPost, "/api/v1/downloads/remove", `{"hash":"h","action":"pause"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodPost, "/api/v1/downloads/remove", `{"hash":"h","action":"explode"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, "/api/v1/downloads/remove", `{"action":"pause"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_RejectRequest(t *testing.T) {
	a := setupAPI(t)
	r := a.seed(t, 42, request.StatusAwaitingSelection)

	w := a.do(t, http.MethodDelete, "/api/v1/requests/"+r.ID+"?stopDownload=true", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	a.manager.Flush()

	_, err := a.store.Get(r.ID)
	assert.ErrorIs(t, err, request.ErrNotFound)

	w = a.do(t, http.MethodDelete, "/api/v1/requests/"+r.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_Sync(t *testing.T) {
	a := setupAPI(t)
	ctrl := gomock.NewController(t)

	upstream := mocks.NewMockUpstream(ctrl)
	upstream.EXPECT().
		Requests(gomock.Any(), 1, gomock.Any()).
		Return(&overseerr.Page{PageInfo: overseerr.PageInfo{Pages: 1}}, nil)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a.server.SetReconcileJob(reconcile.NewJob(a.store, upstream, mocks.NewMockMetadata(ctrl), log))

	w := a.do(t, http.MethodPost, "/api/v1/requests/sync", "")
	require.Equal(t, http.StatusOK, w.Code)

	var res reconcile.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 0, res.Imported)
	assert.NotNil(t, res.Errors)
}

func TestAPI_Sync_NotConfigured(t *testing.T) {
	a := setupAPI(t)

	w := a.do(t, http.MethodPost, "/api/v1/requests/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAPI_Settings(t *testing.T) {
	a := setupAPI(t)

	w := a.do(t, http.MethodPut, "/api/v1/settings/MOVIES_SAVE_PATH", `{"value":"/mnt/movies"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/api/v1/settings/MOVIES_SAVE_PATH", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "/mnt/movies", resp["value"])
}

func TestAPI_Status(t *testing.T) {
	a := setupAPI(t)
	a.server.AddHealthCheck("qbittorrent", stubHealth{})
	a.server.AddHealthCheck("overseerr", stubHealth{err: errors.New("connection refused")})

	w := a.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Services["qbittorrent"])
	assert.Contains(t, resp.Services["overseerr"], "connection refused")
}
