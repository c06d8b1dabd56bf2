package reconcile_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	_ "modernc.org/sqlite"

	"github.com/pickrr/pickrr/internal/metadata"
	"github.com/pickrr/pickrr/internal/migrations"
	"github.com/pickrr/pickrr/internal/overseerr"
	"github.com/pickrr/pickrr/internal/reconcile"
	"github.com/pickrr/pickrr/internal/reconcile/mocks"
	"github.com/pickrr/pickrr/internal/request"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *request.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(migrations.InitialSQL)
	require.NoError(t, err)
	return request.NewStore(db)
}

func upstreamMovie(id, tmdbID int64, mediaStatus int) overseerr.Request {
	return overseerr.Request{
		ID:          id,
		Status:      overseerr.StatusApproved,
		Media:       &overseerr.Media{ID: id, TmdbID: tmdbID, MediaType: "movie", Status: mediaStatus},
		RequestedBy: &overseerr.User{Username: "alice"},
		CreatedAt:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func singlePage(reqs ...overseerr.Request) *overseerr.Page {
	return &overseerr.Page{
		PageInfo: overseerr.PageInfo{Pages: 1, Page: 1, Results: len(reqs)},
		Results:  reqs,
	}
}

func TestJob_ImportsNewRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := testStore(t)

	upstream := mocks.NewMockUpstream(ctrl)
	upstream.EXPECT().
		Requests(gomock.Any(), 1, gomock.Any()).
		Return(singlePage(upstreamMovie(42, 603, 1)), nil)

	meta := mocks.NewMockMetadata(ctrl)
	meta.EXPECT().
		Lookup(gomock.Any(), int64(603), request.KindMovie).
		Return(&metadata.Media{Title: "The Matrix"}, nil)

	job := reconcile.NewJob(store, upstream, meta, testLogger())
	res, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.Pruned)
	assert.Empty(t, res.Errors)

	r, err := store.GetByUpstreamID(42)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix", r.Title)
	assert.Equal(t, request.StatusAwaitingSelection, r.Status)
	assert.Equal(t, "alice", r.RequestedBy)
}

func TestJob_ImportsSeriesWithSeasons(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := testStore(t)

	series := overseerr.Request{
		ID:      7,
		Media:   &overseerr.Media{ID: 7, TmdbID: 1399, MediaType: "tv", Status: 1},
		Seasons: []overseerr.Season{{SeasonNumber: 2}, {SeasonNumber: 1}},
	}

	upstream := mocks.NewMockUpstream(ctrl)
	upstream.EXPECT().Requests(gomock.Any(), 1, gomock.Any()).Return(singlePage(series), nil)

	meta := mocks.NewMockMetadata(ctrl)
	meta.EXPECT().
		Lookup(gomock.Any(), int64(1399), request.KindSeries).
		Return(&metadata.Media{Title: "Game of Thrones"}, nil)

	job := reconcile.NewJob(store, upstream, meta, testLogger())
	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	r, err := store.GetByUpstreamID(7)
	require.NoError(t, err)
	assert.Equal(t, request.KindSeries, r.MediaKind)
	assert.Equal(t, []int{1, 2}, r.Seasons)
}

func TestJob_NoChangesIsQuiet(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := testStore(t)

	require.NoError(t, store.Upsert(&request.Request{
		UpstreamID: 42, CatalogID: 603, MediaKind: request.KindMovie,
		Title: "The Matrix", Status: request.StatusAwaitingSelection, RequestedBy: "alice",
	}))

	upstream := mocks.NewMockUpstream(ctrl)
	upstream.EXPECT().
		Requests(gomock.Any(), 1, gomock.Any()).
		Return(singlePage(upstreamMovie(42, 603, 1)), nil)

	job := reconcile.NewJob(store, upstream, mocks.NewMockMetadata(ctrl), testLogger())
	res, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.Pruned)
	assert.Equal(t, 1, res.Skipped)
}

func TestJob_UpdatesDerivedStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := testStore(t)

	require.NoError(t, store.Upsert(&request.Request{
		UpstreamID: 42, CatalogID: 603, MediaKind: request.KindMovie,
		Title: "The Matrix", Status: request.StatusAwaitingSelection, RequestedBy: "alice",
	}))

	upstream := mocks.NewMockUpstream(ctrl)
	upstream.EXPECT().
		Requests(gomock.Any(), 1, gomock.Any()).
		Return(singlePage(upstreamMovie(42, 603, 5)), nil)

	job := reconcile.NewJob(store, upstream, mocks.NewMockMetadata(ctrl), testLogger())
	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	r, err := store.GetByUpstreamID(42)
	require.NoError(t, err)
	assert.Equal(t, request.StatusAvailable, r.Status)
}

func TestJob_NeverOverwritesLocallyManaged(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := testStore(t)

	for i, status := range []request.Status{
		request.StatusSelected, request.StatusDownloading, request.StatusDone,
	} {
		upstreamID := int64(100 + i)
		r := &request.Request{
			UpstreamID: upstreamID, CatalogID: 603, MediaKind: request.KindMovie,
			Title: "The Matrix", Status: request.StatusAwaitingSelection, RequestedBy: "alice",
		}
		require.NoError(t, store.Upsert(r))
		require.NoError(t, store.SetStatus(r.ID, status))
	}

	upstream := mocks.NewMockUpstream(ctrl)
	upstream.EXPECT().
		Requests(gomock.Any(), 1, gomock.Any()).
		Return(singlePage(
			upstreamMovie(100, 603, 5),
			upstreamMovie(101, 603, 5),
			upstreamMovie(102, 603, 5),
		), nil)

	job := reconcile.NewJob(store, upstream, mocks.NewMockMetadata(ctrl), testLogger())
	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Updated)

	for i, want := range []request.Status{
		request.StatusSelected, request.StatusDownloading, request.StatusDone,
	} {
		r, err := store.GetByUpstreamID(int64(100 + i))
		require.NoError(t, err)
		assert.Equal(t, want, r.Status)
	}
}

func TestJob_PrunesVanishedRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := testStore(t)

	r := &request.Request{
		UpstreamID: 42, CatalogID: 603, MediaKind: request.KindMovie,
		Title: "The Matrix", Status: request.StatusAwaitingSelection, RequestedBy: "alice",
	}
	require.NoError(t, store.Upsert(r))
	require.NoError(t, store.UpsertTorrent(&request.Torrent{
		RequestID: r.ID, SeasonNumber: 0, Title: "The.Matrix.1999.1080p",
		Indexer: "idx", SelectedBy: "alice",
	}))

	upstream := mocks.NewMockUpstream(ctrl)
	upstream.EXPECT().Requests(gomock.Any(), 1, gomock.Any()).Return(singlePage(), nil)

	job := reconcile.NewJob(store, upstream, mocks.NewMockMetadata(ctrl), testLogger())
	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pruned)

	_, err = store.Get(r.ID)
	assert.ErrorIs(t, err, request.ErrNotFound)
	torrents, err := store.TorrentsForRequest(r.ID)
	require.NoError(t, err)
	assert.Empty(t, torrents)
}

func TestJob_PageErrorKeepsCollectedAndSkipsPrune(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := testStore(t)

	require.NoError(t, store.Upsert(&request.Request{
		UpstreamID: 99, CatalogID: 1, MediaKind: request.KindMovie,
		Title: "Vanished?", Status: request.StatusAwaitingSelection, RequestedBy: "bob",
	}))

	upstream := mocks.NewMockUpstream(ctrl)
	first := singlePage(upstreamMovie(42, 603, 1))
	first.PageInfo.Pages = 3
	gomock.InOrder(
		upstream.EXPECT().Requests(gomock.Any(), 1, gomock.Any()).Return(first, nil),
		upstream.EXPECT().Requests(gomock.Any(), 2, gomock.Any()).Return(nil, errors.New("upstream 502")),
	)

	meta := mocks.NewMockMetadata(ctrl)
	meta.EXPECT().
		Lookup(gomock.Any(), int64(603), request.KindMovie).
		Return(&metadata.Media{Title: "The Matrix"}, nil)

	job := reconcile.NewJob(store, upstream, meta, testLogger())
	res, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Imported, "collected page still imported")
	assert.Equal(t, 0, res.Pruned, "partial listing must not prune")
	assert.Len(t, res.Errors, 1)

	_, err = store.GetByUpstreamID(99)
	assert.NoError(t, err, "request absent from partial listing survives")
}

func TestJob_MetadataFailureUsesPlaceholderTitle(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := testStore(t)

	upstream := mocks.NewMockUpstream(ctrl)
	upstream.EXPECT().
		Requests(gomock.Any(), 1, gomock.Any()).
		Return(singlePage(upstreamMovie(42, 603, 1)), nil)

	meta := mocks.NewMockMetadata(ctrl)
	meta.EXPECT().
		Lookup(gomock.Any(), int64(603), request.KindMovie).
		Return(nil, errors.New("tmdb down"))

	job := reconcile.NewJob(store, upstream, meta, testLogger())
	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	r, err := store.GetByUpstreamID(42)
	require.NoError(t, err)
	assert.Equal(t, "Request #42", r.Title)
}

func TestJob_SkipsInvalidUpstreamItems(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := testStore(t)

	noMedia := overseerr.Request{ID: 50}

	upstream := mocks.NewMockUpstream(ctrl)
	upstream.EXPECT().Requests(gomock.Any(), 1, gomock.Any()).Return(singlePage(noMedia), nil)

	job := reconcile.NewJob(store, upstream, mocks.NewMockMetadata(ctrl), testLogger())
	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 1, res.Skipped)
}

func TestJob_PaginatesUntilLastPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := testStore(t)

	p1 := singlePage(upstreamMovie(1, 10, 1))
	p1.PageInfo.Pages = 2
	p2 := singlePage(upstreamMovie(2, 20, 1))
	p2.PageInfo = overseerr.PageInfo{Pages: 2, Page: 2}

	upstream := mocks.NewMockUpstream(ctrl)
	gomock.InOrder(
		upstream.EXPECT().Requests(gomock.Any(), 1, gomock.Any()).Return(p1, nil),
		upstream.EXPECT().Requests(gomock.Any(), 2, gomock.Any()).Return(p2, nil),
	)

	meta := mocks.NewMockMetadata(ctrl)
	meta.EXPECT().Lookup(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&metadata.Media{Title: "T"}, nil).Times(2)

	job := reconcile.NewJob(store, upstream, meta, testLogger())
	res, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
}
