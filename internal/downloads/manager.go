// Package downloads orchestrates the download client: grabbing selections,
// polling progress, detecting completion, and tearing down rejections.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pickrr/pickrr/internal/qbit"
	"github.com/pickrr/pickrr/internal/request"
	"github.com/pickrr/pickrr/internal/settings"
)

// Settings keys for per-kind save paths, with their fallbacks.
const (
	MovieSavePathKey = "MOVIES_SAVE_PATH"
	TVSavePathKey    = "TV_SAVE_PATH"

	defaultMoviePath = "/downloads/movies"
	defaultTVPath    = "/downloads/tv"
)

const sideEffectTimeout = 30 * time.Second

var (
	// ErrNoSource is returned when a grab has neither a download URL nor a
	// magnet link.
	ErrNoSource = errors.New("selection needs a download url or magnet link")
	// ErrBadAction is returned for an unknown removal action.
	ErrBadAction = errors.New("action must be pause, resume or delete")
)

// Torrenter is what the manager needs from the download client.
type Torrenter interface {
	Add(ctx context.Context, urlOrMagnet string, opts qbit.AddOptions) error
	RecentAndActive(ctx context.Context) ([]qbit.Torrent, error)
	HashByName(ctx context.Context, name string) (string, error)
	Pause(ctx context.Context, hash string) error
	Resume(ctx context.Context, hash string) error
	Delete(ctx context.Context, hash string, deleteFiles bool) error
}

// Upstream is what the manager needs from the upstream request manager.
type Upstream interface {
	Approve(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	MarkRequestAvailable(ctx context.Context, id int64) error
}

// Library is what the manager needs from a library manager. Either library
// may be nil when not configured.
type Library interface {
	ScanDownloads(ctx context.Context) error
	Remove(ctx context.Context, catalogID int64) error
}

// Manager drives the download lifecycle.
type Manager struct {
	store    *request.Store
	client   Torrenter
	upstream Upstream
	movies   Library
	series   Library
	settings *settings.Store
	category string
	log      *slog.Logger

	wg sync.WaitGroup
}

// NewManager creates a Manager. movies and series may be nil.
func NewManager(store *request.Store, client Torrenter, upstream Upstream,
	movies, series Library, st *settings.Store, category string, log *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		client:   client,
		upstream: upstream,
		movies:   movies,
		series:   series,
		settings: st,
		category: category,
		log:      log.With("component", "downloads"),
	}
}

// dispatch runs a best-effort side effect without blocking the caller.
// Failures are logged, never propagated.
func (m *Manager) dispatch(name string, fn func(ctx context.Context) error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			m.log.Warn("side effect failed", "effect", name, "error", err)
		}
	}()
}

// Flush waits for in-flight side effects. Test hook and shutdown aid.
func (m *Manager) Flush() {
	m.wg.Wait()
}

func (m *Manager) library(kind request.MediaKind) Library {
	if kind == request.KindSeries {
		return m.series
	}
	return m.movies
}

// GrabInput is a chosen search result, optionally bound to a request and
// season. With an empty RequestID the grab is ad-hoc: MediaKind drives
// placement and no request state is touched.
type GrabInput struct {
	RequestID    string  `json:"requestId,omitempty"`
	MediaKind    string  `json:"mediaKind,omitempty"`
	SeasonNumber int     `json:"seasonNumber"`
	Title        string  `json:"title"`
	Indexer      string  `json:"indexer"`
	SizeBytes    int64   `json:"size"`
	Seeders      int     `json:"seeders"`
	Leechers     int     `json:"leechers"`
	DownloadURL  *string `json:"downloadUrl,omitempty"`
	MagnetURL    *string `json:"magnetUrl,omitempty"`
	InfoURL      *string `json:"infoUrl,omitempty"`
	SelectedBy   string  `json:"selectedBy"`
}

func (in *GrabInput) source() (string, bool) {
	if in.MagnetURL != nil && *in.MagnetURL != "" {
		return *in.MagnetURL, true
	}
	if in.DownloadURL != nil && *in.DownloadURL != "" {
		return *in.DownloadURL, false
	}
	return "", false
}

// Grab hands a selection to the download client, records the torrent row
// for (request, season) and moves the request to downloading. A failed
// client submission writes nothing; approval upstream is fired off
// asynchronously and never fails the grab.
func (m *Manager) Grab(ctx context.Context, in GrabInput) (*request.Torrent, error) {
	source, isMagnet := in.source()
	if source == "" {
		return nil, ErrNoSource
	}

	if in.RequestID == "" {
		return nil, m.grabUnlinked(ctx, in, source)
	}

	r, err := m.store.Get(in.RequestID)
	if err != nil {
		return nil, err
	}

	savePath, tag, err := m.placement(r.MediaKind)
	if err != nil {
		return nil, err
	}

	if err := m.client.Add(ctx, source, qbit.AddOptions{
		SavePath: savePath,
		Category: m.category,
		Tags:     tag,
	}); err != nil {
		return nil, fmt.Errorf("add to download client: %w", err)
	}

	t := &request.Torrent{
		RequestID:    r.ID,
		SeasonNumber: in.SeasonNumber,
		Title:        in.Title,
		Indexer:      in.Indexer,
		SizeBytes:    in.SizeBytes,
		Seeders:      in.Seeders,
		Leechers:     in.Leechers,
		DownloadURL:  in.DownloadURL,
		MagnetURL:    in.MagnetURL,
		InfoURL:      in.InfoURL,
		SelectedBy:   in.SelectedBy,
	}
	if hash := m.resolveHash(ctx, source, isMagnet, in.Title); hash != "" {
		t.ClientHash = &hash
	}

	if err := m.store.UpsertTorrent(t); err != nil {
		return nil, err
	}
	if err := m.store.SetStatus(r.ID, request.StatusDownloading); err != nil {
		return nil, err
	}

	upstreamID := r.UpstreamID
	m.dispatch("approve upstream request", func(ctx context.Context) error {
		return m.upstream.Approve(ctx, upstreamID)
	})

	m.log.Info("grabbed torrent",
		"request_id", r.ID,
		"season", in.SeasonNumber,
		"title", in.Title,
		"indexer", in.Indexer)
	return t, nil
}

// grabUnlinked submits a selection that serves no tracked request. Placement
// comes from the body's media kind (movie when absent); no torrent row is
// written, no status moves, no upstream approval fires.
func (m *Manager) grabUnlinked(ctx context.Context, in GrabInput, source string) error {
	kind := request.MediaKind(in.MediaKind)
	if !kind.Valid() {
		kind = request.KindMovie
	}
	savePath, tag, err := m.placement(kind)
	if err != nil {
		return err
	}
	if err := m.client.Add(ctx, source, qbit.AddOptions{
		SavePath: savePath,
		Category: m.category,
		Tags:     tag,
	}); err != nil {
		return fmt.Errorf("add to download client: %w", err)
	}
	m.log.Info("grabbed unlinked torrent",
		"title", in.Title,
		"indexer", in.Indexer,
		"media_kind", kind)
	return nil
}

func (m *Manager) placement(kind request.MediaKind) (savePath, tag string, err error) {
	if kind == request.KindSeries {
		savePath, err = m.settings.GetDefault(TVSavePathKey, defaultTVPath)
		tag = m.category + "-series"
	} else {
		savePath, err = m.settings.GetDefault(MovieSavePathKey, defaultMoviePath)
		tag = m.category + "-movie"
	}
	if err != nil {
		return "", "", fmt.Errorf("resolve save path: %w", err)
	}
	return savePath, tag, nil
}

// resolveHash pins down the client handle for the new torrent. Magnets
// carry it; URL adds fall back to a name lookup, which may legitimately
// miss while the client is still fetching the metadata.
func (m *Manager) resolveHash(ctx context.Context, source string, isMagnet bool, title string) string {
	if isMagnet {
		if hash, ok := qbit.MagnetHash(source); ok {
			return hash
		}
		return ""
	}
	hash, err := m.client.HashByName(ctx, title)
	if err != nil {
		m.log.Debug("client hash not resolvable yet", "title", title, "error", err)
		return ""
	}
	return hash
}

// Link ties a client torrent back to the request it serves.
type Link struct {
	RequestID    string            `json:"requestId"`
	RequestTitle string            `json:"requestTitle"`
	MediaKind    request.MediaKind `json:"mediaKind"`
	SeasonNumber int               `json:"seasonNumber"`
	PosterURL    *string           `json:"posterUrl,omitempty"`
	Status       request.Status    `json:"status"`
}

// View is one row of the merged downloads listing: client-reported fields
// plus linkage when the torrent maps to a tracked selection.
type View struct {
	Hash      string  `json:"hash"`
	Name      string  `json:"name"`
	SizeBytes int64   `json:"size"`
	Progress  float64 `json:"progress"`
	DLSpeed   int64   `json:"dlspeed"`
	UPSpeed   int64   `json:"upspeed"`
	Seeds     int     `json:"seeds"`
	Peers     int     `json:"peers"`
	ETA       int64   `json:"eta"`
	State     string  `json:"state"`
	SavePath  string  `json:"savePath"`
	Category  string  `json:"category"`
	Linked    *Link   `json:"linked,omitempty"`
}

// List returns the merged downloads view and, as a side effect, closes the
// loop on completions: a matched torrent that finished while its request
// was downloading flips the request to done and fires the import scan and
// upstream availability notifications.
func (m *Manager) List(ctx context.Context) ([]View, error) {
	torrents, err := m.client.RecentAndActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list client torrents: %w", err)
	}
	selections, err := m.store.Selections()
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(torrents))
	for _, t := range torrents {
		sel := matchSelection(t, selections)
		v := View{
			Hash:      t.Hash,
			Name:      t.Name,
			SizeBytes: t.Size,
			Progress:  t.Progress,
			DLSpeed:   t.DLSpeed,
			UPSpeed:   t.UPSpeed,
			Seeds:     t.NumSeeds,
			Peers:     t.NumLeechs,
			ETA:       t.ETA,
			State:     t.State,
			SavePath:  t.SavePath,
			Category:  t.Category,
		}
		if sel != nil {
			v.Linked = &Link{
				RequestID:    sel.RequestID,
				RequestTitle: sel.RequestTitle,
				MediaKind:    sel.MediaKind,
				SeasonNumber: sel.SeasonNumber,
				PosterURL:    sel.PosterURL,
				Status:       sel.RequestStatus,
			}
			if t.Complete() {
				m.complete(sel, v.Linked)
			}
		}
		views = append(views, v)
	}
	return views, nil
}

// matchSelection pairs a client torrent with a tracked selection: stored
// hash first, normalized title similarity as the degraded fallback.
func matchSelection(t qbit.Torrent, selections []*request.Selection) *request.Selection {
	for _, sel := range selections {
		if sel.ClientHash != nil && strings.EqualFold(*sel.ClientHash, t.Hash) {
			return sel
		}
	}
	for _, sel := range selections {
		if sel.ClientHash == nil && titlesMatch(t.Name, sel.Title) {
			return sel
		}
	}
	return nil
}

// complete marks a finished download's request done, once, and fires the
// three independent best-effort notifications.
func (m *Manager) complete(sel *request.Selection, link *Link) {
	moved, err := m.store.SetStatusIf(sel.RequestID, request.StatusDownloading, request.StatusDone)
	if err != nil {
		m.log.Error("mark request done", "request_id", sel.RequestID, "error", err)
		return
	}
	if !moved {
		return
	}
	link.Status = request.StatusDone
	m.log.Info("download complete", "request_id", sel.RequestID, "title", sel.RequestTitle)

	if lib := m.library(sel.MediaKind); lib != nil {
		m.dispatch("library import scan", lib.ScanDownloads)
	}
	upstreamID := sel.UpstreamID
	m.dispatch("mark available upstream", func(ctx context.Context) error {
		return m.upstream.MarkRequestAvailable(ctx, upstreamID)
	})
}

// RemoveInput is a manual action on a single client torrent.
type RemoveInput struct {
	Hash        string `json:"hash"`
	Action      string `json:"action"`
	DeleteFiles bool   `json:"deleteFiles"`
}

// Remove pauses, resumes or deletes one client torrent. Deleting clears the
// stored client handle so the season can be re-grabbed, and reverts the
// owning requests from downloading back to selected.
func (m *Manager) Remove(ctx context.Context, in RemoveInput) error {
	switch in.Action {
	case "pause":
		return m.client.Pause(ctx, in.Hash)
	case "resume":
		return m.client.Resume(ctx, in.Hash)
	case "delete":
		if err := m.client.Delete(ctx, in.Hash, in.DeleteFiles); err != nil {
			return err
		}
		requestIDs, err := m.store.ClearClientHash(in.Hash)
		if err != nil {
			return err
		}
		for _, id := range requestIDs {
			if _, err := m.store.SetStatusIf(id, request.StatusDownloading, request.StatusSelected); err != nil {
				m.log.Error("revert request after delete", "request_id", id, "error", err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%q: %w", in.Action, ErrBadAction)
	}
}

// Reject tears a request down: optionally stops its active downloads, then
// deletes the local rows, then asks the upstream manager and the library
// manager to forget it. The downstream deletions are independent and
// best-effort; no media files are ever deleted.
func (m *Manager) Reject(ctx context.Context, requestID string, stopDownload bool) error {
	r, err := m.store.Get(requestID)
	if err != nil {
		return err
	}
	torrents, err := m.store.TorrentsForRequest(r.ID)
	if err != nil {
		return err
	}

	if stopDownload {
		for _, t := range torrents {
			if t.ClientHash == nil {
				continue
			}
			// deleteFiles removes the in-progress download payload only;
			// imported library media lives elsewhere and is never touched.
			if err := m.client.Delete(ctx, *t.ClientHash, true); err != nil {
				m.log.Warn("stop download", "hash", *t.ClientHash, "error", err)
			}
		}
	}

	if err := m.store.Delete(r.ID); err != nil {
		return err
	}

	upstreamID := r.UpstreamID
	m.dispatch("delete upstream request", func(ctx context.Context) error {
		return m.upstream.Delete(ctx, upstreamID)
	})
	if lib := m.library(r.MediaKind); lib != nil {
		catalogID := r.CatalogID
		m.dispatch("remove from library", func(ctx context.Context) error {
			return lib.Remove(ctx, catalogID)
		})
	}

	m.log.Info("rejected request", "request_id", r.ID, "title", r.Title, "stop_download", stopDownload)
	return nil
}
