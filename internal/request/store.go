package request

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store provides access to request and torrent data.
type Store struct {
	db *sql.DB
}

// NewStore creates a new request store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const requestColumns = `id, upstream_id, catalog_id, media_kind, title, year, poster_url, overview, seasons, status, requested_by, requested_at, created_at, updated_at`

// encodeSeasons serializes a season list for storage. The list is sorted
// ascending and deduplicated; season 0 is reserved and rejected here.
func encodeSeasons(seasons []int) (*string, error) {
	if len(seasons) == 0 {
		return nil, nil
	}
	seen := make(map[int]bool, len(seasons))
	out := make([]int, 0, len(seasons))
	for _, s := range seasons {
		if s < 1 {
			return nil, fmt.Errorf("invalid season number %d: %w", s, ErrConstraint)
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Ints(out)
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode seasons: %w", err)
	}
	str := string(data)
	return &str, nil
}

func decodeSeasons(raw *string) ([]int, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var seasons []int
	if err := json.Unmarshal([]byte(*raw), &seasons); err != nil {
		return nil, fmt.Errorf("decode seasons: %w", err)
	}
	return seasons, nil
}

func scanRequest(row interface{ Scan(...any) error }) (*Request, error) {
	r := &Request{}
	var seasons *string
	err := row.Scan(&r.ID, &r.UpstreamID, &r.CatalogID, &r.MediaKind, &r.Title,
		&r.Year, &r.PosterURL, &r.Overview, &seasons, &r.Status,
		&r.RequestedBy, &r.RequestedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if r.Seasons, err = decodeSeasons(seasons); err != nil {
		return nil, err
	}
	return r, nil
}

// Upsert inserts or updates a request keyed on its upstream id. The SQLite
// unique constraint serializes concurrent writers (webhook vs reconciliation)
// onto one row. On update the stored status is preserved whenever it is
// locally managed; the incoming status only lands otherwise. The struct is
// refreshed from the winning row, so r.ID and r.Status reflect what is
// actually persisted.
func (s *Store) Upsert(r *Request) error {
	if !r.MediaKind.Valid() {
		return fmt.Errorf("invalid media kind %q: %w", r.MediaKind, ErrConstraint)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid status %q: %w", r.Status, ErrConstraint)
	}
	seasons, err := encodeSeasons(r.Seasons)
	if err != nil {
		return err
	}

	now := time.Now()
	if r.RequestedAt.IsZero() {
		r.RequestedAt = now
	}
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err = s.db.Exec(`
		INSERT INTO requests (id, upstream_id, catalog_id, media_kind, title, year, poster_url, overview, seasons, status, requested_by, requested_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(upstream_id) DO UPDATE SET
			catalog_id   = excluded.catalog_id,
			media_kind   = excluded.media_kind,
			title        = excluded.title,
			year         = excluded.year,
			poster_url   = excluded.poster_url,
			overview     = excluded.overview,
			seasons      = excluded.seasons,
			status       = CASE WHEN requests.status IN ('selected', 'downloading', 'done', 'failed')
			                    THEN requests.status ELSE excluded.status END,
			requested_by = excluded.requested_by,
			updated_at   = excluded.updated_at`,
		id, r.UpstreamID, r.CatalogID, r.MediaKind, r.Title, r.Year, r.PosterURL,
		r.Overview, seasons, r.Status, r.RequestedBy, r.RequestedAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert request %d: %w", r.UpstreamID, mapSQLiteError(err))
	}

	stored, err := s.GetByUpstreamID(r.UpstreamID)
	if err != nil {
		return fmt.Errorf("reload request %d: %w", r.UpstreamID, err)
	}
	*r = *stored
	return nil
}

// Get retrieves a request by ID.
// Returns ErrNotFound if the request does not exist.
func (s *Store) Get(id string) (*Request, error) {
	row := s.db.QueryRow(`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", id, mapSQLiteError(err))
	}
	return r, nil
}

// GetByUpstreamID retrieves a request by its upstream manager id.
func (s *Store) GetByUpstreamID(upstreamID int64) (*Request, error) {
	row := s.db.QueryRow(`SELECT `+requestColumns+` FROM requests WHERE upstream_id = ?`, upstreamID)
	r, err := scanRequest(row)
	if err != nil {
		return nil, fmt.Errorf("get request by upstream id %d: %w", upstreamID, mapSQLiteError(err))
	}
	return r, nil
}

// Filter specifies criteria for listing requests.
type Filter struct {
	Statuses []Status
}

// List returns requests matching the filter, newest first.
func (s *Store) List(f Filter) ([]*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests`
	var args []any
	if len(f.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(f.Statuses)), ", ")
		query += ` WHERE status IN (` + placeholders + `)`
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY requested_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return results, nil
}

// IndexEntry is the minimal view the reconciliation job needs of every
// locally known request.
type IndexEntry struct {
	ID         string
	UpstreamID int64
	Status     Status
}

// Index returns id, upstream id and status for all requests.
func (s *Store) Index() ([]IndexEntry, error) {
	rows, err := s.db.Query(`SELECT id, upstream_id, status FROM requests`)
	if err != nil {
		return nil, fmt.Errorf("index requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []IndexEntry
	for rows.Next() {
		var e IndexEntry
		if err := rows.Scan(&e.ID, &e.UpstreamID, &e.Status); err != nil {
			return nil, fmt.Errorf("scan index entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index: %w", err)
	}
	return entries, nil
}

// SetStatus updates a request's status unconditionally.
// Returns ErrNotFound if the request does not exist.
func (s *Store) SetStatus(id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q: %w", status, ErrConstraint)
	}
	result, err := s.db.Exec(`UPDATE requests SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("set status on %s: %w", id, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("set status on %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetStatusIf updates a request's status only when it currently has the
// expected value. Returns whether the update applied.
func (s *Store) SetStatusIf(id string, from, to Status) (bool, error) {
	result, err := s.db.Exec(`UPDATE requests SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now(), id, from)
	if err != nil {
		return false, fmt.Errorf("set status on %s: %w", id, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

// Delete removes a request and all its torrents.
// Returns ErrNotFound if the request does not exist.
func (s *Store) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM torrents WHERE request_id = ?`, id); err != nil {
		return fmt.Errorf("delete torrents for %s: %w", id, mapSQLiteError(err))
	}
	result, err := tx.Exec(`DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete request %s: %w", id, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete request %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

const torrentColumns = `id, request_id, season_number, title, indexer, size_bytes, seeders, leechers, download_url, magnet_url, info_url, client_hash, selected_by, selected_at`

func scanTorrent(row interface{ Scan(...any) error }) (*Torrent, error) {
	t := &Torrent{}
	err := row.Scan(&t.ID, &t.RequestID, &t.SeasonNumber, &t.Title, &t.Indexer,
		&t.SizeBytes, &t.Seeders, &t.Leechers, &t.DownloadURL, &t.MagnetURL,
		&t.InfoURL, &t.ClientHash, &t.SelectedBy, &t.SelectedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpsertTorrent inserts or replaces the selection for (request, season).
// Re-grabbing the same season overwrites the prior choice; the composite
// unique constraint guarantees at most one row per pair.
func (s *Store) UpsertTorrent(t *Torrent) error {
	if t.SeasonNumber < 0 {
		return fmt.Errorf("invalid season number %d: %w", t.SeasonNumber, ErrConstraint)
	}
	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO torrents (request_id, season_number, title, indexer, size_bytes, seeders, leechers, download_url, magnet_url, info_url, client_hash, selected_by, selected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id, season_number) DO UPDATE SET
			title        = excluded.title,
			indexer      = excluded.indexer,
			size_bytes   = excluded.size_bytes,
			seeders      = excluded.seeders,
			leechers     = excluded.leechers,
			download_url = excluded.download_url,
			magnet_url   = excluded.magnet_url,
			info_url     = excluded.info_url,
			client_hash  = excluded.client_hash,
			selected_by  = excluded.selected_by,
			selected_at  = excluded.selected_at`,
		t.RequestID, t.SeasonNumber, t.Title, t.Indexer, t.SizeBytes, t.Seeders,
		t.Leechers, t.DownloadURL, t.MagnetURL, t.InfoURL, t.ClientHash,
		t.SelectedBy, now,
	)
	if err != nil {
		return fmt.Errorf("upsert torrent (%s, %d): %w", t.RequestID, t.SeasonNumber, mapSQLiteError(err))
	}

	row := s.db.QueryRow(`SELECT `+torrentColumns+` FROM torrents WHERE request_id = ? AND season_number = ?`,
		t.RequestID, t.SeasonNumber)
	stored, err := scanTorrent(row)
	if err != nil {
		return fmt.Errorf("reload torrent (%s, %d): %w", t.RequestID, t.SeasonNumber, mapSQLiteError(err))
	}
	*t = *stored
	return nil
}

// TorrentsForRequest returns a request's selections ordered by season.
func (s *Store) TorrentsForRequest(requestID string) ([]*Torrent, error) {
	rows, err := s.db.Query(`SELECT `+torrentColumns+` FROM torrents WHERE request_id = ? ORDER BY season_number`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list torrents for %s: %w", requestID, err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Torrent
	for rows.Next() {
		t, err := scanTorrent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan torrent: %w", err)
		}
		results = append(results, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate torrents: %w", err)
	}
	return results, nil
}

// Selections returns every torrent joined with its parent request, newest
// selection first. The completion poller matches these against the download
// client's view.
func (s *Store) Selections() ([]*Selection, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.request_id, t.season_number, t.title, t.indexer, t.size_bytes, t.seeders, t.leechers,
		       t.download_url, t.magnet_url, t.info_url, t.client_hash, t.selected_by, t.selected_at,
		       r.status, r.title, r.media_kind, r.catalog_id, r.upstream_id, r.poster_url
		FROM torrents t
		JOIN requests r ON r.id = t.request_id
		ORDER BY t.selected_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Selection
	for rows.Next() {
		sel := &Selection{}
		t := &sel.Torrent
		err := rows.Scan(&t.ID, &t.RequestID, &t.SeasonNumber, &t.Title, &t.Indexer,
			&t.SizeBytes, &t.Seeders, &t.Leechers, &t.DownloadURL, &t.MagnetURL,
			&t.InfoURL, &t.ClientHash, &t.SelectedBy, &t.SelectedAt,
			&sel.RequestStatus, &sel.RequestTitle, &sel.MediaKind, &sel.CatalogID,
			&sel.UpstreamID, &sel.PosterURL)
		if err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		results = append(results, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selections: %w", err)
	}
	return results, nil
}

// SetTorrentHash stores the download-client handle on a torrent row.
func (s *Store) SetTorrentHash(torrentID int64, hash string) error {
	result, err := s.db.Exec(`UPDATE torrents SET client_hash = ? WHERE id = ?`, hash, torrentID)
	if err != nil {
		return fmt.Errorf("set torrent hash: %w", mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("set torrent hash %d: %w", torrentID, ErrNotFound)
	}
	return nil
}

// ClearClientHash clears the stored client handle on every torrent carrying
// it, so those seasons can be re-grabbed. Returns the ids of the affected
// parent requests.
func (s *Store) ClearClientHash(hash string) ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT request_id FROM torrents WHERE client_hash = ?`, hash)
	if err != nil {
		return nil, fmt.Errorf("find torrents by hash: %w", err)
	}
	var requestIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan request id: %w", err)
		}
		requestIDs = append(requestIDs, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate request ids: %w", err)
	}
	_ = rows.Close()

	if _, err := s.db.Exec(`UPDATE torrents SET client_hash = NULL WHERE client_hash = ?`, hash); err != nil {
		return nil, fmt.Errorf("clear client hash: %w", mapSQLiteError(err))
	}
	return requestIDs, nil
}
