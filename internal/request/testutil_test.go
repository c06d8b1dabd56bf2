package request

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/pickrr/pickrr/internal/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// insertTestRequest inserts a request row and returns it.
func insertTestRequest(t *testing.T, s *Store, upstreamID int64, status Status) *Request {
	t.Helper()
	r := &Request{
		UpstreamID:  upstreamID,
		CatalogID:   603,
		MediaKind:   KindMovie,
		Title:       "The Matrix",
		Status:      status,
		RequestedBy: "alice",
	}
	if err := s.Upsert(r); err != nil {
		t.Fatalf("insert test request: %v", err)
	}
	// Upsert refreshes status from the stored row; force the wanted one.
	if r.Status != status {
		if err := s.SetStatus(r.ID, status); err != nil {
			t.Fatalf("set test status: %v", err)
		}
		r.Status = status
	}
	return r
}
