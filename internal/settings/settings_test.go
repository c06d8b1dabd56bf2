package settings

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

func TestStore_SetGet(t *testing.T) {
	store := NewStore(setupTestDB(t))

	if err := store.Set("MOVIES_SAVE_PATH", "/mnt/movies"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.Get("MOVIES_SAVE_PATH")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "/mnt/movies" {
		t.Errorf("got %q, want /mnt/movies", got)
	}

	// Set is an upsert.
	if err := store.Set("MOVIES_SAVE_PATH", "/data/movies"); err != nil {
		t.Fatalf("second set: %v", err)
	}
	got, _ = store.Get("MOVIES_SAVE_PATH")
	if got != "/data/movies" {
		t.Errorf("got %q, want /data/movies", got)
	}
}

func TestStore_Get_EnvFallback(t *testing.T) {
	store := NewStore(setupTestDB(t))

	t.Setenv("WEBHOOK_SECRET", "s3cret")
	got, err := store.Get("WEBHOOK_SECRET")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("got %q, want env fallback value", got)
	}

	// A stored row wins over the environment.
	if err := store.Set("WEBHOOK_SECRET", "from-db"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, _ = store.Get("WEBHOOK_SECRET")
	if got != "from-db" {
		t.Errorf("got %q, want from-db", got)
	}
}

func TestStore_GetDefault(t *testing.T) {
	store := NewStore(setupTestDB(t))

	got, err := store.GetDefault("TV_SAVE_PATH", "/downloads/tv")
	if err != nil {
		t.Fatalf("get default: %v", err)
	}
	if got != "/downloads/tv" {
		t.Errorf("got %q, want default", got)
	}
}
