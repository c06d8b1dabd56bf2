// Package settings provides the key-value settings store. Values live in
// SQLite and fall back to environment variables of the same name, so a fresh
// deployment works from env alone.
package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
)

// Store reads and writes runtime settings.
type Store struct {
	db *sql.DB
}

// NewStore creates a settings store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the value for key, falling back to the environment variable of
// the same name. Returns "" when neither is set.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return os.Getenv(key), nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// GetDefault returns the value for key, or def when unset everywhere.
func (s *Store) GetDefault(key, def string) (string, error) {
	v, err := s.Get(key)
	if err != nil {
		return "", err
	}
	if v == "" {
		return def, nil
	}
	return v, nil
}

// Set upserts a setting.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
