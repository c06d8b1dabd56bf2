package request

import (
	"database/sql"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a request or torrent does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned on a uniqueness violation.
	ErrDuplicate = errors.New("duplicate")

	// ErrConstraint is returned on a FK or CHECK violation.
	ErrConstraint = errors.New("constraint violation")
)

// mapSQLiteError converts SQLite errors to the package sentinels.
// modernc.org/sqlite wraps errors, so constraint classes are detected from
// the error message.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed") {
		return ErrDuplicate
	}
	if strings.Contains(errStr, "FOREIGN KEY constraint failed") ||
		strings.Contains(errStr, "CHECK constraint failed") {
		return ErrConstraint
	}
	return err
}
