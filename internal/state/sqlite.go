package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotOpen is returned by operations on a store that is not open.
var ErrNotOpen = errors.New("state database not opened")

// SQLiteStore implements Store on a SQLite file through mattn/go-sqlite3,
// the cgo driver, keeping the pure Go driver free for the target.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a state store. A nil logger discards output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens the state file at path, or a private in-memory catalog for
// ":memory:". The catalog lives in its own file next to the project, apart
// from the target database, so it works whatever the target type is.
func (s *SQLiteStore) Open(path string) error {
	memory := path == ":memory:"
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	if !memory {
		q.Set("_journal_mode", "WAL")
		q.Set("_busy_timeout", "5000")
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?"+q.Encode())
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping state database: %w", err)
	}

	s.logger.Debug("opened state database", slog.String("path", path))
	s.db = db
	s.path = path
	return nil
}

// Close closes the catalog; a closed store reports ErrNotOpen.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close state database: %w", err)
	}
	return nil
}

// Path returns the path the store was opened with.
func (s *SQLiteStore) Path() string { return s.path }

// generateID returns the identifier of a new run.
func generateID() string {
	return uuid.New().String()
}
