// Package sqlite provides a SQLite database adapter for polyglot, built on
// the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/leapstack-labs/polyglot/pkg/adapter"
	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
	sqlitedialect "github.com/leapstack-labs/polyglot/pkg/dialects/sqlite"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Default connection settings. They can be overridden through target options.
const (
	defaultBusyTimeout = "5000"
	defaultJournalMode = "WAL"
	defaultTxLock      = "immediate"
)

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Dialect returns the SQLite dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return sqlitedialect.SQLite
}

// Connect opens the database file (":memory:" or empty for an in-memory
// database) with foreign keys enabled.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn, memory := buildDSN(cfg)

	a.Logger.Debug("connecting to sqlite", slog.String("path", cfg.Path))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if memory {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	a.Conn = db
	a.Cfg = cfg
	return nil
}

// buildDSN constructs a modernc sqlite DSN with pragmas applied on every
// new connection.
func buildDSN(cfg adapter.Config) (dsn string, memory bool) {
	path := cfg.Path
	if path == "" || path == ":memory:" {
		path = ":memory:"
		memory = true
	}

	opt := func(key, def string) string {
		if v, ok := cfg.Options[key]; ok && v != "" {
			return v
		}
		return def
	}

	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout("+opt("busy_timeout", defaultBusyTimeout)+")")
	if !memory {
		q.Add("_pragma", "journal_mode("+opt("journal_mode", defaultJournalMode)+")")
	}
	q.Set("_txlock", opt("txlock", defaultTxLock))

	return "file:" + path + "?" + q.Encode(), memory
}

// GetTableMetadata retrieves column metadata using pragma_table_info.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	if a.Conn == nil {
		return nil, adapter.ErrNotConnected
	}
	schema, name := adapter.ParseQualifiedName(table, a.Dialect())

	rows, err := a.Conn.QueryContext(ctx,
		`SELECT cid, name, type, "notnull", pk FROM pragma_table_info(?)`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []adapter.Column
	for rows.Next() {
		var (
			col     adapter.Column
			notNull int
			pk      int
		)
		if err := rows.Scan(&col.Position, &col.Name, &col.Type, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Position++
		col.Nullable = notNull == 0 && pk == 0
		col.PrimaryKey = pk > 0
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, table)
	}

	return &adapter.Metadata{
		Schema:   schema,
		Name:     name,
		Columns:  columns,
		RowCount: a.CountRows(ctx, a.Dialect().QuoteIdentifier(name)),
	}, nil
}

// IsUniqueViolation reports UNIQUE and PRIMARY KEY constraint failures.
func (a *Adapter) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ adapter.Adapter = (*Adapter)(nil)
