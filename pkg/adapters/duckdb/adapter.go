// Package duckdb provides a DuckDB adapter for polyglot. DuckDB enforces no
// foreign keys and has no savepoints; the dialect records both so the ORM
// compensates.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/polyglot/pkg/adapter"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
	duckdialect "github.com/leapstack-labs/polyglot/pkg/dialects/duckdb"

	"github.com/marcboeker/go-duckdb"
)

// Adapter is the DuckDB adapter.
type Adapter struct {
	adapter.BaseSQLAdapter
	params *Params
}

// New returns an unconnected adapter. A nil logger discards output.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Dialect returns the DuckDB dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return duckdialect.DuckDB
}

// Connect opens the database file, or an in-memory database when the path
// is empty or ":memory:", and applies the target params.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.Conn = db
	a.Cfg = cfg
	a.params = params

	if err := a.applyParams(ctx); err != nil {
		_ = db.Close()
		a.Conn = nil
		return err
	}
	return nil
}

// applyParams runs the session statements derived from the target params.
func (a *Adapter) applyParams(ctx context.Context) error {
	for _, stmt := range a.params.Statements() {
		if err := a.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply duckdb params: %w", err)
		}
	}
	return nil
}

// GetTableMetadata reads table metadata from information_schema.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table, a.Dialect())
}

// IsUniqueViolation reports constraint errors and optimistic transaction
// conflicts; both are resolved by retrying against the committed row.
func (a *Adapter) IsUniqueViolation(err error) bool {
	var derr *duckdb.Error
	if errors.As(err, &derr) {
		return derr.Type == duckdb.ErrorTypeConstraint || derr.Type == duckdb.ErrorTypeTransaction
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "write-write conflict")
}

var _ adapter.Adapter = (*Adapter)(nil)
