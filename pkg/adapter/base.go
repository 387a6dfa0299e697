package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
)

// ErrNotConnected is returned when an operation needs an open connection.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLAdapter carries the database/sql state shared by every adapter.
// Concrete adapters embed it and add Connect, Dialect and the driver
// specific error classification.
type BaseSQLAdapter struct {
	Conn   *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger
}

func (b *BaseSQLAdapter) log() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// DB returns the connection pool the ORM runs its statements on. It is nil
// until Connect succeeds and again after Close.
func (b *BaseSQLAdapter) DB() *sql.DB {
	return b.Conn
}

// IsConnected reports whether Connect succeeded and Close has not run.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.Conn != nil
}

// Close releases the pool. Calling it twice is harmless.
func (b *BaseSQLAdapter) Close() error {
	if b.Conn == nil {
		return nil
	}
	b.log().Debug("closing connection", slog.String("target", b.Cfg.Type))
	err := b.Conn.Close()
	b.Conn = nil
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Exec runs a statement that returns no rows, typically DDL from
// schema.RegistryDDL.
func (b *BaseSQLAdapter) Exec(ctx context.Context, stmt string) error {
	if b.Conn == nil {
		return ErrNotConnected
	}
	b.log().Debug("exec", slog.String("sql", stmt))
	if _, err := b.Conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// ParseQualifiedName splits "schema.table". An unqualified name lives in
// the dialect's default schema; with a table prefix configured the name
// is already prefixed.
func ParseQualifiedName(table string, d *dialect.Dialect) (schema, name string) {
	if i := strings.LastIndexByte(table, '.'); i > 0 {
		return table[:i], table[i+1:]
	}
	return d.DefaultSchema, table
}

// GetTableMetadataCommon reads column metadata from
// information_schema.columns. Postgres and DuckDB both expose it; SQLite
// uses pragma_table_info instead.
func (b *BaseSQLAdapter) GetTableMetadataCommon(ctx context.Context, table string, d *dialect.Dialect) (*core.TableMetadata, error) {
	if b.Conn == nil {
		return nil, ErrNotConnected
	}
	schema, name := ParseQualifiedName(table, d)

	//nolint:gosec // placeholders only
	query := fmt.Sprintf(`SELECT column_name, data_type, is_nullable, ordinal_position
FROM information_schema.columns
WHERE table_schema = %s AND table_name = %s
ORDER BY ordinal_position`, d.FormatPlaceholder(1), d.FormatPlaceholder(2))

	rows, err := b.Conn.QueryContext(ctx, query, schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meta := &core.TableMetadata{Schema: schema, Name: name}
	for rows.Next() {
		var (
			col      core.Column
			nullable string
		)
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		col.PrimaryKey = col.Name == "id"
		meta.Columns = append(meta.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read column metadata: %w", err)
	}
	if len(meta.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, table)
	}

	meta.RowCount = b.CountRows(ctx, d.QuoteIdentifier(schema)+"."+d.QuoteIdentifier(name))
	return meta, nil
}

// CountRows returns the row count of an already quoted table reference.
// Metadata is informational, so a failing count reports 0.
func (b *BaseSQLAdapter) CountRows(ctx context.Context, ref string) int64 {
	var n int64
	if err := b.Conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ref).Scan(&n); err != nil { //nolint:gosec // quoted identifiers
		b.log().Debug("row count failed", slog.String("table", ref), slog.Any("error", err))
		return 0
	}
	return n
}
