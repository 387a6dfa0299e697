// Package adapter defines how polyglot talks to a database engine: the
// Adapter contract, the shared database/sql plumbing and the registry that
// maps a target type to an implementation. Engines live under pkg/adapters.
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
)

// Aliases so adapters need not import pkg/core.
type (
	Config   = core.AdapterConfig
	Column   = core.Column
	Metadata = core.TableMetadata
)

// Adapter defines the interface that all database adapters must implement.
// The ORM runs its statements through DB() and asks the adapter to classify
// driver errors.
type Adapter interface {
	Connect(ctx context.Context, cfg Config) error
	Close() error

	// Exec runs DDL and other statements without a result set.
	Exec(ctx context.Context, stmt string) error

	// DB is the pool every ORM statement and transaction runs on.
	DB() *sql.DB

	// GetTableMetadata describes a live table. A missing table yields an
	// error wrapping core.ErrTableNotFound.
	GetTableMetadata(ctx context.Context, table string) (*Metadata, error)

	// IsUniqueViolation reports whether err was raised by a unique or
	// primary key constraint (or an equivalent write conflict).
	IsUniqueViolation(err error) bool

	Dialect() *dialect.Dialect
}
