package orm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/polyglot/pkg/adapter"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
	"github.com/leapstack-labs/polyglot/pkg/lang"
	"github.com/leapstack-labs/polyglot/pkg/query"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// ErrNoAdapter is returned when a Store is built without a connected adapter.
var ErrNoAdapter = errors.New("orm: adapter is required")

// Store executes queries and writes for the entities of one registry.
type Store struct {
	adapter  adapter.Adapter
	registry *schema.Registry
	dialect  *dialect.Dialect
	logger   *slog.Logger
	language lang.Context
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for statements and retries.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLanguage sets the language context used when a context carries none.
func WithLanguage(c lang.Context) Option {
	return func(s *Store) {
		s.language = c
	}
}

// New validates the registry and binds it to a connected adapter.
func New(a adapter.Adapter, r *schema.Registry, opts ...Option) (*Store, error) {
	if a == nil || a.DB() == nil {
		return nil, ErrNoAdapter
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		adapter:  a,
		registry: r,
		dialect:  a.Dialect(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dialect == nil {
		return nil, dialect.ErrDialectRequired
	}
	return s, nil
}

// Registry returns the schema registry of the store.
func (s *Store) Registry() *schema.Registry { return s.registry }

// Dialect returns the SQL dialect of the underlying adapter.
func (s *Store) Dialect() *dialect.Dialect { return s.dialect }

// Entity returns a registered entity by name.
func (s *Store) Entity(name string) (*schema.Entity, error) {
	e, ok := s.registry.Entity(name)
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", name)
	}
	return e, nil
}

// Language returns the language context of ctx, or the store default.
func (s *Store) Language(ctx context.Context) lang.Context {
	return lang.FromOr(ctx, s.language)
}

// CreateTables creates the shared and translation tables of every concrete
// entity, referenced tables first.
func (s *Store) CreateTables(ctx context.Context) error {
	stmts, err := schema.RegistryDDL(s.registry, s.dialect)
	if err != nil {
		return err
	}
	return s.InTx(ctx, func(ctx context.Context) error {
		for _, stmt := range stmts {
			if _, err := s.exec(ctx, query.Statement{SQL: stmt}); err != nil {
				return fmt.Errorf("failed to create tables: %w", err)
			}
		}
		return nil
	})
}

// executor is satisfied by *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) conn(ctx context.Context) executor {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return s.adapter.DB()
}

func (s *Store) log(stmt query.Statement) {
	s.logger.Debug("sql", slog.String("sql", stmt.SQL), slog.Int("args", len(stmt.Args)))
}

func (s *Store) exec(ctx context.Context, stmt query.Statement) (sql.Result, error) {
	s.log(stmt)
	return s.conn(ctx).ExecContext(ctx, stmt.SQL, stmt.Args...)
}

func (s *Store) query(ctx context.Context, stmt query.Statement) (*sql.Rows, error) {
	s.log(stmt)
	return s.conn(ctx).QueryContext(ctx, stmt.SQL, stmt.Args...)
}

func (s *Store) queryRow(ctx context.Context, stmt query.Statement) *sql.Row {
	s.log(stmt)
	return s.conn(ctx).QueryRowContext(ctx, stmt.SQL, stmt.Args...)
}
