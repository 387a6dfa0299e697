// Package postgres provides a PostgreSQL adapter for polyglot on top of
// pgx, exposed to the ORM through pgx's database/sql bridge.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/polyglot/pkg/adapter"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
	pgdialect "github.com/leapstack-labs/polyglot/pkg/dialects/postgres"
)

const (
	defaultPort    = 5432
	defaultSSLMode = "disable"

	// SQLSTATE unique_violation.
	uniqueViolation = "23505"
)

// Adapter is the PostgreSQL adapter.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New returns an unconnected adapter. A nil logger discards output.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// Dialect returns the PostgreSQL dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return pgdialect.Postgres
}

// Connect parses the target into a pgx config and opens a pool through the
// stdlib bridge. A configured schema becomes the session search_path so
// unqualified translation tables resolve inside it.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	connCfg, err := pgx.ParseConfig(connString(cfg))
	if err != nil {
		return fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if cfg.Schema != "" {
		connCfg.RuntimeParams["search_path"] = cfg.Schema
	}

	a.Logger.Debug("connecting to postgres",
		slog.String("host", connCfg.Host), slog.Int("port", int(connCfg.Port)), slog.String("database", connCfg.Database))

	db := stdlib.OpenDB(*connCfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	a.Conn = db
	a.Cfg = cfg
	return nil
}

// connString renders the target as a postgres:// URL. Options become query
// parameters; pgx treats the ones it does not know as runtime parameters.
func connString(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + cfg.Database,
	}
	switch {
	case cfg.Username != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	case cfg.Username != "":
		u.User = url.User(cfg.Username)
	}

	q := url.Values{}
	q.Set("sslmode", defaultSSLMode)
	for k, v := range cfg.Options {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// GetTableMetadata reads table metadata from information_schema. Unqualified
// names are looked up in the configured schema.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	if a.Cfg.Schema != "" && !strings.Contains(table, ".") {
		table = a.Cfg.Schema + "." + table
	}
	return a.GetTableMetadataCommon(ctx, table, a.Dialect())
}

// IsUniqueViolation reports SQLSTATE 23505 errors.
func (a *Adapter) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ adapter.Adapter = (*Adapter)(nil)
