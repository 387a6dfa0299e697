// Package postgres provides the PostgreSQL SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package postgres

import (
	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
)

func init() {
	dialect.Register(Postgres)
}

// postgresReservedWords contains common PostgreSQL reserved words.
// This is a manually maintained list of frequently problematic identifiers.
var postgresReservedWords = []string{
	"user", "order", "group", "table", "select", "from", "where", "index",
	"all", "and", "any", "array", "as", "asc", "authorization", "between",
	"both", "case", "cast", "check", "collate", "column", "constraint",
	"create", "cross", "current_date", "current_user", "default", "desc",
	"distinct", "do", "else", "end", "except", "false", "fetch", "for",
	"foreign", "full", "grant", "having", "ilike", "in", "inner", "into",
	"is", "join", "left", "like", "limit", "not", "null", "offset", "on",
	"only", "or", "outer", "primary", "references", "returning", "right",
	"then", "to", "true", "union", "unique", "using", "when", "window", "with",
}

// Postgres is the PostgreSQL dialect.
var Postgres = dialect.NewDialect("postgres").
	DefaultSchema("public").
	PlaceholderStyle(core.PlaceholderDollar).
	ColumnType(core.KindTime, "TIMESTAMPTZ").
	PrimaryKey(dialect.PrimaryKeySerial).
	Patterns(dialect.LikeStyle("LIKE"), dialect.LikeStyle("ILIKE")).
	AdvisoryLock("SELECT pg_advisory_xact_lock($1)").
	WithReservedWords(postgresReservedWords...).
	Build()
