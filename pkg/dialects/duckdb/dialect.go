// Package duckdb provides the DuckDB SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package duckdb

import (
	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
)

func init() {
	dialect.Register(DuckDB)
}

var duckdbReservedWords = []string{
	"all", "analyse", "analyze", "and", "any", "array", "as", "asc",
	"both", "case", "cast", "check", "collate", "column", "constraint",
	"create", "default", "desc", "distinct", "do", "else", "end", "except",
	"false", "fetch", "for", "foreign", "from", "grant", "group", "having",
	"in", "into", "is", "join", "leading", "limit", "not", "null", "offset",
	"on", "only", "or", "order", "pivot", "primary", "qualify", "references",
	"returning", "select", "table", "then", "to", "true", "union", "unique",
	"unpivot", "user", "using", "when", "where", "window", "with",
}

// DuckDB is the DuckDB dialect. DuckDB has no serial columns, so primary keys
// draw from a per-table sequence. Foreign keys are left undeclared because
// DuckDB rejects updates to rows that are referenced by another table.
// Translated relation columns stay unindexed since DuckDB cannot upsert into
// an indexed column.
var DuckDB = dialect.NewDialect("duckdb").
	DefaultSchema("main").
	PlaceholderStyle(core.PlaceholderQuestion).
	PrimaryKey(dialect.PrimaryKeySequence).
	Patterns(dialect.LikeStyle("LIKE"), dialect.LikeStyle("ILIKE")).
	WithoutForeignKeys().
	WithoutSavepoints().
	WithoutIndexedUpserts().
	WithReservedWords(duckdbReservedWords...).
	Build()
