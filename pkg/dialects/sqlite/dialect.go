// Package sqlite provides the SQLite SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package sqlite

import (
	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
)

func init() {
	dialect.Register(SQLite)
}

var sqliteReservedWords = []string{
	"abort", "add", "all", "alter", "and", "as", "asc", "between", "by",
	"case", "check", "collate", "column", "commit", "constraint", "create",
	"default", "delete", "desc", "distinct", "drop", "else", "end", "escape",
	"except", "exists", "foreign", "from", "glob", "group", "having", "in",
	"index", "insert", "into", "is", "isnull", "join", "key", "like",
	"limit", "match", "not", "notnull", "null", "offset", "on", "or",
	"order", "primary", "references", "regexp", "select", "set", "table",
	"then", "to", "transaction", "union", "unique", "update", "using",
	"values", "when", "where",
}

// SQLite is the SQLite dialect. LIKE is case-insensitive for ASCII in SQLite,
// so case-sensitive lookups use GLOB.
var SQLite = dialect.NewDialect("sqlite").
	DefaultSchema("main").
	PlaceholderStyle(core.PlaceholderQuestion).
	ColumnType(core.KindInt, "INTEGER").
	ColumnType(core.KindFloat, "REAL").
	ColumnType(core.KindBool, "BOOLEAN").
	ColumnType(core.KindTime, "DATETIME").
	ColumnType(core.KindForeignKey, "INTEGER").
	PrimaryKey(dialect.PrimaryKeyAutoIncrement).
	Patterns(dialect.GlobStyle(), dialect.LikeStyle("LIKE")).
	UnboundedLimit("-1").
	WithReservedWords(sqliteReservedWords...).
	Build()
