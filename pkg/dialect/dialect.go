// Package dialect provides SQL dialect configuration for the storage engines
// polyglot can target.
//
// This package contains the public contract for dialect definitions used by the
// schema splitter (DDL), the query rewriter (pattern matching, placeholders) and
// the translation upsert. Concrete dialects are registered from pkg/dialects/*/
// packages and carry no database driver dependency.
package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/polyglot/pkg/core"
)

// PrimaryKeyStyle selects how auto-incrementing primary keys are declared.
type PrimaryKeyStyle int

const (
	// PrimaryKeyAutoIncrement uses INTEGER PRIMARY KEY AUTOINCREMENT (SQLite).
	PrimaryKeyAutoIncrement PrimaryKeyStyle = iota
	// PrimaryKeySerial uses BIGSERIAL PRIMARY KEY (PostgreSQL).
	PrimaryKeySerial
	// PrimaryKeySequence creates a sequence and defaults the column to nextval (DuckDB).
	PrimaryKeySequence
)

// PatternStyle describes how a dialect performs wildcard matching.
type PatternStyle struct {
	Operator string              // LIKE, ILIKE, GLOB
	Wildcard string              // Any-sequence wildcard: % or *
	Escape   func(string) string // Escapes wildcard characters in a literal
	Clause   string              // Trailing clause, e.g. ` ESCAPE '\'`
}

// Pattern builds the match pattern for a literal with optional leading and
// trailing wildcards.
func (p PatternStyle) Pattern(value string, leading, trailing bool) string {
	var b strings.Builder
	if leading {
		b.WriteString(p.Wildcard)
	}
	b.WriteString(p.Escape(value))
	if trailing {
		b.WriteString(p.Wildcard)
	}
	return b.String()
}

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name        string
	Identifiers core.IdentifierConfig

	// Database-specific settings
	DefaultSchema string                // Default schema name ("main" for SQLite, "public" for Postgres)
	Placeholder   core.PlaceholderStyle // How to format query parameters

	reservedWords map[string]struct{}
	columnTypes   map[core.FieldKind]string
	varchar       string // format with a single %d for the max length
	primaryKey    PrimaryKeyStyle

	sensitive   PatternStyle // case-sensitive matching
	insensitive PatternStyle // case-insensitive matching

	advisoryLock  string // statement taking one int64 argument; empty when unsupported
	noForeignKeys bool   // referential constraints are enforced by the ORM only
	noSavepoints  bool   // SAVEPOINT is unavailable inside transactions
	noUpsertIndex bool   // ON CONFLICT DO UPDATE cannot assign to indexed columns

	unboundedLimit string // LIMIT value meaning "no limit", for engines that need LIMIT before OFFSET
}

// NormalizeName folds an unquoted identifier for reserved word lookups.
func (d *Dialect) NormalizeName(name string) string {
	return strings.ToLower(name)
}

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
// Returns "?" for PlaceholderQuestion style, "$1", "$2" etc. for PlaceholderDollar style.
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case core.PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	default: // PlaceholderQuestion
		return "?"
	}
}

// IsReservedWord returns true if the word needs quoting when used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[d.NormalizeName(word)]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteIdentifierIfNeeded quotes an identifier only if it's a reserved word.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if d.IsReservedWord(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}

// ColumnType returns the column type for a field kind. maxLength is used by
// bounded strings; zero means unbounded.
func (d *Dialect) ColumnType(kind core.FieldKind, maxLength int) string {
	if kind == core.KindString && maxLength > 0 && d.varchar != "" {
		return fmt.Sprintf(d.varchar, maxLength)
	}
	if t, ok := d.columnTypes[kind]; ok {
		return t
	}
	return "TEXT"
}

// PrimaryKey returns the statements to run before CREATE TABLE (sequences)
// and the column definition for the primary key of table.
func (d *Dialect) PrimaryKey(table, column string) (pre []string, def string) {
	col := d.QuoteIdentifier(column)
	switch d.primaryKey {
	case PrimaryKeySerial:
		return nil, col + " BIGSERIAL PRIMARY KEY"
	case PrimaryKeySequence:
		seq := table + "_" + column + "_seq"
		pre = []string{"CREATE SEQUENCE IF NOT EXISTS " + d.QuoteIdentifier(seq)}
		return pre, fmt.Sprintf("%s BIGINT PRIMARY KEY DEFAULT nextval('%s')", col, seq)
	default:
		return nil, col + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

// KeyType is the column type used for foreign keys and the master link.
func (d *Dialect) KeyType() string {
	return d.ColumnType(core.KindForeignKey, 0)
}

// MatchStyle returns the pattern style for the requested case sensitivity.
func (d *Dialect) MatchStyle(caseSensitive bool) PatternStyle {
	if caseSensitive {
		return d.sensitive
	}
	return d.insensitive
}

// AdvisoryLock returns a statement that takes a transaction-scoped lock on an
// int64 key, or "" when the dialect relies on transaction isolation instead.
func (d *Dialect) AdvisoryLock() string {
	return d.advisoryLock
}

// Savepoints reports whether nested savepoints can be taken inside a transaction.
func (d *Dialect) Savepoints() bool {
	return !d.noSavepoints
}

// UpsertsIndexedColumns reports whether ON CONFLICT DO UPDATE may assign to
// a column that carries a secondary index.
func (d *Dialect) UpsertsIndexedColumns() bool {
	return !d.noUpsertIndex
}

// ForeignKeys reports whether DDL should declare REFERENCES constraints.
func (d *Dialect) ForeignKeys() bool {
	return !d.noForeignKeys
}

// LimitOffset renders the LIMIT/OFFSET clause; zero values are omitted.
func (d *Dialect) LimitOffset(limit, offset int) string {
	var parts []string
	switch {
	case limit > 0:
		parts = append(parts, "LIMIT "+strconv.Itoa(limit))
	case offset > 0 && d.unboundedLimit != "":
		parts = append(parts, "LIMIT "+d.unboundedLimit)
	}
	if offset > 0 {
		parts = append(parts, "OFFSET "+strconv.Itoa(offset))
	}
	return strings.Join(parts, " ")
}

// EscapeLike escapes %, _ and the backslash escape character for LIKE patterns.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// EscapeGlob escapes GLOB metacharacters by wrapping them in brackets.
func EscapeGlob(s string) string {
	r := strings.NewReplacer(`[`, `[[]`, `*`, `[*]`, `?`, `[?]`)
	return r.Replace(s)
}

// LikeStyle is the portable LIKE pattern style with a backslash escape.
func LikeStyle(operator string) PatternStyle {
	return PatternStyle{
		Operator: operator,
		Wildcard: "%",
		Escape:   EscapeLike,
		Clause:   ` ESCAPE '\'`,
	}
}

// GlobStyle is SQLite's case-sensitive GLOB pattern style.
func GlobStyle() PatternStyle {
	return PatternStyle{
		Operator: "GLOB",
		Wildcard: "*",
		Escape:   EscapeGlob,
	}
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with the given name.
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name:          name,
			Identifiers:   core.IdentifierConfig{Quote: `"`, QuoteEnd: `"`, Escape: `""`},
			reservedWords: make(map[string]struct{}),
			columnTypes: map[core.FieldKind]string{
				core.KindString:     "TEXT",
				core.KindText:       "TEXT",
				core.KindInt:        "BIGINT",
				core.KindFloat:      "DOUBLE PRECISION",
				core.KindBool:       "BOOLEAN",
				core.KindTime:       "TIMESTAMP",
				core.KindForeignKey: "BIGINT",
			},
			varchar:     "VARCHAR(%d)",
			sensitive:   LikeStyle("LIKE"),
			insensitive: LikeStyle("ILIKE"),
		},
	}
}

// Identifiers overrides the ANSI double-quote identifier quoting.
func (b *Builder) Identifiers(quote, quoteEnd, escape string) *Builder {
	b.dialect.Identifiers = core.IdentifierConfig{Quote: quote, QuoteEnd: quoteEnd, Escape: escape}
	return b
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.DefaultSchema = schema
	return b
}

// PlaceholderStyle sets how query parameters are formatted.
func (b *Builder) PlaceholderStyle(style core.PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// WithReservedWords registers words that need quoting when used as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[b.dialect.NormalizeName(w)] = struct{}{}
	}
	return b
}

// ColumnType overrides the column type for a field kind.
func (b *Builder) ColumnType(kind core.FieldKind, sqlType string) *Builder {
	b.dialect.columnTypes[kind] = sqlType
	return b
}

// Varchar sets the bounded string format (must contain one %d). An empty
// format stores bounded strings with the KindString column type.
func (b *Builder) Varchar(format string) *Builder {
	b.dialect.varchar = format
	return b
}

// PrimaryKey sets the primary key declaration style.
func (b *Builder) PrimaryKey(style PrimaryKeyStyle) *Builder {
	b.dialect.primaryKey = style
	return b
}

// Patterns sets the case-sensitive and case-insensitive matching styles.
func (b *Builder) Patterns(sensitive, insensitive PatternStyle) *Builder {
	b.dialect.sensitive = sensitive
	b.dialect.insensitive = insensitive
	return b
}

// AdvisoryLock sets the transaction-scoped advisory lock statement.
func (b *Builder) AdvisoryLock(stmt string) *Builder {
	b.dialect.advisoryLock = stmt
	return b
}

// WithoutSavepoints marks the engine as lacking SAVEPOINT support.
func (b *Builder) WithoutSavepoints() *Builder {
	b.dialect.noSavepoints = true
	return b
}

// WithoutForeignKeys disables REFERENCES constraints in generated DDL.
func (b *Builder) WithoutForeignKeys() *Builder {
	b.dialect.noForeignKeys = true
	return b
}

// WithoutIndexedUpserts marks the engine as rejecting upserts that assign to
// indexed columns. DDL then leaves such columns unindexed.
func (b *Builder) WithoutIndexedUpserts() *Builder {
	b.dialect.noUpsertIndex = true
	return b
}

// UnboundedLimit sets the LIMIT value emitted when only an offset is given.
func (b *Builder) UnboundedLimit(v string) *Builder {
	b.dialect.unboundedLimit = v
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
