package core

// PlaceholderStyle selects how bind parameters are written in generated SQL.
type PlaceholderStyle int

const (
	// PlaceholderQuestion writes every parameter as "?" (SQLite, DuckDB).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar numbers parameters "$1", "$2" (PostgreSQL).
	PlaceholderDollar
)

// IdentifierConfig describes how a dialect quotes table and column names.
// Generated statements always quote, so table prefixes and field names that
// collide with keywords need no special casing.
type IdentifierConfig struct {
	Quote    string
	QuoteEnd string
	// Escape replaces QuoteEnd inside a quoted name.
	Escape string
}
