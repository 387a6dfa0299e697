package core

import "strings"

// AdapterConfig tells an adapter how to reach its database. File-backed
// engines (sqlite, duckdb) read Path; server engines read the network
// fields and Database.
type AdapterConfig struct {
	Type string
	Path string

	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string

	// Options are extra DSN parameters, passed through verbatim.
	Options map[string]string
	// Params are engine settings applied after connecting (duckdb).
	Params map[string]any
}

// Column is a column of a live table as reported by the engine.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
	Position   int
}

// TableMetadata describes a live table. It is compared with the declared
// storage of an entity to find tables created by an older declaration.
type TableMetadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// HasColumn reports whether the table has a column named name. Engines
// that fold identifiers make the comparison case-insensitive.
func (m *TableMetadata) HasColumn(name string) bool {
	for _, c := range m.Columns {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// MissingColumns returns the names that the table lacks, in order.
func (m *TableMetadata) MissingColumns(names []string) []string {
	var out []string
	for _, n := range names {
		if !m.HasColumn(n) {
			out = append(out, n)
		}
	}
	return out
}
