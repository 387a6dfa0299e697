package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/polyglot/pkg/dialect"
	"github.com/zeebo/xxh3"
)

// DDL returns the statements creating the storage of e. Proxies and
// abstract entities have no storage of their own and yield nothing.
func DDL(e *Entity, d *dialect.Dialect) ([]string, error) {
	if e.Kind != Concrete {
		return nil, nil
	}
	shared, translation, err := Split(e)
	if err != nil {
		return nil, err
	}
	stmts := renderTable(shared, d)
	if translation != nil {
		stmts = append(stmts, renderTable(translation, d)...)
	}
	return stmts, nil
}

// RegistryDDL returns the statements for every concrete entity, ordered so
// that referenced tables are created first where the graph allows it.
func RegistryDDL(r *Registry, d *dialect.Dialect) ([]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var out []string
	for _, e := range CreationOrder(r.Concrete()) {
		stmts, err := DDL(e, d)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

// CreationOrder sorts concrete entities so that foreign key targets precede
// their sources. Entities caught in a reference cycle keep definition order.
func CreationOrder(entities []*Entity) []*Entity {
	pending := make(map[*Entity]bool, len(entities))
	for _, e := range entities {
		pending[e] = true
	}

	var out []*Entity
	for len(pending) > 0 {
		progressed := false
		for _, e := range entities {
			if !pending[e] || !depsDone(e, pending) {
				continue
			}
			out = append(out, e)
			delete(pending, e)
			progressed = true
		}
		if progressed {
			continue
		}
		for _, e := range entities {
			if pending[e] {
				out = append(out, e)
				delete(pending, e)
			}
		}
	}
	return out
}

func depsDone(e *Entity, pending map[*Entity]bool) bool {
	for _, f := range e.Fields() {
		if !f.IsRelation() || f.target == nil {
			continue
		}
		if t := f.target.Storage(); t != e && pending[t] {
			return false
		}
	}
	return true
}

// Fingerprint is a stable digest of the DDL of e, used to detect drift
// between declarations and a migrated database.
func Fingerprint(e *Entity, d *dialect.Dialect) (string, error) {
	stmts, err := DDL(e, d)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxh3.HashString(strings.Join(stmts, ";\n"))), nil
}

func renderTable(t *Table, d *dialect.Dialect) []string {
	var (
		pre  []string
		defs []string
	)
	for _, c := range t.Columns {
		if c.PrimaryKey {
			p, def := d.PrimaryKey(t.Name, c.Name)
			pre = append(pre, p...)
			defs = append(defs, def)
			continue
		}
		defs = append(defs, renderColumn(c, d))
	}
	if d.ForeignKeys() {
		for _, fk := range t.ForeignKeys {
			defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s",
				d.QuoteIdentifier(fk.Column), d.QuoteIdentifier(fk.RefTable), d.QuoteIdentifier(fk.RefColumn), fk.OnDelete))
		}
	}
	for _, cols := range t.Unique {
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = d.QuoteIdentifier(c)
		}
		defs = append(defs, "UNIQUE ("+strings.Join(quoted, ", ")+")")
	}

	stmts := append(pre, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		d.QuoteIdentifier(t.Name), strings.Join(defs, ",\n  ")))
	for _, col := range t.Indexes {
		if c, ok := t.Column(col); ok && upserted(c) && !d.UpsertsIndexedColumns() {
			continue
		}
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			d.QuoteIdentifier(t.Name+"_"+col+"_idx"), d.QuoteIdentifier(t.Name), d.QuoteIdentifier(col)))
	}
	return stmts
}

// upserted reports whether c is assigned by the translation upsert.
func upserted(c Column) bool {
	return c.Field != nil && c.Field.IsTranslated()
}

func renderColumn(c Column, d *dialect.Dialect) string {
	var b strings.Builder
	b.WriteString(d.QuoteIdentifier(c.Name))
	b.WriteByte(' ')
	b.WriteString(d.ColumnType(c.Kind, c.MaxLength))
	if !c.Null {
		b.WriteString(" NOT NULL")
	}
	if lit, ok := literal(c.Default); ok {
		b.WriteString(" DEFAULT ")
		b.WriteString(lit)
	}
	return b.String()
}

// literal renders a default value, reporting false for values that have no
// portable SQL literal.
func literal(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", true
	case bool:
		if x {
			return "TRUE", true
		}
		return "FALSE", true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	default:
		return "", false
	}
}
