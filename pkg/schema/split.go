package schema

import (
	"github.com/leapstack-labs/polyglot/pkg/core"
)

// Referential actions used in generated foreign keys.
const (
	OnDeleteCascade = "CASCADE"
	OnDeleteSetNull = "SET NULL"
)

// Column is a dialect-independent column description.
type Column struct {
	Name       string
	Kind       core.FieldKind
	MaxLength  int
	Null       bool
	PrimaryKey bool
	Default    any
	Field      *Field
}

// ForeignKeyRef is a referential constraint.
type ForeignKeyRef struct {
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  string
}

// Table is the storage layout of one side of an entity.
type Table struct {
	Name        string
	Columns     []Column
	Unique      [][]string
	ForeignKeys []ForeignKeyRef
	// Indexes lists single-column indexes beyond the primary key.
	Indexes []string
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Split produces the shared table and, for translatable entities, the
// translation table of e. Proxies yield the tables of their storage entity.
// Foreign key targets must be resolved (Registry.Validate).
func Split(e *Entity) (shared *Table, translation *Table, err error) {
	if e.IsAbstract() {
		return nil, nil, core.Definitionf(e.Name, "", "abstract entities have no storage")
	}
	s := e.Storage()

	shared = &Table{Name: s.SharedTable}
	shared.Columns = append(shared.Columns, Column{Name: ColumnID, Kind: core.KindInt, PrimaryKey: true})
	if err := addFieldColumns(s, shared, s.shared); err != nil {
		return nil, nil, err
	}

	if s.Plain {
		return shared, nil, nil
	}

	translation = &Table{Name: s.TranslationTable}
	translation.Columns = append(translation.Columns, Column{Name: ColumnID, Kind: core.KindInt, PrimaryKey: true})
	if err := addFieldColumns(s, translation, s.translated); err != nil {
		return nil, nil, err
	}
	translation.Columns = append(translation.Columns,
		Column{Name: ColumnLanguage, Kind: core.KindString, MaxLength: LanguageCodeLength},
		Column{Name: ColumnMaster, Kind: core.KindForeignKey},
	)
	translation.ForeignKeys = append(translation.ForeignKeys, ForeignKeyRef{
		Column:    ColumnMaster,
		RefTable:  s.SharedTable,
		RefColumn: ColumnID,
		OnDelete:  OnDeleteCascade,
	})
	translation.Unique = append(translation.Unique, []string{ColumnLanguage, ColumnMaster})
	translation.Indexes = append(translation.Indexes, ColumnMaster)

	return shared, translation, nil
}

func addFieldColumns(e *Entity, t *Table, fields []*Field) error {
	for _, f := range fields {
		t.Columns = append(t.Columns, Column{
			Name:      f.ColumnName(),
			Kind:      f.Kind,
			MaxLength: f.MaxLength,
			Null:      f.Null,
			Default:   f.Default,
			Field:     f,
		})
		if !f.IsRelation() {
			continue
		}
		if f.target == nil {
			return core.Definitionf(e.Name, f.Name, "foreign key target %q is not resolved", f.Target)
		}
		onDelete := OnDeleteCascade
		if f.Null {
			onDelete = OnDeleteSetNull
		}
		t.ForeignKeys = append(t.ForeignKeys, ForeignKeyRef{
			Column:    f.ColumnName(),
			RefTable:  f.target.Storage().SharedTable,
			RefColumn: ColumnID,
			OnDelete:  onDelete,
		})
		t.Indexes = append(t.Indexes, f.ColumnName())
	}
	return nil
}
