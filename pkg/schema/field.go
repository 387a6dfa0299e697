package schema

import (
	"time"

	"github.com/leapstack-labs/polyglot/pkg/core"
)

// Reserved names that entities cannot declare.
const (
	ColumnID       = "id"
	ColumnMaster   = "master_id"
	ColumnLanguage = "language_code"

	// FieldMaster is the accessor of a translation row's shared record.
	FieldMaster = "master"
)

// LanguageCodeLength is the width of the language_code column.
const LanguageCodeLength = 15

// RelatedNameNone disables the reverse accessor of a foreign key.
const RelatedNameNone = "+"

// ClassToken in a related name is replaced by the lowercased name of the
// record owning the column, so abstract definitions can declare per-entity
// reverse accessors.
const ClassToken = "{class}"

// Field describes one attribute of an entity.
type Field struct {
	Name      string
	Kind      core.FieldKind
	MaxLength int
	Null      bool
	Default   any

	// Target is the entity name a foreign key points to.
	Target string
	// RelatedName names the reverse accessor on Target. Empty means
	// "<source>_set" ("<source>translation_set" for translated fields);
	// RelatedNameNone disables it. ClassToken expands the same way.
	RelatedName string
	// Column overrides the storage column name.
	Column string

	translated bool
	origin     string
	target     *Entity
}

// Char declares a bounded string field.
func Char(name string, maxLength int) Field {
	return Field{Name: name, Kind: core.KindString, MaxLength: maxLength}
}

// Text declares an unbounded string field.
func Text(name string) Field {
	return Field{Name: name, Kind: core.KindText}
}

// Int declares an integer field.
func Int(name string) Field {
	return Field{Name: name, Kind: core.KindInt}
}

// Float declares a floating point field.
func Float(name string) Field {
	return Field{Name: name, Kind: core.KindFloat}
}

// Bool declares a boolean field.
func Bool(name string) Field {
	return Field{Name: name, Kind: core.KindBool}
}

// Time declares a timestamp field.
func Time(name string) Field {
	return Field{Name: name, Kind: core.KindTime}
}

// ForeignKey declares a reference to another entity.
func ForeignKey(name, target string) Field {
	return Field{Name: name, Kind: core.KindForeignKey, Target: target}
}

// Nullable returns a copy of f that accepts NULL.
func (f Field) Nullable() Field {
	f.Null = true
	return f
}

// WithDefault returns a copy of f with a default value.
func (f Field) WithDefault(v any) Field {
	f.Default = v
	return f
}

// Related returns a copy of f with the given reverse accessor name.
func (f Field) Related(name string) Field {
	f.RelatedName = name
	return f
}

// IsRelation reports whether f is a foreign key.
func (f *Field) IsRelation() bool {
	return f.Kind == core.KindForeignKey
}

// IsTranslated reports whether f is stored in the translation table.
func (f *Field) IsTranslated() bool {
	return f.translated
}

// Origin is the name of the definition that declared f.
func (f *Field) Origin() string {
	return f.origin
}

// TargetEntity returns the resolved target of a foreign key. It is nil until
// the registry has been validated.
func (f *Field) TargetEntity() *Entity {
	return f.target
}

// ColumnName returns the storage column of f.
func (f *Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	if f.IsRelation() {
		return f.Name + "_id"
	}
	return f.Name
}

// ZeroValue returns the value stored when an instance leaves f unset.
func (f *Field) ZeroValue() any {
	if f.Default != nil {
		return f.Default
	}
	if f.Null {
		return nil
	}
	switch f.Kind {
	case core.KindString, core.KindText:
		return ""
	case core.KindInt:
		return int64(0)
	case core.KindFloat:
		return float64(0)
	case core.KindBool:
		return false
	case core.KindTime:
		return time.Time{}
	default:
		return nil
	}
}
