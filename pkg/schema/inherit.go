package schema

import (
	"strings"

	"github.com/leapstack-labs/polyglot/pkg/core"
)

var reservedNames = map[string]struct{}{
	ColumnID:       {},
	FieldMaster:    {},
	ColumnMaster:   {},
	ColumnLanguage: {},
}

// resolve turns a definition into an entity. Called with r.mu held.
func (r *Registry) resolve(def Definition) (*Entity, error) {
	if def.Abstract && def.Proxy {
		return nil, core.Definitionf(def.Name, "", "an entity cannot be both abstract and proxy")
	}

	var abstracts, concretes []*Entity
	for _, name := range def.Bases {
		base, ok := r.entities[name]
		if !ok {
			return nil, core.Definitionf(def.Name, "", "unknown base %q", name)
		}
		if base.IsAbstract() {
			abstracts = append(abstracts, base)
		} else {
			concretes = append(concretes, base)
		}
	}

	if def.Proxy {
		return resolveProxy(def, abstracts, concretes)
	}
	if len(concretes) > 0 {
		return nil, core.Definitionf(def.Name, "",
			"multi-table inheritance from %s is not supported: make the base abstract or declare a proxy",
			concretes[0].Name)
	}

	kind := Concrete
	if def.Abstract {
		kind = Abstract
	}
	e := &Entity{
		Name:     def.Name,
		Kind:     kind,
		Plain:    def.Plain,
		Behavior: def.Behavior,
		Ordering: def.Ordering,
		LatestBy: def.LatestBy,
		bases:    abstracts,
	}

	a := newArena(def.Name)
	for _, base := range abstracts {
		for _, f := range base.shared {
			if err := a.add(*f, false, f.origin); err != nil {
				return nil, err
			}
		}
		for _, f := range base.translated {
			if err := a.add(*f, true, f.origin); err != nil {
				return nil, err
			}
		}
		e.Behavior = e.Behavior.merge(base.Behavior)
		if len(e.Ordering) == 0 {
			e.Ordering = base.Ordering
		}
		if e.LatestBy == "" {
			e.LatestBy = base.LatestBy
		}
	}

	declared := make(map[string]struct{}, len(def.Shared))
	for _, f := range def.Shared {
		declared[f.Name] = struct{}{}
	}
	for _, f := range def.Translated {
		if _, dup := declared[f.Name]; dup {
			return nil, core.Definitionf(def.Name, f.Name, "declared as both shared and translated")
		}
	}
	for _, f := range def.Shared {
		if err := a.add(f, false, def.Name); err != nil {
			return nil, err
		}
	}
	for _, f := range def.Translated {
		if err := a.add(f, true, def.Name); err != nil {
			return nil, err
		}
	}

	e.byName = a.byName
	for _, f := range a.fields {
		if f.translated {
			e.translated = append(e.translated, f)
		} else {
			e.shared = append(e.shared, f)
		}
	}

	if e.Plain && len(e.translated) > 0 {
		return nil, core.Definitionf(def.Name, e.translated[0].Name, "plain entities cannot have translated fields")
	}

	if kind == Abstract {
		return e, nil
	}

	for _, f := range e.Fields() {
		f.RelatedName = strings.ReplaceAll(f.RelatedName, ClassToken, ownerName(def.Name, f.translated))
	}

	e.SharedTable = def.Table
	if e.SharedTable == "" {
		e.SharedTable = r.prefix + SnakeCase(def.Name)
	}
	if !e.Plain {
		e.TranslationTable = e.SharedTable + "_translation"
	}

	if err := checkColumns(e.Name, e.shared); err != nil {
		return nil, err
	}
	if err := checkColumns(e.Name, e.translated); err != nil {
		return nil, err
	}
	return e, nil
}

// resolveProxy builds a proxy entity over its single non-abstract base.
func resolveProxy(def Definition, abstracts, concretes []*Entity) (*Entity, error) {
	if len(concretes) != 1 {
		return nil, core.Definitionf(def.Name, "", "a proxy needs exactly one non-abstract base, got %d", len(concretes))
	}
	if len(def.Shared) > 0 || len(def.Translated) > 0 {
		return nil, core.Definitionf(def.Name, "", "a proxy cannot declare fields")
	}
	for _, base := range abstracts {
		if len(base.shared) > 0 || len(base.translated) > 0 {
			return nil, core.Definitionf(def.Name, "", "a proxy cannot inherit fields from abstract %s", base.Name)
		}
	}
	if def.Table != "" {
		return nil, core.Definitionf(def.Name, "", "a proxy cannot set its own table")
	}

	parent := concretes[0]
	storage := parent.Storage()
	e := &Entity{
		Name:             def.Name,
		Kind:             Proxy,
		Plain:            storage.Plain,
		Parent:           parent,
		SharedTable:      storage.SharedTable,
		TranslationTable: storage.TranslationTable,
		Behavior:         def.Behavior.merge(parent.Behavior),
		Ordering:         def.Ordering,
		LatestBy:         def.LatestBy,
		storage:          storage,
	}
	if len(e.Ordering) == 0 {
		e.Ordering = parent.Ordering
	}
	if e.LatestBy == "" {
		e.LatestBy = parent.LatestBy
	}
	return e, nil
}

// arena is the flat table of field descriptors of one entity, keyed by
// final name.
type arena struct {
	entity string
	fields []*Field
	byName map[string]*Field
}

func newArena(entity string) *arena {
	return &arena{entity: entity, byName: make(map[string]*Field)}
}

// add inserts a copy of f. A field reached again through another path of a
// diamond (same origin, same partition) is skipped; any other name clash is
// a definition error.
func (a *arena) add(f Field, translated bool, origin string) error {
	if err := validateField(a.entity, &f); err != nil {
		return err
	}
	if existing, ok := a.byName[f.Name]; ok {
		if existing.origin == origin && existing.translated == translated {
			return nil
		}
		if existing.origin == origin {
			return core.Definitionf(a.entity, f.Name, "declared twice by %s", origin)
		}
		return core.Definitionf(a.entity, f.Name, "declared by both %s and %s", existing.origin, origin)
	}

	f.translated = translated
	f.origin = origin
	f.target = nil
	a.fields = append(a.fields, &f)
	a.byName[f.Name] = &f
	return nil
}

func validateField(entity string, f *Field) error {
	if f.Name == "" {
		return core.Definitionf(entity, "", "field name is required")
	}
	if strings.Contains(f.Name, "__") {
		return core.Definitionf(entity, f.Name, "field names cannot contain %q", "__")
	}
	if _, reserved := reservedNames[f.Name]; reserved {
		return core.Definitionf(entity, f.Name, "name is reserved")
	}
	if f.IsRelation() && f.Target == "" {
		return core.Definitionf(entity, f.Name, "foreign key without target")
	}
	if !f.IsRelation() && f.Target != "" {
		return core.Definitionf(entity, f.Name, "only foreign keys can have a target")
	}
	if f.MaxLength < 0 {
		return core.Definitionf(entity, f.Name, "negative max length")
	}
	return nil
}

// checkColumns rejects two fields mapping to one column, or a field
// mapping onto a synthesized column.
func checkColumns(entity string, fields []*Field) error {
	seen := make(map[string]string, len(fields))
	for _, f := range fields {
		col := f.ColumnName()
		if _, reserved := reservedNames[col]; reserved {
			return core.Definitionf(entity, f.Name, "column %s is reserved", col)
		}
		if other, dup := seen[col]; dup {
			return core.Definitionf(entity, f.Name, "column %s is also used by field %s", col, other)
		}
		seen[col] = f.Name
	}
	return nil
}
