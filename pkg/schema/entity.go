package schema

import (
	"slices"
	"sort"
)

// EntityKind tags how an entity relates to storage.
type EntityKind int

const (
	// Concrete entities own a shared table and, unless plain, a translation table.
	Concrete EntityKind = iota
	// Abstract entities only contribute fields to concrete descendants.
	Abstract
	// Proxy entities reuse the storage of their nearest non-proxy ancestor.
	Proxy
)

// String returns the string representation of EntityKind.
func (k EntityKind) String() string {
	switch k {
	case Concrete:
		return "concrete"
	case Abstract:
		return "abstract"
	case Proxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// Definition is the raw declaration of an entity.
type Definition struct {
	Name string
	// Table overrides the shared table name.
	Table string

	Abstract bool
	Proxy    bool
	// Plain entities have no translated fields and no translation table.
	Plain bool

	// Bases lists parent definitions by name, in precedence order.
	Bases []string

	Shared     []Field
	Translated []Field

	Behavior Behavior

	// Ordering is the default ordering, e.g. "-shared_date".
	Ordering []string
	// LatestBy is the default field for Latest and Earliest.
	LatestBy string
}

// Relation is a reverse accessor installed on the target of a foreign key.
type Relation struct {
	Name   string
	Source *Entity
	Field  *Field
}

// Entity is a resolved definition.
type Entity struct {
	Name  string
	Kind  EntityKind
	Plain bool

	// Parent is the immediate non-abstract base of a proxy.
	Parent *Entity

	SharedTable      string
	TranslationTable string

	Behavior Behavior
	Ordering []string
	LatestBy string

	storage    *Entity
	bases      []*Entity
	shared     []*Field
	translated []*Field
	byName     map[string]*Field
	reverse    map[string]*Relation
	referrers  []*Relation
}

// Storage returns the entity that owns the tables: itself for concrete
// entities, the nearest non-proxy ancestor for proxies.
func (e *Entity) Storage() *Entity {
	if e.storage != nil {
		return e.storage
	}
	return e
}

// IsProxy reports whether e aliases another entity's storage.
func (e *Entity) IsProxy() bool { return e.Kind == Proxy }

// IsAbstract reports whether e has no storage of its own.
func (e *Entity) IsAbstract() bool { return e.Kind == Abstract }

// Translatable reports whether e has a translation table.
func (e *Entity) Translatable() bool { return !e.Storage().Plain }

// Field returns the field with the given final name.
func (e *Entity) Field(name string) (*Field, bool) {
	f, ok := e.Storage().byName[name]
	return f, ok
}

// SharedFields returns the fields stored in the shared table, in declaration order.
func (e *Entity) SharedFields() []*Field {
	return e.Storage().shared
}

// TranslatedFields returns the fields stored in the translation table, in declaration order.
func (e *Entity) TranslatedFields() []*Field {
	return e.Storage().translated
}

// Fields returns shared fields followed by translated fields.
func (e *Entity) Fields() []*Field {
	s := e.Storage()
	out := make([]*Field, 0, len(s.shared)+len(s.translated))
	out = append(out, s.shared...)
	return append(out, s.translated...)
}

// Reverse returns the reverse relation with the given accessor name.
func (e *Entity) Reverse(name string) (*Relation, bool) {
	r, ok := e.Storage().reverse[name]
	return r, ok
}

// Reverses returns all reverse relations sorted by name.
func (e *Entity) Reverses() []*Relation {
	s := e.Storage()
	out := make([]*Relation, 0, len(s.reverse))
	for _, r := range s.reverse {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Referrers returns every foreign key into e in declaration order, including
// those declared without a reverse accessor. Name is empty for the latter.
func (e *Entity) Referrers() []*Relation {
	return slices.Clone(e.Storage().referrers)
}

// SharesStorageWith reports whether e and other read and write the same rows.
func (e *Entity) SharesStorageWith(other *Entity) bool {
	return other != nil && e.Storage() == other.Storage()
}

// Chain returns e followed by its proxy ancestors up to the storage entity.
func (e *Entity) Chain() []*Entity {
	out := []*Entity{e}
	for cur := e; cur.Parent != nil; cur = cur.Parent {
		out = append(out, cur.Parent)
	}
	return out
}
