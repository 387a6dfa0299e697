package schema

import (
	"fmt"
	"sync"

	"github.com/leapstack-labs/polyglot/pkg/core"
)

// Registry holds every defined entity. Definitions may reference entities
// that are defined later; Validate resolves those references.
type Registry struct {
	mu        sync.RWMutex
	prefix    string
	entities  map[string]*Entity
	order     []*Entity
	validated bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithTablePrefix prepends prefix to every generated table name.
func WithTablePrefix(prefix string) Option {
	return func(r *Registry) {
		r.prefix = prefix
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{entities: make(map[string]*Entity)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Define resolves def against the already defined entities and registers it.
func (r *Registry) Define(def Definition) (*Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Name == "" {
		return nil, &core.DefinitionError{Reason: "entity name is required"}
	}
	if _, exists := r.entities[def.Name]; exists {
		return nil, core.Definitionf(def.Name, "", "entity is already defined")
	}

	e, err := r.resolve(def)
	if err != nil {
		return nil, err
	}

	r.entities[e.Name] = e
	r.order = append(r.order, e)
	r.validated = false
	return e, nil
}

// MustDefine is like Define but panics on error. Intended for package-level
// declarations.
func (r *Registry) MustDefine(def Definition) *Entity {
	e, err := r.Define(def)
	if err != nil {
		panic(err)
	}
	return e
}

// Entity returns a defined entity by name.
func (r *Registry) Entity(name string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[name]
	return e, ok
}

// Entities returns all entities in definition order.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entity, len(r.order))
	copy(out, r.order)
	return out
}

// Concrete returns the entities that own storage, in definition order.
func (r *Registry) Concrete() []*Entity {
	var out []*Entity
	for _, e := range r.Entities() {
		if e.Kind == Concrete {
			out = append(out, e)
		}
	}
	return out
}

// Validate resolves foreign key targets and installs reverse relations.
// It is idempotent and must succeed before the registry is used for storage.
func (r *Registry) Validate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.validated {
		return nil
	}

	for _, e := range r.order {
		if e.Kind == Concrete {
			e.reverse = make(map[string]*Relation)
			e.referrers = nil
		}
	}

	tables := make(map[string]string)
	for _, e := range r.order {
		if e.Kind != Concrete {
			continue
		}
		for _, t := range []string{e.SharedTable, e.TranslationTable} {
			if t == "" {
				continue
			}
			if other, dup := tables[t]; dup {
				return core.Definitionf(e.Name, "", "table %s is already used by %s", t, other)
			}
			tables[t] = e.Name
		}

		for _, f := range e.Fields() {
			if !f.IsRelation() {
				continue
			}
			target, ok := r.entities[f.Target]
			if !ok {
				return core.Definitionf(e.Name, f.Name, "foreign key targets unknown entity %q", f.Target)
			}
			if target.IsAbstract() {
				return core.Definitionf(e.Name, f.Name, "foreign key targets abstract entity %q", f.Target)
			}
			f.target = target
			if err := installReverse(e, f, target.Storage()); err != nil {
				return err
			}
		}
	}

	r.validated = true
	return nil
}

// installReverse registers the reverse accessor of f on target.
func installReverse(source *Entity, f *Field, target *Entity) error {
	name := f.RelatedName
	switch name {
	case RelatedNameNone:
		target.referrers = append(target.referrers, &Relation{Source: source, Field: f})
		return nil
	case "":
		name = defaultRelatedName(source.Name, f.translated)
	}
	if existing, dup := target.reverse[name]; dup {
		return core.Definitionf(target.Name, name, "reverse accessor clashes between %s.%s and %s.%s",
			existing.Source.Name, existing.Field.Name, source.Name, f.Name)
	}
	if _, clash := target.byName[name]; clash {
		return core.Definitionf(target.Name, name, "reverse accessor of %s.%s clashes with a field", source.Name, f.Name)
	}
	rel := &Relation{Name: name, Source: source, Field: f}
	target.reverse[name] = rel
	target.referrers = append(target.referrers, rel)
	return nil
}

// String implements fmt.Stringer for debugging.
func (r *Registry) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("Registry(%d entities)", len(r.order))
}
