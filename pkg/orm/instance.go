package orm

import (
	"fmt"
	"maps"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/query"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// Translation is the translated part of an instance in one language.
type Translation struct {
	Language string
	Values   map[string]any
}

func (t *Translation) clone() *Translation {
	if t == nil {
		return nil
	}
	return &Translation{Language: t.Language, Values: maps.Clone(t.Values)}
}

// Instance is the runtime view of one entity row: its shared values and the
// active translation, if any. An Instance is not safe for concurrent use.
type Instance struct {
	entity *schema.Entity
	id     int64
	shared map[string]any
	active *Translation

	// known caches translations by language; a nil entry records that the
	// language has no stored translation.
	known   map[string]*Translation
	related map[string]*Instance
}

var (
	_ schema.Accessor  = (*Instance)(nil)
	_ query.Identifier = (*Instance)(nil)
)

// NewInstance returns an unsaved instance with every shared field at its
// zero value.
func NewInstance(e *schema.Entity) *Instance {
	inst := &Instance{
		entity:  e,
		shared:  make(map[string]any, len(e.SharedFields())),
		known:   make(map[string]*Translation),
		related: make(map[string]*Instance),
	}
	for _, f := range e.SharedFields() {
		inst.shared[f.Name] = f.ZeroValue()
	}
	return inst
}

// Entity returns the entity the instance was loaded or created as.
func (i *Instance) Entity() *schema.Entity { return i.entity }

// ID returns the primary key, or 0 for unsaved instances.
func (i *Instance) ID() int64 { return i.id }

// PrimaryKey lets instances stand for their row in filters and assignments.
func (i *Instance) PrimaryKey() int64 { return i.id }

// Saved reports whether the instance has a stored shared row.
func (i *Instance) Saved() bool { return i.id != 0 }

// Language returns the language of the active translation, or "".
func (i *Instance) Language() string {
	if i.active == nil {
		return ""
	}
	return i.active.Language
}

// Translation returns the active translation.
func (i *Instance) Translation() (*Translation, bool) {
	return i.active, i.active != nil
}

// Translate starts a fresh translation in code and makes it active. Every
// translated field starts at its zero value.
func (i *Instance) Translate(code string) *Instance {
	t := &Translation{Language: code, Values: make(map[string]any, len(i.entity.TranslatedFields()))}
	for _, f := range i.entity.TranslatedFields() {
		t.Values[f.Name] = f.ZeroValue()
	}
	i.active = t
	return i
}

// activate makes t the active translation and records it in the cache.
func (i *Instance) activate(t *Translation) {
	i.active = t
	if t != nil {
		i.known[t.Language] = t
	}
}

// Get returns a shared or translated value. "id" and "pk" return the
// primary key and "language_code" the active language.
func (i *Instance) Get(name string) (any, error) {
	switch name {
	case query.FieldID, query.FieldPK:
		return i.id, nil
	case schema.ColumnLanguage:
		if i.active == nil {
			return nil, fmt.Errorf("%s %d: %w", i.entity.Name, i.id, core.ErrTranslationNotFound)
		}
		return i.active.Language, nil
	}
	f, ok := i.entity.Field(name)
	if !ok {
		return nil, core.Definitionf(i.entity.Name, name, "no such field")
	}
	if !f.IsTranslated() {
		return i.shared[name], nil
	}
	if i.active == nil {
		return nil, fmt.Errorf("%s %d has no active translation for %q: %w", i.entity.Name, i.id, name, core.ErrTranslationNotFound)
	}
	return i.active.Values[name], nil
}

// SafeGet is Get returning def instead of an error.
func (i *Instance) SafeGet(name string, def any) any {
	v, err := i.Get(name)
	if err != nil {
		return def
	}
	return v
}

// Set assigns a shared or translated value. Instances passed for foreign
// keys are stored as their primary key.
func (i *Instance) Set(name string, v any) error {
	f, ok := i.entity.Field(name)
	if !ok {
		return core.Definitionf(i.entity.Name, name, "no such field")
	}
	if related, ok := v.(*Instance); ok && f.IsRelation() {
		i.related[name] = related
	} else if f.IsRelation() {
		delete(i.related, name)
	}
	value, err := convertField(f, v)
	if err != nil {
		return fmt.Errorf("failed to set %s.%s: %w", i.entity.Name, name, err)
	}
	if !f.IsTranslated() {
		i.shared[name] = value
		return nil
	}
	if i.active == nil {
		return fmt.Errorf("cannot set %q of %s without a translation: %w", name, i.entity.Name, core.ErrTranslationNotFound)
	}
	i.active.Values[name] = value
	return nil
}

// SetAll assigns several values.
func (i *Instance) SetAll(values map[string]any) error {
	for _, name := range sortedKeys(values) {
		if err := i.Set(name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

// Related returns the instance loaded for a foreign key path such as
// "normal" or "related__normal".
func (i *Instance) Related(path string) (*Instance, bool) {
	cur := i
	for _, seg := range query.SplitPath(path) {
		next, ok := cur.related[seg]
		if !ok || next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// View returns the resolved values: id, shared fields and, with an active
// translation, the language code and translated fields.
func (i *Instance) View() map[string]any {
	out := make(map[string]any, 2+len(i.shared))
	out[query.FieldID] = i.id
	maps.Copy(out, i.shared)
	if i.active != nil {
		out[schema.ColumnLanguage] = i.active.Language
		maps.Copy(out, i.active.Values)
	}
	return out
}

// Decode copies the resolved view into out, a pointer to a struct or map,
// matching fields by their mapstructure tag or name.
func (i *Instance) Decode(out any) error {
	return decode(i.View(), out)
}

// DecodeValues decodes value rows, as returned by Queryset.Values, into out,
// a pointer to a slice.
func DecodeValues(rows []map[string]any, out any) error {
	return decode(rows, out)
}

func decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}
	return nil
}

// String renders the instance with the display behavior of its entity.
func (i *Instance) String() string {
	if display := i.entity.Behavior.Display; display != nil {
		return display(i)
	}
	return fmt.Sprintf("%s object (%d)", i.entity.Name, i.id)
}

func (i *Instance) sharedValues() map[string]any {
	out := make(map[string]any, len(i.shared))
	for _, f := range i.entity.SharedFields() {
		v, ok := i.shared[f.Name]
		if !ok {
			v = f.ZeroValue()
		}
		out[f.Name] = v
	}
	return out
}

func (i *Instance) translatedValues() map[string]any {
	out := make(map[string]any, len(i.entity.TranslatedFields()))
	for _, f := range i.entity.TranslatedFields() {
		v, ok := i.active.Values[f.Name]
		if !ok {
			v = f.ZeroValue()
		}
		out[f.Name] = v
	}
	return out
}
