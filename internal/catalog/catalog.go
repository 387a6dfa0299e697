// Package catalog loads entity declarations from YAML files into a schema
// registry.
//
// A catalog file lists entities:
//
//	entities:
//	  - name: Article
//	    ordering: ["-published"]
//	    latest_by: published
//	    display: '{{.Get "title"}}'
//	    slug: {field: slug, from: title}
//	    shared:
//	      - {name: published, type: time, null: true}
//	      - {name: author, type: fk, target: Author, related_name: articles}
//	    translated:
//	      - {name: title, type: string, max_length: 200}
//	      - {name: slug, type: string, max_length: 200}
package catalog

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// File is a decoded catalog file.
type File struct {
	Entities []Entity `mapstructure:"entities"`
}

// Entity declares one entity.
type Entity struct {
	Name       string   `mapstructure:"name"`
	Table      string   `mapstructure:"table"`
	Abstract   bool     `mapstructure:"abstract"`
	Proxy      bool     `mapstructure:"proxy"`
	Plain      bool     `mapstructure:"plain"`
	Bases      []string `mapstructure:"bases"`
	Shared     []Field  `mapstructure:"shared"`
	Translated []Field  `mapstructure:"translated"`
	Ordering   []string `mapstructure:"ordering"`
	LatestBy   string   `mapstructure:"latest_by"`
	// Display is a text/template rendered with the instance as data.
	Display string `mapstructure:"display"`
	Slug    *Slug  `mapstructure:"slug"`
}

// Field declares one field.
type Field struct {
	Name        string `mapstructure:"name"`
	Type        string `mapstructure:"type"`
	MaxLength   int    `mapstructure:"max_length"`
	Null        bool   `mapstructure:"null"`
	Default     any    `mapstructure:"default"`
	Target      string `mapstructure:"target"`
	RelatedName string `mapstructure:"related_name"`
	Column      string `mapstructure:"column"`
}

// Slug fills Field from From before saving when Field is empty.
type Slug struct {
	Field     string `mapstructure:"field"`
	From      string `mapstructure:"from"`
	MaxLength int    `mapstructure:"max_length"`
}

// ParseError reports a malformed catalog.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// Parse decodes a catalog document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	raw = stringKeys(raw)

	var f File
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &f,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("failed to decode catalog: %v", err)}
	}
	return &f, nil
}

// stringKeys rewrites every mapping to map[string]any. YAML reads the key
// null as a nil key and true/false or numbers as typed keys; mapstructure
// only matches string keys.
func stringKeys(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, item := range v {
			v[k] = stringKeys(item)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			var key string
			switch k := k.(type) {
			case nil:
				key = "null"
			case string:
				key = k
			default:
				key = fmt.Sprint(k)
			}
			out[key] = stringKeys(item)
		}
		return out
	case []any:
		for i, item := range v {
			v[i] = stringKeys(item)
		}
		return v
	default:
		return v
	}
}

// Load reads and parses a catalog file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.File = path
		}
		return nil, err
	}
	return f, nil
}

// Definitions converts the declarations to schema definitions.
func (f *File) Definitions() ([]schema.Definition, error) {
	defs := make([]schema.Definition, 0, len(f.Entities))
	seen := map[string]bool{}
	for _, e := range f.Entities {
		if e.Name == "" {
			return nil, &ParseError{Message: "entity without a name"}
		}
		if seen[e.Name] {
			return nil, &ParseError{Message: fmt.Sprintf("entity %s declared twice", e.Name)}
		}
		seen[e.Name] = true

		def, err := e.definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Registry defines every entity of f in a new registry and validates it.
func (f *File) Registry(opts ...schema.Option) (*schema.Registry, error) {
	defs, err := f.Definitions()
	if err != nil {
		return nil, err
	}
	r := schema.NewRegistry(opts...)
	for _, def := range defs {
		if _, err := r.Define(def); err != nil {
			return nil, err
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (e Entity) definition() (schema.Definition, error) {
	def := schema.Definition{
		Name:     e.Name,
		Table:    e.Table,
		Abstract: e.Abstract,
		Proxy:    e.Proxy,
		Plain:    e.Plain,
		Bases:    slices.Clone(e.Bases),
		Ordering: slices.Clone(e.Ordering),
		LatestBy: e.LatestBy,
	}
	var err error
	if def.Shared, err = fields(e.Name, e.Shared); err != nil {
		return def, err
	}
	if def.Translated, err = fields(e.Name, e.Translated); err != nil {
		return def, err
	}
	if e.Display != "" {
		if def.Behavior.Display, err = displayFunc(e.Name, e.Display); err != nil {
			return def, err
		}
	}
	if e.Slug != nil {
		if def.Behavior.BeforeSave, err = slugFunc(e.Name, *e.Slug); err != nil {
			return def, err
		}
	}
	return def, nil
}

func fields(entity string, decls []Field) ([]schema.Field, error) {
	out := make([]schema.Field, 0, len(decls))
	for _, d := range decls {
		kind, ok := core.ParseFieldKind(strings.ToLower(d.Type))
		if !ok {
			return nil, core.Definitionf(entity, d.Name, "unknown field type %q", d.Type)
		}
		if kind == core.KindForeignKey && d.Target == "" {
			return nil, core.Definitionf(entity, d.Name, "foreign key without a target")
		}
		out = append(out, schema.Field{
			Name:        d.Name,
			Kind:        kind,
			MaxLength:   d.MaxLength,
			Null:        d.Null,
			Default:     d.Default,
			Target:      d.Target,
			RelatedName: d.RelatedName,
			Column:      d.Column,
		})
	}
	return out, nil
}
