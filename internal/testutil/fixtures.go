package testutil

import (
	"fmt"
	"testing"

	"github.com/leapstack-labs/polyglot/pkg/schema"
	"github.com/leapstack-labs/polyglot/pkg/slug"
	"github.com/stretchr/testify/require"
)

// Definitions returns the fixture entities in definition order:
//
//	Normal <- NormalProxy <- NormalProxyProxy
//	Related, RelatedProxy, SimpleRelated, RelatedRelated (relations into Normal)
//	Standard (plain, FK to Normal)
//	AbstractA <- AbstractAA, AbstractB  => ConcreteAB <- ConcreteABProxy
//	Date, AggregateModel, MultipleFields, Boolean, AutoPopulated
func Definitions() []schema.Definition {
	return []schema.Definition{
		{
			Name:       "Normal",
			Shared:     []schema.Field{schema.Char("shared_field", 255)},
			Translated: []schema.Field{schema.Char("translated_field", 255)},
			Behavior: schema.Behavior{
				Display: func(a schema.Accessor) string {
					return fmt.Sprint(a.SafeGet("translated_field", a.SafeGet("shared_field", "")))
				},
			},
		},
		{
			Name:  "NormalProxy",
			Proxy: true,
			Bases: []string{"Normal"},
			Behavior: schema.Behavior{
				Display: func(a schema.Accessor) string {
					return "proxied " + fmt.Sprint(a.SafeGet("translated_field", a.SafeGet("shared_field", "")))
				},
			},
		},
		{
			Name:  "NormalProxyProxy",
			Proxy: true,
			Bases: []string{"NormalProxy"},
			Behavior: schema.Behavior{
				Display: func(a schema.Accessor) string {
					return "proxied^2 proxied " + fmt.Sprint(a.SafeGet("translated_field", a.SafeGet("shared_field", "")))
				},
			},
		},
		{
			Name:   "Related",
			Shared: []schema.Field{schema.ForeignKey("normal", "Normal").Nullable().Related("rel1")},
			Translated: []schema.Field{
				schema.ForeignKey("translated", "Normal").Nullable().Related("rel3"),
				schema.ForeignKey("translated_to_translated", "Normal").Nullable().Related("rel4"),
			},
		},
		{Name: "RelatedProxy", Proxy: true, Bases: []string{"Related"}},
		{
			Name:       "SimpleRelated",
			Shared:     []schema.Field{schema.ForeignKey("normal", "Normal").Related("simplerel")},
			Translated: []schema.Field{schema.Char("translated_field", 255)},
		},
		{Name: "SimpleRelatedProxy", Proxy: true, Bases: []string{"SimpleRelated"}},
		{
			Name: "RelatedRelated",
			Shared: []schema.Field{
				schema.ForeignKey("related", "Related").Nullable().Related(schema.RelatedNameNone),
				schema.ForeignKey("simple", "SimpleRelated").Nullable().Related(schema.RelatedNameNone),
			},
			Translated: []schema.Field{
				schema.ForeignKey("trans_related", "Related").Nullable().Related(schema.RelatedNameNone),
				schema.ForeignKey("trans_simple", "SimpleRelated").Nullable().Related(schema.RelatedNameNone),
			},
		},
		{
			Name:  "Standard",
			Plain: true,
			Shared: []schema.Field{
				schema.Char("normal_field", 255),
				schema.ForeignKey("normal", "Normal").Related("standards"),
			},
		},
		{
			Name:       "AbstractA",
			Abstract:   true,
			Translated: []schema.Field{schema.ForeignKey("translated_field_a", "Normal").Related("{class}_set")},
		},
		{
			Name:     "AbstractAA",
			Abstract: true,
			Bases:    []string{"AbstractA"},
			Shared:   []schema.Field{schema.Char("shared_field_a", 255)},
		},
		{
			Name:       "AbstractB",
			Abstract:   true,
			Shared:     []schema.Field{schema.ForeignKey("shared_field_b", "Normal").Related("{class}_set")},
			Translated: []schema.Field{schema.Char("translated_field_b", 255)},
		},
		{
			Name:       "ConcreteAB",
			Bases:      []string{"AbstractAA", "AbstractB"},
			Shared:     []schema.Field{schema.Char("shared_field_ab", 255)},
			Translated: []schema.Field{schema.Char("translated_field_ab", 255)},
			Behavior: schema.Behavior{
				Display: func(a schema.Accessor) string {
					return fmt.Sprintf("%v, %v, %v",
						a.SafeGet("translated_field_a", a.SafeGet("shared_field_a", "")),
						a.SafeGet("translated_field_b", a.SafeGet("shared_field_b", "")),
						a.SafeGet("translated_field_ab", a.SafeGet("shared_field_ab", "")))
				},
			},
		},
		{
			Name:  "ConcreteABProxy",
			Proxy: true,
			Bases: []string{"ConcreteAB"},
			Behavior: schema.Behavior{
				Display: func(a schema.Accessor) string {
					return fmt.Sprintf("proxied %v, %v, %v",
						a.SafeGet("translated_field_a", a.SafeGet("shared_field_a", "")),
						a.SafeGet("translated_field_b", a.SafeGet("shared_field_b", "")),
						a.SafeGet("translated_field_ab", a.SafeGet("shared_field_ab", "")))
				},
			},
		},
		{
			Name:       "Date",
			Shared:     []schema.Field{schema.Time("shared_date")},
			Translated: []schema.Field{schema.Time("translated_date")},
			LatestBy:   "shared_date",
		},
		{
			Name:       "AggregateModel",
			Shared:     []schema.Field{schema.Int("number")},
			Translated: []schema.Field{schema.Int("translated_number")},
		},
		{
			Name: "MultipleFields",
			Shared: []schema.Field{
				schema.Char("first_shared_field", 255),
				schema.Char("second_shared_field", 255),
			},
			Translated: []schema.Field{
				schema.Char("first_translated_field", 255),
				schema.Char("second_translated_field", 255),
			},
		},
		{
			Name:       "Boolean",
			Shared:     []schema.Field{schema.Bool("shared_flag").WithDefault(false)},
			Translated: []schema.Field{schema.Bool("translated_flag").WithDefault(false)},
		},
		{
			Name: "AutoPopulated",
			Translated: []schema.Field{
				schema.Char("slug", 255),
				schema.Char("translated_name", 255),
			},
			Behavior: schema.Behavior{BeforeSave: populateSlug},
		},
	}
}

// populateSlug fills an empty slug from the translated name.
func populateSlug(a schema.Accessor) error {
	if s, _ := a.SafeGet("slug", "").(string); s != "" {
		return nil
	}
	name, _ := a.SafeGet("translated_name", "").(string)
	return a.Set("slug", slug.Make(slug.Truncate(name, 125)))
}

// NewRegistry defines every fixture entity in a fresh, validated registry.
func NewRegistry(t testing.TB, opts ...schema.Option) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry(opts...)
	for _, def := range Definitions() {
		_, err := r.Define(def)
		require.NoError(t, err, "define %s", def.Name)
	}
	require.NoError(t, r.Validate())
	return r
}

// MustEntity returns a fixture entity or fails the test.
func MustEntity(t testing.TB, r *schema.Registry, name string) *schema.Entity {
	t.Helper()
	e, ok := r.Entity(name)
	require.True(t, ok, "entity %s", name)
	return e
}
