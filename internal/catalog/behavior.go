package catalog

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/schema"
	"github.com/leapstack-labs/polyglot/pkg/slug"
)

// defaultSlugLength bounds generated slugs when the declaration sets none.
const defaultSlugLength = 125

// displayData is the template data of a display declaration.
type displayData struct {
	a schema.Accessor
}

// Get returns a field value, or "" when it is unavailable.
func (d displayData) Get(name string) any {
	if v := d.a.SafeGet(name, nil); v != nil {
		return v
	}
	return ""
}

// Language is the language of the resolved translation.
func (d displayData) Language() string { return d.a.Language() }

func displayFunc(entity, text string) (func(schema.Accessor) string, error) {
	tmpl, err := template.New(entity).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, core.Definitionf(entity, "", "invalid display template: %v", err)
	}
	return func(a schema.Accessor) string {
		var b strings.Builder
		if err := tmpl.Execute(&b, displayData{a: a}); err != nil {
			return fmt.Sprintf("%s (%v)", entity, err)
		}
		return b.String()
	}, nil
}

func slugFunc(entity string, s Slug) (func(schema.Accessor) error, error) {
	if s.Field == "" || s.From == "" {
		return nil, core.Definitionf(entity, s.Field, "slug needs a field and a source")
	}
	limit := s.MaxLength
	if limit <= 0 {
		limit = defaultSlugLength
	}
	return func(a schema.Accessor) error {
		if cur, _ := a.SafeGet(s.Field, "").(string); cur != "" {
			return nil
		}
		src := fmt.Sprint(a.SafeGet(s.From, ""))
		return a.Set(s.Field, slug.Make(slug.Truncate(src, limit)))
	}, nil
}
