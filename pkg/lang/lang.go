// Package lang provides the request-scoped language context: the current
// language plus an ordered fallback chain.
//
// A Context is an immutable value. It travels through context.Context and is
// never shared as mutable state between requests.
package lang

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/text/language"
)

// Context is the language context of one request or transaction.
type Context struct {
	// Current is the language requested by the caller.
	Current string
	// Fallbacks are consulted in order when Current has no translation.
	// An empty list means unresolved translations are an error.
	Fallbacks []string
}

// New builds a normalized Context. Every code is validated as a BCP 47 tag.
func New(current string, fallbacks ...string) (Context, error) {
	cur, err := Normalize(current)
	if err != nil {
		return Context{}, err
	}
	c := Context{Current: cur}
	for _, fb := range fallbacks {
		code, err := Normalize(fb)
		if err != nil {
			return Context{}, err
		}
		c.Fallbacks = append(c.Fallbacks, code)
	}
	return c, nil
}

// MustNew is like New but panics on invalid codes. Intended for tests and
// package-level defaults.
func MustNew(current string, fallbacks ...string) Context {
	c, err := New(current, fallbacks...)
	if err != nil {
		panic(err)
	}
	return c
}

// Normalize canonicalizes a language code ("EN" -> "en", "pt-br" -> "pt-BR").
func Normalize(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("empty language code")
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language code %q: %w", code, err)
	}
	s := tag.String()
	if len(s) > MaxCodeLength {
		return "", fmt.Errorf("language code %q exceeds %d characters", code, MaxCodeLength)
	}
	return s, nil
}

// MaxCodeLength bounds the stored language_code column.
const MaxCodeLength = 15

// WithLanguage returns a copy of c with a different current language.
func (c Context) WithLanguage(code string) Context {
	return Context{Current: code, Fallbacks: c.Fallbacks}
}

// WithFallbacks returns a copy of c with a different fallback chain.
func (c Context) WithFallbacks(codes ...string) Context {
	return Context{Current: c.Current, Fallbacks: slices.Clone(codes)}
}

// Chain returns the resolution order: the current language followed by the
// fallbacks, without duplicates.
func (c Context) Chain() []string {
	return ChainFor(c.Current, c.Fallbacks)
}

// ChainFor returns requested followed by fallbacks, deduplicated, keeping
// the first occurrence of each code.
func ChainFor(requested string, fallbacks []string) []string {
	chain := make([]string, 0, len(fallbacks)+1)
	if requested != "" {
		chain = append(chain, requested)
	}
	for _, fb := range fallbacks {
		if fb != "" && !slices.Contains(chain, fb) {
			chain = append(chain, fb)
		}
	}
	return chain
}

// IsZero reports whether no language has been set.
func (c Context) IsZero() bool {
	return c.Current == "" && len(c.Fallbacks) == 0
}

type ctxKey struct{}

// WithContext stores a language Context in ctx.
func WithContext(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// From extracts the language Context from ctx if present.
func From(ctx context.Context) (Context, bool) {
	c, ok := ctx.Value(ctxKey{}).(Context)
	return c, ok
}

// FromOr returns the Context stored in ctx, or def when none is set.
func FromOr(ctx context.Context, def Context) Context {
	if c, ok := From(ctx); ok {
		return c
	}
	return def
}
