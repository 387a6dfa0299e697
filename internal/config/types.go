// Package config holds the project level rules shared by every loader:
// where polyglot.yaml lives, the defaults a target gets and what makes a
// target or a language setup valid.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/polyglot/pkg/adapter"
	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
	"github.com/leapstack-labs/polyglot/pkg/lang"
)

// DefaultSchemaForType returns the registered dialect's default schema for
// a target type, or "main".
func DefaultSchemaForType(dbType string) string {
	if d, ok := dialect.Get(dbType); ok && d.DefaultSchema != "" {
		return d.DefaultSchema
	}
	return "main"
}

// ValidateTarget checks that the target names a registered adapter.
func ValidateTarget(t *core.TargetConfig) error {
	if t == nil {
		return fmt.Errorf("target is required")
	}
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(strings.ToLower(t.Type)) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	return nil
}

// ValidateLanguages checks that the default and fallback codes are valid
// language tags.
func ValidateLanguages(l *core.LanguageConfig) error {
	if l == nil {
		return nil
	}
	if _, err := lang.New(l.Default, l.Fallbacks...); err != nil {
		return fmt.Errorf("invalid languages: %w", err)
	}
	return nil
}
