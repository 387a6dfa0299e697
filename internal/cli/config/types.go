// Package config loads the CLI configuration: defaults, polyglot.yaml,
// POLYGLOT_* environment variables and command-line flags, in increasing
// precedence.
package config

import (
	sharedcfg "github.com/leapstack-labs/polyglot/internal/config"
	"github.com/leapstack-labs/polyglot/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = core.TargetConfig

// LanguageConfig is an alias for the shared language configuration.
type LanguageConfig = core.LanguageConfig

// Config holds all CLI configuration options.
type Config struct {
	Catalog      string          `koanf:"catalog"`
	StatePath    string          `koanf:"state_path"`
	TablePrefix  string          `koanf:"table_prefix"`
	Verbose      bool            `koanf:"verbose"`
	OutputFormat string          `koanf:"output"`
	Target       *TargetConfig   `koanf:"target"`
	Languages    *LanguageConfig `koanf:"languages"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultCatalog   = sharedcfg.DefaultCatalog
	DefaultStateFile = ".polyglot/state.db"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// TargetName identifies the target in the state catalog.
func (c *Config) TargetName() string {
	if c.Target == nil {
		return ""
	}
	if c.Target.Type == "postgres" {
		return c.Target.Type + "://" + c.Target.Host + "/" + c.Target.Database
	}
	return c.Target.Type + ":" + c.Target.Database
}
