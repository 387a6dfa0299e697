package config

import "github.com/leapstack-labs/polyglot/pkg/core"

// Default configuration values.
const (
	DefaultTargetType   = "sqlite"
	DefaultDatabase     = "polyglot.db"
	DefaultCatalog      = "entities.yaml"
	DefaultLanguage     = "en"
	DefaultPostgresPort = 5432
)

// ApplyTargetDefaults fills the type, schema and port a target leaves out.
// File backed targets without a database get DefaultDatabase.
func ApplyTargetDefaults(t *core.TargetConfig) {
	if t == nil {
		return
	}
	if t.Type == "" {
		t.Type = DefaultTargetType
	}
	if t.Database == "" && t.Type != "postgres" {
		t.Database = DefaultDatabase
	}
	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if t.Type == "postgres" && t.Port == 0 {
		t.Port = DefaultPostgresPort
	}
}

// ApplyLanguageDefaults sets the default language when none is configured.
func ApplyLanguageDefaults(l *core.LanguageConfig) {
	if l == nil {
		return
	}
	if l.Default == "" {
		l.Default = DefaultLanguage
	}
}
