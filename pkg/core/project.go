package core

// TargetConfig is the target block of polyglot.yaml: the database the
// shared and translation tables live in.
type TargetConfig struct {
	// Type is a registered adapter name.
	Type string `koanf:"type"`
	// Database is a file path for sqlite and duckdb, a database name for
	// postgres.
	Database string `koanf:"database"`

	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Schema   string `koanf:"schema"`

	Options map[string]string `koanf:"options"`
	Params  map[string]any    `koanf:"params"`
}

// ToAdapterConfig maps the target onto the adapter's connection settings.
func (t *TargetConfig) ToAdapterConfig() AdapterConfig {
	return AdapterConfig{
		Type:     t.Type,
		Path:     t.Database,
		Database: t.Database,
		Schema:   t.Schema,
		Host:     t.Host,
		Port:     t.Port,
		Username: t.User,
		Password: t.Password,
		Options:  t.Options,
		Params:   t.Params,
	}
}

// LanguageConfig holds the process-wide language defaults. Request-scoped
// language contexts are derived from it.
type LanguageConfig struct {
	Default   string   `koanf:"default"`
	Fallbacks []string `koanf:"fallbacks"`
}
