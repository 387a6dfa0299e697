package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	intconfig "github.com/leapstack-labs/polyglot/internal/config"
)

// loggerKey is used to store the logger in the command context.
type loggerKey struct{}

// EnvPrefix prefixes the environment variables read by the loader.
const EnvPrefix = "POLYGLOT_"

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"state":     "state_path",
	"lang":      "languages.default",
	"fallback":  "languages.fallbacks",
	"type":      "target.type",
	"database":  "target.database",
	"prefix":    "table_prefix",
	"catalog":   "catalog",
	"verbose":   "verbose",
	"output":    "output",
	"db-schema": "target.schema",
}

// Loaded is the result of LoadConfig.
type Loaded struct {
	*Config
	// File is the config file used, or "".
	File string
}

// LoadConfig loads configuration from defaults, the config file (cfgFile, or
// polyglot.yaml found upward from the working directory), environment
// variables and flags. Only flags listed in flagKeys and explicitly set
// override other sources.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Loaded, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"catalog":     DefaultCatalog,
		"state_path":  DefaultStateFile,
		"verbose":     false,
		"output":      DefaultOutput,
		"target.type": intconfig.DefaultTargetType,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	projectRoot, _ := os.Getwd()
	if cfgFile == "" {
		if root, found := intconfig.Locate(projectRoot); found != "" {
			projectRoot, cfgFile = root, found
		}
	} else if abs, err := filepath.Abs(cfgFile); err == nil {
		projectRoot = filepath.Dir(abs)
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// POLYGLOT_TARGET__TYPE -> target.type, POLYGLOT_STATE_PATH -> state_path
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	if cfg.Target == nil {
		cfg.Target = &TargetConfig{}
	}
	cfg.Target.Type = strings.ToLower(cfg.Target.Type)
	intconfig.ApplyTargetDefaults(cfg.Target)
	if cfg.Languages == nil {
		cfg.Languages = &LanguageConfig{}
	}
	intconfig.ApplyLanguageDefaults(cfg.Languages)
	expandTargetEnvVars(cfg.Target)

	cfg.Catalog = resolvePathRelativeTo(cfg.Catalog, projectRoot)
	cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	if cfg.Target.Type != "postgres" && cfg.Target.Database != ":memory:" {
		cfg.Target.Database = resolvePathRelativeTo(cfg.Target.Database, projectRoot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loaded{Config: &cfg, File: cfgFile}, nil
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoggerKey returns the context key used for storing the logger.
func LoggerKey() any {
	return loggerKey{}
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns with environment variable values,
// leaving unknown variables untouched.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// expandTargetEnvVars expands environment variables in sensitive target fields.
func expandTargetEnvVars(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Password = expandEnvVars(t.Password)
	t.User = expandEnvVars(t.User)
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
}

// configKey is used to store the loaded config in the command context.
type configKey struct{}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context, or nil.
func GetConfig(ctx context.Context) *Config {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(configKey{}).(*Config)
	return c
}
