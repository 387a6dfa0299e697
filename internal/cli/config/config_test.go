package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/polyglot/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/polyglot/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/polyglot/pkg/adapters/sqlite"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("catalog", "", "")
	fs.String("state", "", "")
	fs.String("type", "", "")
	fs.String("database", "", "")
	fs.String("lang", "", "")
	fs.StringSlice("fallback", nil, "")
	fs.BoolP("verbose", "v", false, "")
	fs.String("unrelated", "", "")
	return fs
}

func writeConfig(t *testing.T, dir, doc string) string {
	t.Helper()
	path := filepath.Join(dir, "polyglot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, "sqlite", cfg.Target.Type)
	assert.Equal(t, filepath.Join(dir, "polyglot.db"), cfg.Target.Database)
	assert.Equal(t, filepath.Join(dir, DefaultCatalog), cfg.Catalog)
	assert.Equal(t, filepath.Join(dir, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, "en", cfg.Languages.Default)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
catalog: models/entities.yaml
target:
  type: DuckDB
  database: data.duckdb
languages:
  default: fr
  fallbacks: [en]
`)

	t.Run("file", func(t *testing.T) {
		cfg, err := LoadConfig(path, nil)
		require.NoError(t, err)
		assert.Equal(t, path, cfg.File)
		assert.Equal(t, "duckdb", cfg.Target.Type)
		assert.Equal(t, filepath.Join(dir, "data.duckdb"), cfg.Target.Database)
		assert.Equal(t, filepath.Join(dir, "models", "entities.yaml"), cfg.Catalog)
		assert.Equal(t, "fr", cfg.Languages.Default)
		assert.Equal(t, []string{"en"}, cfg.Languages.Fallbacks)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("POLYGLOT_LANGUAGES__DEFAULT", "de")
		t.Setenv("POLYGLOT_VERBOSE", "true")
		cfg, err := LoadConfig(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "de", cfg.Languages.Default)
		assert.True(t, cfg.Verbose)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("POLYGLOT_LANGUAGES__DEFAULT", "de")
		fs := testFlags()
		require.NoError(t, fs.Parse([]string{"--lang", "it", "--fallback", "es,en", "--type", "sqlite", "--database", ":memory:", "--unrelated", "x"}))

		cfg, err := LoadConfig(path, fs)
		require.NoError(t, err)
		assert.Equal(t, "it", cfg.Languages.Default)
		assert.Equal(t, []string{"es", "en"}, cfg.Languages.Fallbacks)
		assert.Equal(t, "sqlite", cfg.Target.Type)
		assert.Equal(t, ":memory:", cfg.Target.Database)
	})
}

func TestLoadConfig_FindsProjectRootUpward(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "state_path: state/polyglot.db\n")
	sub := filepath.Join(dir, "nested", "deeper")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	t.Chdir(sub)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(dir, "state", "polyglot.db"), cfg.StatePath)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(writeConfig(t, dir, "target:\n  type: mysql\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown adapter type")

	_, err = LoadConfig(writeConfig(t, dir, "languages:\n  default: '!!'\n"), nil)
	require.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"), nil)
	require.Error(t, err)
}

func TestExpandTargetEnvVars(t *testing.T) {
	t.Setenv("PG_PASSWORD", "s3cret")
	target := &TargetConfig{Password: "${PG_PASSWORD}", User: "${PG_UNSET_USER}", Host: "db-${PG_PASSWORD}"}
	expandTargetEnvVars(target)

	assert.Equal(t, "s3cret", target.Password)
	assert.Equal(t, "${PG_UNSET_USER}", target.User)
	assert.Equal(t, "db-s3cret", target.Host)
	expandTargetEnvVars(nil)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
	assert.Equal(t, loggerKey{}, LoggerKey())
}

func TestTargetName(t *testing.T) {
	assert.Equal(t, "sqlite:/tmp/a.db", (&Config{Target: &TargetConfig{Type: "sqlite", Database: "/tmp/a.db"}}).TargetName())
	assert.Equal(t, "postgres://db/app", (&Config{Target: &TargetConfig{Type: "postgres", Host: "db", Database: "app"}}).TargetName())
	assert.Empty(t, (&Config{}).TargetName())
}
