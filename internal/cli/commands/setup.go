package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/polyglot/internal/catalog"
	"github.com/leapstack-labs/polyglot/internal/cli/config"
	"github.com/leapstack-labs/polyglot/internal/cli/output"
	"github.com/leapstack-labs/polyglot/internal/state"
	"github.com/leapstack-labs/polyglot/pkg/adapter"
	"github.com/leapstack-labs/polyglot/pkg/lang"
	"github.com/leapstack-labs/polyglot/pkg/orm"
	"github.com/leapstack-labs/polyglot/pkg/schema"

	// Register the storage adapters.
	_ "github.com/leapstack-labs/polyglot/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/polyglot/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/polyglot/pkg/adapters/sqlite"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Registry *schema.Registry
	Store    *orm.Store
}

// NewCommandContextWithoutStore loads the catalog without connecting to the
// target.
func NewCommandContextWithoutStore(cmd *cobra.Command) (*CommandContext, error) {
	cfg := getConfig(cmd.Context())
	if err := cfg.ValidateCatalog(); err != nil {
		return nil, err
	}
	f, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	r, err := f.Registry(schema.WithTablePrefix(cfg.TablePrefix))
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", cfg.Catalog, err)
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
		Registry: r,
	}, nil
}

// NewCommandContext loads the catalog and opens a store on the target.
// The cleanup function must be called when the command is done.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc, err := NewCommandContextWithoutStore(cmd)
	if err != nil {
		return nil, nil, err
	}

	a, err := adapter.NewAdapter(cc.Cfg.Target.ToAdapterConfig(), cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	if err := a.Connect(cmd.Context(), cc.Cfg.Target.ToAdapterConfig()); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", cc.Cfg.Target.Type, err)
	}
	cleanup := func() { _ = a.Close() }

	langs, err := languages(cc.Cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	s, err := orm.New(a, cc.Registry, orm.WithLogger(cc.Logger), orm.WithLanguage(langs))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cc.Store = s
	return cc, cleanup, nil
}

func languages(cfg *config.Config) (lang.Context, error) {
	if cfg.Languages == nil {
		return lang.Context{}, nil
	}
	return lang.New(cfg.Languages.Default, cfg.Languages.Fallbacks...)
}

// OpenState opens and migrates the state catalog.
func (c *CommandContext) OpenState(ctx context.Context) (*state.SQLiteStore, error) {
	if dir := filepath.Dir(c.Cfg.StatePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	st := state.NewSQLiteStore(c.Logger)
	if err := st.Open(c.Cfg.StatePath); err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// getConfig returns the loaded configuration, or the defaults when the
// command runs outside the root command.
func getConfig(ctx context.Context) *config.Config {
	if cfg := config.GetConfig(ctx); cfg != nil {
		return cfg
	}
	loaded, err := config.LoadConfig("", nil)
	if err != nil {
		return &config.Config{
			Catalog:   config.DefaultCatalog,
			StatePath: config.DefaultStateFile,
			Target:    &config.TargetConfig{Type: "sqlite", Database: "polyglot.db"},
			Languages: &config.LanguageConfig{Default: "en"},
		}
	}
	return loaded.Config
}
