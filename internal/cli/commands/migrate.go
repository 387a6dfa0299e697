package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/polyglot/internal/state"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// MigrateOptions holds options for the migrate command.
type MigrateOptions struct {
	DryRun bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand() *cobra.Command {
	opts := &MigrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the shared and translation tables on the target",
		Long: `Create the storage for every concrete entity in the catalog.

Statements are idempotent, so running migrate twice is safe. Each run is
recorded in the state catalog together with a fingerprint of every
entity; entities whose declaration changed since the last run are
reported as drifted.`,
		Example: `  # Create tables in the configured database
  polyglot migrate

  # Print the statements instead
  polyglot migrate --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the statements without executing them")
	return cmd
}

func runMigrate(cmd *cobra.Command, opts *MigrateOptions) error {
	if opts.DryRun {
		return runSchemaDDL(cmd, nil)
	}

	ctx := cmd.Context()
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := cc.OpenState(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	target := cc.Cfg.TargetName()
	run, err := st.CreateRun(ctx, target)
	if err != nil {
		return err
	}

	fingerprints, err := migrateTarget(cmd, cc, st, run.ID)
	if err != nil {
		if cerr := st.CompleteRun(ctx, run.ID, state.RunStatusFailed, err.Error()); cerr != nil {
			cc.Logger.Warn("failed to record run failure", "run", run.ID, "error", cerr)
		}
		return err
	}
	if err := st.CompleteRun(ctx, run.ID, state.RunStatusCompleted, ""); err != nil {
		return err
	}

	cc.Renderer.Success(fmt.Sprintf("migrated %d entities on %s", len(fingerprints), target))
	cc.Logger.Info("migration completed", "run", run.ID, "target", target, "entities", len(fingerprints))
	return nil
}

func migrateTarget(cmd *cobra.Command, cc *CommandContext, st *state.SQLiteStore, runID string) (map[string]string, error) {
	ctx := cmd.Context()
	d := cc.Store.Dialect()
	target := cc.Cfg.TargetName()

	current := make(map[string]string)
	for _, e := range cc.Registry.Concrete() {
		fp, err := schema.Fingerprint(e, d)
		if err != nil {
			return nil, err
		}
		current[e.Name] = fp
	}

	drift, err := state.DetectDrift(ctx, st, target, current)
	if err != nil {
		return nil, err
	}
	for _, dr := range drift {
		cc.Renderer.Warning(fmt.Sprintf("%s changed since the last migration; existing tables are not altered", dr.Name))
	}

	if err := cc.Store.CreateTables(ctx); err != nil {
		return nil, err
	}

	checks, err := cc.Store.CheckTables(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range checks {
		if len(c.Missing) > 0 {
			cc.Renderer.Warning(fmt.Sprintf("table %s of %s lacks columns %s",
				c.Table, c.Entity, strings.Join(c.Missing, ", ")))
		}
	}

	for _, e := range cc.Registry.Concrete() {
		rec := state.EntityRecord{
			Target:           target,
			Name:             e.Name,
			SharedTable:      e.SharedTable,
			TranslationTable: e.TranslationTable,
			Fingerprint:      current[e.Name],
			RunID:            runID,
		}
		if err := st.RecordEntity(ctx, rec); err != nil {
			return nil, err
		}
		cc.Logger.Debug("entity recorded", "entity", e.Name, "fingerprint", current[e.Name])
	}
	return current, nil
}
