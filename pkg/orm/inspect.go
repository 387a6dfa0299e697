package orm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// TableCheck compares one declared table with its live counterpart.
type TableCheck struct {
	Entity string
	Table  string
	Rows   int64
	// Missing lists declared columns the live table lacks.
	Missing []string
}

// CheckTables inspects the live shared and translation tables of every
// concrete entity. Tables created from an older declaration are not
// altered by CreateTables; their missing columns show up here.
func (s *Store) CheckTables(ctx context.Context) ([]TableCheck, error) {
	var out []TableCheck
	for _, e := range schema.CreationOrder(s.registry.Concrete()) {
		shared, translation, err := schema.Split(e)
		if err != nil {
			return nil, err
		}
		for _, t := range []*schema.Table{shared, translation} {
			if t == nil {
				continue
			}
			check := TableCheck{Entity: e.Name, Table: t.Name}
			meta, err := s.adapter.GetTableMetadata(ctx, t.Name)
			switch {
			case errors.Is(err, core.ErrTableNotFound):
				check.Missing = t.ColumnNames()
			case err != nil:
				return nil, fmt.Errorf("failed to inspect table %s: %w", t.Name, err)
			default:
				check.Rows = meta.RowCount
				check.Missing = meta.MissingColumns(t.ColumnNames())
			}
			s.logger.Debug("table inspected",
				slog.String("table", t.Name), slog.Int64("rows", check.Rows), slog.Int("missing", len(check.Missing)))
			out = append(out, check)
		}
	}
	return out, nil
}
