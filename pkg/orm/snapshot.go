package orm

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/query"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// Snapshot is the serializable state of one instance: its shared values and
// every stored translation.
type Snapshot struct {
	Entity       string                    `json:"entity"`
	ID           int64                     `json:"id"`
	Shared       map[string]any            `json:"shared"`
	Translations map[string]map[string]any `json:"translations,omitempty"`
}

// Snapshot captures inst with all its stored translations.
func (s *Store) Snapshot(ctx context.Context, inst *Instance) (*Snapshot, error) {
	if !inst.Saved() {
		return nil, core.ErrUnsaved
	}
	snap := &Snapshot{
		Entity: inst.entity.Name,
		ID:     inst.id,
		Shared: inst.sharedValues(),
	}
	if !inst.entity.Translatable() {
		return snap, nil
	}
	found, err := s.fetchTranslations(ctx, inst.entity, []int64{inst.id}, nil)
	if err != nil {
		return nil, err
	}
	snap.Translations = make(map[string]map[string]any, len(found[inst.id]))
	for code, t := range found[inst.id] {
		snap.Translations[code] = t.Values
		inst.known[code] = t
	}
	return snap, nil
}

// Restore writes snap back: the shared row is inserted with its id or
// updated when it exists, and every translation is upserted. Values decoded
// from JSON are converted to their field types.
func (s *Store) Restore(ctx context.Context, snap *Snapshot) (*Instance, error) {
	e, err := s.Entity(snap.Entity)
	if err != nil {
		return nil, err
	}
	if snap.ID == 0 {
		return nil, errors.New("snapshot has no id")
	}
	shared, err := convertValues(e, e.SharedFields(), snap.Shared)
	if err != nil {
		return nil, err
	}
	translations := make(map[string]map[string]any, len(snap.Translations))
	for _, code := range sortedKeys(snap.Translations) {
		if translations[code], err = convertValues(e, e.TranslatedFields(), snap.Translations[code]); err != nil {
			return nil, err
		}
	}

	inst := NewInstance(e)
	err = s.InTx(ctx, func(ctx context.Context) error {
		exists, err := s.exists(ctx, e, snap.ID)
		if err != nil {
			return err
		}
		var stmt query.Statement
		if exists {
			stmt, err = query.UpdateShared(e, s.dialect, shared, snap.ID)
		} else {
			stmt, err = query.InsertSharedWithID(e, s.dialect, snap.ID, shared)
		}
		if err != nil {
			return err
		}
		if stmt.SQL != "" {
			if _, err := s.exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to restore %s %d: %w", e.Name, snap.ID, err)
			}
		}
		for _, code := range sortedKeys(translations) {
			if err := s.upsertTranslation(ctx, e, snap.ID, code, translations[code]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	inst.id = snap.ID
	for k, v := range shared {
		inst.shared[k] = v
	}
	for code, values := range translations {
		inst.known[code] = &Translation{Language: code, Values: values}
	}
	return inst, nil
}

// convertValues checks that values only names fields of the given partition
// and converts them, filling omitted fields with their zero value.
func convertValues(e *schema.Entity, fields []*schema.Field, values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Name] = true
		v, ok := values[f.Name]
		if !ok {
			out[f.Name] = f.ZeroValue()
			continue
		}
		c, err := convertField(f, v)
		if err != nil {
			return nil, fmt.Errorf("failed to restore %s.%s: %w", e.Name, f.Name, err)
		}
		out[f.Name] = c
	}
	for _, name := range sortedKeys(values) {
		if !known[name] {
			return nil, core.Definitionf(e.Name, name, "no such field")
		}
	}
	return out, nil
}

func (s *Store) exists(ctx context.Context, e *schema.Entity, id int64) (bool, error) {
	rows, err := s.query(ctx, query.Shared(e, s.dialect, id))
	if err != nil {
		return false, fmt.Errorf("failed to look up %s %d: %w", e.Name, id, err)
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}
