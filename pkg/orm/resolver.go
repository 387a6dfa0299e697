package orm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/lang"
	"github.com/leapstack-labs/polyglot/pkg/query"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// ResolveTranslation returns the translation of inst in requested or, when
// it is missing, in the first language of the fallback chain of ctx that has
// one, together with the language used. It fails with
// core.ErrTranslationNotFound when no language of the chain is translated.
//
// Results are cached on the instance per language, so repeated resolutions
// issue at most one query for the languages not seen yet. The active
// translation of inst is left unchanged.
func (s *Store) ResolveTranslation(ctx context.Context, inst *Instance, requested string) (*Translation, string, error) {
	lc := s.Language(ctx)
	if requested == "" {
		requested = lc.Current
	}
	chain := lang.ChainFor(requested, lc.Fallbacks)
	if len(chain) == 0 {
		return nil, "", fmt.Errorf("no language to resolve: %w", core.ErrTranslationNotFound)
	}
	if !inst.entity.Translatable() {
		return nil, "", core.Definitionf(inst.entity.Name, "", "entity has no translations")
	}

	if t, ok := inst.pick(chain); ok {
		return t, t.Language, nil
	}
	if err := s.loadTranslations(ctx, inst, chain); err != nil {
		return nil, "", err
	}
	if t, ok := inst.pick(chain); ok {
		return t, t.Language, nil
	}
	return nil, "", fmt.Errorf("%s %d in %v: %w", inst.entity.Name, inst.id, chain, core.ErrTranslationNotFound)
}

// UseLanguage re-resolves inst for requested (with the fallback chain of
// ctx) and makes the result its active translation.
func (s *Store) UseLanguage(ctx context.Context, inst *Instance, requested string) error {
	t, _, err := s.ResolveTranslation(ctx, inst, requested)
	if err != nil {
		return err
	}
	inst.active = t
	for _, f := range inst.entity.TranslatedFields() {
		if f.IsRelation() {
			delete(inst.related, f.Name)
		}
	}
	return nil
}

// pick returns the first cached translation along chain. It reports false
// when a language before the first hit has not been looked up yet.
func (i *Instance) pick(chain []string) (*Translation, bool) {
	for _, code := range chain {
		t, seen := i.known[code]
		if !seen {
			return nil, false
		}
		if t != nil {
			return t, true
		}
	}
	return nil, false
}

// loadTranslations fetches the uncached languages of chain for inst and
// records hits and misses.
func (s *Store) loadTranslations(ctx context.Context, inst *Instance, chain []string) error {
	var missing []string
	for _, code := range chain {
		if _, seen := inst.known[code]; !seen {
			missing = append(missing, code)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if !inst.Saved() {
		for _, code := range missing {
			inst.known[code] = nil
		}
		return nil
	}
	found, err := s.fetchTranslations(ctx, inst.entity, []int64{inst.id}, missing)
	if err != nil {
		return err
	}
	for _, code := range missing {
		inst.known[code] = found[inst.id][code]
	}
	return nil
}

// fetchTranslations loads the translations of ids in langs (all languages
// when langs is empty), keyed by id then language.
func (s *Store) fetchTranslations(ctx context.Context, e *schema.Entity, ids []int64, langs []string) (map[int64]map[string]*Translation, error) {
	out := make(map[int64]map[string]*Translation, len(ids))
	fields := e.TranslatedFields()
	for _, batch := range chunks(ids, batchSize) {
		rows, err := s.query(ctx, query.Translations(e, s.dialect, batch, langs...))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch translations: %w", err)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				vals := make([]any, 2+len(fields))
				if err := rows.Scan(pointers(vals)...); err != nil {
					return err
				}
				master, err := toInt64(vals[0])
				if err != nil {
					return err
				}
				code := fmt.Sprint(convertRaw(vals[1]))
				t := &Translation{Language: code, Values: make(map[string]any, len(fields))}
				for j, f := range fields {
					if t.Values[f.Name], err = convertField(f, vals[2+j]); err != nil {
						return err
					}
				}
				if out[master] == nil {
					out[master] = make(map[string]*Translation)
				}
				out[master][code] = t
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, fmt.Errorf("failed to read translations: %w", err)
		}
	}
	return out, nil
}

// AvailableLanguages returns the languages inst is translated in, sorted.
func (s *Store) AvailableLanguages(ctx context.Context, inst *Instance) ([]string, error) {
	if !inst.Saved() {
		return nil, core.ErrUnsaved
	}
	if !inst.entity.Translatable() {
		return nil, nil
	}
	rows, err := s.query(ctx, query.Languages(inst.entity, s.dialect, inst.id))
	if err != nil {
		return nil, fmt.Errorf("failed to list languages: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to list languages: %w", err)
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

// DeleteTranslation removes the translation of inst in code. The cached
// entry is invalidated and, when code was active, the instance falls back
// to its shared-only view.
func (s *Store) DeleteTranslation(ctx context.Context, inst *Instance, code string) error {
	if !inst.Saved() {
		return core.ErrUnsaved
	}
	res, err := s.exec(ctx, query.DeleteTranslations(inst.entity, s.dialect, []int64{inst.id}, code))
	if err != nil {
		return fmt.Errorf("failed to delete translation: %w", err)
	}
	inst.known[code] = nil
	if inst.Language() == code {
		inst.active = nil
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %d in %s: %w", inst.entity.Name, inst.id, code, core.ErrTranslationNotFound)
	}
	s.logger.Debug("deleted translation", slog.String("entity", inst.entity.Name), slog.Int64("id", inst.id), slog.String("language", code))
	return nil
}

const batchSize = 500

func pointers(vals []any) []any {
	ptrs := make([]any, len(vals))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	return ptrs
}
