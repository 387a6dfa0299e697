package orm

import (
	"context"
	"fmt"
	"slices"

	"github.com/leapstack-labs/polyglot/pkg/query"
)

// Values projects the matching rows onto paths, one map per row keyed by
// path. Without paths every field of the entity is projected along with
// its id. In a fallback queryset the translated fields of the entity itself
// are resolved per row along the fallback chain; rows without any
// translation in the chain report nil for them.
func (q *Queryset) Values(ctx context.Context, paths ...string) ([]map[string]any, error) {
	keys, rows, err := q.project(ctx, paths)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(keys))
		for j, k := range keys {
			m[k] = row[j]
		}
		out[i] = m
	}
	return out, nil
}

// ValuesList is Values returning one slice per row, in path order.
func (q *Queryset) ValuesList(ctx context.Context, paths ...string) ([][]any, error) {
	_, rows, err := q.project(ctx, paths)
	return rows, err
}

// FlatValues returns the values of a single path.
func (q *Queryset) FlatValues(ctx context.Context, path string) ([]any, error) {
	_, rows, err := q.project(ctx, []string{path})
	if err != nil {
		return nil, err
	}
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row[0]
	}
	return out, nil
}

func (q *Queryset) project(ctx context.Context, paths []string) ([]string, [][]any, error) {
	fallback := q.fallback && q.entity.Translatable()
	requested := slices.Clone(paths)
	if fallback && len(requested) > 0 && !slices.Contains(requested, query.FieldID) {
		// the id column locates each row's translations
		requested = append(requested, query.FieldID)
	}
	built, err := q.build()
	if err != nil {
		return nil, nil, err
	}
	stmt, proj, err := built.Values(q.store.dialect, requested...)
	if err != nil {
		return nil, nil, err
	}

	rows, err := q.store.query(ctx, stmt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query %s values: %w", q.entity.Name, err)
	}
	defer rows.Close()
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(proj))
		if err := rows.Scan(pointers(vals)...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan %s values: %w", q.entity.Name, err)
		}
		for i, p := range proj {
			if vals[i], err = convertField(p.Field, vals[i]); err != nil {
				return nil, nil, fmt.Errorf("failed to read %s: %w", p.Key, err)
			}
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read %s values: %w", q.entity.Name, err)
	}
	if err := rows.Close(); err != nil {
		return nil, nil, err
	}

	if fallback {
		if err := q.fallbackValues(ctx, proj, out); err != nil {
			return nil, nil, err
		}
	}

	keys := make([]string, len(proj))
	for i, p := range proj {
		keys[i] = p.Key
	}
	if len(requested) > len(paths) && len(paths) > 0 {
		keys = keys[:len(paths)]
		for i := range out {
			out[i] = out[i][:len(paths)]
		}
	}
	return keys, out, nil
}

// fallbackValues overwrites the root translated columns of rows with the
// first translation along the fallback chain.
func (q *Queryset) fallbackValues(ctx context.Context, proj []query.Projection, rows [][]any) error {
	idCol, langCol := -1, -1
	var translated []int
	for i, p := range proj {
		switch {
		case p.Key == query.FieldID || p.Key == query.FieldPK:
			idCol = i
		case p.Key == "language_code":
			langCol = i
		case p.Root && p.Field != nil && p.Field.IsTranslated():
			translated = append(translated, i)
		}
	}
	if idCol < 0 || (len(translated) == 0 && langCol < 0) || len(rows) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		id, err := toInt64(row[idCol])
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	chain := q.chain()
	found, err := q.store.fetchTranslations(ctx, q.entity, ids, chain)
	if err != nil {
		return err
	}
	for r, row := range rows {
		var t *Translation
		for _, code := range chain {
			if t = found[ids[r]][code]; t != nil {
				break
			}
		}
		if langCol >= 0 {
			row[langCol] = nil
			if t != nil {
				row[langCol] = t.Language
			}
		}
		for _, i := range translated {
			row[i] = nil
			if t != nil {
				row[i] = t.Values[proj[i].Field.Name]
			}
		}
	}
	return nil
}
