package orm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/query"
)

// GetOrCreate returns the row matching conds, creating it from conds and
// defaults when none exists. conds maps direct field names (shared or
// translated) to values compared with exact lookups; translated criteria
// are matched in the current language. The boolean reports creation.
//
// The lookup and the insert share one transaction, serialized by an
// advisory lock where the engine has one and by the write lock otherwise.
// A conflicting concurrent creation is retried once as a lookup.
func (q *Queryset) GetOrCreate(ctx context.Context, conds, defaults map[string]any) (*Instance, bool, error) {
	if _, err := q.build(); err != nil {
		return nil, false, err
	}
	for _, name := range sortedKeys(conds) {
		if strings.Contains(name, query.Separator) {
			return nil, false, core.Definitionf(q.entity.Name, name, "get-or-create criteria must name fields")
		}
	}
	inst, created, err := q.getOrCreate(ctx, conds, defaults)
	if err != nil && q.store.isConflict(err) {
		if _, inTx := txFrom(ctx); !inTx {
			q.store.logger.Warn("get-or-create conflicted, retrying",
				slog.String("entity", q.entity.Name), slog.String("error", err.Error()))
			return q.getOrCreate(ctx, conds, defaults)
		}
	}
	return inst, created, err
}

func (q *Queryset) getOrCreate(ctx context.Context, conds, defaults map[string]any) (*Instance, bool, error) {
	var (
		inst    *Instance
		created bool
	)
	err := q.store.InTx(ctx, func(ctx context.Context) error {
		if lock := q.store.dialect.AdvisoryLock(); lock != "" {
			stmt := query.Statement{SQL: lock, Args: []any{q.lockKey(conds)}}
			if _, err := q.store.exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to lock %s: %w", q.entity.Name, err)
			}
		}

		found, err := q.Get(ctx, query.Where(conds))
		if err == nil {
			inst = found
			return nil
		}
		if !errors.Is(err, core.ErrDoesNotExist) {
			return err
		}

		inst = NewInstance(q.entity)
		if q.entity.Translatable() {
			if q.language == "" {
				return query.ErrLanguageRequired
			}
			inst.Translate(q.language)
		}
		if err := inst.SetAll(defaults); err != nil {
			return err
		}
		if err := inst.SetAll(conds); err != nil {
			return err
		}
		if err := q.store.Save(ctx, inst); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return inst, created, nil
}

// lockKey derives the advisory lock key of a get-or-create call.
func (q *Queryset) lockKey(conds map[string]any) int64 {
	var b strings.Builder
	b.WriteString(q.entity.Storage().SharedTable)
	b.WriteByte(0)
	b.WriteString(q.language)
	for _, k := range sortedKeys(conds) {
		v := conds[k]
		if id, ok := v.(query.Identifier); ok {
			v = id.PrimaryKey()
		}
		fmt.Fprintf(&b, "\x00%s=%v", k, v)
	}
	return int64(xxh3.HashString(b.String()))
}

func (s *Store) isConflict(err error) bool {
	var cv *core.ConstraintViolation
	return errors.As(err, &cv) || s.adapter.IsUniqueViolation(err)
}
