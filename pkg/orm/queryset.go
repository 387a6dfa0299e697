package orm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/lang"
	"github.com/leapstack-labs/polyglot/pkg/query"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// Queryset is a lazily evaluated query over one entity. Every method that
// refines it returns a new Queryset; nothing runs until a terminal method
// such as All, Iter, Count or Values is called. Each evaluation re-executes
// the query unless Cached was requested.
type Queryset struct {
	store     *Store
	entity    *schema.Entity
	language  string
	fallbacks []string
	fallback  bool
	mode      query.Mode
	where     query.Expr
	order     []query.Order
	limit     int
	offset    int
	related   []string
	cache     *resultCache
	// err is a construction error reported by the first evaluation.
	err error
}

type resultCache struct {
	mu   sync.Mutex
	done bool
	rows []*Instance
}

// Query returns a queryset over e in the language context of ctx. Only rows
// translated in the current language are returned until Untranslated or
// Fallbacks is applied.
func (s *Store) Query(ctx context.Context, e *schema.Entity) *Queryset {
	lc := s.Language(ctx)
	return &Queryset{
		store:     s,
		entity:    e,
		language:  lc.Current,
		fallbacks: slices.Clone(lc.Fallbacks),
		mode:      query.Translated,
	}
}

func (q *Queryset) clone() *Queryset {
	c := *q
	c.order = slices.Clone(q.order)
	c.related = slices.Clone(q.related)
	c.fallbacks = slices.Clone(q.fallbacks)
	c.cache = nil
	return &c
}

// Entity returns the queried entity.
func (q *Queryset) Entity() *schema.Entity { return q.entity }

// Language returns a queryset evaluated in code instead of the context
// language. An invalid code fails the evaluation.
func (q *Queryset) Language(code string) *Queryset {
	c := q.clone()
	norm, err := lang.Normalize(code)
	if err != nil {
		c.err = err
		return c
	}
	c.language = norm
	return c
}

// CurrentLanguage is the language translated fields are matched in.
func (q *Queryset) CurrentLanguage() string { return q.language }

// Fallbacks returns every shared row with its translation resolved per row
// along [current, codes...]. Without codes the fallback chain of the
// language context is used. Rows translated in none of those languages keep
// a shared-only view.
func (q *Queryset) Fallbacks(codes ...string) *Queryset {
	c := q.clone()
	c.fallback = true
	c.mode = query.Untranslated
	if len(codes) > 0 {
		c.fallbacks = make([]string, 0, len(codes))
		for _, code := range codes {
			norm, err := lang.Normalize(code)
			if err != nil {
				c.err = err
				return c
			}
			c.fallbacks = append(c.fallbacks, norm)
		}
	}
	return c
}

// Untranslated returns every shared row regardless of its translations.
// Instances come without an active translation.
func (q *Queryset) Untranslated() *Queryset {
	c := q.clone()
	c.fallback = false
	c.mode = query.Untranslated
	return c
}

// Filter keeps rows matching every expression.
func (q *Queryset) Filter(exprs ...query.Expr) *Queryset {
	c := q.clone()
	c.where = query.And(append([]query.Expr{q.where}, exprs...)...)
	return c
}

// Exclude drops rows matching all of exprs.
func (q *Queryset) Exclude(exprs ...query.Expr) *Queryset {
	c := q.clone()
	c.where = query.And(q.where, query.Not(query.And(exprs...)))
	return c
}

// OrderBy replaces the ordering. Each term is a path, prefixed with "-"
// for descending order.
func (q *Queryset) OrderBy(terms ...string) *Queryset {
	c := q.clone()
	c.order = c.order[:0]
	for _, t := range terms {
		c.order = append(c.order, query.ParseOrder(t))
	}
	return c
}

// Limit bounds the number of rows.
func (q *Queryset) Limit(n int) *Queryset {
	c := q.clone()
	c.limit = n
	return c
}

// Offset skips the first n rows.
func (q *Queryset) Offset(n int) *Queryset {
	c := q.clone()
	c.offset = n
	return c
}

// Related loads the targets of the given foreign key paths along with each
// row, translated in the current language.
func (q *Queryset) Related(paths ...string) *Queryset {
	c := q.clone()
	c.related = append(c.related, paths...)
	return c
}

// Cached returns a queryset that runs at most once and replays its rows on
// later evaluations.
func (q *Queryset) Cached() *Queryset {
	c := q.clone()
	c.cache = &resultCache{}
	return c
}

func (q *Queryset) build() (query.Query, error) {
	if q.err != nil {
		return query.Query{}, fmt.Errorf("invalid %s queryset: %w", q.entity.Name, q.err)
	}
	return query.Query{
		Entity:   q.entity,
		Language: q.language,
		Mode:     q.mode,
		Where:    q.where,
		Order:    q.order,
		Limit:    q.limit,
		Offset:   q.offset,
	}, nil
}

func (q *Queryset) chain() []string {
	return lang.ChainFor(q.language, q.fallbacks)
}

// All evaluates the queryset.
func (q *Queryset) All(ctx context.Context) ([]*Instance, error) {
	if q.cache == nil {
		return q.fetch(ctx)
	}
	q.cache.mu.Lock()
	defer q.cache.mu.Unlock()
	if !q.cache.done {
		rows, err := q.fetch(ctx)
		if err != nil {
			return nil, err
		}
		q.cache.rows, q.cache.done = rows, true
	}
	return slices.Clone(q.cache.rows), nil
}

// Iter returns a restartable sequence of instances. Every iteration
// evaluates the queryset again; an error is yielded once and ends it.
func (q *Queryset) Iter(ctx context.Context) iter.Seq2[*Instance, error] {
	return func(yield func(*Instance, error) bool) {
		rows, err := q.All(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, inst := range rows {
			if !yield(inst, nil) {
				return
			}
		}
	}
}

func (q *Queryset) fetch(ctx context.Context) ([]*Instance, error) {
	built, err := q.build()
	if err != nil {
		return nil, err
	}
	stmt, layout, err := built.Select(q.store.dialect, q.related...)
	if err != nil {
		return nil, err
	}
	rows, err := q.store.query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.entity.Name, err)
	}
	defer rows.Close()

	var out []*Instance
	for rows.Next() {
		vals := make([]any, layout.Columns())
		if err := rows.Scan(pointers(vals)...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", q.entity.Name, err)
		}
		inst, err := q.materialize(layout, vals)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", q.entity.Name, err)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	if q.fallback && q.entity.Translatable() {
		if err := q.resolveFallbacks(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// materialize builds the root instance of a row and attaches the related
// instances loaded with it.
func (q *Queryset) materialize(layout query.Layout, vals []any) (*Instance, error) {
	var root *Instance
	byPath := map[string]*Instance{}
	for _, node := range layout {
		e := node.Entity
		if node.Path == "" {
			e = q.entity
		}
		inst, err := q.node(e, node, vals[node.Offset:node.Offset+node.Width()])
		if err != nil {
			return nil, err
		}
		if node.Path == "" {
			root = inst
			byPath[""] = inst
			continue
		}
		parentPath, seg := splitLast(node.Path)
		parent := byPath[parentPath]
		if parent == nil || inst == nil {
			continue
		}
		parent.related[seg] = inst
		byPath[node.Path] = inst
	}
	return root, nil
}

// node decodes the columns of one layout node. It returns nil for a related
// node whose row is absent.
func (q *Queryset) node(e *schema.Entity, node query.NodeLayout, vals []any) (*Instance, error) {
	if vals[0] == nil {
		if node.Path == "" {
			return nil, fmt.Errorf("row of %s has no id", e.Name)
		}
		return nil, nil
	}
	inst := NewInstance(e)
	id, err := toInt64(vals[0])
	if err != nil {
		return nil, err
	}
	inst.id = id
	pos := 1
	for _, f := range e.SharedFields() {
		if inst.shared[f.Name], err = convertField(f, vals[pos]); err != nil {
			return nil, fmt.Errorf("failed to read %s.%s: %w", e.Name, f.Name, err)
		}
		pos++
	}
	if !node.Translated {
		return inst, nil
	}
	code := vals[pos]
	pos++
	if code == nil {
		inst.known[q.language] = nil
		return inst, nil
	}
	t := &Translation{Language: fmt.Sprint(convertRaw(code)), Values: make(map[string]any)}
	for _, f := range e.TranslatedFields() {
		if t.Values[f.Name], err = convertField(f, vals[pos]); err != nil {
			return nil, fmt.Errorf("failed to read %s.%s: %w", e.Name, f.Name, err)
		}
		pos++
	}
	inst.activate(t)
	return inst, nil
}

// resolveFallbacks fetches the chain translations of all rows at once and
// activates, per row, the first language of the chain that has one.
func (q *Queryset) resolveFallbacks(ctx context.Context, rows []*Instance) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]int64, len(rows))
	for i, inst := range rows {
		ids[i] = inst.id
	}
	chain := q.chain()
	found, err := q.store.fetchTranslations(ctx, q.entity, ids, chain)
	if err != nil {
		return err
	}
	for _, inst := range rows {
		for _, code := range chain {
			inst.known[code] = found[inst.id][code]
		}
		if t, ok := inst.pick(chain); ok {
			inst.active = t
		}
	}
	return nil
}

func splitLast(path string) (string, string) {
	i := strings.LastIndex(path, query.Separator)
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+len(query.Separator):]
}

// Get returns the single row matching the queryset and exprs. It fails with
// core.ErrDoesNotExist or core.ErrMultipleResults. A limit or offset of q
// applies to the rows matching exprs.
func (q *Queryset) Get(ctx context.Context, exprs ...query.Expr) (*Instance, error) {
	c := q.Filter(exprs...)
	if c.limit == 0 || c.limit > 2 {
		c.limit = 2
	}
	rows, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, fmt.Errorf("%s matching query: %w", q.entity.Name, core.ErrDoesNotExist)
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("get of %s returned more than one row: %w", q.entity.Name, core.ErrMultipleResults)
	}
}

// First returns the first row in order, or core.ErrDoesNotExist.
func (q *Queryset) First(ctx context.Context) (*Instance, error) {
	c := q.clone()
	c.limit = 1
	rows, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s matching query: %w", q.entity.Name, core.ErrDoesNotExist)
	}
	return rows[0], nil
}

// ErrNoLatestField is returned by Latest and Earliest when neither an
// argument nor the entity names a field.
var ErrNoLatestField = errors.New("latest and earliest need a field or a LatestBy default")

// Latest returns the row with the greatest value of field, defaulting to
// the LatestBy field of the entity.
func (q *Queryset) Latest(ctx context.Context, field ...string) (*Instance, error) {
	return q.extreme(ctx, true, field)
}

// Earliest returns the row with the smallest value of field.
func (q *Queryset) Earliest(ctx context.Context, field ...string) (*Instance, error) {
	return q.extreme(ctx, false, field)
}

func (q *Queryset) extreme(ctx context.Context, latest bool, field []string) (*Instance, error) {
	name := q.entity.LatestBy
	if len(field) > 0 {
		name = field[0]
	}
	if name == "" {
		return nil, ErrNoLatestField
	}
	if latest {
		name = "-" + name
	}
	return q.OrderBy(name).First(ctx)
}

// Count returns the number of matching rows.
func (q *Queryset) Count(ctx context.Context) (int64, error) {
	if q.cache != nil {
		q.cache.mu.Lock()
		done, n := q.cache.done, len(q.cache.rows)
		q.cache.mu.Unlock()
		if done {
			return int64(n), nil
		}
	}
	built, err := q.build()
	if err != nil {
		return 0, err
	}
	stmt, err := built.Count(q.store.dialect)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := q.store.queryRow(ctx, stmt).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.entity.Name, err)
	}
	return n, nil
}

// Exists reports whether any row matches.
func (q *Queryset) Exists(ctx context.Context) (bool, error) {
	built, err := q.build()
	if err != nil {
		return false, err
	}
	stmt, err := built.Exists(q.store.dialect)
	if err != nil {
		return false, err
	}
	rows, err := q.store.query(ctx, stmt)
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", q.entity.Name, err)
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}

// IDs returns the primary keys of the matching rows in order.
func (q *Queryset) IDs(ctx context.Context) ([]int64, error) {
	built, err := q.build()
	if err != nil {
		return nil, err
	}
	stmt, err := built.IDs(q.store.dialect)
	if err != nil {
		return nil, err
	}
	rows, err := q.store.query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.entity.Name, err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InBulk returns the matching rows among ids, keyed by id.
func (q *Queryset) InBulk(ctx context.Context, ids ...int64) (map[int64]*Instance, error) {
	out := make(map[int64]*Instance, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	for _, batch := range chunks(ids, batchSize) {
		c := q.Filter(query.Q("id__in", batch))
		c.limit, c.offset = 0, 0
		rows, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		for _, inst := range rows {
			out[inst.id] = inst
		}
	}
	return out, nil
}

// Aggregate evaluates aggregates over the matching rows, keyed by name.
func (q *Queryset) Aggregate(ctx context.Context, aggs ...query.Aggregate) (map[string]any, error) {
	built, err := q.build()
	if err != nil {
		return nil, err
	}
	stmt, err := built.Aggregate(q.store.dialect, aggs...)
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(aggs))
	if err := q.store.queryRow(ctx, stmt).Scan(pointers(vals)...); err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", q.entity.Name, err)
	}
	out := make(map[string]any, len(aggs))
	for i, a := range aggs {
		v := convertRaw(vals[i])
		if a.Func == query.AggCount {
			if n, err := toInt64(v); err == nil {
				v = n
			}
		}
		out[a.Name()] = v
	}
	return out, nil
}

// Update assigns values to every matching row: shared fields on the shared
// rows, translated fields on their translations in the current language.
// It returns the number of matched rows.
func (q *Queryset) Update(ctx context.Context, values map[string]any) (int64, error) {
	shared, translated, err := q.partition(values)
	if err != nil {
		return 0, err
	}
	var n int64
	err = q.store.InTx(ctx, func(ctx context.Context) error {
		ids, err := q.IDs(ctx)
		if err != nil {
			return err
		}
		n = int64(len(ids))
		for _, batch := range chunks(ids, batchSize) {
			stmt, err := query.UpdateShared(q.entity, q.store.dialect, shared, batch...)
			if err != nil {
				return err
			}
			if stmt.SQL != "" {
				if _, err := q.store.exec(ctx, stmt); err != nil {
					return fmt.Errorf("failed to update %s: %w", q.entity.Name, err)
				}
			}
			stmt, err = query.UpdateTranslations(q.entity, q.store.dialect, q.language, translated, batch...)
			if err != nil {
				return err
			}
			if stmt.SQL != "" {
				if _, err := q.store.exec(ctx, stmt); err != nil {
					return fmt.Errorf("failed to update %s translations: %w", q.entity.Name, err)
				}
			}
		}
		return nil
	})
	return n, err
}

// partition splits values by storage and converts them to field types.
func (q *Queryset) partition(values map[string]any) (shared, translated map[string]any, err error) {
	shared, translated = map[string]any{}, map[string]any{}
	for _, name := range sortedKeys(values) {
		f, ok := q.entity.Field(name)
		if !ok {
			return nil, nil, core.Definitionf(q.entity.Name, name, "no such field")
		}
		v, err := convertField(f, values[name])
		if err != nil {
			return nil, nil, fmt.Errorf("failed to update %s.%s: %w", q.entity.Name, name, err)
		}
		if f.IsTranslated() {
			translated[name] = v
		} else {
			shared[name] = v
		}
	}
	return shared, translated, nil
}

// Delete removes the matching rows and all their translations. It returns
// the number of shared rows removed.
func (q *Queryset) Delete(ctx context.Context) (int64, error) {
	var n int64
	err := q.store.InTx(ctx, func(ctx context.Context) error {
		ids, err := q.IDs(ctx)
		if err != nil || len(ids) == 0 {
			return err
		}
		n, err = q.store.deleteIDs(ctx, q.entity, ids)
		return err
	})
	return n, err
}

// DeleteTranslations removes the current-language translations of the
// matching rows, keeping their shared rows.
func (q *Queryset) DeleteTranslations(ctx context.Context) (int64, error) {
	if !q.entity.Translatable() {
		return 0, core.Definitionf(q.entity.Name, "", "entity has no translations")
	}
	var n int64
	err := q.store.InTx(ctx, func(ctx context.Context) error {
		ids, err := q.IDs(ctx)
		if err != nil {
			return err
		}
		for _, batch := range chunks(ids, batchSize) {
			res, err := q.store.exec(ctx, query.DeleteTranslations(q.entity, q.store.dialect, batch, q.language))
			if err != nil {
				return fmt.Errorf("failed to delete %s translations: %w", q.entity.Name, err)
			}
			if affected, err := res.RowsAffected(); err == nil {
				n += affected
			}
		}
		return nil
	})
	return n, err
}
