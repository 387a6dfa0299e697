package orm_test

import (
	"context"
	"testing"

	"github.com/leapstack-labs/polyglot/internal/testutil"
	"github.com/leapstack-labs/polyglot/pkg/adapter"
	"github.com/leapstack-labs/polyglot/pkg/lang"
	"github.com/leapstack-labs/polyglot/pkg/orm"
	"github.com/leapstack-labs/polyglot/pkg/schema"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	adapter  adapter.Adapter
	store    *orm.Store
	registry *schema.Registry
	ctx      context.Context
}

// newFixture opens a SQLite database with every fixture table and an
// English language context.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	a := testutil.OpenSQLite(t)
	r := testutil.NewRegistry(t)
	s, err := orm.New(a, r, orm.WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)

	ctx := lang.WithContext(context.Background(), lang.MustNew("en"))
	require.NoError(t, s.CreateTables(ctx))
	return &fixture{adapter: a, store: s, registry: r, ctx: ctx}
}

func (f *fixture) entity(t *testing.T, name string) *schema.Entity {
	t.Helper()
	return testutil.MustEntity(t, f.registry, name)
}

// in returns a context in another language.
func (f *fixture) in(code string, fallbacks ...string) context.Context {
	return lang.WithContext(f.ctx, lang.MustNew(code, fallbacks...))
}

func (f *fixture) create(t *testing.T, entity string, values map[string]any) *orm.Instance {
	t.Helper()
	inst, err := f.store.Create(f.ctx, f.entity(t, entity), values)
	require.NoError(t, err)
	return inst
}

// translate adds a translation in code to inst.
func (f *fixture) translate(t *testing.T, inst *orm.Instance, code string, values map[string]any) {
	t.Helper()
	inst.Translate(code)
	require.NoError(t, inst.SetAll(values))
	require.NoError(t, f.store.Save(f.ctx, inst))
}

func (f *fixture) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	stmt := "SELECT COUNT(*) FROM " + f.store.Dialect().QuoteIdentifier(table)
	require.NoError(t, f.adapter.DB().QueryRowContext(f.ctx, stmt).Scan(&n))
	return n
}

func TestNew(t *testing.T) {
	_, err := orm.New(nil, testutil.NewRegistry(t))
	require.ErrorIs(t, err, orm.ErrNoAdapter)

	f := newFixture(t)
	_, err = f.store.Entity("Missing")
	require.Error(t, err)

	e, err := f.store.Entity("Normal")
	require.NoError(t, err)
	require.Equal(t, "normal", e.SharedTable)
	require.Equal(t, "en", f.store.Language(f.ctx).Current)
	require.Equal(t, "", f.store.Language(context.Background()).Current)
}

func TestCheckTables(t *testing.T) {
	f := newFixture(t)
	f.create(t, "Normal", map[string]any{"shared_field": "s", "translated_field": "t"})

	checks, err := f.store.CheckTables(f.ctx)
	require.NoError(t, err)
	byTable := map[string]orm.TableCheck{}
	for _, c := range checks {
		byTable[c.Table] = c
	}
	require.Contains(t, byTable, "normal")
	require.Contains(t, byTable, "normal_translation")
	require.NotContains(t, byTable, "abstract_a", "abstract entities have no tables")
	require.EqualValues(t, 1, byTable["normal_translation"].Rows)
	require.Empty(t, byTable["normal_translation"].Missing)
	require.Equal(t, "Normal", byTable["normal"].Entity)
}

func TestCheckTables_ReportsOlderTables(t *testing.T) {
	a := testutil.OpenSQLite(t)
	ctx := context.Background()
	require.NoError(t, a.Exec(ctx, `CREATE TABLE plain_thing (id INTEGER PRIMARY KEY)`))

	r := schema.NewRegistry()
	r.MustDefine(schema.Definition{
		Name:   "PlainThing",
		Plain:  true,
		Shared: []schema.Field{schema.Char("name", 50), schema.Int("size").Nullable()},
	})
	s, err := orm.New(a, r)
	require.NoError(t, err)
	require.NoError(t, s.CreateTables(ctx))

	checks, err := s.CheckTables(ctx)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	require.Equal(t, []string{"name", "size"}, checks[0].Missing)
}
