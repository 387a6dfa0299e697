package orm_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/orm"
	"github.com/leapstack-labs/polyglot/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(rows []*orm.Instance) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.ID()
	}
	return out
}

func TestFilter_MatchesCurrentLanguageOnly(t *testing.T) {
	f := newFixture(t)
	normal := f.entity(t, "Normal")

	hello := f.create(t, "Normal", map[string]any{"shared_field": "a", "translated_field": "Hello"})
	f.translate(t, hello, "fr", map[string]any{"translated_field": "Salut"})
	other := f.create(t, "Normal", map[string]any{"shared_field": "b", "translated_field": "Goodbye"})
	f.translate(t, other, "fr", map[string]any{"translated_field": "Hello en français"})
	f.create(t, "Normal", map[string]any{"shared_field": "c", "translated_field": "help"})

	rows, err := f.store.Query(f.ctx, normal).Filter(query.Q("translated_field__startswith", "Hel")).All(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{hello.ID()}, ids(rows))
	assert.Equal(t, "Hello", rows[0].SafeGet("translated_field", nil))

	rows, err = f.store.Query(f.ctx, normal).Filter(query.Q("translated_field__istartswith", "hel")).All(f.ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	fr := f.in("fr")
	rows, err = f.store.Query(fr, normal).Filter(query.Q("translated_field__startswith", "Hel")).All(fr)
	require.NoError(t, err)
	assert.Equal(t, []int64{other.ID()}, ids(rows))
	assert.Equal(t, "fr", rows[0].Language())

	rows, err = f.store.Query(f.ctx, normal).Language("fr").All(f.ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "only rows translated in the query language")

	rows, err = f.store.Query(f.ctx, normal).Language("fr").Untranslated().All(f.ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, "", rows[0].Language())
}

func TestFilter_RelatedAndReverse(t *testing.T) {
	f := newFixture(t)
	related := f.entity(t, "Related")
	normal := f.entity(t, "Normal")

	n1 := f.create(t, "Normal", map[string]any{"shared_field": "one", "translated_field": "Hello"})
	n2 := f.create(t, "Normal", map[string]any{"shared_field": "two", "translated_field": "World"})
	r1 := f.create(t, "Related", map[string]any{"normal": n1, "translated": n2})
	r2 := f.create(t, "Related", map[string]any{"normal": n2, "translated": n2})
	f.create(t, "Related", map[string]any{"normal": n2})

	rows, err := f.store.Query(f.ctx, related).Filter(query.Q("normal__translated_field", "Hello")).All(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{r1.ID()}, ids(rows))

	rows, err = f.store.Query(f.ctx, related).Filter(query.Q("translated__shared_field", "two")).OrderBy("-id").All(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{r2.ID(), r1.ID()}, ids(rows))

	// three Related rows point at n2; the reverse filter still yields it once
	rows, err = f.store.Query(f.ctx, normal).Filter(query.Q("rel1__isnull", false)).All(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{n1.ID(), n2.ID()}, ids(rows))

	rows, err = f.store.Query(f.ctx, normal).Filter(query.Q("rel3__id", r1.ID())).All(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{n2.ID()}, ids(rows))

	rows, err = f.store.Query(f.ctx, related).Related("normal", "translated").OrderBy("id").All(f.ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	loaded, ok := rows[0].Related("normal")
	require.True(t, ok)
	assert.Equal(t, "Hello", loaded.SafeGet("translated_field", nil))
	_, ok = rows[2].Related("translated")
	assert.False(t, ok, "unset foreign key loads nothing")

	_, err = f.store.Query(f.ctx, related).Filter(query.Q("normal__missing", 1)).All(f.ctx)
	var de *core.DefinitionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "missing", de.Field)
}

func TestExclude_KeepsNulls(t *testing.T) {
	f := newFixture(t)
	related := f.entity(t, "Related")
	n := f.create(t, "Normal", map[string]any{"translated_field": "x"})
	with := f.create(t, "Related", map[string]any{"normal": n})
	without := f.create(t, "Related", nil)

	rows, err := f.store.Query(f.ctx, related).Exclude(query.Q("normal", n)).All(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{without.ID()}, ids(rows))

	rows, err = f.store.Query(f.ctx, related).Exclude(query.Q("normal__isnull", true)).All(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{with.ID()}, ids(rows))
}

func TestQueryset_Cardinality(t *testing.T) {
	f := newFixture(t)
	normal := f.entity(t, "Normal")
	qs := f.store.Query(f.ctx, normal)

	_, err := qs.Get(f.ctx)
	assert.ErrorIs(t, err, core.ErrDoesNotExist)
	_, err = qs.First(f.ctx)
	assert.ErrorIs(t, err, core.ErrDoesNotExist)

	a := f.create(t, "Normal", map[string]any{"shared_field": "a", "translated_field": "x"})
	b := f.create(t, "Normal", map[string]any{"shared_field": "b", "translated_field": "x"})

	_, err = qs.Get(f.ctx, query.Q("translated_field", "x"))
	assert.ErrorIs(t, err, core.ErrMultipleResults)

	got, err := qs.Get(f.ctx, query.Q("shared_field", "b"))
	require.NoError(t, err)
	assert.Equal(t, b.ID(), got.ID())

	first, err := qs.OrderBy("-shared_field").First(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID(), first.ID())

	n, err := qs.Count(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = qs.Offset(1).Count(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := qs.Filter(query.Q("shared_field", "a")).Exists(f.ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = qs.Filter(query.Q("shared_field", "z")).Exists(f.ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	rows, err := qs.Limit(1).Offset(1).All(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{b.ID()}, ids(rows))

	bulk, err := qs.InBulk(f.ctx, a.ID(), 999)
	require.NoError(t, err)
	assert.Len(t, bulk, 1)
	assert.Contains(t, bulk, a.ID())
}

func TestQueryset_GetHonoursSlice(t *testing.T) {
	f := newFixture(t)
	qs := f.store.Query(f.ctx, f.entity(t, "Normal")).OrderBy("shared_field")
	a := f.create(t, "Normal", map[string]any{"shared_field": "a", "translated_field": "x"})
	b := f.create(t, "Normal", map[string]any{"shared_field": "b", "translated_field": "x"})
	f.create(t, "Normal", map[string]any{"shared_field": "c", "translated_field": "x"})

	got, err := qs.Limit(1).Get(f.ctx, query.Q("translated_field", "x"))
	require.NoError(t, err)
	assert.Equal(t, a.ID(), got.ID())

	got, err = qs.Offset(1).Limit(1).Get(f.ctx, query.Q("translated_field", "x"))
	require.NoError(t, err)
	assert.Equal(t, b.ID(), got.ID())

	_, err = qs.Offset(1).Get(f.ctx, query.Q("translated_field", "x"))
	assert.ErrorIs(t, err, core.ErrMultipleResults)

	_, err = qs.Offset(3).Get(f.ctx)
	assert.ErrorIs(t, err, core.ErrDoesNotExist)
}

func TestQueryset_LanguageIsNormalized(t *testing.T) {
	f := newFixture(t)
	normal := f.entity(t, "Normal")
	inst := f.create(t, "Normal", map[string]any{"shared_field": "a", "translated_field": "Hello"})
	f.translate(t, inst, "fr", map[string]any{"translated_field": "Salut"})

	qs := f.store.Query(f.ctx, normal).Language("FR")
	assert.Equal(t, "fr", qs.CurrentLanguage())
	got, err := qs.Get(f.ctx, query.Q("id", inst.ID()))
	require.NoError(t, err)
	assert.Equal(t, "Salut", got.SafeGet("translated_field", nil))

	bad := f.store.Query(f.ctx, normal).Language("not a language!")
	_, err = bad.All(f.ctx)
	assert.ErrorContains(t, err, "invalid language code")
	_, err = bad.Count(f.ctx)
	assert.Error(t, err)
	_, err = bad.Values(f.ctx, "shared_field")
	assert.Error(t, err)
	_, _, err = bad.GetOrCreate(f.ctx, map[string]any{"shared_field": "b"}, nil)
	assert.Error(t, err)

	_, err = f.store.Query(f.ctx, normal).Fallbacks("EN", "").All(f.ctx)
	assert.ErrorContains(t, err, "empty language code")
}

func TestQueryset_IterationIsRestartable(t *testing.T) {
	f := newFixture(t)
	normal := f.entity(t, "Normal")
	f.create(t, "Normal", map[string]any{"translated_field": "one"})

	qs := f.store.Query(f.ctx, normal)
	cached := qs.Cached()

	count := func(q *orm.Queryset) int {
		n := 0
		for inst, err := range q.Iter(f.ctx) {
			require.NoError(t, err)
			require.NotNil(t, inst)
			n++
		}
		return n
	}
	assert.Equal(t, 1, count(qs))
	assert.Equal(t, 1, count(cached))

	f.create(t, "Normal", map[string]any{"translated_field": "two"})
	assert.Equal(t, 2, count(qs), "plain querysets re-execute")
	assert.Equal(t, 1, count(cached), "cached querysets replay")

	n, err := cached.Count(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestQueryset_Values(t *testing.T) {
	f := newFixture(t)
	simple := f.entity(t, "SimpleRelated")
	n := f.create(t, "Normal", map[string]any{"shared_field": "s", "translated_field": "Hello"})
	s := f.create(t, "SimpleRelated", map[string]any{"normal": n, "translated_field": "child"})

	values, err := f.store.Query(f.ctx, simple).Values(f.ctx, "translated_field", "normal__translated_field", "normal__shared_field")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{
		"translated_field":         "child",
		"normal__translated_field": "Hello",
		"normal__shared_field":     "s",
	}}, values)

	values, err = f.store.Query(f.ctx, simple).Values(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": s.ID(), "normal": n.ID(), "translated_field": "child"}}, values)

	list, err := f.store.Query(f.ctx, simple).ValuesList(f.ctx, "id", "language_code")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{s.ID(), "en"}}, list)

	type row struct {
		Name   string `mapstructure:"translated_field"`
		Parent string `mapstructure:"normal__translated_field"`
	}
	values, err = f.store.Query(f.ctx, simple).Values(f.ctx, "translated_field", "normal__translated_field")
	require.NoError(t, err)
	var decoded []row
	require.NoError(t, orm.DecodeValues(values, &decoded))
	assert.Equal(t, []row{{Name: "child", Parent: "Hello"}}, decoded)

	_, err = f.store.Query(f.ctx, f.entity(t, "Normal")).Values(f.ctx, "simplerel__translated_field")
	assert.True(t, core.IsDefinitionError(err))
}

func TestQueryset_Aggregate(t *testing.T) {
	f := newFixture(t)
	agg := f.entity(t, "AggregateModel")
	f.create(t, "AggregateModel", map[string]any{"number": 10, "translated_number": 1})
	f.create(t, "AggregateModel", map[string]any{"number": 20, "translated_number": 2})
	other, err := f.store.Create(f.in("fr"), agg, map[string]any{"number": 30, "translated_number": 100})
	require.NoError(t, err)

	got, err := f.store.Query(f.ctx, agg).Aggregate(f.ctx,
		query.Sum("translated_number"), query.Max("number"), query.Count("id").As("n"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, got["translated_number__sum"])
	assert.EqualValues(t, 20, got["number__max"])
	assert.Equal(t, int64(2), got["n"])

	got, err = f.store.Query(f.ctx, agg).Untranslated().Aggregate(f.ctx, query.Avg("number"))
	require.NoError(t, err)
	assert.InDelta(t, 20.0, got["number__avg"], 0.001)
	assert.NotZero(t, other.ID())
}

func TestQueryset_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	normal := f.entity(t, "Normal")
	a := f.create(t, "Normal", map[string]any{"shared_field": "a", "translated_field": "x"})
	f.translate(t, a, "fr", map[string]any{"translated_field": "fr-x"})
	f.create(t, "Normal", map[string]any{"shared_field": "b", "translated_field": "y"})

	n, err := f.store.Query(f.ctx, normal).Filter(query.Q("shared_field", "a")).
		Update(f.ctx, map[string]any{"shared_field": "A", "translated_field": "X"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.store.Query(f.ctx, normal).Get(f.ctx, query.Q("shared_field", "A"))
	require.NoError(t, err)
	assert.Equal(t, "X", got.SafeGet("translated_field", nil))

	fr := f.in("fr")
	got, err = f.store.Query(fr, normal).Get(fr, query.Q("id", a.ID()))
	require.NoError(t, err)
	assert.Equal(t, "fr-x", got.SafeGet("translated_field", nil), "other languages are untouched")

	_, err = f.store.Query(f.ctx, normal).Update(f.ctx, map[string]any{"nope": 1})
	assert.True(t, core.IsDefinitionError(err))

	n, err = f.store.Query(fr, normal).DeleteTranslations(fr)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2, f.countRows(t, "normal"))
	assert.Equal(t, 2, f.countRows(t, "normal_translation"))

	n, err = f.store.Query(f.ctx, normal).Filter(query.Q("shared_field", "b")).Delete(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, f.countRows(t, "normal"))
	assert.Equal(t, 1, f.countRows(t, "normal_translation"))
}

func TestQueryset_LatestEarliest(t *testing.T) {
	f := newFixture(t)
	date := f.entity(t, "Date")
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	old := f.create(t, "Date", map[string]any{"shared_date": base, "translated_date": base.Add(48 * time.Hour)})
	recent := f.create(t, "Date", map[string]any{"shared_date": base.Add(24 * time.Hour), "translated_date": base})

	got, err := f.store.Query(f.ctx, date).Latest(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, recent.ID(), got.ID())
	assert.True(t, base.Add(24*time.Hour).Equal(got.SafeGet("shared_date", time.Time{}).(time.Time)))

	got, err = f.store.Query(f.ctx, date).Earliest(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, old.ID(), got.ID())

	got, err = f.store.Query(f.ctx, date).Latest(f.ctx, "translated_date")
	require.NoError(t, err)
	assert.Equal(t, old.ID(), got.ID())

	_, err = f.store.Query(f.ctx, f.entity(t, "Normal")).Latest(f.ctx)
	assert.ErrorIs(t, err, orm.ErrNoLatestField)
}

func TestQueryset_AbstractInheritance(t *testing.T) {
	f := newFixture(t)
	n := f.create(t, "Normal", map[string]any{"shared_field": "target", "translated_field": "T"})
	ab := f.create(t, "ConcreteAB", map[string]any{
		"shared_field_a":      "sa",
		"shared_field_b":      n,
		"shared_field_ab":     "sab",
		"translated_field_a":  n,
		"translated_field_b":  "tb",
		"translated_field_ab": "tab",
	})
	assert.Equal(t, fmt.Sprintf("%d, tb, tab", n.ID()), ab.String())

	rows, err := f.store.Query(f.ctx, f.entity(t, "Normal")).Filter(query.Q("concreteab_set__translated_field_b", "tb")).All(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{n.ID()}, ids(rows))

	rows, err = f.store.Query(f.ctx, f.entity(t, "Normal")).Filter(query.Q("concreteabtranslation_set__translated_field_ab", "tab")).All(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{n.ID()}, ids(rows))

	proxied, err := f.store.Query(f.ctx, f.entity(t, "ConcreteABProxy")).Get(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("proxied %d, tb, tab", n.ID()), proxied.String())
}
