package orm_test

import (
	"testing"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTranslation_FallbackChain(t *testing.T) {
	f := newFixture(t)
	inst := f.create(t, "Normal", map[string]any{"shared_field": "Shared1", "translated_field": "Hello"})
	f.translate(t, inst, "fr", map[string]any{"translated_field": "Bonjour"})

	tests := []struct {
		name      string
		current   string
		fallbacks []string
		want      string
		used      string
	}{
		{"present", "en", nil, "Hello", "en"},
		{"first fallback", "de", []string{"fr", "en"}, "Bonjour", "fr"},
		{"order matters", "de", []string{"en", "fr"}, "Hello", "en"},
		{"skips missing fallbacks", "de", []string{"ja", "it", "fr"}, "Bonjour", "fr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loaded, err := f.store.Query(f.ctx, f.entity(t, "Normal")).Untranslated().Get(f.ctx)
			require.NoError(t, err)

			tr, used, err := f.store.ResolveTranslation(f.in(tt.current, tt.fallbacks...), loaded, "")
			require.NoError(t, err)
			assert.Equal(t, tt.used, used)
			assert.Equal(t, tt.want, tr.Values["translated_field"])
		})
	}

	t.Run("not found", func(t *testing.T) {
		_, _, err := f.store.ResolveTranslation(f.in("de", "it"), inst, "")
		assert.ErrorIs(t, err, core.ErrTranslationNotFound)
	})
}

func TestFallbackQueryset_ResolvesPerRow(t *testing.T) {
	f := newFixture(t)
	normal := f.entity(t, "Normal")

	greeting := f.create(t, "Normal", map[string]any{"shared_field": "Shared1", "translated_field": "Hello"})
	f.translate(t, greeting, "fr", map[string]any{"translated_field": "Bonjour"})
	english := f.create(t, "Normal", map[string]any{"shared_field": "Shared2", "translated_field": "English only"})
	japanese, err := f.store.Create(f.in("ja"), normal, map[string]any{"shared_field": "Shared3", "translated_field": "Konnichiwa"})
	require.NoError(t, err)

	ctx := f.in("de", "fr", "en")
	rows, err := f.store.Query(ctx, normal).Fallbacks().All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, greeting.ID(), rows[0].ID())
	assert.Equal(t, "Bonjour", rows[0].SafeGet("translated_field", nil))
	assert.Equal(t, "fr", rows[0].Language())

	assert.Equal(t, english.ID(), rows[1].ID())
	assert.Equal(t, "English only", rows[1].SafeGet("translated_field", nil))
	assert.Equal(t, "en", rows[1].Language())

	assert.Equal(t, japanese.ID(), rows[2].ID())
	assert.Equal(t, "", rows[2].Language(), "no translation along the chain keeps the shared view")
	assert.Equal(t, "Shared3", rows[2].SafeGet("shared_field", nil))
	_, err = rows[2].Get("translated_field")
	assert.ErrorIs(t, err, core.ErrTranslationNotFound)

	values, err := f.store.Query(ctx, normal).Fallbacks().ValuesList(ctx, "shared_field", "translated_field")
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{"Shared1", "Bonjour"},
		{"Shared2", "English only"},
		{"Shared3", nil},
	}, values)

	bulk, err := f.store.Query(ctx, normal).Fallbacks("ja").InBulk(ctx, japanese.ID(), greeting.ID())
	require.NoError(t, err)
	require.Len(t, bulk, 2)
	assert.Equal(t, "Konnichiwa", bulk[japanese.ID()].SafeGet("translated_field", nil))
	assert.Equal(t, "", bulk[greeting.ID()].Language(), "greeting has no ja translation")
}

func TestResolveTranslation_CacheInvalidatedOnWrite(t *testing.T) {
	f := newFixture(t)
	inst := f.create(t, "Normal", map[string]any{"shared_field": "s", "translated_field": "Hello"})

	ctx := f.in("fr", "en")
	_, used, err := f.store.ResolveTranslation(ctx, inst, "fr")
	require.NoError(t, err)
	assert.Equal(t, "en", used)

	f.translate(t, inst, "fr", map[string]any{"translated_field": "Bonjour"})
	tr, used, err := f.store.ResolveTranslation(ctx, inst, "fr")
	require.NoError(t, err)
	assert.Equal(t, "fr", used)
	assert.Equal(t, "Bonjour", tr.Values["translated_field"])

	require.NoError(t, f.store.DeleteTranslation(f.ctx, inst, "fr"))
	_, used, err = f.store.ResolveTranslation(ctx, inst, "fr")
	require.NoError(t, err)
	assert.Equal(t, "en", used)
	assert.Equal(t, "", inst.Language())

	require.NoError(t, f.store.UseLanguage(ctx, inst, "fr"))
	assert.Equal(t, "en", inst.Language())
	assert.Equal(t, "Hello", inst.SafeGet("translated_field", nil))

	err = f.store.DeleteTranslation(f.ctx, inst, "fr")
	assert.ErrorIs(t, err, core.ErrTranslationNotFound)
}

func TestAvailableLanguages(t *testing.T) {
	f := newFixture(t)
	inst := f.create(t, "Normal", map[string]any{"translated_field": "Hello"})
	f.translate(t, inst, "fr", map[string]any{"translated_field": "Bonjour"})
	f.translate(t, inst, "de", map[string]any{"translated_field": "Hallo"})

	langs, err := f.store.AvailableLanguages(f.ctx, inst)
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "en", "fr"}, langs)

	std := f.create(t, "Standard", map[string]any{"normal_field": "x", "normal": inst})
	langs, err = f.store.AvailableLanguages(f.ctx, std)
	require.NoError(t, err)
	assert.Empty(t, langs)

	_, err = f.store.AvailableLanguages(f.ctx, newUnsaved(t, f))
	assert.ErrorIs(t, err, core.ErrUnsaved)
}

func TestFollow(t *testing.T) {
	f := newFixture(t)
	normal := f.create(t, "Normal", map[string]any{"shared_field": "s", "translated_field": "Hello"})
	rel := f.create(t, "Related", map[string]any{"normal": normal.ID(), "translated": normal})

	loaded, err := f.store.Query(f.ctx, f.entity(t, "Related")).Get(f.ctx, query.Q("id", rel.ID()))
	require.NoError(t, err)

	target, err := f.store.Follow(f.in("fr", "en"), loaded, "normal")
	require.NoError(t, err)
	assert.Equal(t, normal.ID(), target.ID())
	assert.Equal(t, "Hello", target.SafeGet("translated_field", nil))

	_, err = f.store.Follow(f.ctx, loaded, "translated_to_translated")
	assert.ErrorIs(t, err, core.ErrDoesNotExist)

	_, err = f.store.Follow(f.ctx, loaded, "id")
	assert.True(t, core.IsDefinitionError(err))
}
