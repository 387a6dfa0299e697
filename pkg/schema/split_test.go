package schema_test

import (
	"testing"

	"github.com/leapstack-labs/polyglot/internal/testutil"
	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitNormal(t *testing.T) {
	r := testutil.NewRegistry(t)
	shared, translation, err := schema.Split(testutil.MustEntity(t, r, "Normal"))
	require.NoError(t, err)

	assert.Equal(t, "normal", shared.Name)
	assert.Equal(t, []string{"id", "shared_field"}, shared.ColumnNames())
	assert.Empty(t, shared.Unique)

	require.NotNil(t, translation)
	assert.Equal(t, "normal_translation", translation.Name)
	assert.Equal(t, []string{"id", "translated_field", "language_code", "master_id"}, translation.ColumnNames())
	assert.Equal(t, [][]string{{"language_code", "master_id"}}, translation.Unique)
	assert.Equal(t, []schema.ForeignKeyRef{{
		Column: "master_id", RefTable: "normal", RefColumn: "id", OnDelete: schema.OnDeleteCascade,
	}}, translation.ForeignKeys)

	lang, ok := translation.Column("language_code")
	require.True(t, ok)
	assert.Equal(t, schema.LanguageCodeLength, lang.MaxLength)
	assert.False(t, lang.Null)
}

func TestSplitRelations(t *testing.T) {
	r := testutil.NewRegistry(t)
	shared, translation, err := schema.Split(testutil.MustEntity(t, r, "Related"))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "normal_id"}, shared.ColumnNames())
	require.Len(t, shared.ForeignKeys, 1)
	assert.Equal(t, schema.OnDeleteSetNull, shared.ForeignKeys[0].OnDelete)

	// Translated relations are language scoped: they live in the translation table.
	assert.Equal(t, []string{"id", "translated_id", "translated_to_translated_id", "language_code", "master_id"}, translation.ColumnNames())
	assert.Len(t, translation.ForeignKeys, 3)
}

func TestSplitPlainAndProxy(t *testing.T) {
	r := testutil.NewRegistry(t)

	shared, translation, err := schema.Split(testutil.MustEntity(t, r, "Standard"))
	require.NoError(t, err)
	assert.Nil(t, translation)
	assert.Equal(t, []string{"id", "normal_field", "normal_id"}, shared.ColumnNames())

	proxyShared, proxyTranslation, err := schema.Split(testutil.MustEntity(t, r, "NormalProxyProxy"))
	require.NoError(t, err)
	assert.Equal(t, "normal", proxyShared.Name)
	assert.Equal(t, "normal_translation", proxyTranslation.Name)

	_, _, err = schema.Split(testutil.MustEntity(t, r, "AbstractA"))
	assert.True(t, core.IsDefinitionError(err))
}

func TestSplitZeroTranslatedFields(t *testing.T) {
	r := schema.NewRegistry()
	e, err := r.Define(schema.Definition{Name: "Bare", Shared: []schema.Field{schema.Int("n")}})
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	_, translation, err := schema.Split(e)
	require.NoError(t, err)
	require.NotNil(t, translation)
	assert.Equal(t, []string{"id", "language_code", "master_id"}, translation.ColumnNames())
	assert.Equal(t, [][]string{{"language_code", "master_id"}}, translation.Unique)
}

func TestSplitUnresolvedTarget(t *testing.T) {
	r := schema.NewRegistry()
	e, err := r.Define(schema.Definition{Name: "A", Shared: []schema.Field{schema.ForeignKey("b", "B")}})
	require.NoError(t, err)

	_, _, err = schema.Split(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not resolved")
}
