// Package main provides tests for the polyglot CLI.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/polyglot/internal/catalog"
	"github.com/leapstack-labs/polyglot/internal/cli"
	"github.com/leapstack-labs/polyglot/internal/cli/testutil"
	"github.com/leapstack-labs/polyglot/internal/state"
	"github.com/leapstack-labs/polyglot/pkg/adapter"
	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/lang"
	"github.com/leapstack-labs/polyglot/pkg/orm"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// seed inserts two articles, the first translated in English and French,
// the second in English only.
func seed(t *testing.T, dir string) {
	t.Helper()
	ctx := context.Background()

	cfg := core.AdapterConfig{Type: "sqlite", Path: filepath.Join(dir, "app.db")}
	a, err := adapter.NewAdapter(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Connect(ctx, cfg))
	t.Cleanup(func() { _ = a.Close() })

	f, err := catalog.Load(filepath.Join(dir, "entities.yaml"))
	require.NoError(t, err)
	r, err := f.Registry()
	require.NoError(t, err)
	s, err := orm.New(a, r, orm.WithLanguage(lang.MustNew("en")))
	require.NoError(t, err)

	e, err := s.Entity("Article")
	require.NoError(t, err)
	first, err := s.Create(ctx, e, map[string]any{"title": "Hello", "views": 3})
	require.NoError(t, err)
	first.Translate("fr")
	require.NoError(t, first.Set("title", "Bonjour"))
	require.NoError(t, s.Save(ctx, first))

	_, err = s.Create(ctx, e, map[string]any{"title": "World", "views": 7})
	require.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "polyglot v")
	assert.Contains(t, out, "duckdb, postgres, sqlite")
}

func TestSchemaCommands(t *testing.T) {
	t.Chdir(testutil.SetupTestProject(t))

	t.Run("show all as json", func(t *testing.T) {
		out, _, err := execute(t, "schema", "show", "--output", "json")
		require.NoError(t, err)

		var infos []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &infos))
		names := make([]string, 0, len(infos))
		for _, info := range infos {
			names = append(names, info["name"].(string))
		}
		assert.ElementsMatch(t, []string{"Author", "Publishable", "Article"}, names)
	})

	t.Run("show one entity", func(t *testing.T) {
		out, _, err := execute(t, "schema", "show", "Article", "--output", "markdown")
		require.NoError(t, err)
		testutil.AssertNoANSI(t, out)
		testutil.AssertValidMarkdown(t, out)
		assert.Contains(t, out, "## Article")
		assert.Contains(t, out, "article_translation")
		assert.Contains(t, out, "title")
	})

	t.Run("unknown entity", func(t *testing.T) {
		_, _, err := execute(t, "schema", "show", "Nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown entity")
	})

	t.Run("ddl", func(t *testing.T) {
		out, _, err := execute(t, "schema", "ddl")
		require.NoError(t, err)
		assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS")
		assert.Contains(t, out, "article_translation")
	})

	t.Run("ddl with prefix", func(t *testing.T) {
		out, _, err := execute(t, "schema", "ddl", "Author", "--prefix", "app_")
		require.NoError(t, err)
		assert.Contains(t, out, "app_author")
		assert.NotContains(t, out, "translation")
	})
}

func TestMigrateDryRun(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	out, _, err := execute(t, "migrate", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS")
	assert.NoFileExists(t, filepath.Join(dir, ".polyglot", "state.db"))
}

func TestMigrateRecordsRun(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	_, _, err := execute(t, "migrate")
	require.NoError(t, err)
	// Running twice is harmless.
	_, _, err = execute(t, "migrate")
	require.NoError(t, err)

	st := state.NewSQLiteStore(nil)
	require.NoError(t, st.Open(filepath.Join(dir, ".polyglot", "state.db")))
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	target := "sqlite:" + filepath.Join(dir, "app.db")
	run, err := st.LatestRun(ctx, target)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, state.RunStatusCompleted, run.Status)

	recs, err := st.Entities(ctx, target)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Article", recs[0].Name)
	assert.Equal(t, "article_translation", recs[0].TranslationTable)
	assert.Equal(t, "Author", recs[1].Name)
	assert.Empty(t, recs[1].TranslationTable)
}

func TestQueryCommand(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)

	_, _, err := execute(t, "migrate")
	require.NoError(t, err)
	seed(t, dir)

	decode := func(t *testing.T, out string) []map[string]any {
		t.Helper()
		var rows []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &rows))
		return rows
	}

	t.Run("current language", func(t *testing.T) {
		out, _, err := execute(t, "query", "Article", "--values", "id,title", "--format", "json")
		require.NoError(t, err)
		rows := decode(t, out)
		require.Len(t, rows, 2)
		assert.Equal(t, "Hello", rows[0]["title"])
		assert.Equal(t, "World", rows[1]["title"])
	})

	t.Run("other language", func(t *testing.T) {
		out, _, err := execute(t, "query", "Article", "--lang", "fr", "--values", "title", "--format", "json")
		require.NoError(t, err)
		rows := decode(t, out)
		require.Len(t, rows, 1)
		assert.Equal(t, "Bonjour", rows[0]["title"])
	})

	t.Run("fallbacks", func(t *testing.T) {
		out, _, err := execute(t, "query", "Article", "--lang", "fr", "--fallback", "en",
			"--fallbacks", "--values", "title", "--format", "json")
		require.NoError(t, err)
		rows := decode(t, out)
		require.Len(t, rows, 2)
		assert.Equal(t, "Bonjour", rows[0]["title"])
		assert.Equal(t, "World", rows[1]["title"])
	})

	t.Run("filter and exclude", func(t *testing.T) {
		out, _, err := execute(t, "query", "Article",
			"--filter", "views__gte=3", "--exclude", "title__startswith=W",
			"--format", "json")
		require.NoError(t, err)
		rows := decode(t, out)
		require.Len(t, rows, 1)
		assert.Equal(t, "Hello", rows[0]["title"])
		assert.Equal(t, "en", rows[0]["language_code"])
		assert.Equal(t, "hello", rows[0]["slug"])
		assert.Equal(t, "Hello [en]", rows[0]["display"])
	})

	t.Run("count untranslated", func(t *testing.T) {
		out, _, err := execute(t, "query", "Article", "--lang", "de", "--untranslated", "--count", "--format", "csv")
		require.NoError(t, err)
		assert.Contains(t, out, "count")
		assert.Contains(t, out, "2")
	})

	t.Run("table output", func(t *testing.T) {
		out, _, err := execute(t, "query", "Article", "--order", "-id", "--limit", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "World")
		assert.NotContains(t, out, "Hello")
		assert.Contains(t, out, "(1 rows)")
	})

	t.Run("bad condition", func(t *testing.T) {
		_, _, err := execute(t, "query", "Article", "--filter", "views")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected path=value")
	})

	t.Run("unknown field", func(t *testing.T) {
		_, _, err := execute(t, "query", "Article", "--filter", "missing=1")
		require.Error(t, err)
		assert.True(t, core.IsDefinitionError(err))
	})
}

func TestCompletionCommand(t *testing.T) {
	out, _, err := execute(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "polyglot")
}
