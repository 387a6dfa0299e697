package sqlite

import (
	"testing"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRegistered(t *testing.T) {
	d, ok := dialect.Get("sqlite")
	require.True(t, ok)
	assert.Same(t, SQLite, d)
	assert.Equal(t, "main", d.DefaultSchema)
	assert.Equal(t, "?", d.FormatPlaceholder(3))
}

func TestSQLiteColumnTypes(t *testing.T) {
	assert.Equal(t, "INTEGER", SQLite.ColumnType(core.KindInt, 0))
	assert.Equal(t, "VARCHAR(15)", SQLite.ColumnType(core.KindString, 15))
	assert.Equal(t, "INTEGER", SQLite.KeyType())

	pre, def := SQLite.PrimaryKey("app_normal", "id")
	assert.Empty(t, pre)
	assert.Equal(t, `"id" INTEGER PRIMARY KEY AUTOINCREMENT`, def)
}

func TestSQLiteCaseSensitiveMatchUsesGlob(t *testing.T) {
	assert.Equal(t, "GLOB", SQLite.MatchStyle(true).Operator)
	assert.Equal(t, "LIKE", SQLite.MatchStyle(false).Operator)
	assert.Empty(t, SQLite.AdvisoryLock())
	assert.True(t, SQLite.Savepoints())
}

func TestSQLiteLimitOffset(t *testing.T) {
	assert.Equal(t, "LIMIT 2", SQLite.LimitOffset(2, 0))
	assert.Equal(t, "LIMIT -1 OFFSET 5", SQLite.LimitOffset(0, 5))
	assert.Equal(t, "LIMIT 2 OFFSET 5", SQLite.LimitOffset(2, 5))
	assert.Empty(t, SQLite.LimitOffset(0, 0))
}
