package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/polyglot/pkg/adapter"
	"github.com/leapstack-labs/polyglot/pkg/adapters/sqlite"
	"github.com/stretchr/testify/require"
)

// OpenSQLite connects a SQLite adapter to a fresh database file in
// t.TempDir(). The connection is closed when the test ends.
func OpenSQLite(t testing.TB) adapter.Adapter {
	t.Helper()
	a := sqlite.New(NewTestLogger(t))
	path := filepath.Join(t.TempDir(), "polyglot.db")
	require.NoError(t, a.Connect(context.Background(), adapter.Config{Type: "sqlite", Path: path}))
	t.Cleanup(func() { _ = a.Close() })
	return a
}
