package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(filepath.Join(t.TempDir(), "state.db")))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	assert.Equal(t, ":memory:", store.Path())
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.CreateRun(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestSQLiteStore_Migrate(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	v, err := store.MigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// idempotent
	require.NoError(t, store.Migrate(ctx))
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name   string
		status RunStatus
		errMsg string
	}{
		{name: "completed", status: RunStatusCompleted},
		{name: "failed", status: RunStatusFailed, errMsg: "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := setupTestStore(t)

			run, err := store.CreateRun(ctx, "sqlite:app.db")
			require.NoError(t, err)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, RunStatusRunning, run.Status)

			require.NoError(t, store.CompleteRun(ctx, run.ID, tt.status, tt.errMsg))

			got, err := store.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.errMsg, got.Error)
			require.NotNil(t, got.CompletedAt)

			latest, err := store.LatestRun(ctx, "sqlite:app.db")
			require.NoError(t, err)
			assert.Equal(t, run.ID, latest.ID)
		})
	}
}

func TestSQLiteStore_RunNotFound(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, store.CompleteRun(ctx, "missing", RunStatusCompleted, ""), ErrRunNotFound)

	latest, err := store.LatestRun(ctx, "nowhere")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSQLiteStore_Entities(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	run, err := store.CreateRun(ctx, "t")
	require.NoError(t, err)

	require.NoError(t, store.RecordEntity(ctx, EntityRecord{
		Target: "t", Name: "Normal", SharedTable: "normal", TranslationTable: "normal_translation",
		Fingerprint: "aaa", RunID: run.ID,
	}))
	require.NoError(t, store.RecordEntity(ctx, EntityRecord{
		Target: "t", Name: "Standard", SharedTable: "standard", Fingerprint: "bbb", RunID: run.ID,
	}))

	rec, err := store.Entity(ctx, "t", "Normal")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "normal_translation", rec.TranslationTable)
	assert.False(t, rec.SyncedAt.IsZero())

	missing, err := store.Entity(ctx, "t", "Other")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// re-recording replaces the fingerprint
	require.NoError(t, store.RecordEntity(ctx, EntityRecord{
		Target: "t", Name: "Normal", SharedTable: "normal", TranslationTable: "normal_translation",
		Fingerprint: "ccc", RunID: run.ID,
	}))
	recs, err := store.Entities(ctx, "t")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "ccc", recs[0].Fingerprint)
	assert.Equal(t, "", recs[1].TranslationTable)

	drift, err := DetectDrift(ctx, store, "t", map[string]string{"Normal": "ccc", "Standard": "zzz", "New": "n"})
	require.NoError(t, err)
	assert.Equal(t, []Drift{{Name: "Standard", Recorded: "bbb", Current: "zzz"}}, drift)
}
