package orm_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/orm"
	"github.com/leapstack-labs/polyglot/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestGetOrCreate(t *testing.T) {
	f := newFixture(t)
	normal := f.entity(t, "Normal")
	qs := f.store.Query(f.ctx, normal)

	inst, created, err := qs.GetOrCreate(f.ctx,
		map[string]any{"shared_field": "s", "translated_field": "t"}, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "en", inst.Language())

	again, created, err := qs.GetOrCreate(f.ctx,
		map[string]any{"shared_field": "s", "translated_field": "t"}, map[string]any{"shared_field": "ignored"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, inst.ID(), again.ID())

	// the French lookup misses the English translation and creates a new row
	fr := f.in("fr")
	other, created, err := f.store.Query(fr, normal).GetOrCreate(fr,
		map[string]any{"translated_field": "t"}, map[string]any{"shared_field": "d"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, inst.ID(), other.ID())
	assert.Equal(t, "d", other.SafeGet("shared_field", nil))
	assert.Equal(t, "fr", other.Language())

	_, _, err = qs.GetOrCreate(f.ctx, map[string]any{"translated_field__startswith": "t"}, nil)
	assert.True(t, core.IsDefinitionError(err))
	assert.Equal(t, 2, f.countRows(t, "normal"))
}

func TestGetOrCreate_Concurrent(t *testing.T) {
	f := newFixture(t)
	normal := f.entity(t, "Normal")
	conds := map[string]any{"shared_field": "X", "translated_field": "Y"}

	var creations atomic.Int32
	results := make([]*orm.Instance, 4)
	g, ctx := errgroup.WithContext(f.ctx)
	for i := range results {
		g.Go(func() error {
			inst, created, err := f.store.Query(ctx, normal).GetOrCreate(ctx, conds, nil)
			if err != nil {
				return err
			}
			if created {
				creations.Add(1)
			}
			results[i] = inst
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), creations.Load())
	for _, inst := range results {
		assert.Equal(t, results[0].ID(), inst.ID())
	}
	assert.Equal(t, 1, f.countRows(t, "normal"))
	assert.Equal(t, 1, f.countRows(t, "normal_translation"))

	got, err := f.store.Query(f.ctx, normal).Get(f.ctx, query.Q("translated_field", "Y"))
	require.NoError(t, err)
	assert.Equal(t, "X", got.SafeGet("shared_field", nil))
}

func TestGetOrCreate_JoinsCallerTransaction(t *testing.T) {
	f := newFixture(t)
	normal := f.entity(t, "Normal")

	var id int64
	err := f.store.InTx(f.ctx, func(ctx context.Context) error {
		inst, created, err := f.store.Query(ctx, normal).GetOrCreate(ctx, map[string]any{"shared_field": "tx"}, nil)
		if err != nil {
			return err
		}
		require.True(t, created)
		id = inst.ID()
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.NotZero(t, id)
	assert.Equal(t, 0, f.countRows(t, "normal"), "rolled back with the caller")
}
