package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datoms/internal/datom"
)

func TestDbContext_Poison(t *testing.T) {
	ctx := NewDbContext[Q](testDB(t))
	boom := errors.New("boom")

	ctx.Poison(boom)
	ctx.Poison(errors.New("later"))

	_, err := ctx.Impl()
	require.Error(t, err)
	assert.True(t, datom.IsContextPoisoned(err))
	assert.ErrorIs(t, err, boom, "first poison wins")
	assert.Panics(t, func() { ctx.MustImpl() })
}

func TestDbContext_CancelAndClose(t *testing.T) {
	ctx := NewDbContext[Q](testDB(t))
	ctx.Cancel(errors.New("shutdown"))
	_, err := ctx.Impl()
	assert.ErrorIs(t, err, context.Canceled)

	closed := NewDbContext[Q](testDB(t))
	closed.Close()
	_, err = closed.Impl()
	assert.ErrorIs(t, err, ErrContextClosed)
}

func TestDbContext_BindRestores(t *testing.T) {
	a, b := testDB(t), testDB(t)
	ctx := NewDbContext[Q](a)

	err := ctx.Bind(b, func() error {
		assert.Same(t, b, ctx.MustImpl())
		return errors.New("body failed")
	})
	assert.Error(t, err)
	assert.Same(t, a, ctx.MustImpl(), "restored after error")

	assert.Panics(t, func() {
		_ = ctx.Bind(b, func() error { panic("boom") })
	})
	assert.Same(t, a, ctx.MustImpl(), "restored after panic")
}

func TestDbContext_BindKeepsPoison(t *testing.T) {
	ctx := NewDbContext[Q](testDB(t))
	_ = ctx.Bind(testDB(t), func() error {
		ctx.Poison(errors.New("boom"))
		return nil
	})

	_, err := ctx.Impl()
	assert.True(t, datom.IsContextPoisoned(err))

	err = ctx.Bind(testDB(t), func() error { return nil })
	assert.True(t, datom.IsContextPoisoned(err))
}

func TestDbContext_Alter(t *testing.T) {
	ctx := NewDbContext[Q](testDB(t))
	wantErr := errors.New("no")

	err := ctx.Alter(func(Q) (Q, error) { return nil, wantErr }, func() error {
		t.Fatal("body must not run")
		return nil
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestWritable(t *testing.T) {
	t.Run("snapshot is read-only", func(t *testing.T) {
		_, err := Writable(NewDbContext[Q](testDB(t)))
		require.Error(t, err)
		assert.True(t, datom.IsNotMutable(err))
	})

	t.Run("mutable db", func(t *testing.T) {
		mut := NewMutableDb(testDB(t), datom.NewTX(2), nil)
		got, err := Writable(NewDbContext[Q](mut))
		require.NoError(t, err)
		assert.Same(t, mut, got)
	})

	t.Run("poisoned", func(t *testing.T) {
		ctx := NewDbContext[Q](testDB(t))
		ctx.Close()
		_, err := Writable(ctx)
		assert.True(t, datom.IsContextPoisoned(err))
	})
}
