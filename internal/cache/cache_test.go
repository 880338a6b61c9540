package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryStoreSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	ok, err := store.SetIfAbsent(ctx, "idem", []byte("pending"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SetIfAbsent(ctx, "idem", []byte("other"), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get(ctx, "idem")
	require.NoError(t, err)
	assert.Equal(t, "pending", string(got))

	require.NoError(t, store.Delete(ctx, "idem"))
	ok, err = store.SetIfAbsent(ctx, "idem", []byte("again"), 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNoopStore(t *testing.T) {
	ctx := context.Background()
	var store Store = NoopStore{}

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	ok, err := store.SetIfAbsent(ctx, "k", []byte("v"), 0)
	require.NoError(t, err)
	assert.True(t, ok)
}
