package blobstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLimiter struct {
	bytes int
	err   error
}

func (l *countingLimiter) AcquireIO(_ context.Context, n int) error {
	if l.err != nil {
		return l.err
	}
	l.bytes += n
	return nil
}

func TestThrottledStoreCharges(t *testing.T) {
	ctx := context.Background()
	limiter := &countingLimiter{}
	store := NewThrottledStore(NewMemoryStore(), limiter)

	require.NoError(t, store.Put(ctx, "a", make([]byte, 100)))
	assert.Equal(t, 100, limiter.bytes)

	w, err := store.Create(ctx, "b")
	require.NoError(t, err)
	_, err = w.Write(make([]byte, 30))
	require.NoError(t, err)
	_, err = w.Write(make([]byte, 20))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, 150, limiter.bytes)

	blob, err := store.Open(ctx, "a")
	require.NoError(t, err)
	_, isMappable := blob.(Mappable)
	assert.False(t, isMappable)

	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Len(t, data, 100)
	assert.Equal(t, 250, limiter.bytes)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestThrottledStorePropagatesLimiterError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("budget exhausted")
	inner := NewMemoryStore()
	store := NewThrottledStore(inner, &countingLimiter{err: boom})

	assert.ErrorIs(t, store.Put(ctx, "a", []byte("x")), boom)
	_, err := inner.Open(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestThrottledStoreNilLimiter(t *testing.T) {
	ctx := context.Background()
	store := NewThrottledStore(NewMemoryStore(), nil)
	require.NoError(t, store.Put(ctx, "a", []byte("x")))
	require.NoError(t, store.Delete(ctx, "a"))
}
