package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	src := []byte("snapshot")
	require.NoError(t, store.Put(ctx, "s/1", src))
	src[0] = 'X'

	w, err := store.Create(ctx, "s/2")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed"))
	require.NoError(t, err)
	_, err = store.Open(ctx, "s/2")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, w.Close())

	names, err := store.List(ctx, "s/")
	require.NoError(t, err)
	assert.Equal(t, []string{"s/1", "s/2"}, names)

	blob, err := store.Open(ctx, "s/1")
	require.NoError(t, err)
	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", string(data))

	rc, err := blob.ReadRange(ctx, 4, 100)
	require.NoError(t, err)
	tail, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "shot", string(tail))

	buf := make([]byte, 10)
	n, err := blob.ReadAt(ctx, buf, 2)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 6, n)

	require.NoError(t, store.Delete(ctx, "s/1"))
	_, err = store.Open(ctx, "s/1")
	assert.ErrorIs(t, err, ErrNotFound)
}
