package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForCoversRange(t *testing.T) {
	for _, n := range []int{0, 1, 7, 100, 1023} {
		for _, workers := range []int{1, 3, 16} {
			hits := make([]int32, n)
			err := For(context.Background(), n, workers, func(lo, hi int) error {
				for i := lo; i < hi; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
				return nil
			})
			require.NoError(t, err)
			for i, h := range hits {
				require.Equal(t, int32(1), h, "n=%d workers=%d item=%d", n, workers, i)
			}
		}
	}
}

func TestForChunksIndices(t *testing.T) {
	const n, workers = 1000, 3
	chunks := Chunks(n, workers)
	seen := make([]atomic.Int32, chunks)

	err := ForChunks(context.Background(), n, workers, func(chunk, lo, hi int) error {
		assert.Less(t, chunk, chunks)
		assert.Less(t, lo, hi)
		seen[chunk].Add(1)
		return nil
	})
	require.NoError(t, err)

	for i := range seen {
		assert.Equal(t, int32(1), seen[i].Load())
	}
	assert.Equal(t, 0, Chunks(0, workers))
}

func TestForPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := For(context.Background(), 100, 4, func(lo, _ int) error {
		if lo == 0 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
}

func TestForCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	err := For(ctx, 100, 4, func(_, _ int) error {
		calls.Add(1)
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
}

func TestWorkersDefault(t *testing.T) {
	assert.Positive(t, Workers(0))
	assert.Equal(t, 5, Workers(5))
}
