// Package parallel runs data-parallel loops on a bounded goroutine pool.
//
// A loop over n items is cut into contiguous chunks; each chunk is one
// errgroup task. Wait is the phase barrier: once For returns, every write
// made by fn is visible to the caller. Cancellation is checked before each
// chunk starts, so a cancelled loop leaves some chunks unprocessed.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// chunksPerWorker oversubscribes the pool to even out uneven chunks.
const chunksPerWorker = 4

// Workers normalizes a worker count; values <= 0 mean GOMAXPROCS.
func Workers(workers int) int {
	if workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return workers
}

// Chunks returns how many chunks ForChunks splits n items into.
func Chunks(n, workers int) int {
	if n <= 0 {
		return 0
	}
	size := chunkSize(n, workers)
	return (n + size - 1) / size
}

func chunkSize(n, workers int) int {
	chunks := min(Workers(workers)*chunksPerWorker, n)
	return (n + chunks - 1) / chunks
}

// ForChunks calls fn(chunk, lo, hi) for consecutive ranges covering [0, n).
// chunk is in [0, Chunks(n, workers)), so callers can keep per-chunk state.
func ForChunks(ctx context.Context, n, workers int, fn func(chunk, lo, hi int) error) error {
	if n <= 0 {
		return ctx.Err()
	}

	size := chunkSize(n, workers)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers))

	for chunk, lo := 0, 0; lo < n; chunk, lo = chunk+1, lo+size {
		hi := min(lo+size, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(chunk, lo, hi)
		})
	}

	return g.Wait()
}

// For calls fn(lo, hi) for consecutive ranges covering [0, n).
func For(ctx context.Context, n, workers int, fn func(lo, hi int) error) error {
	return ForChunks(ctx, n, workers, func(_, lo, hi int) error {
		return fn(lo, hi)
	})
}
