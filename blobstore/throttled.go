package blobstore

import (
	"context"
	"io"
)

// IOLimiter meters bytes moved through a store.
// *resource.Controller implements it.
type IOLimiter interface {
	AcquireIO(ctx context.Context, bytes int) error
}

// ThrottledStore charges every byte read or written through inner against
// a limiter.
type ThrottledStore struct {
	inner   BlobStore
	limiter IOLimiter
}

// NewThrottledStore wraps inner. A nil limiter disables throttling.
func NewThrottledStore(inner BlobStore, limiter IOLimiter) *ThrottledStore {
	return &ThrottledStore{inner: inner, limiter: limiter}
}

func (s *ThrottledStore) acquire(ctx context.Context, n int) error {
	if s.limiter == nil || n <= 0 {
		return nil
	}
	return s.limiter.AcquireIO(ctx, n)
}

// Open opens a blob whose reads are throttled.
func (s *ThrottledStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &throttledBlob{Blob: b, store: s}, nil
}

// Create starts a throttled streaming write.
func (s *ThrottledStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &throttledWriter{WritableBlob: w, ctx: ctx, store: s}, nil
}

// Put waits for budget for all of data, then writes it.
func (s *ThrottledStore) Put(ctx context.Context, name string, data []byte) error {
	if err := s.acquire(ctx, len(data)); err != nil {
		return err
	}
	return s.inner.Put(ctx, name, data)
}

// Delete removes a blob.
func (s *ThrottledStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List lists blobs.
func (s *ThrottledStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// throttledBlob hides Mappable so callers go through ReadAt.
type throttledBlob struct {
	Blob
	store *ThrottledStore
}

func (b *throttledBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := b.store.acquire(ctx, len(p)); err != nil {
		return 0, err
	}
	return b.Blob.ReadAt(ctx, p, off)
}

func (b *throttledBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := b.store.acquire(ctx, int(min(length, b.Size()-off))); err != nil {
		return nil, err
	}
	return b.Blob.ReadRange(ctx, off, length)
}

type throttledWriter struct {
	WritableBlob
	ctx   context.Context
	store *ThrottledStore
}

func (w *throttledWriter) Write(p []byte) (int, error) {
	if err := w.store.acquire(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.WritableBlob.Write(p)
}
