package voxfuse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/voxfuse/blobstore"
	"github.com/hupe1980/voxfuse/internal/hashindex"
	"github.com/hupe1980/voxfuse/persistence"
)

// CurrentName is the blob that names the latest checkpoint.
const CurrentName = "CURRENT"

// Save writes a snapshot of the table, both free lists and every resident
// block to w. It returns the number of bytes written.
func (v *Volume) Save(ctx context.Context, w io.Writer) (int64, error) {
	start := time.Now()
	n, err := v.save(ctx, w)
	v.metricsCollector.RecordSnapshot("save", n, time.Since(start), err)
	v.logger.LogSnapshot(ctx, "save", "", n, err)
	return n, err
}

func (v *Volume) save(ctx context.Context, w io.Writer) (int64, error) {
	if err := v.controller.AcquireSnapshot(ctx); err != nil {
		return 0, err
	}
	defer v.controller.ReleaseSnapshot()

	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return 0, ErrClosed
	}

	// Blocks alias the arena; the read lock keeps them stable while encoding.
	return persistence.Encode(ctx, w, v.snapshot(), persistence.WithCompression(v.cfg.compression()))
}

func (v *Volume) snapshot() *persistence.Snapshot {
	st := v.index.Export()
	snap := &persistence.Snapshot{
		Meta: persistence.Meta{
			VoxelSize:   v.cfg.VoxelSize,
			Truncation:  v.cfg.TruncationDistance,
			BucketCount: st.BucketCount,
			ExcessSize:  st.ExcessSize,
			BlockCount:  st.BlockCount,
			Frames:      v.frames,
			CreatedAt:   time.Now().UTC(),
		},
		Entries:    st.Entries,
		FreeBlocks: st.FreeBlocks,
		FreeExcess: st.FreeExcess,
		Blocks:     make([]persistence.Block, 0, st.BlockCount-len(st.FreeBlocks)),
	}
	for _, e := range st.Entries {
		if !e.IsAllocated() {
			continue
		}
		snap.Meta.LiveEntries++
		if e.IsResident() {
			snap.Blocks = append(snap.Blocks, persistence.Block{Ptr: e.Ptr, Voxels: v.store.Block(e.Ptr)})
		}
	}
	return snap
}

// Load replaces the content of the volume with the snapshot read from r.
// The snapshot is fully validated first; on error the volume is unchanged.
func (v *Volume) Load(ctx context.Context, r io.Reader) error {
	start := time.Now()
	var n int64
	err := func() error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		n = int64(len(data))
		return v.load(ctx, data)
	}()
	v.metricsCollector.RecordSnapshot("load", n, time.Since(start), err)
	v.logger.LogSnapshot(ctx, "load", "", n, err)
	return err
}

func (v *Volume) load(ctx context.Context, data []byte) error {
	snap, err := persistence.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if err := v.checkMeta(snap.Meta); err != nil {
		return err
	}

	index, err := hashindex.FromState(hashindex.State{
		BucketCount: snap.Meta.BucketCount,
		ExcessSize:  snap.Meta.ExcessSize,
		BlockCount:  snap.Meta.BlockCount,
		Entries:     snap.Entries,
		FreeBlocks:  snap.FreeBlocks,
		FreeExcess:  snap.FreeExcess,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if err := checkBlocks(snap); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}

	v.store.Reset()
	for _, b := range snap.Blocks {
		copy(v.store.Block(b.Ptr), b.Voxels)
	}
	v.attach(index)
	v.visible = roaring.New()
	v.frames = snap.Meta.Frames
	return nil
}

func (v *Volume) checkMeta(m persistence.Meta) error {
	switch {
	case m.BucketCount != v.cfg.BucketCount,
		m.ExcessSize != v.cfg.ExcessListSize,
		m.BlockCount != v.cfg.BlockCount:
		return fmt.Errorf("%w: geometry %d/%d/%d, volume has %d/%d/%d", ErrSnapshotMismatch,
			m.BucketCount, m.ExcessSize, m.BlockCount,
			v.cfg.BucketCount, v.cfg.ExcessListSize, v.cfg.BlockCount)
	case m.VoxelSize != v.cfg.VoxelSize, m.Truncation != v.cfg.TruncationDistance:
		return fmt.Errorf("%w: voxel size %g, truncation %g", ErrSnapshotMismatch, m.VoxelSize, m.Truncation)
	}
	return nil
}

// checkBlocks verifies that the payloads are exactly the resident blocks of
// the (already validated) table.
func checkBlocks(snap *persistence.Snapshot) error {
	resident := make([]bool, snap.Meta.BlockCount)
	count := 0
	for _, e := range snap.Entries {
		if e.IsResident() {
			resident[e.Ptr] = true
			count++
		}
	}
	if len(snap.Blocks) != count {
		return fmt.Errorf("%w: %d block payloads for %d resident entries", ErrCorruptSnapshot, len(snap.Blocks), count)
	}
	for _, b := range snap.Blocks {
		if !resident[b.Ptr] {
			return fmt.Errorf("%w: payload for unused or duplicate block %d", ErrCorruptSnapshot, b.Ptr)
		}
		resident[b.Ptr] = false
	}
	return nil
}

// SaveTo streams a snapshot into store under name. Uploads are throttled
// by the resource controller. A failed save leaves no blob behind.
func (v *Volume) SaveTo(ctx context.Context, store blobstore.BlobStore, name string) (int64, error) {
	start := time.Now()
	n, err := v.saveTo(ctx, store, name)
	v.metricsCollector.RecordSnapshot("save", n, time.Since(start), err)
	v.logger.LogSnapshot(ctx, "save", name, n, err)
	return n, err
}

func (v *Volume) saveTo(ctx context.Context, store blobstore.BlobStore, name string) (int64, error) {
	w, err := blobstore.NewThrottledStore(store, v.controller).Create(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := v.save(ctx, w)
	if err != nil {
		_ = w.Abort()
		return n, err
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("voxfuse: publish %s: %w", name, err)
	}
	return n, nil
}

// LoadFrom loads the snapshot stored under name.
func (v *Volume) LoadFrom(ctx context.Context, store blobstore.BlobStore, name string) error {
	start := time.Now()
	n, err := v.loadFrom(ctx, store, name)
	v.metricsCollector.RecordSnapshot("load", n, time.Since(start), err)
	v.logger.LogSnapshot(ctx, "load", name, n, err)
	return err
}

func (v *Volume) loadFrom(ctx context.Context, store blobstore.BlobStore, name string) (int64, error) {
	blob, err := blobstore.NewThrottledStore(store, v.controller).Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer blob.Close()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), v.load(ctx, data)
}

// Checkpoint saves a new snapshot into store and then points CURRENT at
// it. Readers of CURRENT never see a partial snapshot.
func (v *Volume) Checkpoint(ctx context.Context, store blobstore.BlobStore) (string, error) {
	name := fmt.Sprintf("snapshot-%019d.vxf", time.Now().UnixNano())
	if _, err := v.SaveTo(ctx, store, name); err != nil {
		return "", err
	}
	if err := store.Put(ctx, CurrentName, []byte(name)); err != nil {
		return "", fmt.Errorf("voxfuse: update %s: %w", CurrentName, err)
	}
	return name, nil
}

// LoadLatest loads the snapshot CURRENT points at and returns its name.
// Without a checkpoint the error wraps blobstore.ErrNotFound.
func (v *Volume) LoadLatest(ctx context.Context, store blobstore.BlobStore) (string, error) {
	name, err := latest(ctx, store)
	if err != nil {
		return "", err
	}
	return name, v.LoadFrom(ctx, store, name)
}

func latest(ctx context.Context, store blobstore.BlobStore) (string, error) {
	blob, err := store.Open(ctx, CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return "", fmt.Errorf("voxfuse: no checkpoint: %w", err)
		}
		return "", err
	}
	defer blob.Close()

	data, err := blobstore.ReadAll(ctx, blob)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", fmt.Errorf("%w: empty %s", ErrCorruptSnapshot, CurrentName)
	}
	return name, nil
}

// OpenLatest creates a volume with cfg and loads the latest checkpoint of
// store into it.
func OpenLatest(ctx context.Context, store blobstore.BlobStore, cfg Config, optFns ...Option) (*Volume, error) {
	v, err := New(ctx, cfg, optFns...)
	if err != nil {
		return nil, err
	}
	if _, err := v.LoadLatest(ctx, store); err != nil {
		_ = v.Close()
		return nil, err
	}
	return v, nil
}
