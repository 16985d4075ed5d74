package voxfuse

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/voxfuse/camera"
	"github.com/hupe1980/voxfuse/frame"
	"github.com/hupe1980/voxfuse/internal/allocation"
	"github.com/hupe1980/voxfuse/internal/hashindex"
	"github.com/hupe1980/voxfuse/internal/integration"
	"github.com/hupe1980/voxfuse/internal/parallel"
	"github.com/hupe1980/voxfuse/internal/raycast"
	"github.com/hupe1980/voxfuse/internal/voxelstore"
	"github.com/hupe1980/voxfuse/model"
	"github.com/hupe1980/voxfuse/resource"
)

// Volume is a sparse TSDF volume.
//
// Frames are processed one at a time; queries may run concurrently with
// each other but wait for a running frame.
type Volume struct {
	mu sync.RWMutex

	cfg     Config
	workers int

	index *hashindex.Index
	store *voxelstore.Store

	alloc *allocation.Engine
	fuse  *integration.Engine
	ray   *raycast.Engine

	visible *roaring.Bitmap
	frames  uint64
	closed  bool

	logger           *Logger
	metricsCollector MetricsCollector
	controller       *resource.Controller
}

// New allocates an empty volume. The whole block arena is reserved up front
// and charged to the resource controller.
func New(ctx context.Context, cfg Config, optFns ...Option) (*Volume, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := options{workers: cfg.Workers}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.logger == nil {
		opts.logger = NoopLogger()
	}
	if opts.metricsCollector == nil {
		opts.metricsCollector = NoopMetricsCollector{}
	}
	if opts.controller == nil {
		opts.controller = resource.NewController(resource.Config{
			MemoryLimitBytes:   cfg.MemoryLimitBytes,
			IOLimitBytesPerSec: cfg.SnapshotIOBytesPerSec,
		})
	}

	index, err := hashindex.New(cfg.BucketCount, cfg.ExcessListSize, cfg.BlockCount)
	if err != nil {
		return nil, err
	}
	store, err := voxelstore.New(ctx, cfg.BlockCount, voxelstore.WithMemoryAcquirer(opts.controller))
	if err != nil {
		return nil, fmt.Errorf("voxfuse: allocate block arena: %w", err)
	}

	v := &Volume{
		cfg:              cfg,
		workers:          parallel.Workers(opts.workers),
		store:            store,
		visible:          roaring.New(),
		logger:           opts.logger,
		metricsCollector: opts.metricsCollector,
		controller:       opts.controller,
	}
	v.attach(index)

	v.logger.DebugContext(ctx, "volume created",
		"voxel_size", cfg.VoxelSize,
		"buckets", cfg.BucketCount,
		"excess", cfg.ExcessListSize,
		"blocks", cfg.BlockCount,
		"workers", v.workers,
	)
	return v, nil
}

// attach binds the engines to index. Callers hold the write lock or own v.
func (v *Volume) attach(index *hashindex.Index) {
	cfg := v.cfg
	v.index = index
	v.alloc = allocation.New(index, v.store, allocation.Params{
		VoxelSize:        cfg.VoxelSize,
		Truncation:       cfg.TruncationDistance,
		BandFactor:       cfg.AllocationBandFactor,
		NearClip:         cfg.NearClip,
		FarClip:          cfg.FarClip,
		OverflowRequests: cfg.OverflowRequests,
		Workers:          v.workers,
	})
	v.fuse = integration.New(index, v.store, integration.Params{
		VoxelSize:       cfg.VoxelSize,
		Truncation:      cfg.TruncationDistance,
		MaxWeight:       uint16(cfg.MaxWeight),
		StopAtMaxWeight: cfg.StopIntegratingAtMaxWeight,
		IntegrateColor:  cfg.IntegrateColor,
		Workers:         v.workers,
	})
	v.ray = raycast.New(index, v.store, raycast.Params{
		VoxelSize:      cfg.VoxelSize,
		Truncation:     cfg.TruncationDistance,
		NearClip:       cfg.NearClip,
		FarClip:        cfg.FarClip,
		RangeSubsample: cfg.RangeSubsample,
		DisableCache:   cfg.DisableLookupCache,
		Workers:        v.workers,
	})
}

// Config returns the configuration the volume was created with.
func (v *Volume) Config() Config {
	return v.cfg
}

// ProcessFrame allocates the blocks f observes, fuses f into the visible
// blocks and refreshes the visible set.
//
// Capacity exhaustion is reported in the stats, not as an error. A
// cancelled context stops the frame between work chunks; whatever was fused
// so far stays fused.
func (v *Volume) ProcessFrame(ctx context.Context, f *frame.Frame) (FrameStats, error) {
	start := time.Now()
	if err := f.Validate(); err != nil {
		return FrameStats{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return FrameStats{}, ErrClosed
	}

	seq := v.frames + 1
	stats, err := v.processFrame(ctx, f)
	stats.Duration = time.Since(start)
	if err == nil {
		v.frames = seq
	}

	v.logger.LogFrame(ctx, seq, stats, err)
	v.metricsCollector.RecordFrame(stats, stats.Duration, err)
	return stats, err
}

func (v *Volume) processFrame(ctx context.Context, f *frame.Frame) (FrameStats, error) {
	var stats FrameStats
	cam := f.DepthCamera()

	if err := v.ray.DemoteVisible(ctx); err != nil {
		return stats, err
	}

	as, err := v.alloc.Allocate(ctx, f)
	stats.Pixels = as.Pixels
	stats.Requests = as.Requests
	stats.Allocated = as.Allocated
	stats.FailedNoBlocks = as.FailedNoBlocks
	stats.FailedNoExcess = as.FailedNoExcess
	stats.DroppedRequests = as.DroppedRequests
	if err != nil {
		return stats, err
	}

	visible, err := v.ray.RetestPrevious(ctx, cam)
	if err != nil {
		return stats, err
	}

	is, err := v.fuse.Integrate(ctx, f, visible)
	stats.IntegratedBlocks = is.Blocks
	stats.IntegratedVoxels = is.Voxels
	stats.ColorVoxels = is.ColorVoxels
	if err != nil {
		return stats, err
	}

	visible, err = v.ray.UpdateVisibility(ctx, cam)
	if err != nil {
		return stats, err
	}
	v.visible = visible
	stats.VisibleBlocks = int(visible.GetCardinality())
	return stats, nil
}

// UpdateVisibility classifies every entry against cam and makes the
// resident visible ones the current visible set. No block is deallocated.
func (v *Volume) UpdateVisibility(ctx context.Context, cam camera.Camera) (*roaring.Bitmap, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, ErrClosed
	}

	visible, err := v.ray.UpdateVisibility(ctx, cam)
	if err != nil {
		return nil, err
	}
	v.visible = visible
	return visible.Clone(), nil
}

// Raycast renders the surface seen by cam. Any pose may be used; the
// visible set of the last frame is not changed.
func (v *Volume) Raycast(ctx context.Context, cam camera.Camera) (*RaycastResult, error) {
	start := time.Now()

	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, ErrClosed
	}

	visible, err := v.ray.FindVisibleBlocks(ctx, cam)
	if err != nil {
		return nil, err
	}
	res, err := v.ray.Raycast(ctx, cam, visible)
	if err != nil {
		return nil, err
	}

	v.metricsCollector.RecordRaycast(res.ValidCount(), res.Width*res.Height, time.Since(start))
	return res, nil
}

// VisibleEntries returns the hash codes of the resident entries that were
// visible in the last frame.
func (v *Volume) VisibleEntries() *roaring.Bitmap {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.visible.Clone()
}

// Visibility returns the visibility state of the entry at hashCode.
func (v *Volume) Visibility(hashCode int) model.Visibility {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if hashCode < 0 || hashCode >= v.index.Len() {
		return model.Invisible
	}
	return v.index.Visibility(hashCode)
}

// Find looks up c. ptr is model.EvictedPtr for swapped-out blocks.
func (v *Volume) Find(c model.BlockCoord) (ptr int32, hashCode int, ok bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.index.Find(c)
}

// Entry returns the table entry holding c.
func (v *Volume) Entry(c model.BlockCoord) (model.HashEntry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, hashCode, ok := v.index.Find(c)
	if !ok {
		return model.EmptyEntry(), fmt.Errorf("%w: %v", ErrNotFound, c)
	}
	return v.index.Entry(hashCode), nil
}

// Voxel returns voxel local of the resident block c.
func (v *Volume) Voxel(c model.BlockCoord, local int) (model.Voxel, error) {
	if local < 0 || local >= model.BlockVoxels {
		return model.Voxel{}, fmt.Errorf("voxfuse: local index %d out of range", local)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return model.Voxel{}, ErrClosed
	}
	ptr, _, ok := v.index.Find(c)
	if !ok {
		return model.Voxel{}, fmt.Errorf("%w: %v", ErrNotFound, c)
	}
	if ptr < 0 {
		return model.Voxel{}, fmt.Errorf("%w: %v is evicted", ErrNotFound, c)
	}
	return v.store.Voxel(ptr, local), nil
}

// VoxelAt returns the voxel at global voxel position (x, y, z).
func (v *Volume) VoxelAt(x, y, z int) (model.Voxel, error) {
	c, local, ok := model.VoxelToBlock(x, y, z)
	if !ok {
		return model.Voxel{}, fmt.Errorf("%w: voxel (%d,%d,%d) outside the grid", ErrNotFound, x, y, z)
	}
	return v.Voxel(c, local)
}

// Block returns a copy of the voxels of arena block ptr.
func (v *Volume) Block(ptr int32) ([]model.Voxel, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, ErrClosed
	}
	if ptr < 0 || int(ptr) >= v.store.BlockCount() {
		return nil, fmt.Errorf("voxfuse: block pointer %d out of range", ptr)
	}
	out := make([]model.Voxel, model.BlockVoxels)
	copy(out, v.store.Block(ptr))
	return out, nil
}

// Entries yields every entry holding a coordinate with its hash code.
// The entries are copied before the first yield, so the loop body may
// mutate the volume (Evict, Remove) and sees the table as it was.
func (v *Volume) Entries() iter.Seq2[int, model.HashEntry] {
	return func(yield func(int, model.HashEntry) bool) {
		type item struct {
			code  int
			entry model.HashEntry
		}
		var items []item
		v.mu.RLock()
		v.index.ForEach(func(code int, e model.HashEntry) bool {
			items = append(items, item{code, e})
			return true
		})
		v.mu.RUnlock()

		for _, it := range items {
			if !yield(it.code, it.entry) {
				return
			}
		}
	}
}

// Stats returns occupancy counters.
func (v *Volume) Stats() Stats {
	v.mu.RLock()
	defer v.mu.RUnlock()

	s := Stats{
		FreeBlocks:     v.index.FreeBlockCount(),
		FreeExcess:     v.index.FreeExcessCount(),
		VisibleEntries: int(v.visible.GetCardinality()),
		Frames:         v.frames,
		MemoryBytes:    v.controller.MemoryUsage(),
	}
	v.index.ForEach(func(_ int, e model.HashEntry) bool {
		s.LiveEntries++
		if e.IsResident() {
			s.ResidentBlocks++
		} else {
			s.EvictedEntries++
		}
		return true
	})
	return s
}

// Close releases the block arena. Further calls fail with ErrClosed.
func (v *Volume) Close() error {
	if v == nil {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.closed = true
	v.visible = roaring.New()
	return v.store.Close()
}
