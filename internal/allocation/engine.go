package allocation

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hupe1980/voxfuse/frame"
	"github.com/hupe1980/voxfuse/internal/hashindex"
	"github.com/hupe1980/voxfuse/internal/parallel"
	"github.com/hupe1980/voxfuse/internal/voxelstore"
	"github.com/hupe1980/voxfuse/model"
)

// Params are the allocation settings.
type Params struct {
	VoxelSize float32
	// Truncation is the TSDF band half-width μ in metres.
	Truncation float32
	// BandFactor scales μ for allocation.
	BandFactor float32
	NearClip   float32
	FarClip    float32
	// OverflowRequests bounds the colliding requests kept per frame.
	OverflowRequests int
	Workers          int
}

// Stats summarises one plan/commit cycle.
type Stats struct {
	// Pixels is the number of depth samples that were marched.
	Pixels int
	// Requests is the number of planned allocations, including overflow.
	Requests int
	// Allocated is the number of new entries.
	Allocated       int
	FailedNoBlocks  int
	FailedNoExcess  int
	DroppedRequests int
}

// Failed returns the number of requests not realized this frame.
func (s Stats) Failed() int {
	return s.FailedNoBlocks + s.FailedNoExcess + s.DroppedRequests
}

// Engine plans and commits block allocations for one index.
// Plan and Commit must not overlap with each other or with other index mutations.
type Engine struct {
	index  *hashindex.Index
	store  *voxelstore.Store
	params Params

	claims   []atomic.Uint64
	overflow []atomic.Uint64
	cursor   atomic.Int64
	dropped  atomic.Int64
	pixels   atomic.Int64
	requests atomic.Int64
}

// New returns an engine for index and store.
func New(index *hashindex.Index, store *voxelstore.Store, params Params) *Engine {
	if params.BandFactor <= 0 {
		params.BandFactor = 1
	}
	return &Engine{
		index:    index,
		store:    store,
		params:   params,
		claims:   make([]atomic.Uint64, index.BucketCount()),
		overflow: make([]atomic.Uint64, params.OverflowRequests),
	}
}

// Allocate runs Plan followed by Commit.
func (e *Engine) Allocate(ctx context.Context, f *frame.Frame) (Stats, error) {
	if err := e.Plan(ctx, f); err != nil {
		e.clear()
		return Stats{}, err
	}
	return e.Commit(ctx)
}

// Plan marks the blocks touched by the frame's truncation band.
func (e *Engine) Plan(ctx context.Context, f *frame.Frame) error {
	depth := f.Depth
	in := f.Intrinsics
	camToWorld := f.Pose.CameraToWorld()
	band := e.params.Truncation * e.params.BandFactor
	toBlocks := 1 / (e.params.VoxelSize * model.BlockSide)
	// Voxel centres sit on grid points, so block b spans [b-1/16, b+15/16).
	shift := mgl32.Vec3{1, 1, 1}.Mul(1 / float32(2*model.BlockSide))

	return parallel.For(ctx, depth.Height, e.params.Workers, func(lo, hi int) error {
		var (
			pixels int64
			last   = noCoord
		)
		mark := func(c model.BlockCoord) { e.mark(c, &last) }

		for y := lo; y < hi; y++ {
			for x := 0; x < depth.Width; x++ {
				z := depth.At(x, y)
				if !frame.ValidDepth(z) || z-band < 0 || z-band < e.params.NearClip || z+band > e.params.FarClip {
					continue
				}
				pixels++

				p := in.Unproject(float32(x), float32(y), z)
				norm := p.Len()
				near := mgl32.TransformCoordinate(p.Mul(1-band/norm), camToWorld).Mul(toBlocks).Add(shift)
				far := mgl32.TransformCoordinate(p.Mul(1+band/norm), camToWorld).Mul(toBlocks).Add(shift)
				marchSegment(segment{origin: near, dir: far.Sub(near)}, mark)
			}
		}
		e.pixels.Add(pixels)
		return nil
	})
}

// Request plans the given blocks directly, as if rays had touched them.
func (e *Engine) Request(ctx context.Context, coords []model.BlockCoord) error {
	return parallel.For(ctx, len(coords), e.params.Workers, func(lo, hi int) error {
		last := noCoord
		for _, c := range coords[lo:hi] {
			e.mark(c, &last)
		}
		return nil
	})
}

// noCoord is outside the int16 grid and never equals a real coordinate.
var noCoord = ^uint64(0)

func (e *Engine) mark(c model.BlockCoord, lastOverflow *uint64) {
	ptr, hashCode, ok := e.index.Find(c)
	if ok {
		if ptr == model.EvictedPtr {
			e.index.SetVisibility(hashCode, model.StreamedOutVisible)
		} else {
			e.index.SetVisibility(hashCode, model.Visible)
		}
		return
	}

	bucket := e.index.Bucket(c)
	state := claimExcess
	if e.index.PrimaryFree(bucket) {
		state = claimPrimary
	}

	packed := packCoord(c)
	if e.claims[bucket].CompareAndSwap(claimNone, state|packed) {
		e.requests.Add(1)
		return
	}
	if e.claims[bucket].Load()&coordMask == packed || *lastOverflow == packed {
		return
	}

	*lastOverflow = packed
	i := e.cursor.Add(1) - 1
	if i >= int64(len(e.overflow)) {
		e.dropped.Add(1)
		return
	}
	e.overflow[i].Store(packed)
	e.requests.Add(1)
}

// Commit realizes the planned allocations and clears the plan.
func (e *Engine) Commit(ctx context.Context) (Stats, error) {
	defer e.resetCounters()

	stats := Stats{
		Pixels:          int(e.pixels.Load()),
		Requests:        int(e.requests.Load()),
		DroppedRequests: int(e.dropped.Load()),
	}

	workers := e.params.Workers
	chunks := parallel.Chunks(len(e.claims), workers)
	excess := make([][]model.BlockCoord, chunks)
	allocated := make([]int, chunks)
	noBlocks := make([]int, chunks)

	err := parallel.ForChunks(ctx, len(e.claims), workers, func(chunk, lo, hi int) error {
		for b := lo; b < hi; b++ {
			w := e.claims[b].Swap(claimNone)
			switch claimState(w) {
			case claimPrimary:
				c := unpackCoord(w)
				ptr, err := e.index.InsertPrimary(b, c)
				if err != nil {
					noBlocks[chunk]++
					continue
				}
				e.store.ResetBlock(ptr)
				e.index.SetVisibility(b, model.Visible)
				allocated[chunk]++
			case claimExcess:
				excess[chunk] = append(excess[chunk], unpackCoord(w))
			}
		}
		return nil
	})
	if err != nil {
		e.clear()
		return stats, err
	}

	for i := range allocated {
		stats.Allocated += allocated[i]
		stats.FailedNoBlocks += noBlocks[i]
	}

	insert := func(c model.BlockCoord) {
		hashCode, ptr, inserted, err := e.index.Insert(c)
		switch {
		case errors.Is(err, hashindex.ErrNoFreeExcess):
			stats.FailedNoExcess++
		case errors.Is(err, hashindex.ErrNoFreeBlocks):
			stats.FailedNoBlocks++
		case err == nil && inserted:
			e.store.ResetBlock(ptr)
			e.index.SetVisibility(hashCode, model.Visible)
			stats.Allocated++
		}
	}

	for _, list := range excess {
		for _, c := range list {
			insert(c)
		}
	}
	n := min(e.cursor.Load(), int64(len(e.overflow)))
	for i := int64(0); i < n; i++ {
		insert(unpackCoord(e.overflow[i].Load()))
	}

	return stats, nil
}

func (e *Engine) clear() {
	for i := range e.claims {
		e.claims[i].Store(claimNone)
	}
	e.resetCounters()
}

func (e *Engine) resetCounters() {
	e.cursor.Store(0)
	e.dropped.Store(0)
	e.pixels.Store(0)
	e.requests.Store(0)
}
