// Package integration fuses depth and colour samples into the voxels of the
// visible blocks.
//
// One work item owns one block, so no two goroutines ever touch the same
// voxel and fusion needs no synchronisation.
package integration

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hupe1980/voxfuse/camera"
	"github.com/hupe1980/voxfuse/frame"
	"github.com/hupe1980/voxfuse/internal/hashindex"
	"github.com/hupe1980/voxfuse/internal/parallel"
	"github.com/hupe1980/voxfuse/internal/voxelstore"
	"github.com/hupe1980/voxfuse/model"
)

// colorBand is the fraction of μ inside which colour is fused.
const colorBand = 0.25

// Params are the fusion settings.
type Params struct {
	VoxelSize float32
	// Truncation is the TSDF band half-width μ in metres.
	Truncation      float32
	MaxWeight       uint16
	StopAtMaxWeight bool
	IntegrateColor  bool
	Workers         int
}

// Stats summarises one integration pass.
type Stats struct {
	Blocks      int
	Voxels      int
	ColorVoxels int
}

// Engine integrates frames into one index/store pair.
type Engine struct {
	index  *hashindex.Index
	store  *voxelstore.Store
	params Params
}

// New returns an integration engine.
func New(index *hashindex.Index, store *voxelstore.Store, params Params) *Engine {
	return &Engine{index: index, store: store, params: params}
}

type view struct {
	depth    *frame.DepthImage
	in       camera.Intrinsics
	m        mgl32.Mat4
	color    *frame.ColorImage
	colorIn  camera.Intrinsics
	colorM   mgl32.Mat4
	hasColor bool
}

// Integrate fuses f into every resident block whose hash code is in visible.
func (e *Engine) Integrate(ctx context.Context, f *frame.Frame, visible *roaring.Bitmap) (Stats, error) {
	codes := visible.ToArray()

	v := view{
		depth: f.Depth,
		in:    f.Intrinsics,
		m:     f.Pose.WorldToCamera(),
	}
	if e.params.IntegrateColor && f.Color != nil {
		cc := f.ColorCamera()
		v.color, v.colorIn, v.colorM, v.hasColor = f.Color, cc.Intrinsics, cc.Pose.WorldToCamera(), true
	}

	chunks := parallel.Chunks(len(codes), e.params.Workers)
	partial := make([]Stats, chunks)

	err := parallel.ForChunks(ctx, len(codes), e.params.Workers, func(chunk, lo, hi int) error {
		s := &partial[chunk]
		for _, code := range codes[lo:hi] {
			entry := e.index.Entry(int(code))
			if !entry.IsResident() {
				continue
			}
			s.Blocks++
			e.integrateBlock(entry, &v, s)
		}
		return nil
	})

	var total Stats
	for _, s := range partial {
		total.Blocks += s.Blocks
		total.Voxels += s.Voxels
		total.ColorVoxels += s.ColorVoxels
	}
	return total, err
}

func (e *Engine) integrateBlock(entry model.HashEntry, v *view, s *Stats) {
	mu := e.params.Truncation
	vs := e.params.VoxelSize
	w, h := float32(v.depth.Width), float32(v.depth.Height)
	block := e.store.Block(entry.Ptr)

	bx := int(entry.Pos.X) * model.BlockSide
	by := int(entry.Pos.Y) * model.BlockSide
	bz := int(entry.Pos.Z) * model.BlockSide

	for local := range block {
		vox := &block[local]
		if e.params.StopAtMaxWeight && vox.Weight >= e.params.MaxWeight {
			continue
		}

		lx, ly, lz := model.LocalPosition(local)
		world := mgl32.Vec4{float32(bx+lx) * vs, float32(by+ly) * vs, float32(bz+lz) * vs, 1}

		p := v.m.Mul4x1(world).Vec3()
		if p.Z() <= 0 {
			continue
		}
		u, vv := v.in.Project(p)
		if u < 1 || u > w-2 || vv < 1 || vv > h-2 {
			continue
		}

		d := v.depth.At(int(u+0.5), int(vv+0.5))
		if !frame.ValidDepth(d) {
			continue
		}
		eta := d - p.Z()
		if math32.Abs(eta) > mu {
			continue
		}

		if voxelstore.FuseDepth(vox, eta/mu, e.params.MaxWeight, e.params.StopAtMaxWeight) {
			s.Voxels++
		}

		if !v.hasColor || math32.Abs(eta) > colorBand*mu {
			continue
		}
		pc := v.colorM.Mul4x1(world).Vec3()
		if pc.Z() <= 0 {
			continue
		}
		cu, cv := v.colorIn.Project(pc)
		rgb, ok := v.color.Bilinear(cu, cv)
		if !ok {
			continue
		}
		if voxelstore.FuseColor(vox, rgb, e.params.MaxWeight, e.params.StopAtMaxWeight) {
			s.ColorVoxels++
		}
	}
}
