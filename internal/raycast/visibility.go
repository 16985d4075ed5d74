package raycast

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hupe1980/voxfuse/camera"
	"github.com/hupe1980/voxfuse/internal/parallel"
	"github.com/hupe1980/voxfuse/model"
)

// BlockVisible reports whether any corner of block c projects into the
// image of cam. The enlarged test widens the image by an eighth on each side.
func (e *Engine) BlockVisible(c model.BlockCoord, cam camera.Camera, enlarged bool) bool {
	size := e.params.VoxelSize * model.BlockSide
	m := cam.Pose.WorldToCamera()

	minU, maxU := float32(0), float32(cam.Width)
	minV, maxV := float32(0), float32(cam.Height)
	if enlarged {
		minU, maxU = -float32(cam.Width/8), float32(cam.Width+cam.Width/8)
		minV, maxV = -float32(cam.Height/8), float32(cam.Height+cam.Height/8)
	}

	base := mgl32.Vec3{float32(c.X), float32(c.Y), float32(c.Z)}.Mul(size)
	for i := 0; i < 8; i++ {
		corner := base.Add(mgl32.Vec3{float32(i & 1), float32(i >> 1 & 1), float32(i >> 2 & 1)}.Mul(size))
		p := m.Mul4x1(corner.Vec4(1)).Vec3()
		if p.Z() < 1e-10 {
			continue
		}
		u, v := cam.Intrinsics.Project(p)
		if u >= minU && u < maxU && v >= minV && v < maxV {
			return true
		}
	}
	return false
}

// DemoteVisible marks every entry seen in the last frame as
// VisiblePreviousFrame.
func (e *Engine) DemoteVisible(ctx context.Context) error {
	return parallel.For(ctx, e.index.Len(), e.params.Workers, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			switch e.index.Visibility(i) {
			case model.Visible, model.StreamedOutVisible:
				e.index.SetVisibility(i, model.VisiblePreviousFrame)
			}
		}
		return nil
	})
}

// RetestPrevious resolves every VisiblePreviousFrame entry against cam and
// returns the hash codes of all resident Visible entries.
func (e *Engine) RetestPrevious(ctx context.Context, cam camera.Camera) (*roaring.Bitmap, error) {
	return e.collect(ctx, func(i int, entry model.HashEntry) bool {
		vis := e.index.Visibility(i)
		if vis == model.VisiblePreviousFrame {
			vis = e.classify(entry, cam)
			e.index.SetVisibility(i, vis)
		}
		return vis == model.Visible && entry.IsResident()
	})
}

// UpdateVisibility classifies every entry against cam and returns the hash
// codes of the resident visible ones.
func (e *Engine) UpdateVisibility(ctx context.Context, cam camera.Camera) (*roaring.Bitmap, error) {
	return e.collect(ctx, func(i int, entry model.HashEntry) bool {
		vis := model.Invisible
		if entry.IsAllocated() {
			vis = e.classify(entry, cam)
		}
		e.index.SetVisibility(i, vis)
		return vis == model.Visible
	})
}

// FindVisibleBlocks returns the resident entries visible from cam without
// touching the stored visibility state.
func (e *Engine) FindVisibleBlocks(ctx context.Context, cam camera.Camera) (*roaring.Bitmap, error) {
	return e.collect(ctx, func(_ int, entry model.HashEntry) bool {
		return entry.IsResident() && e.BlockVisible(entry.Pos, cam, false)
	})
}

func (e *Engine) classify(entry model.HashEntry, cam camera.Camera) model.Visibility {
	switch {
	case entry.IsResident() && e.BlockVisible(entry.Pos, cam, false):
		return model.Visible
	case entry.IsEvicted() && e.BlockVisible(entry.Pos, cam, true):
		return model.StreamedOutVisible
	default:
		return model.Invisible
	}
}

// collect evaluates keep for every entry in parallel and merges the
// per-chunk results.
func (e *Engine) collect(ctx context.Context, keep func(i int, entry model.HashEntry) bool) (*roaring.Bitmap, error) {
	n := e.index.Len()
	parts := make([]*roaring.Bitmap, parallel.Chunks(n, e.params.Workers))

	err := parallel.ForChunks(ctx, n, e.params.Workers, func(chunk, lo, hi int) error {
		bm := roaring.New()
		for i := lo; i < hi; i++ {
			if keep(i, e.index.Entry(i)) {
				bm.Add(uint32(i))
			}
		}
		parts[chunk] = bm
		return nil
	})
	if err != nil {
		return nil, err
	}

	return roaring.FastOr(parts...), nil
}
