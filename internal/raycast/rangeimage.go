package raycast

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hupe1980/voxfuse/camera"
	"github.com/hupe1980/voxfuse/internal/parallel"
	"github.com/hupe1980/voxfuse/model"
)

// RangeImage holds per-cell depth bounds of the visible blocks.
// A cell with Min > Max contains no block.
type RangeImage struct {
	Width     int
	Height    int
	Subsample int
	Min       []float32
	Max       []float32
}

func newRangeImage(imgW, imgH, sub int) *RangeImage {
	w, h := (imgW+sub-1)/sub, (imgH+sub-1)/sub
	r := &RangeImage{Width: w, Height: h, Subsample: sub, Min: make([]float32, w*h), Max: make([]float32, w*h)}
	for i := range r.Min {
		r.Min[i] = math32.MaxFloat32
		r.Max[i] = -math32.MaxFloat32
	}
	return r
}

// Bounds returns the depth range of the cell containing pixel (x, y).
func (r *RangeImage) Bounds(x, y int) (zmin, zmax float32, ok bool) {
	i := (y/r.Subsample)*r.Width + x/r.Subsample
	return r.Min[i], r.Max[i], r.Min[i] <= r.Max[i]
}

func (r *RangeImage) merge(o *RangeImage) {
	for i := range r.Min {
		r.Min[i] = math32.Min(r.Min[i], o.Min[i])
		r.Max[i] = math32.Max(r.Max[i], o.Max[i])
	}
}

// RangeImage rasterises the projected extents of the visible blocks.
func (e *Engine) RangeImage(ctx context.Context, cam camera.Camera, visible *roaring.Bitmap) (*RangeImage, error) {
	sub := e.params.RangeSubsample
	codes := visible.ToArray()
	parts := make([]*RangeImage, parallel.Chunks(len(codes), e.params.Workers))

	err := parallel.ForChunks(ctx, len(codes), e.params.Workers, func(chunk, lo, hi int) error {
		part := newRangeImage(cam.Width, cam.Height, sub)
		for _, code := range codes[lo:hi] {
			entry := e.index.Entry(int(code))
			if entry.IsResident() {
				e.rasterBlock(part, entry.Pos, cam)
			}
		}
		parts[chunk] = part
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := newRangeImage(cam.Width, cam.Height, sub)
	for _, p := range parts {
		out.merge(p)
	}
	return out, nil
}

func (e *Engine) rasterBlock(r *RangeImage, c model.BlockCoord, cam camera.Camera) {
	vs := e.params.VoxelSize
	// Voxel centres span [8b, 8b+7]; pad by one voxel for interpolation.
	lo := mgl32.Vec3{float32(c.X), float32(c.Y), float32(c.Z)}.Mul(model.BlockSide).Sub(mgl32.Vec3{1, 1, 1}).Mul(vs)
	size := float32(model.BlockSide+1) * vs
	m := cam.Pose.WorldToCamera()

	const inf = float32(math32.MaxFloat32)
	umin, vmin, zmin := inf, inf, inf
	umax, vmax, zmax := -inf, -inf, -inf
	front := 0
	for i := 0; i < 8; i++ {
		corner := lo.Add(mgl32.Vec3{float32(i & 1), float32(i >> 1 & 1), float32(i >> 2 & 1)}.Mul(size))
		p := m.Mul4x1(corner.Vec4(1)).Vec3()
		if p.Z() < 1e-6 {
			continue
		}
		front++
		u, v := cam.Intrinsics.Project(p)
		umin, umax = math32.Min(umin, u), math32.Max(umax, u)
		vmin, vmax = math32.Min(vmin, v), math32.Max(vmax, v)
		zmin, zmax = math32.Min(zmin, p.Z()), math32.Max(zmax, p.Z())
	}
	if front == 0 || zmax < e.params.NearClip {
		return
	}
	if front < 8 {
		// Straddles the image plane: the projection is unbounded.
		umin, vmin = 0, 0
		umax, vmax = float32(cam.Width), float32(cam.Height)
	}
	zmin = math32.Max(zmin, e.params.NearClip)
	if e.params.FarClip > 0 {
		zmax = math32.Min(zmax, e.params.FarClip)
	}
	if zmin > zmax {
		return
	}

	sub := float32(r.Subsample)
	x0 := max(int(math32.Floor(umin/sub)), 0)
	y0 := max(int(math32.Floor(vmin/sub)), 0)
	x1 := min(int(math32.Floor(umax/sub)), r.Width-1)
	y1 := min(int(math32.Floor(vmax/sub)), r.Height-1)

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			i := y*r.Width + x
			r.Min[i] = math32.Min(r.Min[i], zmin)
			r.Max[i] = math32.Max(r.Max[i], zmax)
		}
	}
}
