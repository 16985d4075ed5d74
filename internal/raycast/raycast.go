package raycast

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hupe1980/voxfuse/camera"
	"github.com/hupe1980/voxfuse/internal/hashindex"
	"github.com/hupe1980/voxfuse/internal/parallel"
)

// Result is a per-pixel point and normal map in world coordinates.
// Points[i].W() is 1 where a surface was found and 0 elsewhere.
type Result struct {
	Width   int
	Height  int
	Points  []mgl32.Vec4
	Normals []mgl32.Vec3
}

// At returns the point and normal of pixel (x, y).
func (r *Result) At(x, y int) (mgl32.Vec4, mgl32.Vec3) {
	i := y*r.Width + x
	return r.Points[i], r.Normals[i]
}

// Valid reports whether pixel (x, y) hit a surface.
func (r *Result) Valid(x, y int) bool {
	return r.Points[y*r.Width+x].W() > 0
}

// ValidCount returns the number of pixels that hit a surface.
func (r *Result) ValidCount() int {
	n := 0
	for _, p := range r.Points {
		if p.W() > 0 {
			n++
		}
	}
	return n
}

// Raycast renders the surface seen by cam, searching only the depth ranges
// covered by the visible blocks.
func (e *Engine) Raycast(ctx context.Context, cam camera.Camera, visible *roaring.Bitmap) (*Result, error) {
	ranges, err := e.RangeImage(ctx, cam, visible)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Width:   cam.Width,
		Height:  cam.Height,
		Points:  make([]mgl32.Vec4, cam.Width*cam.Height),
		Normals: make([]mgl32.Vec3, cam.Width*cam.Height),
	}

	err = parallel.For(ctx, cam.Height, e.params.Workers, func(lo, hi int) error {
		cache := e.newCache()
		for y := lo; y < hi; y++ {
			for x := 0; x < cam.Width; x++ {
				zmin, zmax, ok := ranges.Bounds(x, y)
				if !ok {
					continue
				}
				p, ok := e.castRay(cam, float32(x), float32(y), zmin, zmax, cache)
				if !ok {
					continue
				}
				i := y*cam.Width + x
				res.Points[i] = p.Mul(e.params.VoxelSize).Vec4(1)
				res.Normals[i] = e.gradient(p, cache)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// castRay marches pixel (u, v) between camera depths zmin and zmax and
// returns the surface point in voxel units.
func (e *Engine) castRay(cam camera.Camera, u, v, zmin, zmax float32, cache *hashindex.Cache) (mgl32.Vec3, bool) {
	oneOverVoxel := 1 / e.params.VoxelSize
	start := cam.Pose.ToWorld(cam.Intrinsics.Unproject(u, v, zmin)).Mul(oneOverVoxel)
	end := cam.Pose.ToWorld(cam.Intrinsics.Unproject(u, v, zmax)).Mul(oneOverVoxel)

	ray := end.Sub(start)
	length := ray.Len()
	if length <= 0 {
		return mgl32.Vec3{}, false
	}
	dir := ray.Mul(1 / length)

	muVoxels := e.params.Truncation * oneOverVoxel
	skip := math32.Max(muVoxels, 1)

	var (
		prevT   float32
		prevSDF float32
		hasPrev bool
	)
	for t := float32(0); t <= length; {
		p := start.Add(dir.Mul(t))
		sdf, found := e.sampleNearest(p, cache)
		if !found {
			hasPrev = false
			t += skip
			continue
		}
		if sdf <= 0.1 && sdf >= -0.5 {
			sdf = e.sampleTrilinear(p, cache)
		}

		if sdf <= 0 {
			if hasPrev && prevSDF > 0 {
				hit := prevT + (t-prevT)*prevSDF/(prevSDF-sdf)
				return start.Add(dir.Mul(hit)), true
			}
			// Entered behind the surface: step back by the distance estimate.
			q := p.Add(dir.Mul(sdf * muVoxels))
			if e.sampleTrilinear(q, cache) > 0.5 {
				return mgl32.Vec3{}, false
			}
			return q, true
		}

		prevT, prevSDF, hasPrev = t, sdf, true
		t += math32.Max(sdf*muVoxels, 1)
	}
	return mgl32.Vec3{}, false
}
