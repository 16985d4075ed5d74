package raycast

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hupe1980/voxfuse/internal/hashindex"
	"github.com/hupe1980/voxfuse/model"
)

// voxelSDF returns the distance value of the voxel at integer voxel
// position (x, y, z). found is false outside resident blocks, where the
// value reads as 1.
func (e *Engine) voxelSDF(x, y, z int, cache *hashindex.Cache) (sdf float32, found bool) {
	c, local, ok := model.VoxelToBlock(x, y, z)
	if !ok {
		return 1, false
	}
	ptr, ok := e.index.FindCached(c, cache)
	if !ok {
		return 1, false
	}
	return e.store.SDF(ptr, local), true
}

// sampleNearest reads the voxel closest to p (voxel units).
func (e *Engine) sampleNearest(p mgl32.Vec3, cache *hashindex.Cache) (float32, bool) {
	return e.voxelSDF(round(p[0]), round(p[1]), round(p[2]), cache)
}

// sampleTrilinear interpolates the distance field at p (voxel units).
// Missing neighbours contribute 1.
func (e *Engine) sampleTrilinear(p mgl32.Vec3, cache *hashindex.Cache) float32 {
	bx, by, bz := math32.Floor(p[0]), math32.Floor(p[1]), math32.Floor(p[2])
	fx, fy, fz := p[0]-bx, p[1]-by, p[2]-bz
	x, y, z := int(bx), int(by), int(bz)

	var v [8]float32
	for i := range v {
		v[i], _ = e.voxelSDF(x+i&1, y+(i>>1)&1, z+(i>>2)&1, cache)
	}

	c00 := v[0]*(1-fx) + v[1]*fx
	c10 := v[2]*(1-fx) + v[3]*fx
	c01 := v[4]*(1-fx) + v[5]*fx
	c11 := v[6]*(1-fx) + v[7]*fx
	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy
	return c0*(1-fz) + c1*fz
}

// gradient returns the normalized central-difference gradient at p, which
// points away from the surface towards free space.
func (e *Engine) gradient(p mgl32.Vec3, cache *hashindex.Cache) mgl32.Vec3 {
	var g mgl32.Vec3
	for a := 0; a < 3; a++ {
		var d mgl32.Vec3
		d[a] = 1
		g[a] = e.sampleTrilinear(p.Add(d), cache) - e.sampleTrilinear(p.Sub(d), cache)
	}
	if l := g.Len(); l > 0 {
		return g.Mul(1 / l)
	}
	return g
}

func round(v float32) int {
	return int(math32.Floor(v + 0.5))
}
