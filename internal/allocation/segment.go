package allocation

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hupe1980/voxfuse/model"
)

// segment is a line segment in block units.
type segment struct {
	origin, dir mgl32.Vec3
}

// marchSegment calls visit for every block the segment passes through.
// It strides in half blocks and, when a stride changes more than one axis,
// also visits the skipped neighbours that the segment actually crosses.
// Blocks whose coordinate overflows int16 are skipped.
func marchSegment(s segment, visit func(model.BlockCoord)) {
	steps := max(int(math32.Ceil(2*s.dir.Len())), 2)
	stride := s.dir.Mul(1 / float32(steps-1))

	var prev [3]int
	p := s.origin
	for i := 0; i < steps; i++ {
		cur := [3]int{floor(p[0]), floor(p[1]), floor(p[2])}
		if i > 0 && cur != prev {
			switch changedAxes(prev, cur) {
			case 2:
				for a := 0; a < 3; a++ {
					if cur[a] != prev[a] {
						n := prev
						n[a] = cur[a]
						visitIfCrossed(s, n, visit)
					}
				}
			case 3:
				for a := 0; a < 3; a++ {
					n := prev
					n[a] = cur[a]
					visitIfCrossed(s, n, visit)
					n = cur
					n[a] = prev[a]
					visitIfCrossed(s, n, visit)
				}
			}
		}
		if i == 0 || cur != prev {
			visitBlock(cur, visit)
		}
		prev = cur
		p = p.Add(stride)
	}
}

func floor(v float32) int {
	return int(math32.Floor(v))
}

func changedAxes(a, b [3]int) int {
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

func visitIfCrossed(s segment, b [3]int, visit func(model.BlockCoord)) {
	cube := mgl32.Vec3{float32(b[0]), float32(b[1]), float32(b[2])}
	if segmentIntersectsCube(s, cube, 1) {
		visitBlock(b, visit)
	}
}

func visitBlock(b [3]int, visit func(model.BlockCoord)) {
	if c, ok := model.BlockCoordOf(b[0], b[1], b[2]); ok {
		visit(c)
	}
}

// segmentIntersectsCube is a slab test against the cube [corner, corner+size]^3.
func segmentIntersectsCube(s segment, corner mgl32.Vec3, size float32) bool {
	tmin, tmax := float32(0), float32(1)
	for a := 0; a < 3; a++ {
		o, d := s.origin[a], s.dir[a]
		lo, hi := corner[a], corner[a]+size
		if math32.Abs(d) < 1e-12 {
			if o < lo || o > hi {
				return false
			}
			continue
		}
		t1, t2 := (lo-o)/d, (hi-o)/d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math32.Max(tmin, t1)
		tmax = math32.Min(tmax, t2)
		if tmin > tmax {
			return false
		}
	}
	return true
}
