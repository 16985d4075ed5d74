package testutil

import (
	"math/rand"
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hupe1980/voxfuse/camera"
	"github.com/hupe1980/voxfuse/frame"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float32, minVal, maxVal float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float32()*span
	}
}

// AddDepthNoise perturbs every valid sample with Gaussian noise of standard
// deviation sigma and drops a fraction of samples to zero.
func (r *RNG) AddDepthNoise(d *frame.DepthImage, sigma, dropout float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, z := range d.Data {
		if !frame.ValidDepth(z) {
			continue
		}
		if r.rand.Float32() < dropout {
			d.Data[i] = 0
			continue
		}
		d.Data[i] = z + float32(r.rand.NormFloat64())*sigma
	}
}

// SmallIntrinsics returns a 64×48 pinhole camera with focal length 50 px.
func SmallIntrinsics() camera.Intrinsics {
	return camera.Intrinsics{Fx: 50, Fy: 50, Cx: 32, Cy: 24}
}

// PlanarDepth returns a depth image of a fronto-parallel plane at depth z.
func PlanarDepth(width, height int, z float32) *frame.DepthImage {
	d := frame.NewDepthImage(width, height)
	for i := range d.Data {
		d.Data[i] = z
	}
	return d
}

// PlanarFrame returns a frame observing a fronto-parallel plane at depth z.
func PlanarFrame(width, height int, in camera.Intrinsics, z float32, pose camera.Pose) *frame.Frame {
	return &frame.Frame{
		Depth:      PlanarDepth(width, height, z),
		Intrinsics: in,
		Pose:       pose,
	}
}

// SphereDepth renders the depth of a sphere seen from pose. Pixels that miss
// the sphere are zero.
func SphereDepth(width, height int, in camera.Intrinsics, pose camera.Pose, center mgl32.Vec3, radius float32) *frame.DepthImage {
	d := frame.NewDepthImage(width, height)
	c := pose.ToCamera(center)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dir := in.Unproject(float32(x), float32(y), 1)
			// |t*dir - c|^2 = r^2
			a := dir.Dot(dir)
			b := -2 * dir.Dot(c)
			k := c.Dot(c) - radius*radius
			disc := b*b - 4*a*k
			if disc < 0 {
				continue
			}
			t := (-b - math32.Sqrt(disc)) / (2 * a)
			if t > 0 {
				d.Set(x, y, t)
			}
		}
	}
	return d
}

// UniformColor returns a colour image filled with rgb.
func UniformColor(width, height int, rgb [3]uint8) *frame.ColorImage {
	c := frame.NewColorImage(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c.Set(x, y, rgb)
		}
	}
	return c
}
