package testutil

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/voxfuse/camera"
	"github.com/hupe1980/voxfuse/frame"
)

func TestPlanarFrame(t *testing.T) {
	f := PlanarFrame(64, 48, SmallIntrinsics(), 2, camera.IdentityPose())
	require.NoError(t, f.Validate())
	assert.Equal(t, float32(2), f.Depth.At(10, 10))
}

func TestSphereDepth(t *testing.T) {
	in := SmallIntrinsics()
	d := SphereDepth(64, 48, in, camera.IdentityPose(), mgl32.Vec3{0, 0, 2}, 0.5)

	assert.InDelta(t, 1.5, d.At(32, 24), 1e-5)
	assert.False(t, frame.ValidDepth(d.At(0, 0)))
}

func TestAddDepthNoiseIsSeeded(t *testing.T) {
	a := PlanarDepth(16, 16, 1)
	b := PlanarDepth(16, 16, 1)

	NewRNG(4711).AddDepthNoise(a, 0.01, 0.1)
	NewRNG(4711).AddDepthNoise(b, 0.01, 0.1)
	assert.Equal(t, a.Data, b.Data)

	dropped := 0
	for _, z := range a.Data {
		if z == 0 {
			dropped++
		} else {
			assert.InDelta(t, 1, z, 0.1)
		}
	}
	assert.Positive(t, dropped)
}

func TestUniformColor(t *testing.T) {
	c := UniformColor(4, 4, [3]uint8{1, 2, 3})
	assert.Equal(t, [3]uint8{1, 2, 3}, c.At(3, 3))
}
