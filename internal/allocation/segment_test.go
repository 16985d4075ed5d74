package allocation

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/voxfuse/model"
)

func visited(s segment) map[model.BlockCoord]bool {
	out := make(map[model.BlockCoord]bool)
	marchSegment(s, func(c model.BlockCoord) { out[c] = true })
	return out
}

func TestPackCoord(t *testing.T) {
	for _, c := range []model.BlockCoord{{X: 0, Y: 0, Z: 0}, {X: -1, Y: 2, Z: -3}, {X: 32767, Y: -32768, Z: 7}} {
		w := claimExcess | packCoord(c)
		assert.Equal(t, c, unpackCoord(w))
		assert.Equal(t, claimExcess, claimState(w))
	}
}

func TestMarchSegmentStraight(t *testing.T) {
	got := visited(segment{origin: mgl32.Vec3{0.5, 0.5, 0.2}, dir: mgl32.Vec3{0, 0, 3.5}})
	assert.Equal(t, map[model.BlockCoord]bool{
		{X: 0, Y: 0, Z: 0}: true, {X: 0, Y: 0, Z: 1}: true, {X: 0, Y: 0, Z: 2}: true, {X: 0, Y: 0, Z: 3}: true,
	}, got)
}

func TestMarchSegmentShort(t *testing.T) {
	// Shorter than half a block still yields both end blocks.
	got := visited(segment{origin: mgl32.Vec3{0.5, 0.5, 0.9}, dir: mgl32.Vec3{0, 0, 0.2}})
	assert.True(t, got[model.BlockCoord{X: 0, Y: 0, Z: 0}])
	assert.True(t, got[model.BlockCoord{X: 0, Y: 0, Z: 1}])
	assert.Len(t, got, 2)
}

func TestMarchSegmentDiagonalHasNoGaps(t *testing.T) {
	segments := []segment{
		{origin: mgl32.Vec3{0.1, 0.1, 0.1}, dir: mgl32.Vec3{2.8, 2.1, 1.6}},
		{origin: mgl32.Vec3{-1.3, 0.7, 4.2}, dir: mgl32.Vec3{1.9, -1.45, -0.85}},
		{origin: mgl32.Vec3{0.95, 0.07, 0.5}, dir: mgl32.Vec3{0.1, -0.1, 0}},
	}

	for _, s := range segments {
		got := visited(s)
		// Every block containing a fine sample must be visited.
		for i := 0; i <= 1000; i++ {
			p := s.origin.Add(s.dir.Mul(float32(i) / 1000))
			c, ok := model.BlockCoordOf(floor(p[0]), floor(p[1]), floor(p[2]))
			assert.True(t, ok)
			assert.True(t, got[c], "segment %v misses %v", s, c)
		}
		// And nothing else.
		for c := range got {
			cube := mgl32.Vec3{float32(c.X), float32(c.Y), float32(c.Z)}
			assert.True(t, segmentIntersectsCube(s, cube, 1), "segment %v does not cross %v", s, c)
		}
	}
}

func TestSegmentIntersectsCube(t *testing.T) {
	s := segment{origin: mgl32.Vec3{0.5, 0.5, 0.5}, dir: mgl32.Vec3{1, 1, 0}}
	assert.True(t, segmentIntersectsCube(s, mgl32.Vec3{1, 1, 0}, 1))
	assert.False(t, segmentIntersectsCube(s, mgl32.Vec3{1, 1, 1}, 1))
	assert.False(t, segmentIntersectsCube(s, mgl32.Vec3{3, 3, 0}, 1))
}
