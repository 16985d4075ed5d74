package allocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/voxfuse/camera"
	"github.com/hupe1980/voxfuse/internal/hashindex"
	"github.com/hupe1980/voxfuse/internal/voxelstore"
	"github.com/hupe1980/voxfuse/model"
	"github.com/hupe1980/voxfuse/testutil"
)

func testParams() Params {
	return Params{
		VoxelSize:        0.01,
		Truncation:       0.04,
		BandFactor:       1,
		NearClip:         0.2,
		FarClip:          3,
		OverflowRequests: 64,
		Workers:          4,
	}
}

func newEngine(t *testing.T, buckets, excess, blocks int, p Params) (*Engine, *hashindex.Index, *voxelstore.Store) {
	t.Helper()
	ix, err := hashindex.New(buckets, excess, blocks)
	require.NoError(t, err)
	st, err := voxelstore.New(context.Background(), blocks)
	require.NoError(t, err)
	return New(ix, st, p), ix, st
}

func collidingCoords(n int) []model.BlockCoord {
	coords := make([]model.BlockCoord, n)
	for i := range coords {
		coords[i] = model.BlockCoord{X: int16(i), Y: 3, Z: -2}
	}
	return coords
}

func TestAllocatePlanarFrame(t *testing.T) {
	p := testParams()
	p.OverflowRequests = 4096
	e, ix, _ := newEngine(t, 0x4000, 0x1000, 4096, p)
	f := testutil.PlanarFrame(64, 48, testutil.SmallIntrinsics(), 2, camera.IdentityPose())

	stats, err := e.Allocate(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, 64*48, stats.Pixels)
	assert.Positive(t, stats.Allocated)
	assert.Equal(t, 0, stats.Failed())
	assert.Equal(t, stats.Allocated, ix.LiveCount())
	require.NoError(t, ix.Check())

	// The band [1.96, 2.04] around the optical axis spans blocks 24 and 25.
	for _, c := range []model.BlockCoord{{X: 0, Y: 0, Z: 24}, {X: 0, Y: 0, Z: 25}, {X: -1, Y: -1, Z: 24}} {
		ptr, hashCode, ok := ix.Find(c)
		require.True(t, ok, "%v", c)
		assert.GreaterOrEqual(t, ptr, int32(0))
		assert.Equal(t, model.Visible, ix.Visibility(hashCode))
	}
	_, _, ok := ix.Find(model.BlockCoord{Z: 23})
	assert.False(t, ok)
	_, _, ok = ix.Find(model.BlockCoord{Z: 26})
	assert.False(t, ok)

	// A second pass over the same frame finds everything in place.
	again, err := e.Allocate(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Allocated)
	assert.Equal(t, 0, again.Requests)
	assert.Equal(t, stats.Allocated, ix.LiveCount())
}

func TestAllocateSkipsClippedDepth(t *testing.T) {
	p := testParams()
	p.FarClip = 1.5
	e, ix, _ := newEngine(t, 0x400, 0x100, 256, p)

	f := testutil.PlanarFrame(64, 48, testutil.SmallIntrinsics(), 2, camera.IdentityPose())
	f.Depth.Set(0, 0, 1)
	stats, err := e.Allocate(context.Background(), f)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Pixels)
	assert.Equal(t, stats.Allocated, ix.LiveCount())
}

func TestRequestDeduplicates(t *testing.T) {
	e, ix, _ := newEngine(t, 64, 16, 64, testParams())

	coords := make([]model.BlockCoord, 1000)
	for i := range coords {
		coords[i] = model.BlockCoord{X: 1, Y: 2, Z: 3}
	}
	require.NoError(t, e.Request(context.Background(), coords))
	stats, err := e.Commit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Allocated)
	assert.Equal(t, 1, ix.LiveCount())
}

func TestExcessExhaustion(t *testing.T) {
	// One bucket: every coordinate collides.
	e, ix, st := newEngine(t, 1, 3, 64, testParams())

	require.NoError(t, e.Request(context.Background(), collidingCoords(10)))
	stats, err := e.Commit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Allocated)
	assert.Equal(t, 6, stats.FailedNoExcess)
	assert.Equal(t, 0, ix.FreeExcessCount())
	require.NoError(t, ix.Check())

	// Every realized block is fresh and findable.
	found := 0
	for _, c := range collidingCoords(10) {
		if ptr, _, ok := ix.Find(c); ok {
			found++
			assert.Equal(t, model.FreshVoxel(), st.Voxel(ptr, 0))
		}
	}
	assert.Equal(t, 4, found)

	// Later frames keep failing gracefully.
	require.NoError(t, e.Request(context.Background(), collidingCoords(12)))
	stats, err = e.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Allocated)
	assert.Equal(t, 8, stats.FailedNoExcess)
	require.NoError(t, ix.Check())
}

func TestBlockExhaustion(t *testing.T) {
	e, ix, _ := newEngine(t, 1024, 64, 2, testParams())

	coords := []model.BlockCoord{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}, {X: 3, Y: 0, Z: 0}, {X: 4, Y: 0, Z: 0}}
	require.NoError(t, e.Request(context.Background(), coords))
	stats, err := e.Commit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Allocated)
	assert.Equal(t, 3, stats.FailedNoBlocks)
	assert.Equal(t, 0, ix.FreeBlockCount())
	require.NoError(t, ix.Check())
}

func TestOverflowDrops(t *testing.T) {
	p := testParams()
	p.OverflowRequests = 2
	p.Workers = 1
	e, ix, _ := newEngine(t, 1, 16, 64, p)

	require.NoError(t, e.Request(context.Background(), collidingCoords(6)))
	stats, err := e.Commit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Requests)
	assert.Equal(t, 3, stats.DroppedRequests)
	assert.Equal(t, 3, stats.Allocated)
	assert.Equal(t, 3, ix.LiveCount())

	// The plan was cleared, so the next frame picks up the rest.
	require.NoError(t, e.Request(context.Background(), collidingCoords(6)))
	stats, err = e.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Allocated)
	assert.Equal(t, 6, ix.LiveCount())
}

func TestEvictedBlocksAreFlagged(t *testing.T) {
	e, ix, _ := newEngine(t, 64, 16, 64, testParams())

	c := model.BlockCoord{X: 5}
	hashCode, _, _, err := ix.Insert(c)
	require.NoError(t, err)
	_, err = ix.Evict(hashCode)
	require.NoError(t, err)

	require.NoError(t, e.Request(context.Background(), []model.BlockCoord{c}))
	stats, err := e.Commit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Allocated)
	assert.Equal(t, model.StreamedOutVisible, ix.Visibility(hashCode))
}

func TestAllocateCanceled(t *testing.T) {
	e, ix, _ := newEngine(t, 64, 16, 64, testParams())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := testutil.PlanarFrame(64, 48, testutil.SmallIntrinsics(), 2, camera.IdentityPose())
	_, err := e.Allocate(ctx, f)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, ix.LiveCount())

	// The engine is reusable after a cancelled frame.
	require.NoError(t, e.Request(context.Background(), []model.BlockCoord{{X: 1, Y: 1, Z: 1}}))
	stats, err := e.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Allocated)
}
