package raycast

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/voxfuse/camera"
	"github.com/hupe1980/voxfuse/model"
	"github.com/hupe1980/voxfuse/testutil"
)

func TestBlockVisible(t *testing.T) {
	s := newScene(t, testParams())
	cam := camera.New(testutil.SmallIntrinsics(), camera.IdentityPose(), 64, 48)

	assert.True(t, s.engine.BlockVisible(model.BlockCoord{Z: 24}, cam, false))
	assert.False(t, s.engine.BlockVisible(model.BlockCoord{Z: -24}, cam, false))

	// Block 17 starts at x = 1.36 m and projects to u in [66, 70], right
	// of the image but inside the enlarged bounds.
	c := model.BlockCoord{X: 17, Z: 24}
	assert.False(t, s.engine.BlockVisible(c, cam, false))
	assert.True(t, s.engine.BlockVisible(c, cam, true))
}

func TestVisibilityToggleKeepsBlocks(t *testing.T) {
	ctx := context.Background()
	s := newScene(t, testParams())
	s.fusePlane(t, 2)
	live := s.index.LiveCount()
	require.Positive(t, live)

	visible, err := s.engine.UpdateVisibility(ctx, awayCamera())
	require.NoError(t, err)
	assert.True(t, visible.IsEmpty())
	assert.Equal(t, live, countState(s.index, model.Invisible))
	assert.Equal(t, live, s.index.LiveCount())

	visible, err = s.engine.UpdateVisibility(ctx, s.cam)
	require.NoError(t, err)
	assert.False(t, visible.IsEmpty())
	assert.Equal(t, int(visible.GetCardinality()), countState(s.index, model.Visible))
	assert.Equal(t, live, s.index.LiveCount())
	require.NoError(t, s.index.Check())
}

func TestDemoteAndRetest(t *testing.T) {
	ctx := context.Background()
	s := newScene(t, testParams())
	s.fusePlane(t, 2)

	before, err := s.engine.FindVisibleBlocks(ctx, s.cam)
	require.NoError(t, err)

	require.NoError(t, s.engine.DemoteVisible(ctx))
	assert.Equal(t, 0, countState(s.index, model.Visible))
	assert.Equal(t, int(before.GetCardinality()), countState(s.index, model.VisiblePreviousFrame))

	after, err := s.engine.RetestPrevious(ctx, s.cam)
	require.NoError(t, err)
	assert.True(t, before.Equals(after))
	assert.Equal(t, 0, countState(s.index, model.VisiblePreviousFrame))

	require.NoError(t, s.engine.DemoteVisible(ctx))
	gone, err := s.engine.RetestPrevious(ctx, awayCamera())
	require.NoError(t, err)
	assert.True(t, gone.IsEmpty())
	assert.Equal(t, 0, countState(s.index, model.VisiblePreviousFrame))
}

func TestEvictedBlockIsStreamedOutVisible(t *testing.T) {
	ctx := context.Background()
	s := newScene(t, testParams())
	code, _, _, err := s.index.Insert(model.BlockCoord{Z: 24})
	require.NoError(t, err)
	_, err = s.index.Evict(code)
	require.NoError(t, err)

	cam := camera.New(testutil.SmallIntrinsics(), camera.IdentityPose(), 64, 48)
	visible, err := s.engine.UpdateVisibility(ctx, cam)
	require.NoError(t, err)
	assert.True(t, visible.IsEmpty())
	assert.Equal(t, model.StreamedOutVisible, s.index.Visibility(code))

	found, err := s.engine.FindVisibleBlocks(ctx, cam)
	require.NoError(t, err)
	assert.True(t, found.IsEmpty())
}
