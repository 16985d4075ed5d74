package voxelstore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/voxfuse/model"
)

func TestBlockCodec(t *testing.T) {
	in := make([]model.Voxel, model.BlockVoxels)
	for i := range in {
		in[i] = model.Voxel{
			SDF:         float32(i%200)/100 - 1,
			Weight:      uint16(i),
			ColorWeight: uint16(i / 2),
			Color:       [3]uint8{uint8(i), uint8(i >> 1), uint8(i >> 2)},
		}
	}

	data := AppendBlock([]byte{0xAA}, in)
	require.Len(t, data, 1+BlockBytes)

	out := make([]model.Voxel, model.BlockVoxels)
	require.NoError(t, DecodeBlock(out, data[1:]))
	assert.Equal(t, in, out)
}

func TestDecodeBlockRejectsBadPayload(t *testing.T) {
	out := make([]model.Voxel, 2)
	assert.Error(t, DecodeBlock(out, make([]byte, VoxelBytes)))

	data := AppendBlock(nil, []model.Voxel{model.FreshVoxel(), {SDF: float32(math.NaN())}})
	assert.Error(t, DecodeBlock(out, data))

	data = AppendBlock(nil, []model.Voxel{model.FreshVoxel(), {SDF: 2}})
	assert.Error(t, DecodeBlock(out, data))
}
