package voxelstore

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/voxfuse/model"
)

// AppendBlock appends the little-endian encoding of voxels to dst.
// Each voxel is [sdf f32][weight u16][color weight u16][r g b][pad].
func AppendBlock(dst []byte, voxels []model.Voxel) []byte {
	var buf [VoxelBytes]byte
	for _, v := range voxels {
		binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(v.SDF))
		binary.LittleEndian.PutUint16(buf[4:], v.Weight)
		binary.LittleEndian.PutUint16(buf[6:], v.ColorWeight)
		buf[8], buf[9], buf[10] = v.Color[0], v.Color[1], v.Color[2]
		dst = append(dst, buf[:]...)
	}
	return dst
}

// DecodeBlock decodes len(dst) voxels from src.
func DecodeBlock(dst []model.Voxel, src []byte) error {
	if len(src) != len(dst)*VoxelBytes {
		return fmt.Errorf("voxelstore: block payload is %d bytes, want %d", len(src), len(dst)*VoxelBytes)
	}
	for i := range dst {
		b := src[i*VoxelBytes:]
		sdf := math.Float32frombits(binary.LittleEndian.Uint32(b[0:]))
		if sdf != sdf || sdf < -1 || sdf > 1 {
			return fmt.Errorf("voxelstore: voxel %d has distance %v outside [-1, 1]", i, sdf)
		}
		dst[i] = model.Voxel{
			SDF:         sdf,
			Weight:      binary.LittleEndian.Uint16(b[4:]),
			ColorWeight: binary.LittleEndian.Uint16(b[6:]),
			Color:       [3]uint8{b[8], b[9], b[10]},
		}
	}
	return nil
}
