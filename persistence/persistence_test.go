package persistence

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/voxfuse/codec"
	"github.com/hupe1980/voxfuse/internal/compress"
	"github.com/hupe1980/voxfuse/model"
)

func testSnapshot() *Snapshot {
	meta := Meta{
		VoxelSize:   0.01,
		Truncation:  0.04,
		BucketCount: 4,
		ExcessSize:  2,
		BlockCount:  4,
		LiveEntries: 2,
		Frames:      7,
		CreatedAt:   time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
	entries := make([]model.HashEntry, 6)
	for i := range entries {
		entries[i] = model.EmptyEntry()
	}
	entries[1] = model.HashEntry{Pos: model.BlockCoord{X: 1, Y: -2, Z: 24}, Offset: 1, Ptr: 3}
	entries[4] = model.HashEntry{Pos: model.BlockCoord{X: -7, Y: 0, Z: 25}, Ptr: 0}

	voxels := make([]model.Voxel, model.BlockVoxels)
	for i := range voxels {
		voxels[i] = model.FreshVoxel()
	}
	voxels[5] = model.Voxel{SDF: -0.25, Weight: 100, ColorWeight: 3, Color: [3]uint8{10, 20, 30}}
	fresh := make([]model.Voxel, model.BlockVoxels)
	for i := range fresh {
		fresh[i] = model.FreshVoxel()
	}

	return &Snapshot{
		Meta:       meta,
		Entries:    entries,
		FreeBlocks: []int32{2, 1},
		FreeExcess: []int32{1},
		Blocks:     []Block{{Ptr: 3, Voxels: voxels}, {Ptr: 0, Voxels: fresh}},
	}
}

func encode(t *testing.T, snap *Snapshot, opts ...Option) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := Encode(context.Background(), &buf, snap, opts...)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts []Option
	}{
		{"default", nil},
		{"none", []Option{WithCompression(compress.None)}},
		{"zstd", []Option{WithCompression(compress.ZSTD)}},
		{"json", []Option{WithCodec(codec.JSON{})}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			in := testSnapshot()
			data := encode(t, in, tc.opts...)
			assert.Equal(t, Magic, string(data[:4]))

			out, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, in, out)

			viaReader, err := Read(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, in, viaReader)
		})
	}
}

func TestCompressionShrinksFreshBlocks(t *testing.T) {
	snap := testSnapshot()
	raw := encode(t, snap, WithCompression(compress.None))
	packed := encode(t, snap, WithCompression(compress.LZ4))
	assert.Less(t, len(packed), len(raw)/4)
}

func TestDecodeDetectsCorruption(t *testing.T) {
	data := encode(t, testSnapshot())

	flipped := bytes.Clone(data)
	flipped[len(flipped)/2] ^= 0x40
	_, err := Decode(flipped)
	var mismatch *ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.NotEqual(t, mismatch.Expected, mismatch.Actual)

	_, err = Decode(data[:len(data)-1])
	assert.ErrorAs(t, err, &mismatch)

	_, err = Decode(data[:10])
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = Decode([]byte("VX"))
	assert.ErrorIs(t, err, ErrTruncated)

	bad := bytes.Clone(data)
	copy(bad, "NOPE")
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrInvalidMagic)

	future := bytes.Clone(data)
	binary.LittleEndian.PutUint16(future[4:], Version+1)
	_, err = Decode(future)
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestEncodeRejectsGeometryMismatch(t *testing.T) {
	snap := testSnapshot()
	snap.Entries = snap.Entries[:5]
	_, err := Encode(context.Background(), &bytes.Buffer{}, snap)
	assert.ErrorIs(t, err, ErrMalformed)

	snap = testSnapshot()
	snap.Blocks[0].Voxels = snap.Blocks[0].Voxels[:10]
	_, err = Encode(context.Background(), &bytes.Buffer{}, snap)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsOutOfRangePointer(t *testing.T) {
	snap := testSnapshot()
	snap.Blocks[0].Ptr = 9
	_, err := Decode(encode(t, snap))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Encode(ctx, &bytes.Buffer{}, testSnapshot())
	assert.ErrorIs(t, err, context.Canceled)
}
