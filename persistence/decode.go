package persistence

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hupe1980/voxfuse/codec"
	"github.com/hupe1980/voxfuse/internal/compress"
	vhash "github.com/hupe1980/voxfuse/internal/hash"
	"github.com/hupe1980/voxfuse/internal/voxelstore"
	"github.com/hupe1980/voxfuse/model"
)

// Read reads a whole snapshot from r and decodes it.
func Read(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses a snapshot. The result does not alias data, so data may be
// a mapping that is closed afterwards.
func Decode(data []byte) (*Snapshot, error) {
	if len(data) < len(Magic) {
		return nil, ErrTruncated
	}
	if string(data[:len(Magic)]) != Magic {
		return nil, ErrInvalidMagic
	}
	if len(data) < headerSize+trailerSize {
		return nil, ErrTruncated
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != Version {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}

	body := data[:len(data)-trailerSize]
	expected := binary.LittleEndian.Uint32(data[len(body):])
	if actual := vhash.CRC32C(body); actual != expected {
		return nil, &ChecksumMismatchError{Expected: expected, Actual: actual}
	}

	comp := compress.Type(data[6])
	r := &reader{buf: body, off: headerSize}
	name := string(r.next(int(data[7])))
	metaBytes := r.next(int(binary.LittleEndian.Uint32(data[8:])))
	if r.err != nil {
		return nil, r.err
	}

	c, ok := codec.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	snap := &Snapshot{}
	if err := c.Unmarshal(metaBytes, &snap.Meta); err != nil {
		return nil, fmt.Errorf("%w: meta: %w", ErrMalformed, err)
	}
	m := snap.Meta
	if m.BucketCount <= 0 || m.ExcessSize < 0 || m.BlockCount <= 0 {
		return nil, fmt.Errorf("%w: geometry %d/%d/%d", ErrMalformed, m.BucketCount, m.ExcessSize, m.BlockCount)
	}

	n := m.BucketCount + m.ExcessSize
	if !r.fits(n, entrySize) {
		return nil, ErrTruncated
	}
	snap.Entries = make([]model.HashEntry, n)
	for i := range snap.Entries {
		rec := r.next(entrySize)
		snap.Entries[i] = model.HashEntry{
			Pos: model.BlockCoord{
				X: int16(binary.LittleEndian.Uint16(rec[0:])),
				Y: int16(binary.LittleEndian.Uint16(rec[2:])),
				Z: int16(binary.LittleEndian.Uint16(rec[4:])),
			},
			Offset: int32(binary.LittleEndian.Uint32(rec[6:])),
			Ptr:    int32(binary.LittleEndian.Uint32(rec[10:])),
		}
	}

	snap.FreeBlocks = r.ids()
	snap.FreeExcess = r.ids()

	count := int(r.u32())
	if r.err != nil {
		return nil, r.err
	}
	if count > m.BlockCount || !r.fits(count, 4+compress.HeaderSize) {
		return nil, fmt.Errorf("%w: %d blocks", ErrMalformed, count)
	}
	snap.Blocks = make([]Block, count)
	scratch := make([]byte, voxelstore.BlockBytes)
	for i := range snap.Blocks {
		ptr := int32(r.u32())
		if r.err != nil {
			return nil, r.err
		}
		if ptr < 0 || int(ptr) >= m.BlockCount {
			return nil, fmt.Errorf("%w: block pointer %d", ErrMalformed, ptr)
		}
		raw, used, err := compress.Decode(scratch, r.rest(), comp)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrMalformed, ptr, err)
		}
		r.next(used)

		voxels := make([]model.Voxel, model.BlockVoxels)
		if err := voxelstore.DecodeBlock(voxels, raw); err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrMalformed, ptr, err)
		}
		snap.Blocks[i] = Block{Ptr: ptr, Voxels: voxels}
	}

	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(r.buf) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(r.buf)-r.off)
	}
	return snap, nil
}

// reader is a bounds-checked cursor. The first short read sticks in err.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = ErrTruncated
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) rest() []byte {
	return r.buf[r.off:]
}

// fits reports whether n records of size bytes remain.
func (r *reader) fits(n, size int) bool {
	return n >= 0 && n <= (len(r.buf)-r.off)/size
}

func (r *reader) u32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) ids() []int32 {
	n := int(r.u32())
	if r.err != nil {
		return nil
	}
	if !r.fits(n, 4) {
		r.err = ErrTruncated
		return nil
	}
	ids := make([]int32, n)
	for i := range ids {
		ids[i] = int32(r.u32())
	}
	return ids
}
