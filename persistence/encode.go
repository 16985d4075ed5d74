package persistence

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/voxfuse/codec"
	"github.com/hupe1980/voxfuse/internal/compress"
	"github.com/hupe1980/voxfuse/internal/voxelstore"
	"github.com/hupe1980/voxfuse/model"
)

// ctxCheckInterval is how many blocks are written between cancellation checks.
const ctxCheckInterval = 256

// Options configure Encode.
type Options struct {
	Compression compress.Type
	Codec       codec.Codec
}

// Option is a functional option for Encode.
type Option func(*Options)

// WithCompression selects the block chunk compression.
func WithCompression(t compress.Type) Option {
	return func(o *Options) { o.Compression = t }
}

// WithCodec selects the meta codec.
func WithCodec(c codec.Codec) Option {
	return func(o *Options) { o.Codec = c }
}

// Encode writes snap to w and returns the number of bytes written.
func Encode(ctx context.Context, w io.Writer, snap *Snapshot, opts ...Option) (int64, error) {
	o := Options{Compression: compress.LZ4, Codec: codec.Default}
	for _, opt := range opts {
		opt(&o)
	}

	meta, err := o.Codec.Marshal(snap.Meta)
	if err != nil {
		return 0, fmt.Errorf("persistence: encode meta: %w", err)
	}
	name := o.Codec.Name()
	if len(name) > math.MaxUint8 {
		return 0, fmt.Errorf("%w: codec name %q too long", ErrUnknownCodec, name)
	}
	if want := snap.Meta.BucketCount + snap.Meta.ExcessSize; len(snap.Entries) != want {
		return 0, fmt.Errorf("%w: %d entries, geometry needs %d", ErrMalformed, len(snap.Entries), want)
	}

	cw := NewChecksumWriter(w)
	bw := bufio.NewWriterSize(cw, 1<<16)

	var hdr [headerSize]byte
	copy(hdr[0:4], Magic)
	binary.LittleEndian.PutUint16(hdr[4:], Version)
	hdr[6] = byte(o.Compression)
	hdr[7] = byte(len(name))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(meta)))
	_, _ = bw.Write(hdr[:])
	_, _ = bw.WriteString(name)
	_, _ = bw.Write(meta)

	var rec [entrySize]byte
	for _, e := range snap.Entries {
		binary.LittleEndian.PutUint16(rec[0:], uint16(e.Pos.X))
		binary.LittleEndian.PutUint16(rec[2:], uint16(e.Pos.Y))
		binary.LittleEndian.PutUint16(rec[4:], uint16(e.Pos.Z))
		binary.LittleEndian.PutUint32(rec[6:], uint32(e.Offset))
		binary.LittleEndian.PutUint32(rec[10:], uint32(e.Ptr))
		_, _ = bw.Write(rec[:])
	}

	writeIDs(bw, snap.FreeBlocks)
	writeIDs(bw, snap.FreeExcess)

	writeU32(bw, uint32(len(snap.Blocks)))
	raw := make([]byte, 0, voxelstore.BlockBytes)
	var chunk []byte
	for i, b := range snap.Blocks {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return cw.Written(), err
			}
		}
		if len(b.Voxels) != model.BlockVoxels {
			return cw.Written(), fmt.Errorf("%w: block %d has %d voxels", ErrMalformed, b.Ptr, len(b.Voxels))
		}
		raw = voxelstore.AppendBlock(raw[:0], b.Voxels)
		chunk, err = compress.Append(chunk[:0], raw, o.Compression)
		if err != nil {
			return cw.Written(), err
		}
		writeU32(bw, uint32(b.Ptr))
		if _, err := bw.Write(chunk); err != nil {
			return cw.Written(), err
		}
	}

	if err := bw.Flush(); err != nil {
		return cw.Written(), err
	}

	var trailer [trailerSize]byte
	binary.LittleEndian.PutUint32(trailer[:], cw.Sum())
	if _, err := cw.Write(trailer[:]); err != nil {
		return cw.Written(), err
	}
	return cw.Written(), nil
}

func writeU32(w *bufio.Writer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, _ = w.Write(b[:])
}

func writeIDs(w *bufio.Writer, ids []int32) {
	writeU32(w, uint32(len(ids)))
	for _, id := range ids {
		writeU32(w, uint32(id))
	}
}
