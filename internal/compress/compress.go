package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type selects the compression algorithm.
type Type uint8

const (
	// None stores chunks raw.
	None Type = 0
	// LZ4 favours speed.
	LZ4 Type = 1
	// ZSTD favours ratio.
	ZSTD Type = 2
)

// HeaderSize is the size of the chunk header.
const HeaderSize = 8

// maxRatio is the largest compressed/raw ratio still worth storing.
const maxRatio = 0.9

var (
	// ErrCorrupt is returned for chunks that cannot be decoded.
	ErrCorrupt = errors.New("compress: corrupt chunk")
	// ErrUnknownType is returned for an unsupported Type.
	ErrUnknownType = errors.New("compress: unknown type")
)

// String returns the configuration name of t.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ParseType maps a configuration name to a Type. The empty string is None.
func ParseType(name string) (Type, error) {
	switch name {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Append compresses data with t and appends the framed chunk to dst.
func Append(dst, data []byte, t Type) ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	switch t {
	case None:
	case LZ4:
		payload, err = compressLZ4(data)
	case ZSTD:
		payload, err = compressZSTD(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	if err != nil {
		return nil, err
	}

	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(data)))
	if len(payload) == 0 || float64(len(payload)) > float64(len(data))*maxRatio {
		dst = append(dst, hdr[:]...)
		return append(dst, data...), nil
	}
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...), nil
}

func compressLZ4(data []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, err
	}
	// n == 0 means incompressible.
	return buf[:n], nil
}

func compressZSTD(data []byte) ([]byte, error) {
	enc, err := getZstdEncoder()
	if err != nil {
		return nil, err
	}
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

// Size returns the framed length of the chunk at the start of data.
func Size(data []byte) (int, error) {
	if len(data) < HeaderSize {
		return 0, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	raw := binary.LittleEndian.Uint32(data[0:])
	packed := binary.LittleEndian.Uint32(data[4:])
	n := uint64(HeaderSize) + uint64(packed)
	if packed == 0 {
		n = uint64(HeaderSize) + uint64(raw)
	}
	if n > uint64(len(data)) {
		return 0, fmt.Errorf("%w: chunk extends beyond data", ErrCorrupt)
	}
	return int(n), nil
}

// Decode decompresses the chunk at the start of data, which was written
// with t, into dst (reallocated if too small). It returns the decoded bytes
// and the number of input bytes consumed.
func Decode(dst, data []byte, t Type) ([]byte, int, error) {
	n, err := Size(data)
	if err != nil {
		return nil, 0, err
	}
	raw := int(binary.LittleEndian.Uint32(data[0:]))
	packed := binary.LittleEndian.Uint32(data[4:])
	body := data[HeaderSize:n]

	if cap(dst) < raw {
		dst = make([]byte, raw)
	}
	dst = dst[:raw]

	if packed == 0 {
		copy(dst, body)
		return dst, n, nil
	}

	switch t {
	case LZ4:
		m, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if m != raw {
			return nil, 0, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
	case ZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, 0, err
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(body, dst[:0])
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if len(out) != raw {
			return nil, 0, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		dst = out
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	return dst, n, nil
}
