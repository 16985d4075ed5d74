package persistence

import (
	"errors"
	"time"

	"github.com/hupe1980/voxfuse/model"
)

const (
	// Magic identifies snapshot files (ASCII "VXF1").
	Magic = "VXF1"
	// Version is the current format version.
	Version uint16 = 1

	headerSize  = 16
	entrySize   = 14
	trailerSize = 4
)

var (
	ErrInvalidMagic   = errors.New("persistence: invalid magic")
	ErrInvalidVersion = errors.New("persistence: unsupported version")
	ErrTruncated      = errors.New("persistence: truncated snapshot")
	ErrUnknownCodec   = errors.New("persistence: unknown codec")
	// ErrMalformed is returned for well-checksummed data that is not a valid
	// snapshot, such as counts that exceed the table geometry.
	ErrMalformed = errors.New("persistence: malformed snapshot")
)

// Meta describes the volume a snapshot was taken from.
type Meta struct {
	VoxelSize   float32   `json:"voxel_size"`
	Truncation  float32   `json:"truncation_distance"`
	BucketCount int       `json:"bucket_count"`
	ExcessSize  int       `json:"excess_list_size"`
	BlockCount  int       `json:"block_count"`
	LiveEntries int       `json:"live_entries"`
	Frames      uint64    `json:"frames"`
	CreatedAt   time.Time `json:"created_at"`
}

// Block is the payload of one resident block.
type Block struct {
	Ptr    int32
	Voxels []model.Voxel
}

// Snapshot is the decoded content of a snapshot file.
type Snapshot struct {
	Meta       Meta
	Entries    []model.HashEntry
	FreeBlocks []int32
	FreeExcess []int32
	Blocks     []Block
}
