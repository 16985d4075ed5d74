package model

import (
	"fmt"
	"math"
)

const (
	// BlockSide is the number of voxels along one edge of a block.
	BlockSide = 8
	// BlockVoxels is the number of voxels in a block.
	BlockVoxels = BlockSide * BlockSide * BlockSide

	// EvictedPtr marks an entry whose coordinate is known but whose payload is not resident.
	EvictedPtr int32 = -1
	// UnallocatedPtr marks an empty hash slot.
	UnallocatedPtr int32 = -2
)

// BlockCoord identifies an 8×8×8 block of voxels in the global grid.
type BlockCoord struct {
	X, Y, Z int16
}

// String returns a string representation of the coordinate.
func (c BlockCoord) String() string {
	return fmt.Sprintf("Block(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Add returns c translated by (dx, dy, dz). The boolean is false if the
// result leaves the int16 range.
func (c BlockCoord) Add(dx, dy, dz int) (BlockCoord, bool) {
	return BlockCoordOf(int(c.X)+dx, int(c.Y)+dy, int(c.Z)+dz)
}

// BlockCoordOf converts an integer block position to a BlockCoord,
// reporting false if any axis does not fit into int16.
func BlockCoordOf(x, y, z int) (BlockCoord, bool) {
	if !fitsInt16(x) || !fitsInt16(y) || !fitsInt16(z) {
		return BlockCoord{}, false
	}
	return BlockCoord{X: int16(x), Y: int16(y), Z: int16(z)}, true
}

// VoxelToBlock splits a global voxel position into the enclosing block
// coordinate and the linear index of the voxel inside that block.
func VoxelToBlock(x, y, z int) (BlockCoord, int, bool) {
	bx, lx := floorDiv(x)
	by, ly := floorDiv(y)
	bz, lz := floorDiv(z)
	c, ok := BlockCoordOf(bx, by, bz)
	if !ok {
		return BlockCoord{}, 0, false
	}
	return c, LocalIndex(lx, ly, lz), true
}

// LocalIndex returns the linear index of the voxel at (x, y, z) inside a block.
func LocalIndex(x, y, z int) int {
	return x + y*BlockSide + z*BlockSide*BlockSide
}

// LocalPosition is the inverse of LocalIndex.
func LocalPosition(idx int) (x, y, z int) {
	return idx % BlockSide, (idx / BlockSide) % BlockSide, idx / (BlockSide * BlockSide)
}

func floorDiv(v int) (q, r int) {
	q = v / BlockSide
	r = v % BlockSide
	if r < 0 {
		q--
		r += BlockSide
	}
	return q, r
}

func fitsInt16(v int) bool {
	return v >= math.MinInt16 && v <= math.MaxInt16
}

// HashEntry is one slot of the hash table.
//
// Offset is 0 when the chain ends at this entry. Otherwise the next entry of
// the same bucket lives in excess slot Offset-1.
type HashEntry struct {
	Pos    BlockCoord
	Offset int32
	Ptr    int32
}

// EmptyEntry returns an unallocated entry.
func EmptyEntry() HashEntry {
	return HashEntry{Ptr: UnallocatedPtr}
}

// IsAllocated reports whether the entry holds a coordinate, resident or not.
func (e HashEntry) IsAllocated() bool { return e.Ptr >= EvictedPtr }

// IsResident reports whether the entry points at a block in the arena.
func (e HashEntry) IsResident() bool { return e.Ptr >= 0 }

// IsEvicted reports whether the entry's payload has been swapped out.
func (e HashEntry) IsEvicted() bool { return e.Ptr == EvictedPtr }

// String returns a string representation of the entry.
func (e HashEntry) String() string {
	return fmt.Sprintf("Entry(%v ptr=%d next=%d)", e.Pos, e.Ptr, e.Offset)
}

// Voxel is the per-voxel payload.
// SDF is the truncated signed distance normalized to [-1, 1].
type Voxel struct {
	SDF         float32
	Weight      uint16
	ColorWeight uint16
	Color       [3]uint8
}

// FreshVoxel returns the state of a voxel that never received a sample.
func FreshVoxel() Voxel {
	return Voxel{SDF: 1}
}

// Visibility is the per-entry visibility state.
type Visibility uint32

const (
	// Invisible entries are outside the current view.
	Invisible Visibility = iota
	// Visible entries are inside the current view and resident.
	Visible
	// StreamedOutVisible entries are inside the current view but evicted.
	StreamedOutVisible
	// VisiblePreviousFrame entries were visible last frame and await re-testing.
	VisiblePreviousFrame
)

// String returns the name of the visibility state.
func (v Visibility) String() string {
	switch v {
	case Invisible:
		return "invisible"
	case Visible:
		return "visible"
	case StreamedOutVisible:
		return "streamed-out-visible"
	case VisiblePreviousFrame:
		return "visible-previous-frame"
	default:
		return fmt.Sprintf("visibility(%d)", uint32(v))
	}
}
