package hashindex

import (
	"errors"
	"fmt"

	"github.com/hupe1980/voxfuse/model"
)

// ErrInconsistent is returned when a table state violates an index invariant.
var ErrInconsistent = errors.New("hashindex: inconsistent state")

// State is a detached copy of everything needed to rebuild an Index.
// Visibility is transient and not part of the state.
type State struct {
	BucketCount int
	ExcessSize  int
	BlockCount  int
	Entries     []model.HashEntry
	FreeBlocks  []int32
	FreeExcess  []int32
}

// Export returns a copy of the index state.
func (ix *Index) Export() State {
	entries := make([]model.HashEntry, len(ix.entries))
	copy(entries, ix.entries)
	return State{
		BucketCount: ix.bucketCount,
		ExcessSize:  ix.excessSize,
		BlockCount:  ix.blockCount,
		Entries:     entries,
		FreeBlocks:  ix.blocks.free(),
		FreeExcess:  ix.excess.free(),
	}
}

// FromState validates st and builds a new Index from it. On error nothing
// is returned, so callers can swap indexes atomically.
func FromState(st State) (*Index, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}
	ix, err := New(st.BucketCount, st.ExcessSize, st.BlockCount)
	if err != nil {
		return nil, err
	}
	copy(ix.entries, st.Entries)
	ix.blocks.load(st.FreeBlocks)
	ix.excess.load(st.FreeExcess)
	return ix, nil
}

// Check validates the live index.
func (ix *Index) Check() error {
	st := State{
		BucketCount: ix.bucketCount,
		ExcessSize:  ix.excessSize,
		BlockCount:  ix.blockCount,
		Entries:     ix.entries,
		FreeBlocks:  ix.blocks.ids[:ix.blocks.len()],
		FreeExcess:  ix.excess.ids[:ix.excess.len()],
	}
	return st.Validate()
}

// Validate checks every structural invariant of the state:
//   - entries sit in the bucket of their coordinate, chained only through excess slots
//   - every allocated excess slot is reached by exactly one chain, without cycles
//   - coordinates are unique
//   - resident pointers are in range, unique and disjoint from the free blocks
//   - free blocks and used blocks add up to BlockCount, likewise for excess slots
func (st State) Validate() error {
	if err := checkGeometry(st.BucketCount, st.ExcessSize, st.BlockCount); err != nil {
		return err
	}
	if len(st.Entries) != st.BucketCount+st.ExcessSize {
		return fmt.Errorf("%w: %d entries, want %d", ErrInconsistent, len(st.Entries), st.BucketCount+st.ExcessSize)
	}

	mask := uint32(st.BucketCount - 1)
	reached := make([]bool, st.ExcessSize)
	usedBlocks := make([]bool, st.BlockCount)
	seen := make(map[model.BlockCoord]struct{})
	resident := 0

	for b := 0; b < st.BucketCount; b++ {
		idx := b
		for {
			e := st.Entries[idx]
			if !e.IsAllocated() {
				if e.Ptr != model.UnallocatedPtr || e.Offset != 0 || idx != b {
					return fmt.Errorf("%w: bad empty entry at %d", ErrInconsistent, idx)
				}
				break
			}
			if int(Hash(e.Pos, mask)) != b {
				return fmt.Errorf("%w: %v stored in bucket %d", ErrInconsistent, e.Pos, b)
			}
			if _, dup := seen[e.Pos]; dup {
				return fmt.Errorf("%w: duplicate coordinate %v", ErrInconsistent, e.Pos)
			}
			seen[e.Pos] = struct{}{}

			if e.IsResident() {
				if int(e.Ptr) >= st.BlockCount || usedBlocks[e.Ptr] {
					return fmt.Errorf("%w: bad block pointer %d", ErrInconsistent, e.Ptr)
				}
				usedBlocks[e.Ptr] = true
				resident++
			}

			if e.Offset == 0 {
				break
			}
			k := int(e.Offset) - 1
			if k < 0 || k >= st.ExcessSize || reached[k] {
				return fmt.Errorf("%w: bad excess offset %d at %d", ErrInconsistent, e.Offset, idx)
			}
			reached[k] = true
			idx = st.BucketCount + k
		}
	}

	usedExcess := 0
	for k := 0; k < st.ExcessSize; k++ {
		e := st.Entries[st.BucketCount+k]
		if e.IsAllocated() != reached[k] {
			return fmt.Errorf("%w: orphaned excess slot %d", ErrInconsistent, k)
		}
		if !reached[k] && (e.Ptr != model.UnallocatedPtr || e.Offset != 0) {
			return fmt.Errorf("%w: bad empty excess slot %d", ErrInconsistent, k)
		}
		if reached[k] {
			usedExcess++
		}
	}

	if resident+len(st.FreeBlocks) != st.BlockCount {
		return fmt.Errorf("%w: %d resident + %d free blocks != %d", ErrInconsistent, resident, len(st.FreeBlocks), st.BlockCount)
	}
	for _, p := range st.FreeBlocks {
		if p < 0 || int(p) >= st.BlockCount || usedBlocks[p] {
			return fmt.Errorf("%w: bad free block %d", ErrInconsistent, p)
		}
		usedBlocks[p] = true
	}

	if usedExcess+len(st.FreeExcess) != st.ExcessSize {
		return fmt.Errorf("%w: %d used + %d free excess slots != %d", ErrInconsistent, usedExcess, len(st.FreeExcess), st.ExcessSize)
	}
	for _, k := range st.FreeExcess {
		if k < 0 || int(k) >= st.ExcessSize || reached[k] {
			return fmt.Errorf("%w: bad free excess slot %d", ErrInconsistent, k)
		}
		reached[k] = true
	}

	return nil
}
