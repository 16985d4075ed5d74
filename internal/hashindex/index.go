package hashindex

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/hupe1980/voxfuse/model"
)

var (
	// ErrNoFreeBlocks is returned when the block storage pool is exhausted.
	ErrNoFreeBlocks = errors.New("hashindex: no free blocks")
	// ErrNoFreeExcess is returned when the excess list is exhausted.
	ErrNoFreeExcess = errors.New("hashindex: no free excess entries")
	// ErrNotFound is returned when a coordinate is not in the table.
	ErrNotFound = errors.New("hashindex: coordinate not found")
	// ErrNotResident is returned when evicting an entry without a resident block.
	ErrNotResident = errors.New("hashindex: entry not resident")
	// ErrNotEvicted is returned when restoring an entry that is not evicted.
	ErrNotEvicted = errors.New("hashindex: entry not evicted")
	// ErrInvalidGeometry is returned for unusable table dimensions.
	ErrInvalidGeometry = errors.New("hashindex: invalid geometry")
)

// Spatial hash primes.
const (
	primeX = 73856093
	primeY = 19349669
	primeZ = 83492791
)

// Hash returns the bucket of c for a table with the given mask.
func Hash(c model.BlockCoord, mask uint32) uint32 {
	x := uint32(int32(c.X)) * primeX
	y := uint32(int32(c.Y)) * primeY
	z := uint32(int32(c.Z)) * primeZ
	return (x ^ y ^ z) & mask
}

// Index is the spatial hash table together with its free pools and the
// per-entry visibility words.
type Index struct {
	bucketCount int
	excessSize  int
	blockCount  int
	mask        uint32

	entries    []model.HashEntry
	visibility []uint32

	blocks *pool
	excess *pool
}

// New creates an empty index. bucketCount must be a power of two.
func New(bucketCount, excessSize, blockCount int) (*Index, error) {
	if err := checkGeometry(bucketCount, excessSize, blockCount); err != nil {
		return nil, err
	}

	ix := &Index{
		bucketCount: bucketCount,
		excessSize:  excessSize,
		blockCount:  blockCount,
		mask:        uint32(bucketCount - 1),
		entries:     make([]model.HashEntry, bucketCount+excessSize),
		visibility:  make([]uint32, bucketCount+excessSize),
		blocks:      newPool(blockCount),
		excess:      newPool(excessSize),
	}
	ix.clearEntries()

	return ix, nil
}

func checkGeometry(bucketCount, excessSize, blockCount int) error {
	if bucketCount <= 0 || bucketCount&(bucketCount-1) != 0 {
		return fmt.Errorf("%w: bucket count %d is not a power of two", ErrInvalidGeometry, bucketCount)
	}
	if excessSize < 0 || blockCount <= 0 {
		return fmt.Errorf("%w: excess %d, blocks %d", ErrInvalidGeometry, excessSize, blockCount)
	}
	if int64(bucketCount)+int64(excessSize) > math.MaxInt32 || int64(blockCount) > math.MaxInt32 {
		return fmt.Errorf("%w: table too large", ErrInvalidGeometry)
	}
	return nil
}

func (ix *Index) clearEntries() {
	for i := range ix.entries {
		ix.entries[i] = model.EmptyEntry()
		ix.visibility[i] = uint32(model.Invisible)
	}
}

// BucketCount returns the number of primary slots.
func (ix *Index) BucketCount() int { return ix.bucketCount }

// ExcessSize returns the number of excess slots.
func (ix *Index) ExcessSize() int { return ix.excessSize }

// BlockCount returns the number of storage blocks managed by the index.
func (ix *Index) BlockCount() int { return ix.blockCount }

// Len returns the total number of entries (primary and excess).
func (ix *Index) Len() int { return len(ix.entries) }

// Bucket returns the primary slot of c.
func (ix *Index) Bucket(c model.BlockCoord) int {
	return int(Hash(c, ix.mask))
}

// Entry returns the entry at hashCode.
func (ix *Index) Entry(hashCode int) model.HashEntry {
	return ix.entries[hashCode]
}

// PrimaryFree reports whether the primary slot of bucket is unallocated.
func (ix *Index) PrimaryFree(bucket int) bool {
	return !ix.entries[bucket].IsAllocated()
}

func (ix *Index) excessIndex(offset int32) int {
	return ix.bucketCount + int(offset) - 1
}

// Find walks the bucket of c and its excess chain. ok is true if an entry
// holds c, in which case ptr is its storage pointer (model.EvictedPtr for
// swapped-out blocks) and hashCode its position in the table.
func (ix *Index) Find(c model.BlockCoord) (ptr int32, hashCode int, ok bool) {
	idx := ix.Bucket(c)
	for {
		e := ix.entries[idx]
		if e.Pos == c && e.IsAllocated() {
			return e.Ptr, idx, true
		}
		if e.Offset <= 0 {
			return model.UnallocatedPtr, -1, false
		}
		idx = ix.excessIndex(e.Offset)
	}
}

// FindCached returns the resident block of c, consulting and refreshing the
// cache. A nil cache falls back to Find. Evicted entries report false.
func (ix *Index) FindCached(c model.BlockCoord, cache *Cache) (int32, bool) {
	if cache != nil && cache.valid && cache.pos == c {
		return cache.ptr, true
	}
	ptr, _, ok := ix.Find(c)
	if !ok || ptr < 0 {
		return model.UnallocatedPtr, false
	}
	if cache != nil {
		cache.pos, cache.ptr, cache.valid = c, ptr, true
	}
	return ptr, true
}

// InsertPrimary allocates a block for c into its empty primary slot bucket.
// Calls for distinct buckets may run concurrently.
func (ix *Index) InsertPrimary(bucket int, c model.BlockCoord) (int32, error) {
	if ix.entries[bucket].IsAllocated() {
		return model.UnallocatedPtr, fmt.Errorf("hashindex: primary slot %d already taken", bucket)
	}
	ptr, ok := ix.blocks.pop()
	if !ok {
		return model.UnallocatedPtr, ErrNoFreeBlocks
	}
	ix.entries[bucket] = model.HashEntry{Pos: c, Ptr: ptr}
	return ptr, nil
}

// Insert finds c or allocates a new entry for it, appending to the bucket's
// excess chain when the primary slot is taken. inserted is false if c was
// already present; ptr is then the existing pointer, which may be
// model.EvictedPtr.
func (ix *Index) Insert(c model.BlockCoord) (hashCode int, ptr int32, inserted bool, err error) {
	bucket := ix.Bucket(c)
	if !ix.entries[bucket].IsAllocated() {
		ptr, err := ix.InsertPrimary(bucket, c)
		if err != nil {
			return -1, ptr, false, err
		}
		return bucket, ptr, true, nil
	}

	tail := bucket
	for {
		e := ix.entries[tail]
		if e.Pos == c && e.IsAllocated() {
			return tail, e.Ptr, false, nil
		}
		if e.Offset <= 0 {
			break
		}
		tail = ix.excessIndex(e.Offset)
	}

	slot, ok := ix.excess.pop()
	if !ok {
		return -1, model.UnallocatedPtr, false, ErrNoFreeExcess
	}
	ptr, ok = ix.blocks.pop()
	if !ok {
		ix.excess.push(slot)
		return -1, model.UnallocatedPtr, false, ErrNoFreeBlocks
	}

	hashCode = ix.excessIndex(slot + 1)
	ix.entries[hashCode] = model.HashEntry{Pos: c, Ptr: ptr}
	ix.entries[tail].Offset = slot + 1
	return hashCode, ptr, true, nil
}

// Evict detaches the block of the entry at hashCode and returns it to the
// pool. The entry keeps its coordinate and excess slot.
func (ix *Index) Evict(hashCode int) (int32, error) {
	e := ix.entries[hashCode]
	if !e.IsResident() {
		return model.UnallocatedPtr, ErrNotResident
	}
	ix.blocks.push(e.Ptr)
	ix.entries[hashCode].Ptr = model.EvictedPtr
	return e.Ptr, nil
}

// Restore attaches a free block to the evicted entry at hashCode. The
// caller is responsible for filling the block.
func (ix *Index) Restore(hashCode int) (int32, error) {
	if !ix.entries[hashCode].IsEvicted() {
		return model.UnallocatedPtr, ErrNotEvicted
	}
	ptr, ok := ix.blocks.pop()
	if !ok {
		return model.UnallocatedPtr, ErrNoFreeBlocks
	}
	ix.entries[hashCode].Ptr = ptr
	return ptr, nil
}

// Remove forgets c, releasing its block and its excess slot. When c sits in
// a primary slot with a chain, the first chained entry moves into the
// primary slot, so hash codes of that bucket may change.
func (ix *Index) Remove(c model.BlockCoord) error {
	_, idx, ok := ix.Find(c)
	if !ok {
		return ErrNotFound
	}

	e := ix.entries[idx]
	if e.IsResident() {
		ix.blocks.push(e.Ptr)
	}

	if idx < ix.bucketCount {
		if e.Offset <= 0 {
			ix.clearSlot(idx)
			return nil
		}
		next := ix.excessIndex(e.Offset)
		ix.entries[idx] = ix.entries[next]
		atomic.StoreUint32(&ix.visibility[idx], atomic.LoadUint32(&ix.visibility[next]))
		ix.clearSlot(next)
		ix.excess.push(int32(next - ix.bucketCount))
		return nil
	}

	prev := ix.Bucket(c)
	for ix.excessIndex(ix.entries[prev].Offset) != idx {
		prev = ix.excessIndex(ix.entries[prev].Offset)
	}
	ix.entries[prev].Offset = e.Offset
	ix.clearSlot(idx)
	ix.excess.push(int32(idx - ix.bucketCount))
	return nil
}

func (ix *Index) clearSlot(idx int) {
	ix.entries[idx] = model.EmptyEntry()
	atomic.StoreUint32(&ix.visibility[idx], uint32(model.Invisible))
}

// Reset empties the table and refills both pools.
func (ix *Index) Reset() {
	ix.clearEntries()
	ix.blocks.reset()
	ix.excess.reset()
}

// Visibility returns the visibility state of the entry at hashCode.
func (ix *Index) Visibility(hashCode int) model.Visibility {
	return model.Visibility(atomic.LoadUint32(&ix.visibility[hashCode]))
}

// SetVisibility stores the visibility state of the entry at hashCode.
func (ix *Index) SetVisibility(hashCode int, v model.Visibility) {
	atomic.StoreUint32(&ix.visibility[hashCode], uint32(v))
}

// LiveCount returns the number of entries holding a coordinate.
func (ix *Index) LiveCount() int {
	n := 0
	for _, e := range ix.entries {
		if e.IsAllocated() {
			n++
		}
	}
	return n
}

// FreeBlockCount returns the number of unused storage blocks.
func (ix *Index) FreeBlockCount() int { return ix.blocks.len() }

// FreeExcessCount returns the number of unused excess slots.
func (ix *Index) FreeExcessCount() int { return ix.excess.len() }

// ForEach calls fn for every entry holding a coordinate until fn returns false.
func (ix *Index) ForEach(fn func(hashCode int, e model.HashEntry) bool) {
	for i, e := range ix.entries {
		if e.IsAllocated() && !fn(i, e) {
			return
		}
	}
}
