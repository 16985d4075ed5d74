// Package hashindex implements the fixed-capacity spatial hash table that maps
// block coordinates to voxel-block storage slots.
//
// # Layout
//
// The table is a single []model.HashEntry of length BucketCount+ExcessSize.
// The first BucketCount entries are the primary slots, addressed by
// Hash(coord) & (BucketCount-1). Colliding coordinates are chained through
// the excess region that follows:
//
//	primary[b] ──Offset k──► excess[k-1] ──Offset j──► excess[j-1] ── 0
//
// Coordinates never spill into another primary slot. An empty primary slot
// always has an empty chain.
//
// # Free Pools
//
// Block storage slots and excess slots are handed out from two counted stacks.
// Pops are lock-free and may run concurrently with each other; pushes and the
// chain-mutating helpers (Insert, Evict, Restore, Remove, Reset) must run
// single-threaded.
//
// # Excess Slots
//
// Evicting an entry returns its block to the pool but keeps the entry, and
// therefore its excess slot, so the coordinate is still found with
// Ptr == model.EvictedPtr. Only Remove releases the excess slot.
package hashindex
