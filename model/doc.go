// Package model defines the core types shared by every voxfuse package.
//
// # Addressing
//
//   - BlockCoord: integer coordinate of an 8×8×8 voxel block (int16 per axis)
//   - HashEntry: hash table slot mapping a BlockCoord to a storage pointer
//   - Ptr: index into the block arena (>= 0), EvictedPtr, or UnallocatedPtr
//
// # Payload
//
//   - Voxel: normalized signed distance, weights and colour
//   - Visibility: per-entry visibility state, recomputed every frame
//
// Voxels inside a block are addressed by a linear index
// x + y*BlockSide + z*BlockSide*BlockSide.
package model
