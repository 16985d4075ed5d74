// Package voxelstore provides the flat voxel-block arena and the per-voxel
// running-average fusion rules.
//
// Blocks are addressed by integer storage pointer, never by Go pointer, so
// the arena can be snapshotted with plain copies. Block i occupies
// voxels[i*512 : (i+1)*512]. Distinct blocks may be written concurrently;
// the arena itself has no locks.
package voxelstore
