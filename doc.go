// Package voxfuse fuses depth images into a sparse truncated signed distance
// volume and renders it back by ray casting.
//
// Space is cut into 8×8×8 voxel blocks. Only blocks near observed surfaces
// are allocated; a fixed-capacity spatial hash maps block coordinates to
// slots of a preallocated block arena. Each frame runs four phases:
// allocation (plan, then commit), integration, visibility and, on demand,
// raycast. Phases are data-parallel and separated by barriers.
//
// # Quick Start
//
//	cfg := voxfuse.DefaultConfig()
//	vol, err := voxfuse.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer vol.Close()
//
//	for f := range frames {
//	    stats, err := vol.ProcessFrame(ctx, f)
//	    ...
//	}
//	res, err := vol.Raycast(ctx, cam)
//	p, n := res.At(320, 240)
//
// # Persistence
//
// A volume can be saved to any io.Writer and loaded back. Checkpoint writes
// a snapshot into a blobstore.BlobStore and then points CURRENT at it:
//
//	store, _ := s3.New(ctx, "scans", s3.WithPrefix("lab/"))
//	name, err := vol.Checkpoint(ctx, store)
//	...
//	vol, err := voxfuse.OpenLatest(ctx, store, cfg)
//
// # Swapping
//
// Evict, Restore and Remove are the hooks for an external component that
// streams blocks between the arena and secondary storage. Eviction keeps the
// coordinate (and its excess slot) in the table; removal forgets it.
package voxfuse
