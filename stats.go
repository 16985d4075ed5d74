package voxfuse

import (
	"time"

	"github.com/hupe1980/voxfuse/internal/raycast"
)

// FrameStats summarises one ProcessFrame call.
type FrameStats struct {
	// Pixels is the number of depth samples inside the clip range.
	Pixels int
	// Requests is the number of planned allocations.
	Requests int
	// Allocated is the number of new blocks.
	Allocated       int
	FailedNoBlocks  int
	FailedNoExcess  int
	DroppedRequests int

	IntegratedBlocks int
	IntegratedVoxels int
	ColorVoxels      int

	// VisibleBlocks is the size of the visible set after the frame.
	VisibleBlocks int
	Duration      time.Duration
}

// Failed returns the number of blocks that could not be allocated.
func (s FrameStats) Failed() int {
	return s.FailedNoBlocks + s.FailedNoExcess + s.DroppedRequests
}

// Stats describes the occupancy of a volume.
type Stats struct {
	// LiveEntries counts entries holding a coordinate, resident or evicted.
	LiveEntries    int
	ResidentBlocks int
	EvictedEntries int
	FreeBlocks     int
	FreeExcess     int
	VisibleEntries int
	Frames         uint64
	// MemoryBytes is the usage reported by the resource controller, which
	// may be shared with other volumes.
	MemoryBytes int64
}

// RaycastResult is a point and normal map. Points carry w = 1 where the ray
// hit a surface and w = 0 elsewhere.
type RaycastResult = raycast.Result
