package raycast

import (
	"github.com/hupe1980/voxfuse/internal/hashindex"
	"github.com/hupe1980/voxfuse/internal/voxelstore"
)

// Params are the visibility and raycast settings.
type Params struct {
	VoxelSize float32
	// Truncation is the TSDF band half-width μ in metres.
	Truncation float32
	NearClip   float32
	FarClip    float32
	// RangeSubsample is the cell size of the range image in pixels.
	RangeSubsample int
	// DisableCache bypasses the per-worker block lookup cache.
	DisableCache bool
	Workers      int
}

// Engine serves visibility queries and ray casts for one index/store pair.
type Engine struct {
	index  *hashindex.Index
	store  *voxelstore.Store
	params Params
}

// New returns an engine.
func New(index *hashindex.Index, store *voxelstore.Store, params Params) *Engine {
	if params.RangeSubsample <= 0 {
		params.RangeSubsample = 8
	}
	return &Engine{index: index, store: store, params: params}
}

func (e *Engine) newCache() *hashindex.Cache {
	if e.params.DisableCache {
		return nil
	}
	return &hashindex.Cache{}
}
