package voxfuse

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/voxfuse/internal/hashindex"
	"github.com/hupe1980/voxfuse/model"
)

// Evict swaps block c out of the arena and returns a copy of its voxels.
// The entry stays in the table with model.EvictedPtr, keeping its excess
// slot, so Find still reports it and Restore can bring it back.
func (v *Volume) Evict(c model.BlockCoord) ([]model.Voxel, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, ErrClosed
	}

	ptr, hashCode, ok := v.index.Find(c)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, c)
	}
	if ptr < 0 {
		return nil, fmt.Errorf("voxfuse: evict %v: %w", c, hashindex.ErrNotResident)
	}

	voxels := make([]model.Voxel, model.BlockVoxels)
	copy(voxels, v.store.Block(ptr))
	if _, err := v.index.Evict(hashCode); err != nil {
		return nil, err
	}

	if v.index.Visibility(hashCode) == model.Visible {
		v.index.SetVisibility(hashCode, model.StreamedOutVisible)
	}
	v.visible.Remove(uint32(hashCode))
	v.logger.WithBlock(c).Debug("block evicted", "ptr", ptr)
	return voxels, nil
}

// Restore attaches a free block to the evicted entry c and fills it with
// voxels. A nil slice restores a fresh block.
func (v *Volume) Restore(c model.BlockCoord, voxels []model.Voxel) error {
	if voxels != nil && len(voxels) != model.BlockVoxels {
		return fmt.Errorf("voxfuse: restore %v: got %d voxels, want %d", c, len(voxels), model.BlockVoxels)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}

	_, hashCode, ok := v.index.Find(c)
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotFound, c)
	}
	ptr, err := v.index.Restore(hashCode)
	if err != nil {
		return fmt.Errorf("voxfuse: restore %v: %w", c, err)
	}

	if voxels == nil {
		v.store.ResetBlock(ptr)
	} else {
		copy(v.store.Block(ptr), voxels)
	}

	if v.index.Visibility(hashCode) == model.StreamedOutVisible {
		v.index.SetVisibility(hashCode, model.Visible)
		v.visible.Add(uint32(hashCode))
	}
	v.logger.WithBlock(c).Debug("block restored", "ptr", ptr)
	return nil
}

// Remove forgets c and releases its block and excess slot. Hash codes of
// other entries in the same bucket may change.
func (v *Volume) Remove(c model.BlockCoord) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}

	if err := v.index.Remove(c); err != nil {
		return translateError(err)
	}
	v.visible = v.collectVisible()
	v.logger.WithBlock(c).Debug("block removed")
	return nil
}

// collectVisible rebuilds the visible set from the stored visibility states.
func (v *Volume) collectVisible() *roaring.Bitmap {
	visible := roaring.New()
	v.index.ForEach(func(hashCode int, e model.HashEntry) bool {
		if e.IsResident() && v.index.Visibility(hashCode) == model.Visible {
			visible.Add(uint32(hashCode))
		}
		return true
	})
	return visible
}

// Reset empties the volume. Every block returns to the pool.
func (v *Volume) Reset(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}

	v.index.Reset()
	v.store.Reset()
	v.visible = roaring.New()
	v.frames = 0
	v.logger.InfoContext(ctx, "volume reset")
	return nil
}
