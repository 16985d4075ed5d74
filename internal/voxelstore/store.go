package voxelstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/voxfuse/model"
)

// VoxelBytes is the serialized size of one voxel.
const VoxelBytes = 12

// BlockBytes is the serialized size of one block.
const BlockBytes = model.BlockVoxels * VoxelBytes

// ErrClosed is returned when using a closed store.
var ErrClosed = errors.New("voxelstore: closed")

// MemoryAcquirer reserves memory for the arena.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

// Store is the block arena.
type Store struct {
	blockCount int
	voxels     []model.Voxel
	reserved   int64
	acquirer   MemoryAcquirer
}

// Option is a configuration option for Store.
type Option func(*Store)

// WithMemoryAcquirer charges the arena against a memory budget.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(s *Store) {
		s.acquirer = acquirer
	}
}

// New allocates blockCount fresh blocks.
func New(ctx context.Context, blockCount int, opts ...Option) (*Store, error) {
	if blockCount <= 0 {
		return nil, fmt.Errorf("voxelstore: invalid block count %d", blockCount)
	}

	s := &Store{blockCount: blockCount}
	for _, opt := range opts {
		opt(s)
	}

	if s.acquirer != nil {
		s.reserved = int64(blockCount) * BlockBytes
		if err := s.acquirer.AcquireMemory(ctx, s.reserved); err != nil {
			return nil, err
		}
	}

	s.voxels = make([]model.Voxel, blockCount*model.BlockVoxels)
	s.Reset()
	return s, nil
}

// BlockCount returns the number of blocks in the arena.
func (s *Store) BlockCount() int { return s.blockCount }

// Block returns the voxels of block ptr. The slice aliases the arena.
func (s *Store) Block(ptr int32) []model.Voxel {
	start := int(ptr) * model.BlockVoxels
	return s.voxels[start : start+model.BlockVoxels : start+model.BlockVoxels]
}

// Voxel returns a copy of voxel local of block ptr.
func (s *Store) Voxel(ptr int32, local int) model.Voxel {
	return s.voxels[int(ptr)*model.BlockVoxels+local]
}

// SDF returns the distance value of voxel local of block ptr.
func (s *Store) SDF(ptr int32, local int) float32 {
	return s.voxels[int(ptr)*model.BlockVoxels+local].SDF
}

// ResetBlock puts every voxel of block ptr back into the fresh state.
func (s *Store) ResetBlock(ptr int32) {
	b := s.Block(ptr)
	for i := range b {
		b[i] = model.FreshVoxel()
	}
}

// Reset puts the whole arena back into the fresh state.
func (s *Store) Reset() {
	for i := range s.voxels {
		s.voxels[i] = model.FreshVoxel()
	}
}

// Close releases the memory reservation.
func (s *Store) Close() error {
	if s.voxels == nil {
		return ErrClosed
	}
	s.voxels = nil
	if s.acquirer != nil && s.reserved > 0 {
		s.acquirer.ReleaseMemory(s.reserved)
		s.reserved = 0
	}
	return nil
}
