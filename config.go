package voxfuse

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/voxfuse/internal/compress"
)

// Config holds the volume geometry and the fusion parameters.
type Config struct {
	// VoxelSize is the voxel edge in metres.
	VoxelSize float32 `yaml:"voxel_size"`
	// TruncationDistance is the TSDF band half-width μ in metres.
	TruncationDistance float32 `yaml:"truncation_distance"`
	// AllocationBandFactor scales μ for allocation.
	AllocationBandFactor float32 `yaml:"allocation_band_factor"`
	// MaxWeight caps the per-voxel fusion weight.
	MaxWeight int `yaml:"max_weight"`
	// StopIntegratingAtMaxWeight freezes voxels that reached MaxWeight.
	StopIntegratingAtMaxWeight bool `yaml:"stop_integrating_at_max_weight"`

	NearClip float32 `yaml:"near_clip"`
	FarClip  float32 `yaml:"far_clip"`

	// BucketCount is the number of primary hash slots. Must be a power of two.
	BucketCount int `yaml:"bucket_count"`
	// ExcessListSize is the number of overflow slots for colliding blocks.
	ExcessListSize int `yaml:"excess_list_size"`
	// BlockCount is the number of blocks in the arena.
	BlockCount int `yaml:"block_count"`
	// OverflowRequests bounds the colliding allocation requests kept per frame.
	OverflowRequests int `yaml:"overflow_requests"`

	IntegrateColor     bool `yaml:"integrate_color"`
	DisableLookupCache bool `yaml:"disable_lookup_cache"`

	// Workers bounds data-parallel phases. 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// RangeSubsample is the raycast range-image cell size in pixels.
	RangeSubsample int `yaml:"range_subsample"`

	// Compression is the snapshot block compression: none, lz4 or zstd.
	Compression string `yaml:"compression"`
	// MemoryLimitBytes bounds the block arena. 0 means unlimited.
	MemoryLimitBytes int64 `yaml:"memory_limit_bytes"`
	// SnapshotIOBytesPerSec throttles checkpoint uploads. 0 means unlimited.
	SnapshotIOBytesPerSec int64 `yaml:"snapshot_io_bytes_per_sec"`
}

// DefaultConfig returns the settings for a 5 mm volume with room for
// 32768 resident blocks.
func DefaultConfig() Config {
	return Config{
		VoxelSize:            0.005,
		TruncationDistance:   0.02,
		AllocationBandFactor: 1,
		MaxWeight:            100,
		NearClip:             0.2,
		FarClip:              3,
		BucketCount:          0x40000,
		ExcessListSize:       0x10000,
		BlockCount:           0x8000,
		OverflowRequests:     4096,
		RangeSubsample:       8,
		Compression:          compress.LZ4.String(),
	}
}

// LoadConfig reads a YAML file. Fields missing from the file keep their
// DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("voxfuse: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func positive(v float32) bool {
	return v > 0 && !math.IsInf(float64(v), 0)
}

// Validate reports the first invalid field as a *ConfigError.
func (c Config) Validate() error {
	switch {
	case !positive(c.VoxelSize):
		return &ConfigError{Field: "voxel_size", Reason: "must be positive"}
	case !positive(c.TruncationDistance):
		return &ConfigError{Field: "truncation_distance", Reason: "must be positive"}
	case c.TruncationDistance < c.VoxelSize:
		return &ConfigError{Field: "truncation_distance", Reason: "must be at least one voxel"}
	case !positive(c.AllocationBandFactor):
		return &ConfigError{Field: "allocation_band_factor", Reason: "must be positive"}
	case c.MaxWeight < 1 || c.MaxWeight > math.MaxUint16:
		return &ConfigError{Field: "max_weight", Reason: fmt.Sprintf("must be in [1, %d]", math.MaxUint16)}
	case c.NearClip < 0:
		return &ConfigError{Field: "near_clip", Reason: "must not be negative"}
	case !(c.FarClip > c.NearClip):
		return &ConfigError{Field: "far_clip", Reason: "must be greater than near_clip"}
	case c.BucketCount <= 0 || c.BucketCount&(c.BucketCount-1) != 0:
		return &ConfigError{Field: "bucket_count", Reason: "must be a power of two"}
	case c.ExcessListSize < 0:
		return &ConfigError{Field: "excess_list_size", Reason: "must not be negative"}
	case c.BlockCount <= 0 || c.BlockCount > math.MaxInt32:
		return &ConfigError{Field: "block_count", Reason: "must be positive"}
	case c.OverflowRequests < 0:
		return &ConfigError{Field: "overflow_requests", Reason: "must not be negative"}
	case c.Workers < 0:
		return &ConfigError{Field: "workers", Reason: "must not be negative"}
	case c.RangeSubsample < 1:
		return &ConfigError{Field: "range_subsample", Reason: "must be positive"}
	case c.MemoryLimitBytes < 0:
		return &ConfigError{Field: "memory_limit_bytes", Reason: "must not be negative"}
	case c.SnapshotIOBytesPerSec < 0:
		return &ConfigError{Field: "snapshot_io_bytes_per_sec", Reason: "must not be negative"}
	}
	if int64(c.BucketCount)+int64(c.ExcessListSize) > math.MaxInt32 {
		return &ConfigError{Field: "excess_list_size", Reason: "table too large"}
	}
	if _, err := compress.ParseType(c.Compression); err != nil {
		return &ConfigError{Field: "compression", Reason: err.Error()}
	}
	return nil
}

func (c Config) compression() compress.Type {
	t, _ := compress.ParseType(c.Compression)
	return t
}
