package voxfuse

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	require.NoError(t, testConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(*Config)
	}{
		{"voxel_size", func(c *Config) { c.VoxelSize = 0 }},
		{"truncation_distance", func(c *Config) { c.TruncationDistance = -1 }},
		{"truncation_distance", func(c *Config) { c.TruncationDistance = c.VoxelSize / 2 }},
		{"allocation_band_factor", func(c *Config) { c.AllocationBandFactor = 0 }},
		{"max_weight", func(c *Config) { c.MaxWeight = 0 }},
		{"max_weight", func(c *Config) { c.MaxWeight = 1 << 16 }},
		{"near_clip", func(c *Config) { c.NearClip = -0.1 }},
		{"far_clip", func(c *Config) { c.FarClip = c.NearClip }},
		{"bucket_count", func(c *Config) { c.BucketCount = 1000 }},
		{"excess_list_size", func(c *Config) { c.ExcessListSize = -1 }},
		{"block_count", func(c *Config) { c.BlockCount = 0 }},
		{"overflow_requests", func(c *Config) { c.OverflowRequests = -1 }},
		{"workers", func(c *Config) { c.Workers = -2 }},
		{"range_subsample", func(c *Config) { c.RangeSubsample = 0 }},
		{"compression", func(c *Config) { c.Compression = "brotli" }},
		{"memory_limit_bytes", func(c *Config) { c.MemoryLimitBytes = -1 }},
		{"snapshot_io_bytes_per_sec", func(c *Config) { c.SnapshotIOBytesPerSec = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)

			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
voxel_size: 0.01
truncation_distance: 0.04
stop_integrating_at_max_weight: true
bucket_count: 65536
compression: zstd
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want := DefaultConfig()
	want.VoxelSize = 0.01
	want.TruncationDistance = 0.04
	want.StopIntegratingAtMaxWeight = true
	want.BucketCount = 65536
	want.Compression = "zstd"
	assert.Equal(t, want, cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("voxel_size: [1, 2]\n"), 0o600))
	_, err = LoadConfig(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("bucket_count: 3\n"), 0o600))
	_, err = LoadConfig(invalid)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "bucket_count", ce.Field)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BucketCount = 3
	_, err := New(t.Context(), cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
