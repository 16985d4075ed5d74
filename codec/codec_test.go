package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type meta struct {
	VoxelSize   float32 `json:"voxel_size"`
	BucketCount int     `json:"bucket_count"`
	Compression string  `json:"compression"`
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("msgpack")
	assert.False(t, ok)
	assert.Equal(t, "go-json", Default.Name())
}

func TestCodecsInterchangeable(t *testing.T) {
	in := meta{VoxelSize: 0.005, BucketCount: 1 << 18, Compression: "lz4"}

	for _, enc := range []Codec{JSON{}, GoJSON{}} {
		data, err := enc.Marshal(in)
		require.NoError(t, err)
		for _, dec := range []Codec{JSON{}, GoJSON{}} {
			var out meta
			require.NoError(t, dec.Unmarshal(data, &out))
			assert.Equal(t, in, out, "%s -> %s", enc.Name(), dec.Name())
		}
	}
}
