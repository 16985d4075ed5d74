package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	ctx := context.Background()
	c := NewController(Config{MemoryLimitBytes: 100})

	// Acquire 50
	require.NoError(t, c.AcquireMemory(ctx, 50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	// Acquire 40
	require.NoError(t, c.AcquireMemory(ctx, 40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Acquire 20 (should fail - limit exceeded)
	err := c.AcquireMemory(ctx, 20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Release 50
	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	// Now Acquire 20 should succeed
	require.NoError(t, c.AcquireMemory(ctx, 20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(context.Background(), 1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_CanceledContext(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, c.AcquireMemory(ctx, 10), context.Canceled)
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestController_Snapshots(t *testing.T) {
	c := NewController(Config{MaxConcurrentSnapshots: 2})

	require.NoError(t, c.AcquireSnapshot(context.Background()))
	require.NoError(t, c.AcquireSnapshot(context.Background()))
	assert.False(t, c.TryAcquireSnapshot())

	c.ReleaseSnapshot()
	assert.True(t, c.TryAcquireSnapshot())
}

func TestController_IOLargerThanBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The first burst is free; the rest is paced.
	start := time.Now()
	require.NoError(t, c.AcquireIO(ctx, (1<<20)+(1<<18)))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireMemory(context.Background(), 1<<40))
	require.NoError(t, c.AcquireIO(context.Background(), 1<<40))
	require.NoError(t, c.AcquireSnapshot(context.Background()))
	assert.True(t, c.TryAcquireSnapshot())
	c.ReleaseSnapshot()
	c.ReleaseMemory(1)
	assert.Equal(t, int64(0), c.MemoryUsage())
}
