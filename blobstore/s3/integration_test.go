package s3

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/voxfuse/blobstore"
)

func TestIntegrationS3Store(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("S3_BUCKET not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("voxfuse-test-%d/", time.Now().UnixNano())
	store, err := New(ctx, bucket, WithPrefix(prefix))
	require.NoError(t, err)

	data := make([]byte, 6*1024*1024)
	_, _ = rand.Read(data)

	require.NoError(t, store.Put(ctx, "big.vxf", data))
	require.NoError(t, store.Put(ctx, "small.vxf", data[:1024]))
	t.Cleanup(func() {
		_ = store.Delete(ctx, "big.vxf")
		_ = store.Delete(ctx, "small.vxf")
	})

	blob, err := store.Open(ctx, "big.vxf")
	require.NoError(t, err)
	got, err := blobstore.ReadAll(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"big.vxf", "small.vxf"}, names)
}
