package voxfuse_test

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hupe1980/voxfuse"
	"github.com/hupe1980/voxfuse/camera"
	"github.com/hupe1980/voxfuse/testutil"
)

func Example() {
	ctx := context.Background()

	cfg := voxfuse.DefaultConfig()
	cfg.VoxelSize = 0.01
	cfg.TruncationDistance = 0.04
	cfg.BucketCount = 0x4000
	cfg.ExcessListSize = 0x1000
	cfg.BlockCount = 4096

	vol, err := voxfuse.New(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer vol.Close()

	// A wall two metres in front of the camera.
	f := testutil.PlanarFrame(64, 48, testutil.SmallIntrinsics(), 2, camera.IdentityPose())
	stats, err := vol.ProcessFrame(ctx, f)
	if err != nil {
		panic(err)
	}
	fmt.Println("failed allocations:", stats.Failed())

	res, err := vol.Raycast(ctx, f.DepthCamera())
	if err != nil {
		panic(err)
	}
	p, _ := res.At(32, 24)
	fmt.Printf("centre hit at z=%.1f\n", p.Z())

	var buf bytes.Buffer
	if _, err := vol.Save(ctx, &buf); err != nil {
		panic(err)
	}
	fmt.Println("snapshot written:", buf.Len() > 0)

	// Output:
	// failed allocations: 0
	// centre hit at z=2.0
	// snapshot written: true
}
