// Package testutil provides synthetic sensor frames for tests and examples.
//
// This package is intended for use in tests, benchmarks and examples only.
//
// # Synthetic Scenes
//
//	in := testutil.SmallIntrinsics()                      // 64×48, f=50
//	f := testutil.PlanarFrame(64, 48, in, 2.0, camera.IdentityPose())
//	d := testutil.SphereDepth(64, 48, in, pose, center, radius)
//
// # Sensor Noise
//
//	rng := testutil.NewRNG(seed)
//	rng.AddDepthNoise(f.Depth, 0.002, 0.01) // σ = 2 mm, 1% dropout
package testutil
