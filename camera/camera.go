// Package camera provides pinhole projection and rigid camera poses.
//
// Poses are world→camera transforms. Camera space follows the usual depth
// sensor convention: x right, y down, z forward along the optical axis.
package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Intrinsics are the pinhole projection parameters in pixels.
type Intrinsics struct {
	Fx, Fy float32
	Cx, Cy float32
}

// Valid reports whether both focal lengths are positive.
func (in Intrinsics) Valid() bool {
	return in.Fx > 0 && in.Fy > 0
}

// IsZero reports whether no parameter is set.
func (in Intrinsics) IsZero() bool {
	return in == Intrinsics{}
}

// Project maps a camera-space point to pixel coordinates. The caller checks z > 0.
func (in Intrinsics) Project(p mgl32.Vec3) (u, v float32) {
	return in.Fx*p.X()/p.Z() + in.Cx, in.Fy*p.Y()/p.Z() + in.Cy
}

// Unproject returns the camera-space point at pixel (u, v) and depth z.
func (in Intrinsics) Unproject(u, v, z float32) mgl32.Vec3 {
	return mgl32.Vec3{(u - in.Cx) / in.Fx * z, (v - in.Cy) / in.Fy * z, z}
}

// Scale returns the intrinsics of an image resized by factor s.
func (in Intrinsics) Scale(s float32) Intrinsics {
	return Intrinsics{Fx: in.Fx * s, Fy: in.Fy * s, Cx: in.Cx * s, Cy: in.Cy * s}
}

// Pose is a rigid world→camera transform with its cached inverse.
type Pose struct {
	m   mgl32.Mat4
	inv mgl32.Mat4
}

// NewPose wraps a world→camera matrix.
func NewPose(worldToCamera mgl32.Mat4) Pose {
	return Pose{m: worldToCamera, inv: worldToCamera.Inv()}
}

// PoseFromCameraToWorld builds a pose from the camera's placement in the world.
func PoseFromCameraToWorld(cameraToWorld mgl32.Mat4) Pose {
	return Pose{m: cameraToWorld.Inv(), inv: cameraToWorld}
}

// IdentityPose returns a camera at the world origin looking down +z.
func IdentityPose() Pose {
	return Pose{m: mgl32.Ident4(), inv: mgl32.Ident4()}
}

// WorldToCamera returns the pose matrix.
func (p Pose) WorldToCamera() mgl32.Mat4 { return p.m }

// CameraToWorld returns the inverse pose matrix.
func (p Pose) CameraToWorld() mgl32.Mat4 { return p.inv }

// ToCamera transforms a world point into camera space.
func (p Pose) ToCamera(world mgl32.Vec3) mgl32.Vec3 {
	return mgl32.TransformCoordinate(world, p.m)
}

// ToWorld transforms a camera-space point into world space.
func (p Pose) ToWorld(cam mgl32.Vec3) mgl32.Vec3 {
	return mgl32.TransformCoordinate(cam, p.inv)
}

// Center returns the camera centre in world space.
func (p Pose) Center() mgl32.Vec3 {
	return p.inv.Col(3).Vec3()
}

// RotateToWorld rotates a camera-space direction into world space.
func (p Pose) RotateToWorld(dir mgl32.Vec3) mgl32.Vec3 {
	return p.inv.Mat3().Mul3x1(dir)
}

// Camera is a posed pinhole camera with an image size.
type Camera struct {
	Intrinsics Intrinsics
	Pose       Pose
	Width      int
	Height     int
}

// New returns a camera.
func New(in Intrinsics, pose Pose, width, height int) Camera {
	return Camera{Intrinsics: in, Pose: pose, Width: width, Height: height}
}

// ProjectWorld maps a world point to pixel coordinates and camera depth.
// ok is false for points behind the camera.
func (c Camera) ProjectWorld(world mgl32.Vec3) (u, v, z float32, ok bool) {
	p := c.Pose.ToCamera(world)
	if p.Z() <= 0 {
		return 0, 0, p.Z(), false
	}
	u, v = c.Intrinsics.Project(p)
	return u, v, p.Z(), true
}

// Contains reports whether pixel (u, v) lies inside the image.
func (c Camera) Contains(u, v float32) bool {
	return u >= 0 && v >= 0 && u < float32(c.Width) && v < float32(c.Height)
}

// RayDirection returns the world-space direction through pixel (u, v),
// scaled so that its camera-space z component is 1.
func (c Camera) RayDirection(u, v float32) mgl32.Vec3 {
	return c.Pose.RotateToWorld(c.Intrinsics.Unproject(u, v, 1))
}
