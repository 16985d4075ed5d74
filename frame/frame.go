// Package frame holds the sensor images fused into a volume.
package frame

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hupe1980/voxfuse/camera"
)

// ErrInvalidFrame is returned by Validate.
var ErrInvalidFrame = errors.New("frame: invalid frame")

// DepthImage is a row-major depth map in metres.
// Non-positive, NaN or infinite samples mean "no measurement".
type DepthImage struct {
	Width  int
	Height int
	Data   []float32
}

// NewDepthImage allocates an empty depth image.
func NewDepthImage(width, height int) *DepthImage {
	return &DepthImage{Width: width, Height: height, Data: make([]float32, width*height)}
}

// DepthFromMillimeters converts raw sensor depth to metres. Zero stays invalid.
func DepthFromMillimeters(width, height int, raw []uint16, scale float32) *DepthImage {
	d := NewDepthImage(width, height)
	for i, v := range raw[:min(len(raw), len(d.Data))] {
		d.Data[i] = float32(v) * scale
	}
	return d
}

// At returns the sample at pixel (x, y).
func (d *DepthImage) At(x, y int) float32 {
	return d.Data[y*d.Width+x]
}

// Set stores the sample at pixel (x, y).
func (d *DepthImage) Set(x, y int, z float32) {
	d.Data[y*d.Width+x] = z
}

// ValidDepth reports whether z is a usable measurement.
func ValidDepth(z float32) bool {
	return z > 0 && !math32.IsInf(z, 0) && !math32.IsNaN(z)
}

// ColorImage is a row-major, tightly packed RGB image.
type ColorImage struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewColorImage allocates a black colour image.
func NewColorImage(width, height int) *ColorImage {
	return &ColorImage{Width: width, Height: height, Pix: make([]uint8, 3*width*height)}
}

// At returns the colour at pixel (x, y).
func (c *ColorImage) At(x, y int) [3]uint8 {
	i := 3 * (y*c.Width + x)
	return [3]uint8{c.Pix[i], c.Pix[i+1], c.Pix[i+2]}
}

// Set stores the colour at pixel (x, y).
func (c *ColorImage) Set(x, y int, rgb [3]uint8) {
	i := 3 * (y*c.Width + x)
	copy(c.Pix[i:i+3], rgb[:])
}

// Bilinear interpolates the colour at (u, v). ok is false when the 2×2
// neighbourhood leaves the image.
func (c *ColorImage) Bilinear(u, v float32) (rgb [3]float32, ok bool) {
	x0, y0 := math32.Floor(u), math32.Floor(v)
	ix, iy := int(x0), int(y0)
	if ix < 0 || iy < 0 || ix+1 >= c.Width || iy+1 >= c.Height {
		return rgb, false
	}
	fx, fy := u-x0, v-y0

	a, b := c.At(ix, iy), c.At(ix+1, iy)
	cc, d := c.At(ix, iy+1), c.At(ix+1, iy+1)
	for i := range rgb {
		top := float32(a[i])*(1-fx) + float32(b[i])*fx
		bottom := float32(cc[i])*(1-fx) + float32(d[i])*fx
		rgb[i] = top*(1-fy) + bottom*fy
	}
	return rgb, true
}

// Frame is one depth (and optional colour) observation.
type Frame struct {
	Depth      *DepthImage
	Intrinsics camera.Intrinsics
	// Pose is the world→depth-camera transform.
	Pose camera.Pose

	// Color is optional.
	Color *ColorImage
	// ColorIntrinsics defaults to Intrinsics when zero.
	ColorIntrinsics camera.Intrinsics
	// ColorToDepth is the colour→depth camera extrinsic. The zero matrix means identity.
	ColorToDepth mgl32.Mat4
}

// DepthCamera returns the camera the depth image was taken with.
func (f *Frame) DepthCamera() camera.Camera {
	return camera.New(f.Intrinsics, f.Pose, f.Depth.Width, f.Depth.Height)
}

// ColorCamera returns the camera the colour image was taken with.
// The frame must have a colour image.
func (f *Frame) ColorCamera() camera.Camera {
	in := f.ColorIntrinsics
	if in.IsZero() {
		in = f.Intrinsics
	}
	pose := f.Pose
	if f.ColorToDepth != (mgl32.Mat4{}) {
		pose = camera.NewPose(f.ColorToDepth.Inv().Mul4(f.Pose.WorldToCamera()))
	}
	return camera.New(in, pose, f.Color.Width, f.Color.Height)
}

// Validate checks image sizes and intrinsics.
func (f *Frame) Validate() error {
	if f == nil || f.Depth == nil {
		return fmt.Errorf("%w: missing depth image", ErrInvalidFrame)
	}
	if f.Depth.Width <= 0 || f.Depth.Height <= 0 || len(f.Depth.Data) != f.Depth.Width*f.Depth.Height {
		return fmt.Errorf("%w: depth image %dx%d with %d samples", ErrInvalidFrame, f.Depth.Width, f.Depth.Height, len(f.Depth.Data))
	}
	if !f.Intrinsics.Valid() {
		return fmt.Errorf("%w: invalid depth intrinsics", ErrInvalidFrame)
	}
	if f.Color != nil {
		if f.Color.Width <= 0 || f.Color.Height <= 0 || len(f.Color.Pix) != 3*f.Color.Width*f.Color.Height {
			return fmt.Errorf("%w: colour image %dx%d with %d bytes", ErrInvalidFrame, f.Color.Width, f.Color.Height, len(f.Color.Pix))
		}
		if !f.ColorIntrinsics.IsZero() && !f.ColorIntrinsics.Valid() {
			return fmt.Errorf("%w: invalid colour intrinsics", ErrInvalidFrame)
		}
	}
	return nil
}
