// Package camera provides camera implementations for 3D rendering.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// FlyCamera moves freely through a Z-up world. Angles are pitch, yaw and
// roll in degrees, as consumed by render.View.
type FlyCamera struct {
	Origin mgl32.Vec3
	Angles mgl32.Vec3

	// Constraints
	MinPitch float32
	MaxPitch float32

	// Sensitivity
	DragSensitivity float32 // degrees per pixel
	Speed           float32 // world units per second
}

// NewFlyCamera creates a new fly camera with default settings.
func NewFlyCamera() *FlyCamera {
	return &FlyCamera{
		MinPitch:        -89,
		MaxPitch:        89,
		DragSensitivity: 0.2,
		Speed:           320,
	}
}

// Forward returns the unit view direction.
func (c *FlyCamera) Forward() mgl32.Vec3 {
	pitch := float64(mgl32.DegToRad(c.Angles[0]))
	yaw := float64(mgl32.DegToRad(c.Angles[1]))
	return mgl32.Vec3{
		float32(math.Cos(pitch) * math.Cos(yaw)),
		float32(math.Cos(pitch) * math.Sin(yaw)),
		float32(-math.Sin(pitch)),
	}
}

// Right returns the unit direction to the right of the view on the XY plane.
func (c *FlyCamera) Right() mgl32.Vec3 {
	yaw := float64(mgl32.DegToRad(c.Angles[1]))
	return mgl32.Vec3{float32(math.Sin(yaw)), float32(-math.Cos(yaw)), 0}
}

// HandleDrag turns the camera by a mouse drag delta in pixels. Moving
// the mouse right turns right and moving it down looks down.
func (c *FlyCamera) HandleDrag(deltaX, deltaY float32) {
	c.Angles[1] -= deltaX * c.DragSensitivity
	c.Angles[0] = mgl32.Clamp(c.Angles[0]+deltaY*c.DragSensitivity, c.MinPitch, c.MaxPitch)

	// Keep yaw in [0, 360)
	c.Angles[1] = float32(math.Mod(float64(c.Angles[1]), 360))
	if c.Angles[1] < 0 {
		c.Angles[1] += 360
	}
}

// HandleMovement moves the camera for dt seconds. forward, right and up
// are in [-1, 1]; up is along world Z.
func (c *FlyCamera) HandleMovement(forward, right, up, dt float32) {
	dir := c.Forward().Mul(forward).Add(c.Right().Mul(right)).Add(mgl32.Vec3{0, 0, up})
	if dir.Len() == 0 {
		return
	}
	c.Origin = c.Origin.Add(dir.Normalize().Mul(c.Speed * dt))
}

// FitToBounds places the camera at the center of the given box, level
// and facing along +X.
func (c *FlyCamera) FitToBounds(mins, maxs mgl32.Vec3) {
	c.Origin = mins.Add(maxs).Mul(0.5)
	c.Angles = mgl32.Vec3{}
}
