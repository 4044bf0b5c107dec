package timelapse

import (
	"errors"
	"fmt"
	"math"
)

// Matrix3 is a rotation about an axis through the origin.
type Matrix3 [3][3]float64

// Identity returns the identity rotation.
func Identity() Matrix3 {
	return Matrix3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// RotationAbout returns the rotation of angle radians about axis, which need
// not be normalised.
func RotationAbout(axis Vector3, angle float64) (Matrix3, error) {
	n := axis.Length()
	if n == 0 {
		return Matrix3{}, errors.New("rotation axis has zero length")
	}
	x, y, z := axis.X/n, axis.Y/n, axis.Z/n
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c

	return Matrix3{
		{t*x*x + c, t*x*y - s*z, t*x*z + s*y},
		{t*x*y + s*z, t*y*y + c, t*y*z - s*x},
		{t*x*z - s*y, t*y*z + s*x, t*z*z + c},
	}, nil
}

// Apply transforms a point.
func (m Matrix3) Apply(v Vector3) Vector3 {
	return Vector3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Orbiter turns the viewport camera's eye about the viewport's front up
// direction by a fixed slice of a full turn per frame. The camera's up vector
// is pinned to that direction, and with fit set every step refits the view.
type Orbiter struct {
	viewport Viewport
	rotation Matrix3
	up       Vector3
	enabled  bool
	fit      bool
}

// NewOrbiter builds the per-frame rotation once. framesPerRotation <= 0
// disables the orbit and Step becomes a no-op.
func NewOrbiter(viewport Viewport, framesPerRotation int, fit bool) (*Orbiter, error) {
	o := &Orbiter{
		viewport: viewport,
		rotation: Identity(),
		fit:      fit,
	}
	if framesPerRotation <= 0 {
		return o, nil
	}

	o.up = viewport.FrontUpDirection()
	rot, err := RotationAbout(o.up, 2*math.Pi/float64(framesPerRotation))
	if err != nil {
		return nil, fmt.Errorf("front up direction: %w", err)
	}
	o.rotation = rot
	o.enabled = true
	return o, nil
}

// Enabled reports whether Step moves the camera.
func (o *Orbiter) Enabled() bool {
	return o.enabled
}

// Rotation returns the per-frame rotation.
func (o *Orbiter) Rotation() Matrix3 {
	return o.rotation
}

// Step advances the camera one frame around the up axis and commits it so
// the viewport redraws.
func (o *Orbiter) Step() error {
	if !o.enabled {
		return nil
	}

	camera, err := o.viewport.Camera()
	if err != nil {
		return fmt.Errorf("get camera: %w", err)
	}
	if o.fit {
		camera.IsFitView = true
	}
	camera.Eye = o.rotation.Apply(camera.Eye)
	camera.UpVector = o.up

	if err := o.viewport.SetCamera(camera); err != nil {
		return fmt.Errorf("set camera: %w", err)
	}
	return nil
}
