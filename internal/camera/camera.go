// Package camera provides the view, projection and frustum the world objects
// are culled and drawn against. The world is Z-up.
package camera

import "mu-client/internal/mathutil"

// Camera is a look-at camera. Matrices are rebuilt lazily after a setter
// marks the camera dirty.
type Camera struct {
	position mathutil.Vec3
	target   mathutil.Vec3
	up       mathutil.Vec3

	fovY   float32 // radians
	aspect float32
	near   float32
	far    float32

	isDirty    bool
	view       mathutil.Mat4
	projection mathutil.Mat4
	frustum    Frustum
}

// Settings holds the initial camera placement and lens.
type Settings struct {
	Position mathutil.Vec3
	Target   mathutil.Vec3
	FOV      float32 // degrees
	Aspect   float32
	Near     float32
	Far      float32
}

// DefaultSettings frames the origin from behind and above.
func DefaultSettings() Settings {
	return Settings{
		Position: mathutil.Vec3{0, -800, 600},
		FOV:      35,
		Aspect:   1,
		Near:     10,
		Far:      5000,
	}
}

func New(s Settings) *Camera {
	c := &Camera{up: mathutil.Vec3{0, 0, 1}}
	c.SetLens(s.FOV, s.Aspect, s.Near, s.Far)
	c.LookAt(s.Position, s.Target)
	return c
}

func (c *Camera) Position() mathutil.Vec3 { return c.position }
func (c *Camera) Target() mathutil.Vec3   { return c.target }

// LookAt moves the camera to position, facing target.
func (c *Camera) LookAt(position, target mathutil.Vec3) {
	c.position = position
	c.target = target
	c.isDirty = true
}

// SetLens changes the projection. fov is in degrees.
func (c *Camera) SetLens(fov, aspect, near, far float32) {
	if aspect <= 0 {
		aspect = 1
	}
	c.fovY = mathutil.Deg2Rad(fov)
	c.aspect = aspect
	c.near = near
	c.far = far
	c.isDirty = true
}

func (c *Camera) rebuild() {
	if !c.isDirty {
		return
	}
	c.view = LookAt(c.position, c.target, c.up)
	c.projection = Perspective(c.fovY, c.aspect, c.near, c.far)
	c.frustum = NewFrustum(mathutil.Mat4Mul(c.view, c.projection))
	c.isDirty = false
}

func (c *Camera) View() mathutil.Mat4 {
	c.rebuild()
	return c.view
}

func (c *Camera) Projection() mathutil.Mat4 {
	c.rebuild()
	return c.projection
}

func (c *Camera) Frustum() Frustum {
	c.rebuild()
	return c.frustum
}
