// Package culling decides whether a placed object is worth animating this
// tick.
package culling

import (
	"mu-client/internal/camera"
	"mu-client/internal/mathutil"
)

// Gate tracks an object's bounding sphere in world space.
type Gate struct {
	local mathutil.Sphere
	world mathutil.Sphere
}

// NewGate wraps an object-space sphere. The world sphere starts equal to it.
func NewGate(local mathutil.Sphere) *Gate {
	return &Gate{local: local, world: local}
}

// Local returns the object-space sphere.
func (g *Gate) Local() mathutil.Sphere { return g.local }

// World returns the sphere as of the last Retransform.
func (g *Gate) World() mathutil.Sphere { return g.world }

// Retransform moves the sphere by the object's new world matrix.
func (g *Gate) Retransform(world mathutil.Mat4) {
	g.world = g.local.Transform(world)
}

// Visible reports whether any part of the sphere may be on screen. A
// degenerate sphere is never visible.
func (g *Gate) Visible(f camera.Frustum) bool {
	if !g.local.Valid() || !g.world.Valid() {
		return false
	}
	return f.ContainsSphere(g.world) != camera.Disjoint
}
