package camera

import (
	"github.com/chewxy/math32"

	"mu-client/internal/mathutil"
)

// Containment classifies a volume against a frustum.
type Containment int

const (
	Disjoint Containment = iota
	Intersects
	Contains
)

func (c Containment) String() string {
	switch c {
	case Disjoint:
		return "disjoint"
	case Intersects:
		return "intersects"
	case Contains:
		return "contains"
	}
	return "unknown"
}

// Plane is n·p + D = 0 with the normal pointing into the frustum.
type Plane struct {
	Normal mathutil.Vec3
	D      float32
}

// Distance returns the signed distance of p, positive inside.
func (pl Plane) Distance(p mathutil.Vec3) float32 {
	return pl.Normal.Dot(p) + pl.D
}

const (
	planeLeft = iota
	planeRight
	planeBottom
	planeTop
	planeNear
	planeFar
)

// Frustum is the six clip planes of a view-projection matrix.
type Frustum struct {
	Planes [6]Plane
}

// NewFrustum extracts normalized planes from a row-vector view*projection
// matrix whose clip depth runs 0..1.
func NewFrustum(viewProj mathutil.Mat4) Frustum {
	col := func(j int) [4]float32 {
		return [4]float32{viewProj[j], viewProj[4+j], viewProj[8+j], viewProj[12+j]}
	}
	c0, c1, c2, c3 := col(0), col(1), col(2), col(3)

	plane := func(a, b [4]float32, sign float32) Plane {
		p := Plane{
			Normal: mathutil.Vec3{a[0] + sign*b[0], a[1] + sign*b[1], a[2] + sign*b[2]},
			D:      a[3] + sign*b[3],
		}
		if l := p.Normal.Len(); l > 0 {
			p.Normal = p.Normal.Scale(1 / l)
			p.D /= l
		}
		return p
	}

	var f Frustum
	f.Planes[planeLeft] = plane(c3, c0, 1)
	f.Planes[planeRight] = plane(c3, c0, -1)
	f.Planes[planeBottom] = plane(c3, c1, 1)
	f.Planes[planeTop] = plane(c3, c1, -1)
	f.Planes[planeNear] = plane(c2, c2, 0)
	f.Planes[planeFar] = plane(c3, c2, -1)
	return f
}

// ContainsSphere classifies s against the frustum.
func (f Frustum) ContainsSphere(s mathutil.Sphere) Containment {
	result := Contains
	for _, pl := range f.Planes {
		d := pl.Distance(s.Center)
		if d < -s.Radius {
			return Disjoint
		}
		if d < s.Radius {
			result = Intersects
		}
	}
	return result
}

// ContainsPoint reports whether p is inside or on every plane.
func (f Frustum) ContainsPoint(p mathutil.Vec3) bool {
	for _, pl := range f.Planes {
		if pl.Distance(p) < 0 {
			return false
		}
	}
	return true
}

// LookAt returns a right-handed view matrix.
func LookAt(eye, target, up mathutil.Vec3) mathutil.Mat4 {
	z := eye.Sub(target).Normalize()
	x := up.Cross(z).Normalize()
	y := z.Cross(x)
	return mathutil.Mat4{
		x[0], y[0], z[0], 0,
		x[1], y[1], z[1], 0,
		x[2], y[2], z[2], 0,
		-x.Dot(eye), -y.Dot(eye), -z.Dot(eye), 1,
	}
}

// Perspective returns a right-handed projection with clip depth 0..1.
// fovY is in radians.
func Perspective(fovY, aspect, near, far float32) mathutil.Mat4 {
	ys := 1 / math32.Tan(fovY/2)
	xs := ys / aspect
	return mathutil.Mat4{
		xs, 0, 0, 0,
		0, ys, 0, 0,
		0, 0, far / (near - far), -1,
		0, 0, near * far / (near - far), 0,
	}
}
