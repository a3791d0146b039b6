package mathutil

import "github.com/chewxy/math32"

// Sphere is a bounding sphere.
type Sphere struct {
	Center Vec3
	Radius float32
}

// Valid reports whether the sphere can take part in containment tests.
func (s Sphere) Valid() bool {
	if !(s.Radius > 0) || math32.IsInf(s.Radius, 0) {
		return false
	}
	for _, c := range s.Center {
		if math32.IsNaN(c) || math32.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Transform moves the sphere into the space of m. A sphere cannot represent
// anisotropic scale, so the radius grows by the largest axis scale.
func (s Sphere) Transform(m Mat4) Sphere {
	return Sphere{
		Center: m.MulPoint(s.Center),
		Radius: s.Radius * m.AxisScale().Max(),
	}
}

// SphereFromPoints returns a sphere centered on the bounding box of pts that
// encloses every point. An empty input yields the zero (invalid) sphere.
func SphereFromPoints(pts []Vec3) Sphere {
	if len(pts) == 0 {
		return Sphere{}
	}
	lo, hi := pts[0], pts[0]
	for _, p := range pts[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = math32.Min(lo[k], p[k])
			hi[k] = math32.Max(hi[k], p[k])
		}
	}
	center := Lerp(lo, hi, 0.5)
	var r float32
	for _, p := range pts {
		r = math32.Max(r, p.Sub(center).Len())
	}
	return Sphere{Center: center, Radius: r}
}
