package mathutil

import "github.com/chewxy/math32"

// Mat4 is a 4×4 matrix stored row-major using the row-vector convention:
// points transform as v × M and the translation lives in the last row
// (indices 12, 13, 14). A × B therefore applies A first, then B.
type Mat4 [16]float32

func Mat4Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mat4Scale returns a uniform scale matrix.
func Mat4Scale(s float32) Mat4 {
	return Mat4{
		s, 0, 0, 0,
		0, s, 0, 0,
		0, 0, s, 0,
		0, 0, 0, 1,
	}
}

// Mat4Translation returns a translation matrix.
func Mat4Translation(t Vec3) Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		t[0], t[1], t[2], 1,
	}
}

// Mat4Mul returns a × b.
func Mat4Mul(a, b Mat4) Mat4 {
	var m Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[r*4+c] = a[r*4+0]*b[0*4+c] + a[r*4+1]*b[1*4+c] +
				a[r*4+2]*b[2*4+c] + a[r*4+3]*b[3*4+c]
		}
	}
	return m
}

// MulPoint transforms a 3D point (w=1) by the matrix.
func (m Mat4) MulPoint(v Vec3) Vec3 {
	return Vec3{
		v[0]*m[0] + v[1]*m[4] + v[2]*m[8] + m[12],
		v[0]*m[1] + v[1]*m[5] + v[2]*m[9] + m[13],
		v[0]*m[2] + v[1]*m[6] + v[2]*m[10] + m[14],
	}
}

// MulVec4 transforms a homogeneous point and returns (x, y, z, w).
func (m Mat4) MulVec4(v Vec3) [4]float32 {
	return [4]float32{
		v[0]*m[0] + v[1]*m[4] + v[2]*m[8] + m[12],
		v[0]*m[1] + v[1]*m[5] + v[2]*m[9] + m[13],
		v[0]*m[2] + v[1]*m[6] + v[2]*m[10] + m[14],
		v[0]*m[3] + v[1]*m[7] + v[2]*m[11] + m[15],
	}
}

func (m Mat4) Translation() Vec3 {
	return Vec3{m[12], m[13], m[14]}
}

func (m *Mat4) SetTranslation(t Vec3) {
	m[12], m[13], m[14] = t[0], t[1], t[2]
}

// AxisScale returns the scale factor along each basis axis (the lengths of
// the first three rows).
func (m Mat4) AxisScale() Vec3 {
	return Vec3{
		math32.Sqrt(m[0]*m[0] + m[1]*m[1] + m[2]*m[2]),
		math32.Sqrt(m[4]*m[4] + m[5]*m[5] + m[6]*m[6]),
		math32.Sqrt(m[8]*m[8] + m[9]*m[9] + m[10]*m[10]),
	}
}

// IsIdentity checks if the matrix is approximately identity.
func (m Mat4) IsIdentity() bool {
	id := Mat4Identity()
	for i := 0; i < 16; i++ {
		d := m[i] - id[i]
		if d > 1e-6 || d < -1e-6 {
			return false
		}
	}
	return true
}

// WorldMatrix composes scale, then Euler rotation (radians), then translation.
func WorldMatrix(position, angle Vec3, scale float32) Mat4 {
	rot := EulerToQuat(angle[0], angle[1], angle[2]).Mat4()
	return Mat4Mul(Mat4Mul(Mat4Scale(scale), rot), Mat4Translation(position))
}
