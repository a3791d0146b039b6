package mathutil

import "github.com/chewxy/math32"

// Quat represents a quaternion (x, y, z, w).
type Quat [4]float32

// QuatIdentity is the no-rotation quaternion.
var QuatIdentity = Quat{0, 0, 0, 1}

// EulerToQuat converts Euler XYZ (radians) to a quaternion.
// Matches MU Online's AngleQuaternion function.
func EulerToQuat(rx, ry, rz float32) Quat {
	cx, sx := math32.Cos(rx*0.5), math32.Sin(rx*0.5)
	cy, sy := math32.Cos(ry*0.5), math32.Sin(ry*0.5)
	cz, sz := math32.Cos(rz*0.5), math32.Sin(rz*0.5)

	return Quat{
		sx*cy*cz - cx*sy*sz, // x
		cx*sy*cz + sx*cy*sz, // y
		cx*cy*sz - sx*sy*cz, // z
		cx*cy*cz + sx*sy*sz, // w
	}
}

func (a Quat) Dot(b Quat) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] + a[3]*b[3]
}

// Slerp spherically interpolates from a to b. The shorter arc is taken;
// nearly parallel inputs fall back to a linear blend.
func Slerp(a, b Quat, t float32) Quat {
	cos := a.Dot(b)
	flip := false
	if cos < 0 {
		flip = true
		cos = -cos
	}

	var wa, wb float32
	if cos > 0.999999 {
		wa = 1 - t
		wb = t
	} else {
		omega := math32.Acos(cos)
		inv := 1 / math32.Sin(omega)
		wa = math32.Sin((1-t)*omega) * inv
		wb = math32.Sin(t*omega) * inv
	}
	if flip {
		wb = -wb
	}

	return Quat{
		wa*a[0] + wb*b[0],
		wa*a[1] + wb*b[1],
		wa*a[2] + wb*b[2],
		wa*a[3] + wb*b[3],
	}
}

// Mat4 converts a unit quaternion to a rotation matrix (row-vector convention,
// zero translation).
func (q Quat) Mat4() Mat4 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy), 0,
		2 * (xy - wz), 1 - 2*(zz+xx), 2 * (yz + wx), 0,
		2 * (xz + wy), 2 * (yz - wx), 1 - 2*(yy+xx), 0,
		0, 0, 0, 1,
	}
}
