package skeleton

import (
	"image/color"

	"mu-client/internal/bmd"
	"mu-client/internal/gpu"
	"mu-client/internal/mathutil"
)

// LightColor converts a linear light intensity into a vertex color,
// saturating each channel at 1.
func LightColor(light mathutil.Vec3) color.NRGBA {
	ch := func(v float32) uint8 {
		return uint8(mathutil.Clamp(v, 0, 1)*255 + 0.5)
	}
	return color.NRGBA{R: ch(light[0]), G: ch(light[1]), B: ch(light[2]), A: 255}
}

// Skin builds the vertex and index data of one mesh posed by bones. Every
// triangle corner gets its own vertex (corners share positions but not UVs)
// and quads are split into 0-1-2 and 0-2-3. Vertices bound to a bone outside
// bones keep their bind-space position. Triangles referencing missing
// vertices are dropped.
func Skin(mesh *bmd.Mesh, bones []mathutil.Mat4, c color.NRGBA) ([]gpu.Vertex, []uint32) {
	verts := make([]gpu.Vertex, 0, len(mesh.Tris)*6)
	indices := make([]uint32, 0, len(mesh.Tris)*6)

	corner := func(tri *bmd.Triangle, k int) gpu.Vertex {
		vi := int(tri.VI[k])
		pos := mesh.Verts[vi]
		if vi < len(mesh.Nodes) {
			if node := int(mesh.Nodes[vi]); node >= 0 && node < len(bones) {
				pos = bones[node].MulPoint(pos)
			}
		}
		v := gpu.Vertex{Position: pos, Color: c}
		if ti := int(tri.TI[k]); ti >= 0 && ti < len(mesh.UVs) {
			v.UV = mesh.UVs[ti]
		}
		return v
	}

	emit := func(tri *bmd.Triangle, c0, c1, c2 int) {
		for _, k := range [3]int{c0, c1, c2} {
			if vi := int(tri.VI[k]); vi < 0 || vi >= len(mesh.Verts) {
				return
			}
		}
		for _, k := range [3]int{c0, c1, c2} {
			indices = append(indices, uint32(len(verts)))
			verts = append(verts, corner(tri, k))
		}
	}

	for i := range mesh.Tris {
		tri := &mesh.Tris[i]
		emit(tri, 0, 1, 2)
		if tri.Polygon == 4 {
			emit(tri, 0, 2, 3)
		}
	}
	return verts, indices
}
