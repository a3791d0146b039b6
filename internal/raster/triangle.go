package raster

import (
	"image"

	"github.com/chewxy/math32"

	"mu-client/internal/gpu"
	"mu-client/internal/mathutil"
	"mu-client/internal/texture"
)

// minAlpha drops nearly transparent fragments before they touch depth.
const minAlpha = 8.0 / 255

// screenVertex is a vertex in pixel space. Attributes are divided by w for
// perspective-correct interpolation.
type screenVertex struct {
	x, y, z float32
	invW    float32
	u, v    float32 // UV / w
	rgba    [4]float32
	ok      bool
}

func project(viewProj mathutil.Mat4, vert gpu.Vertex, w, h int) screenVertex {
	clip := viewProj.MulVec4(vert.Position)
	if clip[3] <= 1e-6 {
		return screenVertex{}
	}
	invW := 1 / clip[3]
	z := clip[2] * invW
	if z < 0 || z > 1 {
		return screenVertex{}
	}
	c := vert.Color
	return screenVertex{
		x:    (clip[0]*invW + 1) * 0.5 * float32(w),
		y:    (1 - clip[1]*invW) * 0.5 * float32(h),
		z:    z,
		invW: invW,
		u:    vert.UV[0] * invW,
		v:    vert.UV[1] * invW,
		rgba: [4]float32{
			float32(c.R) / 255 * invW,
			float32(c.G) / 255 * invW,
			float32(c.B) / 255 * invW,
			float32(c.A) / 255 * invW,
		},
		ok: true,
	}
}

// pass is the state shared by the triangles of one draw call.
type pass struct {
	fb    *FrameBuffer
	tex   *image.NRGBA
	alpha float32
	blend gpu.BlendState
}

// rasterize fills one triangle and returns the number of pixels written.
// Both windings are drawn.
func (p *pass) rasterize(a, b, c screenVertex) int {
	fb := p.fb
	minX := int(math32.Floor(min(a.x, b.x, c.x)))
	maxX := int(math32.Ceil(max(a.x, b.x, c.x)))
	minY := int(math32.Floor(min(a.y, b.y, c.y)))
	maxY := int(math32.Ceil(max(a.y, b.y, c.y)))
	minX = max(minX, 0)
	minY = max(minY, 0)
	maxX = min(maxX, fb.Width-1)
	maxY = min(maxY, fb.Height-1)
	if minX > maxX || minY > maxY {
		return 0
	}

	// Barycentric setup
	det := (b.y-c.y)*(a.x-c.x) + (c.x-b.x)*(a.y-c.y)
	if det > -1e-8 && det < 1e-8 {
		return 0
	}
	invDet := 1 / det
	dy12 := b.y - c.y
	dx21 := c.x - b.x
	dy20 := c.y - a.y
	dx02 := a.x - c.x

	written := 0
	for sy := minY; sy <= maxY; sy++ {
		dsy := float32(sy) + 0.5 - c.y
		rowOff := sy * fb.Width
		for sx := minX; sx <= maxX; sx++ {
			dsx := float32(sx) + 0.5 - c.x
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			z := w0*a.z + w1*b.z + w2*c.z
			idx := rowOff + sx
			if z >= fb.Depth[idx] {
				continue
			}

			invW := w0*a.invW + w1*b.invW + w2*c.invW
			persp := 1 / invW
			var src [4]float32
			for k := range src {
				src[k] = (w0*a.rgba[k] + w1*b.rgba[k] + w2*c.rgba[k]) * persp
			}
			if p.tex != nil {
				u := (w0*a.u + w1*b.u + w2*c.u) * persp
				v := (w0*a.v + w1*b.v + w2*c.v) * persp
				t := texture.Sample(p.tex, u, v)
				src[0] *= float32(t.R) / 255
				src[1] *= float32(t.G) / 255
				src[2] *= float32(t.B) / 255
				src[3] *= float32(t.A) / 255
			}
			if p.blend == gpu.AlphaBlend {
				src[3] *= p.alpha
			}
			if src[3] < minAlpha {
				continue
			}

			fb.Depth[idx] = z
			p.write(idx*4, src)
			written++
		}
	}
	return written
}

func (p *pass) write(off int, src [4]float32) {
	px := p.fb.Color[off : off+4 : off+4]
	if p.blend != gpu.AlphaBlend {
		px[0], px[1], px[2], px[3] = unorm(src[0]), unorm(src[1]), unorm(src[2]), 255
		return
	}
	sa := mathutil.Clamp(src[3], 0, 1)
	da := float32(px[3]) / 255
	outA := sa + da*(1-sa)
	if outA <= 0 {
		return
	}
	for k := 0; k < 3; k++ {
		dc := float32(px[k]) / 255
		px[k] = unorm((src[k]*sa + dc*da*(1-sa)) / outA)
	}
	px[3] = unorm(outA)
}

func unorm(v float32) uint8 {
	return uint8(mathutil.Clamp(v, 0, 1)*255 + 0.5)
}
