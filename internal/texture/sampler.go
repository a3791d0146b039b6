package texture

import (
	"image"
	"image/color"
)

// Sample performs bilinear filtering with UV wrapping. u and v run 0..1
// across the image. Accesses tex.Pix directly for performance.
func Sample(tex *image.NRGBA, u, v float32) color.NRGBA {
	w := tex.Rect.Dx()
	h := tex.Rect.Dy()
	if w == 0 || h == 0 {
		return color.NRGBA{}
	}

	// Wrap UVs
	u -= float32(int(u))
	if u < 0 {
		u += 1
	}
	v -= float32(int(v))
	if v < 0 {
		v += 1
	}
	return bilinear(tex, u*float32(w-1), v*float32(h-1), true)
}

// SampleClamped filters at pixel coordinates (x, y), clamping to the edges.
func SampleClamped(tex *image.NRGBA, x, y float32) color.NRGBA {
	w := tex.Rect.Dx()
	h := tex.Rect.Dy()
	if w == 0 || h == 0 {
		return color.NRGBA{}
	}
	x = min(max(x, 0), float32(w-1))
	y = min(max(y, 0), float32(h-1))
	return bilinear(tex, x, y, false)
}

func bilinear(tex *image.NRGBA, fx, fy float32, wrap bool) color.NRGBA {
	w := tex.Rect.Dx()
	h := tex.Rect.Dy()

	x0 := int(fx)
	y0 := int(fy)
	x1, y1 := x0+1, y0+1
	if wrap {
		x1 %= w
		y1 %= h
	} else {
		x1 = min(x1, w-1)
		y1 = min(y1, h-1)
	}
	dx := fx - float32(x0)
	dy := fy - float32(y0)

	stride := tex.Stride
	pix := tex.Pix

	// Four texels
	i00 := y0*stride + x0*4
	i10 := y0*stride + x1*4
	i01 := y1*stride + x0*4
	i11 := y1*stride + x1*4

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	ch := func(k int) uint8 {
		f := float32(pix[i00+k])*w00 + float32(pix[i10+k])*w10 +
			float32(pix[i01+k])*w01 + float32(pix[i11+k])*w11
		return uint8(f + 0.5)
	}
	return color.NRGBA{R: ch(0), G: ch(1), B: ch(2), A: ch(3)}
}
