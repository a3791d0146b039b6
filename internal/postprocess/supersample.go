// Package postprocess finishes rendered snapshot frames.
package postprocess

import (
	"image"

	"golang.org/x/image/draw"

	"mu-client/internal/mathutil"
)

// Downsample reduces img to w by h with premultiplied-alpha-aware filtering.
// This prevents dark halo artifacts at transparent edges. Images already no
// larger than the target are returned as is.
func Downsample(img *image.NRGBA, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() <= w && b.Dy() <= h {
		return img
	}

	// Premultiply alpha
	premul := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			si := img.PixOffset(x, y)
			di := premul.PixOffset(x, y)
			a := float32(img.Pix[si+3]) / 255
			for k := 0; k < 3; k++ {
				premul.Pix[di+k] = uint8(float32(img.Pix[si+k])*a + 0.5)
			}
			premul.Pix[di+3] = img.Pix[si+3]
		}
	}

	// CatmullRom approximates Lanczos
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), premul, premul.Bounds(), draw.Src, nil)

	// Unpremultiply alpha
	result := image.NewNRGBA(dst.Bounds())
	for i := 0; i < len(dst.Pix); i += 4 {
		a := float32(dst.Pix[i+3])
		if a > 1 {
			inv := 255 / a
			for k := 0; k < 3; k++ {
				result.Pix[i+k] = clamp8(float32(dst.Pix[i+k]) * inv)
			}
		}
		result.Pix[i+3] = dst.Pix[i+3]
	}
	return result
}

func clamp8(v float32) uint8 {
	return uint8(mathutil.Clamp(v, 0, 255) + 0.5)
}
