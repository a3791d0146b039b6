// Package terrain samples the world's baked terrain light.
package terrain

import (
	"fmt"
	"image"

	"mu-client/internal/mathutil"
	"mu-client/internal/texture"
)

const (
	// Size is the terrain edge length in tiles.
	Size = 256
	// TileScale is the width of one tile in world units.
	TileScale = 100
)

// Lightmap is a per-tile light image covering the terrain grid.
type Lightmap struct {
	img *image.NRGBA
}

// NewLightmap wraps an image whose pixel (x, y) is the light of tile (x, y).
func NewLightmap(img *image.NRGBA) (*Lightmap, error) {
	if img == nil || img.Rect.Dx() == 0 || img.Rect.Dy() == 0 {
		return nil, fmt.Errorf("terrain: empty lightmap")
	}
	return &Lightmap{img: img}, nil
}

// LoadLightmap reads a TerrainLight OZJ/OZT file.
func LoadLightmap(path string) (*Lightmap, error) {
	img, err := texture.Load(path)
	if err != nil {
		return nil, fmt.Errorf("terrain: load lightmap: %w", err)
	}
	return NewLightmap(img)
}

// LightAt returns the bilinearly filtered light at world position (x, y).
// Positions off the grid are unlit.
func (l *Lightmap) LightAt(x, y float32) mathutil.Vec3 {
	tx, ty := x/TileScale, y/TileScale
	w, h := float32(l.img.Rect.Dx()), float32(l.img.Rect.Dy())
	if !(tx >= 0 && ty >= 0 && tx < w && ty < h) {
		return mathutil.Vec3{}
	}
	c := texture.SampleClamped(l.img, tx, ty)
	return mathutil.Vec3{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255}
}

// Uniform lights every position the same.
type Uniform mathutil.Vec3

func (u Uniform) LightAt(x, y float32) mathutil.Vec3 { return mathutil.Vec3(u) }
