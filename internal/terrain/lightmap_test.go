package terrain

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"mu-client/internal/mathutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, Size, Size))
	img.SetNRGBA(10, 20, color.NRGBA{R: 255, G: 51, B: 0, A: 255})
	img.SetNRGBA(11, 20, color.NRGBA{R: 255, G: 51, B: 0, A: 255})
	return img
}

func TestLightAtTile(t *testing.T) {
	l, err := NewLightmap(grid())
	require.NoError(t, err)

	got := l.LightAt(10*TileScale, 20*TileScale)
	assert.InDeltaSlice(t, []float32{1, 0.2, 0}, got[:], 1e-6)

	// Halfway between tiles (10,20) and (10,21), the second unlit.
	got = l.LightAt(10*TileScale, 20.5*TileScale)
	assert.InDelta(t, 0.5, got[0], 0.01)
}

func TestLightAtOffGrid(t *testing.T) {
	l, err := NewLightmap(grid())
	require.NoError(t, err)
	assert.Equal(t, mathutil.Vec3{}, l.LightAt(-1, 500))
	assert.Equal(t, mathutil.Vec3{}, l.LightAt(Size*TileScale, 0))
}

func TestNewLightmapRejectsEmpty(t *testing.T) {
	_, err := NewLightmap(nil)
	assert.Error(t, err)
}

func TestUniform(t *testing.T) {
	u := Uniform{0.5, 0.5, 0.5}
	assert.Equal(t, mathutil.Vec3{0.5, 0.5, 0.5}, u.LightAt(123, 456))
}

func TestLoadLightmapOZJ(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, Size, Size))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	var buf bytes.Buffer
	header := make([]byte, 24)
	header[13] = 1 // top-down
	buf.Write(header)
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))

	path := filepath.Join(t.TempDir(), "TerrainLight.OZJ")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	l, err := LoadLightmap(path)
	require.NoError(t, err)
	got := l.LightAt(50*TileScale, 60*TileScale)
	for k := 0; k < 3; k++ {
		assert.InDelta(t, 128.0/255, got[k], 0.02)
	}
}
