package texture

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mu-client/internal/gpu/gputest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

// twoBand returns a 16x16 image, red on top and blue below.
func twoBand() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			c := red
			if y >= 8 {
				c = blue
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func ozj(t *testing.T, img image.Image, topDown bool) []byte {
	t.Helper()
	header := make([]byte, ozjHeaderSize)
	if topDown {
		header[ozjTopDownAt] = 1
	}
	var buf bytes.Buffer
	buf.Write(header)
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

// ozt wraps an uncompressed 32-bit top-left TGA.
func ozt(img *image.NRGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	var buf bytes.Buffer
	buf.Write(make([]byte, oztHeaderSize))
	buf.Write([]byte{0, 0, 2, 0, 0, 0, 0, 0})
	binary.Write(&buf, binary.LittleEndian, [4]uint16{0, 0, uint16(w), uint16(h)})
	buf.Write([]byte{32, 0x28})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.NRGBAAt(x, y)
			buf.Write([]byte{c.B, c.G, c.R, c.A})
		}
	}
	return buf.Bytes()
}

func isRed(c color.NRGBA) bool  { return c.R > 200 && c.B < 60 }
func isBlue(c color.NRGBA) bool { return c.B > 200 && c.R < 60 }

func TestDecodeOZJRowOrder(t *testing.T) {
	img, err := Decode(".OZJ", ozj(t, twoBand(), true))
	require.NoError(t, err)
	assert.True(t, isRed(img.NRGBAAt(4, 1)))
	assert.True(t, isBlue(img.NRGBAAt(4, 14)))
	assert.Equal(t, uint8(255), img.NRGBAAt(0, 0).A)

	img, err = Decode(".ozj", ozj(t, twoBand(), false))
	require.NoError(t, err)
	assert.True(t, isBlue(img.NRGBAAt(4, 1)), "bottom-up rows are flipped")
	assert.True(t, isRed(img.NRGBAAt(4, 14)))
}

func TestDecodeOZJTooLarge(t *testing.T) {
	big := image.NewGray(image.Rect(0, 0, MaxSize+1, 8))
	_, err := Decode(".ozj", ozj(t, big, true))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDecodeOZT(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetNRGBA(1, 1, red)

	img, err := Decode(".ozt", ozt(src))
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, red, img.NRGBAAt(1, 1))
	assert.Equal(t, uint8(0), img.NRGBAAt(1, 0).A, "alpha is kept")
}

func TestDecodeUsesContainerCodec(t *testing.T) {
	small := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			small.SetNRGBA(x, y, red)
		}
	}
	raw := ozj(t, small, true)

	img, err := Decode(".ozj", raw)
	require.NoError(t, err, "JPEG payloads must not be sniffed as TGA")
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Rect)
	assert.True(t, isRed(img.NRGBAAt(2, 2)))

	// The same JPEG bytes behind an OZT header go to the TGA decoder.
	wrapped := append(make([]byte, oztHeaderSize), raw[ozjHeaderSize:]...)
	_, err = Decode(".ozt", wrapped)
	assert.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(".ozj", make([]byte, 10))
	assert.Error(t, err)
	_, err = Decode(".png", make([]byte, 100))
	assert.ErrorContains(t, err, "unknown extension")
}

func writeTextures(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "Object1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "door.OZJ"), ozj(t, twoBand(), true), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "door.OZT"), ozt(twoBand()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wall.OZJ"), ozj(t, twoBand(), true), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))
	return root
}

func TestIndexResolve(t *testing.T) {
	root := writeTextures(t)
	idx, err := BuildIndex(root)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	file, ok := idx.ResolvePath(filepath.ToSlash(filepath.Join(root, "Object1", "Door.jpg")))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "Object1", "door.OZT"), file, "OZT wins")

	file, ok = idx.ResolvePath("Monster\\texture\\WALL.tga")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "Object1", "wall.OZJ"), file)

	_, ok = idx.ResolvePath("missing.jpg")
	assert.False(t, ok)
}

func TestCacheSharesHandles(t *testing.T) {
	root := writeTextures(t)
	idx, err := BuildIndex(root)
	require.NoError(t, err)
	dev := gputest.New()
	c := NewCache(idx, dev)

	a, err := c.Resolve("door.jpg")
	require.NoError(t, err)
	b, err := c.Resolve("Object1/door.tga")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Len(t, dev.Textures(), 1)

	img, err := c.Image("door.jpg")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())

	_, err = c.Resolve("nothing.jpg")
	assert.Error(t, err)

	assert.True(t, c.Invalidate(filepath.Join(root, "Object1", "door.OZT")))
	d, err := c.Resolve("door.jpg")
	require.NoError(t, err)
	assert.NotSame(t, a, d)

	c.Close()
	assert.Equal(t, 0, dev.Live())
	assert.Equal(t, 0, c.Len())
}

func TestSample(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, A: 255})

	assert.Equal(t, uint8(100), Sample(img, 0.5, 0).R)
	assert.Equal(t, uint8(100), SampleClamped(img, 0.5, 0).R)
	assert.Equal(t, uint8(200), SampleClamped(img, 7, -3).R)
	assert.Equal(t, color.NRGBA{}, Sample(image.NewNRGBA(image.Rect(0, 0, 0, 0)), 0, 0))
}

func TestWatcherInvalidatesOnWrite(t *testing.T) {
	root := writeTextures(t)
	idx, err := BuildIndex(root)
	require.NoError(t, err)
	c := NewCache(idx, gputest.New())
	_, err = c.Resolve("wall.jpg")
	require.NoError(t, err)

	w, err := Watch(root, c, nil)
	require.NoError(t, err)
	defer w.Close()

	file := filepath.Join(root, "Object1", "wall.OZJ")
	require.NoError(t, os.WriteFile(file, ozj(t, twoBand(), false), 0o644))

	select {
	case got := <-w.Changes():
		assert.Equal(t, file, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event")
	}
	assert.Equal(t, 0, c.Len())
}

func TestBuildIndexMissingRoot(t *testing.T) {
	idx, err := BuildIndex(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
	require.NotNil(t, idx)
	assert.Zero(t, idx.Len())
}
