package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
)

// MaxSize is the largest texture edge the client accepts.
const MaxSize = 1024

const (
	ozjHeaderSize = 24
	ozjTopDownAt  = 13 // bool: rows stored top-down
	oztHeaderSize = 4
)

var ErrTooLarge = errors.New("texture: dimensions exceed 1024x1024")

// Load reads an OZJ or OZT file and returns an NRGBA image.
func Load(path string) (*image.NRGBA, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("texture: read %s: %w", path, err)
	}
	img, err := Decode(filepath.Ext(path), raw)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return img, nil
}

// Decode decodes an in-memory texture container. ext selects the format
// (".ozj" or ".ozt", any case).
func Decode(ext string, raw []byte) (*image.NRGBA, error) {
	switch strings.ToLower(ext) {
	case ".ozj":
		// OZJ: 24-byte header + JPEG data
		if len(raw) <= ozjHeaderSize {
			return nil, fmt.Errorf("texture: OZJ too short")
		}
		img, err := decodeImage(raw[ozjHeaderSize:], jpeg.DecodeConfig, jpeg.Decode)
		if err != nil {
			return nil, err
		}
		if raw[ozjTopDownAt] == 0 {
			flipRows(img)
		}
		return img, nil
	case ".ozt":
		// OZT: 4-byte header + TGA data
		if len(raw) <= oztHeaderSize {
			return nil, fmt.Errorf("texture: OZT too short")
		}
		return decodeImage(raw[oztHeaderSize:], tga.DecodeConfig, tga.Decode)
	default:
		return nil, fmt.Errorf("texture: unknown extension %q", ext)
	}
}

// decodeImage decodes with the container's own codec. The tga package
// registers an empty magic string, so image.Decode sniffing would hand JPEG
// data to it.
func decodeImage(
	data []byte,
	decodeConfig func(io.Reader) (image.Config, error),
	decode func(io.Reader) (image.Image, error),
) (*image.NRGBA, error) {
	cfg, err := decodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("texture: decode header: %w", err)
	}
	if cfg.Width > MaxSize || cfg.Height > MaxSize {
		return nil, ErrTooLarge
	}
	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("texture: decode: %w", err)
	}
	return toNRGBA(img), nil
}

// flipRows mirrors img vertically in place.
func flipRows(img *image.NRGBA) {
	h := img.Rect.Dy()
	row := img.Rect.Dx() * 4
	tmp := make([]byte, row)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : y*img.Stride+row]
		bot := img.Pix[(h-1-y)*img.Stride : (h-1-y)*img.Stride+row]
		copy(tmp, top)
		copy(top, bot)
		copy(bot, tmp)
	}
}

// toNRGBA converts any image to an NRGBA with its origin at (0, 0).
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src.(type) {
	case *image.YCbCr, *image.Gray:
		// No alpha: draw and force opaque.
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		for i := 3; i < len(dst.Pix); i += 4 {
			dst.Pix[i] = 255
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
				dst.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
			}
		}
	}
	return dst
}
