// Package raster is a software gpu.Device. It rasterizes indexed triangle
// lists into an in-memory frame buffer with a depth test and alpha blending.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"mu-client/internal/gpu"
	"mu-client/internal/mathutil"
)

// ErrForeignHandle is returned when a handle that no raster Device created is
// drawn. Handles are plain memory, so any raster Device can draw them.
var ErrForeignHandle = errors.New("raster: handle was not created by a raster device")

// Stats counts the work done since the last Clear.
type Stats struct {
	Draws     int
	Triangles int
	Culled    int // triangles dropped behind the camera or outside the depth range
	Pixels    int
}

type vertexBuffer struct {
	verts    []gpu.Vertex
	disposed bool
}

func (b *vertexBuffer) Len() int { return len(b.verts) }
func (b *vertexBuffer) Dispose() { b.disposed = true; b.verts = nil }

type indexBuffer struct {
	indices  []uint32
	disposed bool
}

func (b *indexBuffer) Len() int { return len(b.indices) }
func (b *indexBuffer) Dispose() { b.disposed = true; b.indices = nil }

type rasterTexture struct {
	img      *image.NRGBA
	disposed bool
}

func (t *rasterTexture) Bounds() image.Rectangle { return t.img.Rect }
func (t *rasterTexture) Dispose()                { t.disposed = true }

// Device renders into a single frame buffer. It is safe for concurrent use;
// draws are serialized.
type Device struct {
	mu    sync.Mutex
	fb    *FrameBuffer
	stats Stats
}

// NewDevice returns a device with a w by h target.
func NewDevice(w, h int) *Device {
	return &Device{fb: NewFrameBuffer(w, h)}
}

func (d *Device) Size() (int, int) { return d.fb.Width, d.fb.Height }

// Clear resets the target to c and zeroes the stats.
func (d *Device) Clear(c color.NRGBA) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fb.Clear(c)
	d.stats = Stats{}
}

// Image returns a copy of the current target.
func (d *Device) Image() *image.NRGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fb.Image()
}

func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Device) CreateVertexBuffer(verts []gpu.Vertex) (gpu.VertexBuffer, error) {
	return &vertexBuffer{verts: append([]gpu.Vertex(nil), verts...)}, nil
}

func (d *Device) CreateIndexBuffer(indices []uint32) (gpu.IndexBuffer, error) {
	return &indexBuffer{indices: append([]uint32(nil), indices...)}, nil
}

func (d *Device) CreateTexture(img *image.NRGBA) (gpu.Texture, error) {
	if img == nil {
		return nil, errors.New("raster: nil texture image")
	}
	return &rasterTexture{img: img}, nil
}

// DrawIndexed rasterizes every triangle of ib. tex may be nil, in which case
// the vertex colors are drawn alone.
func (d *Device) DrawIndexed(tech gpu.Technique, vb gpu.VertexBuffer, ib gpu.IndexBuffer, tex gpu.Texture) error {
	v, ok := vb.(*vertexBuffer)
	if !ok {
		return fmt.Errorf("raster: vertex buffer %T: %w", vb, ErrForeignHandle)
	}
	ix, ok := ib.(*indexBuffer)
	if !ok {
		return fmt.Errorf("raster: index buffer %T: %w", ib, ErrForeignHandle)
	}
	if v.disposed || ix.disposed {
		return gpu.ErrDisposed
	}
	var img *image.NRGBA
	if tex != nil {
		t, ok := tex.(*rasterTexture)
		if !ok {
			return fmt.Errorf("raster: texture %T: %w", tex, ErrForeignHandle)
		}
		if t.disposed {
			return gpu.ErrDisposed
		}
		img = t.img
	}
	if len(ix.indices)%3 != 0 {
		return fmt.Errorf("raster: index count %d is not a triangle list", len(ix.indices))
	}
	for _, i := range ix.indices {
		if int(i) >= len(v.verts) {
			return fmt.Errorf("raster: index %d out of range [0,%d)", i, len(v.verts))
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Draws++

	viewProj := mathutil.Mat4Mul(tech.View, tech.Projection)
	projected := make([]screenVertex, len(v.verts))
	for i, vert := range v.verts {
		projected[i] = project(viewProj, vert, d.fb.Width, d.fb.Height)
	}

	p := pass{
		fb:    d.fb,
		tex:   img,
		alpha: tech.Alpha,
		blend: tech.Blend,
	}
	for i := 0; i < len(ix.indices); i += 3 {
		d.stats.Triangles++
		a, b, c := projected[ix.indices[i]], projected[ix.indices[i+1]], projected[ix.indices[i+2]]
		if !a.ok || !b.ok || !c.ok {
			d.stats.Culled++
			continue
		}
		d.stats.Pixels += p.rasterize(a, b, c)
	}
	return nil
}
