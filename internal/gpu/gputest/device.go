// Package gputest provides a Device that records every call instead of
// allocating memory.
package gputest

import (
	"fmt"
	"image"
	"sync"

	"mu-client/internal/gpu"
)

// Draw is one recorded DrawIndexed call.
type Draw struct {
	Tech    gpu.Technique
	Vertex  *VertexBuffer
	Index   *IndexBuffer
	Texture *Texture
}

// Device is a recording gpu.Device. When Budget is positive, allocations
// beyond it fail with gpu.ErrOutOfMemory.
type Device struct {
	Budget int

	mu        sync.Mutex
	allocated int
	live      int
	vertex    []*VertexBuffer
	index     []*IndexBuffer
	textures  []*Texture
	draws     []Draw
}

func New() *Device { return &Device{} }

type VertexBuffer struct {
	Verts    []gpu.Vertex
	Disposed bool
	dev      *Device
}

func (b *VertexBuffer) Len() int { return len(b.Verts) }
func (b *VertexBuffer) Dispose() { b.dev.release(&b.Disposed) }

type IndexBuffer struct {
	Indices  []uint32
	Disposed bool
	dev      *Device
}

func (b *IndexBuffer) Len() int { return len(b.Indices) }
func (b *IndexBuffer) Dispose() { b.dev.release(&b.Disposed) }

type Texture struct {
	Image    *image.NRGBA
	Disposed bool
	dev      *Device
}

func (t *Texture) Bounds() image.Rectangle { return t.Image.Bounds() }
func (t *Texture) Dispose()                { t.dev.release(&t.Disposed) }

func (d *Device) release(flag *bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if *flag {
		panic("gputest: double dispose")
	}
	*flag = true
	d.live--
}

func (d *Device) alloc() error {
	if d.Budget > 0 && d.allocated >= d.Budget {
		return gpu.ErrOutOfMemory
	}
	d.allocated++
	d.live++
	return nil
}

func (d *Device) CreateVertexBuffer(verts []gpu.Vertex) (gpu.VertexBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alloc(); err != nil {
		return nil, err
	}
	b := &VertexBuffer{Verts: append([]gpu.Vertex(nil), verts...), dev: d}
	d.vertex = append(d.vertex, b)
	return b, nil
}

func (d *Device) CreateIndexBuffer(indices []uint32) (gpu.IndexBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alloc(); err != nil {
		return nil, err
	}
	b := &IndexBuffer{Indices: append([]uint32(nil), indices...), dev: d}
	d.index = append(d.index, b)
	return b, nil
}

func (d *Device) CreateTexture(img *image.NRGBA) (gpu.Texture, error) {
	if img == nil {
		return nil, fmt.Errorf("gputest: nil texture image")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.alloc(); err != nil {
		return nil, err
	}
	t := &Texture{Image: img, dev: d}
	d.textures = append(d.textures, t)
	return t, nil
}

func (d *Device) DrawIndexed(tech gpu.Technique, vb gpu.VertexBuffer, ib gpu.IndexBuffer, tex gpu.Texture) error {
	v, ok := vb.(*VertexBuffer)
	if !ok {
		return fmt.Errorf("gputest: foreign vertex buffer %T", vb)
	}
	i, ok := ib.(*IndexBuffer)
	if !ok {
		return fmt.Errorf("gputest: foreign index buffer %T", ib)
	}
	if v.Disposed || i.Disposed {
		return gpu.ErrDisposed
	}
	t, _ := tex.(*Texture)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws = append(d.draws, Draw{Tech: tech, Vertex: v, Index: i, Texture: t})
	return nil
}

// VertexBuffers returns every vertex buffer created so far, in order.
func (d *Device) VertexBuffers() []*VertexBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*VertexBuffer(nil), d.vertex...)
}

// IndexBuffers returns every index buffer created so far, in order.
func (d *Device) IndexBuffers() []*IndexBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*IndexBuffer(nil), d.index...)
}

func (d *Device) Textures() []*Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Texture(nil), d.textures...)
}

func (d *Device) Draws() []Draw {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Draw(nil), d.draws...)
}

// Live returns the number of allocated, not yet disposed resources.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// ResetDraws forgets recorded draw calls.
func (d *Device) ResetDraws() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws = nil
}
