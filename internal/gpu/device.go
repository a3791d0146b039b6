// Package gpu defines the buffer factory and draw surface the world objects
// render through. Implementations own the memory behind every handle they
// return; a handle is released exactly once with Dispose.
package gpu

import (
	"errors"
	"image"
	"image/color"

	"mu-client/internal/mathutil"
)

var (
	// ErrOutOfMemory is returned when a buffer or texture cannot be allocated.
	ErrOutOfMemory = errors.New("gpu: out of memory")
	// ErrDisposed is returned when a disposed handle is drawn.
	ErrDisposed = errors.New("gpu: use of disposed resource")
)

// Vertex is a pre-skinned, pre-lit vertex in world space.
type Vertex struct {
	Position mathutil.Vec3
	Color    color.NRGBA
	UV       [2]float32
}

type VertexBuffer interface {
	Len() int
	Dispose()
}

type IndexBuffer interface {
	Len() int
	Dispose()
}

type Texture interface {
	Bounds() image.Rectangle
	Dispose()
}

// BlendState selects how a draw combines with the target.
type BlendState int

const (
	Opaque BlendState = iota
	AlphaBlend
)

// Technique carries the per-draw state. Vertices arrive in world space, so
// there is no world matrix.
type Technique struct {
	View       mathutil.Mat4
	Projection mathutil.Mat4
	Alpha      float32
	Blend      BlendState
}

// Device allocates buffers and textures and submits indexed triangle lists.
type Device interface {
	CreateVertexBuffer(verts []Vertex) (VertexBuffer, error)
	CreateIndexBuffer(indices []uint32) (IndexBuffer, error)
	CreateTexture(img *image.NRGBA) (Texture, error)
	DrawIndexed(tech Technique, vb VertexBuffer, ib IndexBuffer, tex Texture) error
}
