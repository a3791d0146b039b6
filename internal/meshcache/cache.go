// Package meshcache keeps one object's per-mesh GPU buffers in step with its
// bone matrices, rebuilding them only after something changed.
package meshcache

import (
	"fmt"

	"github.com/charmbracelet/log"

	"mu-client/internal/bmd"
	"mu-client/internal/gpu"
	"mu-client/internal/logging"
	"mu-client/internal/mathutil"
	"mu-client/internal/skeleton"
)

// DisabledLightFactor scales terrain light for objects that do not receive
// dynamic lighting.
const DisabledLightFactor = 0.1

// TextureResolver maps a model-relative texture path to a shared handle.
// Handles are owned by the resolver and never disposed by the cache.
type TextureResolver interface {
	Resolve(path string) (gpu.Texture, error)
}

// LightSampler returns the terrain light at a world X/Y position.
type LightSampler interface {
	LightAt(x, y float32) mathutil.Vec3
}

// Lighting describes how an object is lit during a rebuild.
type Lighting struct {
	Sampler  LightSampler
	Position mathutil.Vec3 // object position, sampled at X/Y
	Enabled  bool
	Bias     mathutil.Vec3 // the object's own light, added last
}

// Color returns the vertex light for l.
func (l Lighting) Color() mathutil.Vec3 {
	var light mathutil.Vec3
	if l.Sampler != nil {
		light = l.Sampler.LightAt(l.Position[0], l.Position[1])
	}
	if !l.Enabled {
		light = light.Scale(DisabledLightFactor)
	}
	return light.Add(l.Bias)
}

// Entry is the buffer set of one mesh. Any field may be nil: buffers before
// the first rebuild, the texture when it could not be resolved.
type Entry struct {
	Vertices gpu.VertexBuffer
	Indices  gpu.IndexBuffer
	Texture  gpu.Texture

	texResolved bool
}

// Drawable reports whether the entry has non-empty geometry.
func (e *Entry) Drawable() bool {
	return e.Vertices != nil && e.Indices != nil && e.Indices.Len() > 0
}

// Cache owns the vertex and index buffers of every mesh of one model
// instance.
type Cache struct {
	device   gpu.Device
	textures TextureResolver
	model    *bmd.Model
	logger   *log.Logger

	entries []Entry
	dirty   bool
}

// New creates a cache that needs a rebuild. textures and logger may be nil.
func New(device gpu.Device, textures TextureResolver, model *bmd.Model, logger *log.Logger) *Cache {
	return &Cache{
		device:   device,
		textures: textures,
		model:    model,
		logger:   logging.OrDiscard(logger),
		entries:  make([]Entry, len(model.Meshes)),
		dirty:    true,
	}
}

// Invalidate forces the next RebuildIfNeeded to rebuild every mesh.
func (c *Cache) Invalidate() { c.dirty = true }

func (c *Cache) Dirty() bool { return c.dirty }

// Entries returns the per-mesh buffers, indexed like the model's meshes.
func (c *Cache) Entries() []Entry { return c.entries }

// RebuildIfNeeded re-skins every mesh with bones and light when the cache is
// dirty and reports whether it did. Old buffers are disposed before their
// replacements are created. An allocation error stops the pass and leaves
// the cache dirty.
func (c *Cache) RebuildIfNeeded(bones []mathutil.Mat4, light Lighting) (bool, error) {
	if !c.dirty {
		return false, nil
	}

	col := skeleton.LightColor(light.Color())
	for i := range c.model.Meshes {
		e := &c.entries[i]
		verts, indices := skeleton.Skin(&c.model.Meshes[i], bones, col)

		if e.Vertices != nil {
			e.Vertices.Dispose()
			e.Vertices = nil
		}
		if e.Indices != nil {
			e.Indices.Dispose()
			e.Indices = nil
		}

		vb, err := c.device.CreateVertexBuffer(verts)
		if err != nil {
			return false, fmt.Errorf("meshcache: create vertex buffer for mesh %d of %s: %w", i, c.model.Name, err)
		}
		e.Vertices = vb

		ib, err := c.device.CreateIndexBuffer(indices)
		if err != nil {
			return false, fmt.Errorf("meshcache: create index buffer for mesh %d of %s: %w", i, c.model.Name, err)
		}
		e.Indices = ib

		if !e.texResolved {
			c.resolveTexture(i, e)
		}
	}

	c.dirty = false
	return true, nil
}

// resolveTexture looks the mesh texture up once. A missing texture is not
// fatal; the mesh draws with vertex color only.
func (c *Cache) resolveTexture(mesh int, e *Entry) {
	e.texResolved = true
	if c.textures == nil {
		return
	}
	path := c.model.TexturePath(mesh)
	if path == "" {
		return
	}
	tex, err := c.textures.Resolve(path)
	if err != nil {
		c.logger.Warn("texture unavailable", "model", c.model.Name, "mesh", mesh, "path", path, "err", err)
		return
	}
	e.Texture = tex
}

// Dispose releases every buffer. Textures stay with their resolver. The
// cache is dirty afterwards and may be rebuilt.
func (c *Cache) Dispose() {
	for i := range c.entries {
		e := &c.entries[i]
		if e.Vertices != nil {
			e.Vertices.Dispose()
		}
		if e.Indices != nil {
			e.Indices.Dispose()
		}
		c.entries[i] = Entry{}
	}
	c.dirty = true
}
