package texture

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/sync/singleflight"

	"mu-client/internal/gpu"
)

// Cache is a concurrency-safe texture cache. It decodes each file once and
// hands out one shared device handle per file.
type Cache struct {
	index  *Index
	device gpu.Device

	mu      sync.RWMutex
	items   map[string]*cacheEntry
	retired []gpu.Texture
	group   singleflight.Group
}

type cacheEntry struct {
	tex gpu.Texture
	img *image.NRGBA
	err error // a failed load is remembered until invalidated
}

// NewCache creates a cache backed by index that uploads through device.
func NewCache(index *Index, device gpu.Device) *Cache {
	return &Cache{
		index:  index,
		device: device,
		items:  make(map[string]*cacheEntry),
	}
}

// Resolve returns the device texture for a texture reference.
func (c *Cache) Resolve(texName string) (gpu.Texture, error) {
	e, err := c.entry(texName)
	if err != nil {
		return nil, err
	}
	return e.tex, nil
}

// Image returns the decoded image for a texture reference.
func (c *Cache) Image(texName string) (*image.NRGBA, error) {
	e, err := c.entry(texName)
	if err != nil {
		return nil, err
	}
	return e.img, nil
}

func (c *Cache) entry(texName string) (*cacheEntry, error) {
	file, ok := c.index.ResolvePath(texName)
	if !ok {
		return nil, fmt.Errorf("texture: %s not in index", texName)
	}

	// Fast path: read lock
	c.mu.RLock()
	e, exists := c.items[file]
	c.mu.RUnlock()
	if exists {
		return e, e.err
	}

	// Slow path: one decode per file however many callers ask at once.
	v, _, _ := c.group.Do(file, func() (any, error) {
		c.mu.RLock()
		e, exists := c.items[file]
		c.mu.RUnlock()
		if exists {
			return e, nil
		}

		e = &cacheEntry{}
		e.img, e.err = Load(file)
		if e.err == nil {
			e.tex, e.err = c.device.CreateTexture(e.img)
			if e.err != nil {
				e.err = fmt.Errorf("texture: upload %s: %w", file, e.err)
			}
		}

		c.mu.Lock()
		c.items[file] = e
		c.mu.Unlock()
		return e, nil
	})
	e = v.(*cacheEntry)
	return e, e.err
}

// Invalidate forgets the cached texture for a file on disk so the next
// Resolve reloads it. Handles already given out stay valid until Close.
func (c *Cache) Invalidate(file string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[file]
	if !ok {
		return false
	}
	delete(c.items, file)
	if e.tex != nil {
		c.retired = append(c.retired, e.tex)
	}
	return true
}

// Len returns the number of cached files, failed loads included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close disposes every texture the cache has created.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.items {
		if e.tex != nil {
			e.tex.Dispose()
		}
	}
	for _, t := range c.retired {
		t.Dispose()
	}
	c.items = make(map[string]*cacheEntry)
	c.retired = nil
}
