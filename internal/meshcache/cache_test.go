package meshcache

import (
	"errors"
	"image"
	"testing"

	"mu-client/internal/bmd"
	"mu-client/internal/gpu"
	"mu-client/internal/gpu/gputest"
	"mu-client/internal/mathutil"
	"mu-client/internal/skeleton"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTextures struct {
	dev   *gputest.Device
	calls []string
	fail  bool
}

func (f *fakeTextures) Resolve(path string) (gpu.Texture, error) {
	f.calls = append(f.calls, path)
	if f.fail {
		return nil, errors.New("not found")
	}
	return f.dev.CreateTexture(image.NewNRGBA(image.Rect(0, 0, 2, 2)))
}

type flatLight mathutil.Vec3

func (l flatLight) LightAt(x, y float32) mathutil.Vec3 { return mathutil.Vec3(l) }

func twoMeshModel() *bmd.Model {
	mesh := bmd.Mesh{
		Verts: []mathutil.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Nodes: []int16{0, 0, 0},
		UVs:   [][2]float32{{0, 0}, {1, 0}, {0, 1}},
		Tris:  []bmd.Triangle{{Polygon: 3, VI: [4]int16{0, 1, 2}, TI: [4]int16{0, 1, 2}}},
	}
	a, b := mesh, mesh
	a.TexPath = "body.jpg"
	b.TexPath = "head.jpg"
	return &bmd.Model{Name: "Knight", Path: "Data/Player/Knight.bmd", Meshes: []bmd.Mesh{a, b}}
}

func bones() []mathutil.Mat4 {
	return []mathutil.Mat4{mathutil.Mat4Translation(mathutil.Vec3{5, 0, 0})}
}

func TestRebuildOnlyWhenDirty(t *testing.T) {
	dev := gputest.New()
	tex := &fakeTextures{dev: dev}
	c := New(dev, tex, twoMeshModel(), nil)
	light := Lighting{Enabled: true}

	require.True(t, c.Dirty())
	rebuilt, err := c.RebuildIfNeeded(bones(), light)
	require.NoError(t, err)
	assert.True(t, rebuilt)
	assert.False(t, c.Dirty())
	assert.Len(t, dev.VertexBuffers(), 2)
	assert.Len(t, dev.IndexBuffers(), 2)
	assert.Equal(t, []string{"Data/Player/body.jpg", "Data/Player/head.jpg"}, tex.calls)

	rebuilt, err = c.RebuildIfNeeded(bones(), light)
	require.NoError(t, err)
	assert.False(t, rebuilt)
	assert.Len(t, dev.VertexBuffers(), 2)

	c.Invalidate()
	rebuilt, err = c.RebuildIfNeeded(bones(), light)
	require.NoError(t, err)
	assert.True(t, rebuilt)

	vbs := dev.VertexBuffers()
	require.Len(t, vbs, 4)
	assert.True(t, vbs[0].Disposed)
	assert.True(t, vbs[1].Disposed)
	assert.False(t, vbs[2].Disposed)
	assert.Len(t, tex.calls, 2, "textures resolve once")

	e := c.Entries()[0]
	assert.True(t, e.Drawable())
	assert.NotNil(t, e.Texture)
	assert.Equal(t, mathutil.Vec3{6, 0, 0}, vbs[2].Verts[1].Position)
}

func TestLightingColor(t *testing.T) {
	l := Lighting{
		Sampler:  flatLight{0.5, 0.6, 0.7},
		Position: mathutil.Vec3{1200, 3400, 0},
		Enabled:  true,
		Bias:     mathutil.Vec3{0.3, 0.3, 0.3},
	}
	got := l.Color()
	assert.InDeltaSlice(t, []float32{0.8, 0.9, 1.0}, got[:], 1e-6)

	l.Enabled = false
	got = l.Color()
	assert.InDeltaSlice(t, []float32{0.35, 0.36, 0.37}, got[:], 1e-6)

	got = Lighting{Bias: mathutil.Vec3{0.3, 0.3, 0.3}}.Color()
	assert.InDeltaSlice(t, []float32{0.3, 0.3, 0.3}, got[:], 1e-6)
}

func TestRebuildBakesLight(t *testing.T) {
	dev := gputest.New()
	c := New(dev, nil, twoMeshModel(), nil)
	light := Lighting{Sampler: flatLight{0.2, 0.2, 0.2}, Enabled: true, Bias: mathutil.Vec3{0.3, 0.3, 0.3}}

	_, err := c.RebuildIfNeeded(bones(), light)
	require.NoError(t, err)

	want := skeleton.LightColor(light.Color())
	for _, v := range dev.VertexBuffers()[0].Verts {
		assert.Equal(t, want, v.Color)
	}
}

func TestAllocationFailureKeepsDirty(t *testing.T) {
	dev := &gputest.Device{Budget: 1}
	c := New(dev, nil, twoMeshModel(), nil)

	_, err := c.RebuildIfNeeded(bones(), Lighting{Enabled: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, gpu.ErrOutOfMemory)
	assert.True(t, c.Dirty())
	assert.False(t, c.Entries()[0].Drawable())
}

func TestMissingTextureIsNotFatal(t *testing.T) {
	dev := gputest.New()
	tex := &fakeTextures{dev: dev, fail: true}
	c := New(dev, tex, twoMeshModel(), nil)

	_, err := c.RebuildIfNeeded(bones(), Lighting{Enabled: true})
	require.NoError(t, err)
	assert.Nil(t, c.Entries()[0].Texture)
	assert.True(t, c.Entries()[0].Drawable())

	c.Invalidate()
	_, err = c.RebuildIfNeeded(bones(), Lighting{Enabled: true})
	require.NoError(t, err)
	assert.Len(t, tex.calls, 2, "a failed lookup is not retried")
}

func TestDisposeReleasesBuffers(t *testing.T) {
	dev := gputest.New()
	c := New(dev, nil, twoMeshModel(), nil)
	_, err := c.RebuildIfNeeded(bones(), Lighting{Enabled: true})
	require.NoError(t, err)
	require.Equal(t, 4, dev.Live())

	c.Dispose()
	assert.Equal(t, 0, dev.Live())
	assert.True(t, c.Dirty())
	assert.False(t, c.Entries()[1].Drawable())
}
