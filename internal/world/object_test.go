package world

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"mu-client/internal/bmd"
	"mu-client/internal/camera"
	"mu-client/internal/gpu"
	"mu-client/internal/gpu/gputest"
	"mu-client/internal/logging"
	"mu-client/internal/mathutil"
	"mu-client/internal/skeleton"
	"mu-client/internal/terrain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyed(pos []mathutil.Vec3, rot []mathutil.Vec3) bmd.BoneMatrix {
	bm := bmd.BoneMatrix{Position: pos, Rotation: rot}
	for _, r := range rot {
		bm.Quaternion = append(bm.Quaternion, mathutil.EulerToQuat(r[0], r[1], r[2]))
	}
	return bm
}

// doorModel is a two-bone hinge swinging through three keys.
func doorModel() *bmd.Model {
	return &bmd.Model{
		Name: "SteelDoor01",
		Meshes: []bmd.Mesh{{
			Verts: []mathutil.Vec3{{-10, 0, 0}, {10, 0, 0}, {10, 0, 20}, {-10, 0, 20}},
			Nodes: []int16{0, 0, 1, 1},
			UVs:   [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
			Tris:  []bmd.Triangle{{Polygon: 4, VI: [4]int16{0, 1, 2, 3}, TI: [4]int16{0, 1, 2, 3}}},
		}},
		Actions: []bmd.Action{{NumAnimationKeys: 3}, {NumAnimationKeys: 1}},
		Bones: []bmd.Bone{
			{Name: "root", Parent: -1, Matrixes: []bmd.BoneMatrix{
				keyed([]mathutil.Vec3{{}, {}, {}}, []mathutil.Vec3{{0, 0, 0}, {0, 0, 0.4}, {0, 0, 0.8}}),
				keyed([]mathutil.Vec3{{}}, []mathutil.Vec3{{}}),
			}},
			{Name: "leaf", Parent: 0, Matrixes: []bmd.BoneMatrix{
				keyed([]mathutil.Vec3{{0, 0, 5}, {0, 0, 5}, {0, 0, 5}}, []mathutil.Vec3{{}, {}, {}}),
				keyed([]mathutil.Vec3{{0, 0, 5}}, []mathutil.Vec3{{}}),
			}},
		},
	}
}

func testCamera() *camera.Camera {
	return camera.New(camera.Settings{
		Position: mathutil.Vec3{0, -500, 100},
		FOV:      60,
		Aspect:   1,
		Near:     1,
		Far:      5000,
	})
}

func testDeps(dev gpu.Device) Deps {
	return Deps{
		Device:  dev,
		Terrain: terrain.Uniform{0.5, 0.5, 0.5},
		Camera:  testCamera(),
	}
}

func loaded(t *testing.T, deps Deps) *Object {
	t.Helper()
	o := NewObject(deps)
	o.Name = "SteelDoor"
	o.SetModel(doorModel())
	require.True(t, o.Load())
	return o
}

func snapshot(o *Object) []mathutil.Mat4 {
	return append([]mathutil.Mat4(nil), o.BoneMatrices()...)
}

func TestLoadWithoutModelStaysInert(t *testing.T) {
	var buf bytes.Buffer
	l, err := logging.New(logging.Options{Output: &buf})
	require.NoError(t, err)

	dev := gputest.New()
	deps := testDeps(dev)
	deps.Logger = l
	o := NewObject(deps)

	assert.False(t, o.Load())
	assert.False(t, o.Ready())
	assert.Contains(t, buf.String(), "model is not assigned")

	require.NoError(t, o.Update(time.Second))
	require.NoError(t, o.Draw())
	assert.False(t, o.Visible())
	assert.Empty(t, dev.VertexBuffers())
	assert.Empty(t, dev.Draws())
	o.Dispose()
}

func TestUpdateBuildsAndDraws(t *testing.T) {
	dev := gputest.New()
	deps := testDeps(dev)
	o := loaded(t, deps)
	o.Alpha = 0.5

	require.NoError(t, o.Update(100*time.Millisecond))
	assert.True(t, o.Visible())
	assert.Len(t, dev.VertexBuffers(), 1)
	assert.Len(t, dev.IndexBuffers(), 1)

	require.NoError(t, o.Draw())
	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, deps.Camera.View(), draws[0].Tech.View)
	assert.Equal(t, deps.Camera.Projection(), draws[0].Tech.Projection)
	assert.Equal(t, float32(0.5), draws[0].Tech.Alpha)
	assert.Equal(t, gpu.AlphaBlend, draws[0].Tech.Blend)
	assert.Len(t, draws[0].Index.Indices, 6)
}

func TestRepeatedUpdateDoesNotRebuild(t *testing.T) {
	dev := gputest.New()
	o := loaded(t, testDeps(dev))

	require.NoError(t, o.Update(250*time.Millisecond))
	require.NoError(t, o.Update(250*time.Millisecond))
	require.NoError(t, o.Update(250*time.Millisecond))
	assert.Len(t, dev.VertexBuffers(), 1)

	require.NoError(t, o.Update(400*time.Millisecond))
	assert.Len(t, dev.VertexBuffers(), 2, "a new frame moves the hinge")
	assert.True(t, dev.VertexBuffers()[0].Disposed)
}

func TestStaticActionSettles(t *testing.T) {
	dev := gputest.New()
	o := loaded(t, testDeps(dev))
	o.PlayAction(1)

	for i := 0; i < 5; i++ {
		require.NoError(t, o.Update(time.Duration(i)*time.Second))
	}
	assert.Len(t, dev.VertexBuffers(), 1)
}

func TestOffscreenObjectFreezes(t *testing.T) {
	dev := gputest.New()
	o := loaded(t, testDeps(dev))

	require.NoError(t, o.Update(100*time.Millisecond))
	require.True(t, o.Visible())
	before := snapshot(o)

	o.SetPosition(mathutil.Vec3{0, -8000, 0})
	require.NoError(t, o.Update(400*time.Millisecond))
	assert.False(t, o.Visible())
	assert.Equal(t, before, snapshot(o))

	require.NoError(t, o.Update(700*time.Millisecond))
	assert.Equal(t, before, snapshot(o))
	assert.Len(t, dev.VertexBuffers(), 1)

	require.NoError(t, o.Draw())
	assert.Empty(t, dev.Draws())

	o.SetPosition(mathutil.Vec3{})
	require.NoError(t, o.Update(700*time.Millisecond))
	assert.True(t, o.Visible())
	assert.NotEqual(t, before, snapshot(o), "animation resumes at the current time")
}

func TestPoseSettersMoveBounds(t *testing.T) {
	o := loaded(t, testDeps(gputest.New()))
	r := o.Bounds().Radius

	o.SetPosition(mathutil.Vec3{100, 200, 0})
	o.SetScale(2)
	b := o.Bounds()
	assert.InDelta(t, 2*r, b.Radius, 1e-4)
	assert.InDelta(t, 100, b.Center[0], 1e-3)
	assert.InDelta(t, 200, b.Center[1], 1e-3)
	assert.Equal(t, mathutil.WorldMatrix(mathutil.Vec3{100, 200, 0}, mathutil.Vec3{}, 2), o.WorldMatrix())
}

func TestPoseChangeRebuildsBuffers(t *testing.T) {
	dev := gputest.New()
	o := loaded(t, testDeps(dev))
	o.PlayAction(1)
	require.NoError(t, o.Update(0))

	o.SetAngle(mathutil.Vec3{0, 0, 0.5})
	require.NoError(t, o.Update(0))
	assert.Len(t, dev.VertexBuffers(), 2)
}

func TestDisabledLightIsDimmed(t *testing.T) {
	dev := gputest.New()
	o := loaded(t, testDeps(dev))
	o.LightEnabled = false
	require.NoError(t, o.Update(0))

	want := skeleton.LightColor(mathutil.Vec3{0.35, 0.35, 0.35})
	assert.Equal(t, want, dev.VertexBuffers()[0].Verts[0].Color)
}

func TestActionIndexIsClamped(t *testing.T) {
	o := loaded(t, testDeps(gputest.New()))
	o.PlayAction(1)
	o.PlayAction(9)
	assert.Equal(t, 1, o.PriorAction())

	require.NoError(t, o.Update(time.Second))
	assert.Equal(t, 0, o.CurrentAction())
	assert.Equal(t, 1, o.PriorAction())
}

func TestAllocationFailurePropagates(t *testing.T) {
	dev := &gputest.Device{Budget: 1}
	o := loaded(t, testDeps(dev))

	err := o.Update(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, gpu.ErrOutOfMemory)
	require.NoError(t, o.Draw())
	assert.Empty(t, dev.Draws())
}

func TestDisposeReleasesBuffers(t *testing.T) {
	dev := gputest.New()
	o := loaded(t, testDeps(dev))
	require.NoError(t, o.Update(0))
	require.Equal(t, 2, dev.Live())

	o.Dispose()
	assert.Equal(t, 0, dev.Live())
	assert.False(t, o.Ready())
	require.NoError(t, o.Draw())
	require.NoError(t, o.Update(time.Second))
}

type gatedSource struct {
	release chan struct{}
	model   *bmd.Model
	err     error
	paths   []string
}

func (s *gatedSource) Prepare(ctx context.Context, path string) (*bmd.Model, error) {
	s.paths = append(s.paths, path)
	<-s.release
	return s.model, s.err
}

func TestLoadAsync(t *testing.T) {
	dev := gputest.New()
	src := &gatedSource{release: make(chan struct{}), model: doorModel()}
	o := NewObject(testDeps(dev))

	f := o.LoadAsync(context.Background(), src, "Object1/SteelDoor01.bmd")
	require.NoError(t, o.Update(0))
	assert.True(t, o.Loading())
	assert.False(t, o.Ready())
	require.NoError(t, o.Draw())

	close(src.release)
	<-f.Done()
	require.NoError(t, o.Update(0))
	assert.False(t, o.Loading())
	assert.True(t, o.Ready())
	assert.True(t, o.Visible())
	assert.Len(t, dev.VertexBuffers(), 1)
	assert.Equal(t, []string{"Object1/SteelDoor01.bmd"}, src.paths)
}

func TestLoadAsyncFailureIsInert(t *testing.T) {
	src := &gatedSource{release: make(chan struct{}), err: errors.New("no such file")}
	close(src.release)
	o := NewObject(testDeps(gputest.New()))

	<-o.LoadAsync(context.Background(), src, "Object1/Missing.bmd").Done()
	require.NoError(t, o.Update(0))
	assert.False(t, o.Loading())
	assert.False(t, o.Ready())
}

func TestAwait(t *testing.T) {
	src := &gatedSource{release: make(chan struct{}), model: doorModel()}
	o := NewObject(testDeps(gputest.New()))
	require.NoError(t, o.Await(context.Background()))

	o.LoadAsync(context.Background(), src, "Object1/SteelDoor01.bmd")
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, o.Await(ctx), context.DeadlineExceeded)
	assert.True(t, o.Loading())

	close(src.release)
	require.NoError(t, o.Await(context.Background()))
	assert.True(t, o.Ready())

	failing := &gatedSource{release: make(chan struct{}), err: errors.New("no such file")}
	close(failing.release)
	o = NewObject(testDeps(gputest.New()))
	o.LoadAsync(context.Background(), failing, "Object1/Missing.bmd")
	assert.ErrorContains(t, o.Await(context.Background()), "no such file")
	assert.False(t, o.Ready())
}

func TestDegenerateScaleHidesObjectWithoutCamera(t *testing.T) {
	deps := testDeps(gputest.New())
	deps.Camera = nil
	o := loaded(t, deps)

	require.NoError(t, o.Update(0))
	require.True(t, o.Visible())

	o.SetScale(0)
	require.NoError(t, o.Update(0))
	assert.False(t, o.Visible())
	require.NoError(t, o.Draw())
}

type blockingSource struct {
	canceled chan string
}

func (s *blockingSource) Prepare(ctx context.Context, path string) (*bmd.Model, error) {
	<-ctx.Done()
	s.canceled <- path
	return nil, ctx.Err()
}

func TestSecondLoadAsyncCancelsFirst(t *testing.T) {
	first := &blockingSource{canceled: make(chan string, 1)}
	second := &gatedSource{release: make(chan struct{}), model: doorModel()}
	close(second.release)
	o := NewObject(testDeps(gputest.New()))

	stale := o.LoadAsync(context.Background(), first, "Object1/Old.bmd")
	o.LoadAsync(context.Background(), second, "Object1/SteelDoor01.bmd")

	select {
	case path := <-first.canceled:
		assert.Equal(t, "Object1/Old.bmd", path)
	case <-time.After(5 * time.Second):
		t.Fatal("first load was not canceled")
	}
	_, err := stale.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, o.Await(context.Background()))
	assert.True(t, o.Ready())
}
