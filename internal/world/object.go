// Package world holds placed, animated model instances and the registry that
// creates them by model type.
package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"mu-client/internal/bmd"
	"mu-client/internal/camera"
	"mu-client/internal/culling"
	"mu-client/internal/gpu"
	"mu-client/internal/logging"
	"mu-client/internal/mathutil"
	"mu-client/internal/meshcache"
	"mu-client/internal/skeleton"
)

// ErrNoModel is reported when an object is loaded without a model.
var ErrNoModel = errors.New("world: model is not assigned")

// DefaultLight is the light every object adds on top of the terrain light.
var DefaultLight = mathutil.Vec3{0.3, 0.3, 0.3}

// Camera supplies the matrices objects are culled and drawn with.
type Camera interface {
	View() mathutil.Mat4
	Projection() mathutil.Mat4
	Frustum() camera.Frustum
}

// ModelSource prepares models by data-relative path. *bmd.Loader is one.
type ModelSource interface {
	Prepare(ctx context.Context, path string) (*bmd.Model, error)
}

// Deps are the collaborators an object renders through. Textures, Terrain
// and Logger may be nil; a nil Camera disables culling.
type Deps struct {
	Device   gpu.Device
	Textures meshcache.TextureResolver
	Terrain  meshcache.LightSampler
	Camera   Camera
	Logger   *log.Logger
	Clock    skeleton.Clock
}

// Object is one placed model instance. It is driven from a single goroutine:
// Update then Draw, once per frame.
type Object struct {
	ID   uuid.UUID
	Type uint16
	Name string

	Alpha        float32
	Light        mathutil.Vec3
	LightEnabled bool
	BodyHeight   float32

	deps   Deps
	logger *log.Logger

	model    *bmd.Model
	position mathutil.Vec3
	angle    mathutil.Vec3
	scale    float32
	world    mathutil.Mat4

	currentAction int
	priorAction   int

	pending *Future[*bmd.Model]
	cancel  context.CancelFunc

	loaded    bool
	outOfView bool
	animator  *skeleton.Animator
	cache     *meshcache.Cache
	gate      *culling.Gate
	technique gpu.Technique
}

// NewObject returns an unloaded object at the origin.
func NewObject(deps Deps) *Object {
	o := &Object{
		ID:           uuid.New(),
		Alpha:        1,
		Light:        DefaultLight,
		LightEnabled: true,
		deps:         deps,
		scale:        1,
		outOfView:    true,
	}
	o.logger = logging.OrDiscard(deps.Logger).With("object", o.ID.String())
	o.world = mathutil.WorldMatrix(o.position, o.angle, o.scale)
	return o
}

func (o *Object) Model() *bmd.Model { return o.model }

// SetModel binds the skeleton model. It takes effect at the next Load.
func (o *Object) SetModel(m *bmd.Model) { o.model = m }

func (o *Object) Position() mathutil.Vec3 { return o.position }
func (o *Object) Angle() mathutil.Vec3    { return o.angle }
func (o *Object) Scale() float32          { return o.scale }

// WorldMatrix returns scale, then rotation, then translation.
func (o *Object) WorldMatrix() mathutil.Mat4 { return o.world }

func (o *Object) SetPosition(p mathutil.Vec3) {
	o.position = p
	o.updateWorldPosition()
}

// SetAngle sets the Euler rotation in radians.
func (o *Object) SetAngle(a mathutil.Vec3) {
	o.angle = a
	o.updateWorldPosition()
}

func (o *Object) SetScale(s float32) {
	o.scale = s
	o.updateWorldPosition()
}

func (o *Object) updateWorldPosition() {
	o.world = mathutil.WorldMatrix(o.position, o.angle, o.scale)
	if !o.loaded {
		return
	}
	o.cache.Invalidate()
	o.gate.Retransform(o.world)
}

// CurrentAction returns the action being played.
func (o *Object) CurrentAction() int { return o.currentAction }

// PriorAction returns the action blended out of.
func (o *Object) PriorAction() int { return o.priorAction }

// PlayAction switches to action. The previous action becomes the prior one.
// Out-of-range actions fall back to 0 on the next Update.
func (o *Object) PlayAction(action int) {
	if action == o.currentAction {
		return
	}
	o.priorAction = o.currentAction
	o.currentAction = action
}

// Ready reports whether the object has loaded its model.
func (o *Object) Ready() bool { return o.loaded }

// Visible reports whether the object passed the last culling test.
func (o *Object) Visible() bool { return o.loaded && !o.outOfView }

// Loading reports whether an asynchronous load is in flight.
func (o *Object) Loading() bool { return o.pending != nil }

// BoneMatrices returns the bone world matrices of the last evaluation, or nil
// before Load.
func (o *Object) BoneMatrices() []mathutil.Mat4 {
	if o.animator == nil {
		return nil
	}
	return o.animator.Matrices()
}

// Bounds returns the world-space bounding sphere.
func (o *Object) Bounds() mathutil.Sphere {
	if o.gate == nil {
		return mathutil.Sphere{}
	}
	return o.gate.World()
}

// Load prepares the bound model for rendering. Without a model it logs and
// leaves the object inert, returning false.
func (o *Object) Load() bool {
	if o.loaded {
		return true
	}
	if o.model == nil {
		o.logger.Error(ErrNoModel.Error(), "name", o.Name, "type", o.Type)
		return false
	}

	o.technique = gpu.Technique{
		View:       mathutil.Mat4Identity(),
		Projection: mathutil.Mat4Identity(),
		Blend:      gpu.AlphaBlend,
	}
	o.animator = skeleton.NewAnimator(o.model)
	o.cache = meshcache.New(o.deps.Device, o.deps.Textures, o.model, o.logger)
	o.gate = culling.NewGate(skeleton.BoundingSphere(o.model))
	o.loaded = true
	o.updateWorldPosition()

	o.logger.Debug("loaded", "name", o.Name, "model", o.model.Name,
		"bones", len(o.model.Bones), "meshes", len(o.model.Meshes))
	return true
}

// LoadAsync prepares the model at path in the background and loads the
// object on the first Update after it arrives. A failed prepare leaves the
// object inert.
// A second call abandons the first.
func (o *Object) LoadAsync(ctx context.Context, src ModelSource, path string) *Future[*bmd.Model] {
	if o.cancel != nil {
		o.cancel()
	}
	ctx, o.cancel = context.WithCancel(ctx)
	o.pending = Go(ctx, func(ctx context.Context) (*bmd.Model, error) {
		return src.Prepare(ctx, path)
	})
	return o.pending
}

// Await blocks until a pending load finishes and applies it. It returns the
// load error, or ctx's error if ctx is done first.
func (o *Object) Await(ctx context.Context) error {
	if o.pending == nil {
		return nil
	}
	if _, err := o.pending.Wait(ctx); err != nil && ctx.Err() != nil {
		return err
	}
	return o.pollLoad()
}

func (o *Object) pollLoad() error {
	if o.pending == nil {
		return nil
	}
	done, model, err := o.pending.Poll()
	if !done {
		return nil
	}
	o.pending = nil
	o.cancel()
	if err != nil {
		o.logger.Error("load failed", "name", o.Name, "type", o.Type, "err", err)
		return fmt.Errorf("world: load %s: %w", o.Name, err)
	}
	o.SetModel(model)
	if !o.Load() {
		return ErrNoModel
	}
	return nil
}

// Update culls the object and, when it is in view, advances its animation
// to elapsed and rebuilds stale buffers. Off-screen objects do not advance.
// The only error is a failed buffer allocation.
func (o *Object) Update(elapsed time.Duration) error {
	if err := o.pollLoad(); err != nil {
		// Load errors reach callers through Await; Update keeps the object inert.
		o.logger.Debug("update skipped", "err", err)
	}
	if !o.loaded {
		return nil
	}

	cam := o.deps.Camera
	if cam != nil {
		o.outOfView = !o.gate.Visible(cam.Frustum())
	} else {
		o.outOfView = !o.gate.Local().Valid() || !o.gate.World().Valid()
	}
	if o.outOfView {
		return nil
	}
	if cam != nil {
		o.technique.View = cam.View()
		o.technique.Projection = cam.Projection()
	}

	a := o.animator
	a.CurrentAction, a.PriorAction = o.currentAction, o.priorAction
	a.BodyHeight = o.BodyHeight
	if a.Advance(o.deps.Clock, elapsed, o.world) {
		o.cache.Invalidate()
	}
	o.currentAction, o.priorAction = a.CurrentAction, a.PriorAction

	_, err := o.cache.RebuildIfNeeded(a.Matrices(), meshcache.Lighting{
		Sampler:  o.deps.Terrain,
		Position: o.position,
		Enabled:  o.LightEnabled,
		Bias:     o.Light,
	})
	if err != nil {
		return fmt.Errorf("world: update %s: %w", o.Name, err)
	}
	return nil
}

// Draw submits one draw call per mesh with buffers. It does nothing unless
// the object is loaded and in view.
func (o *Object) Draw() error {
	if !o.Visible() {
		return nil
	}
	tech := o.technique
	tech.Alpha = o.Alpha
	for i, e := range o.cache.Entries() {
		if !e.Drawable() {
			continue
		}
		if err := o.deps.Device.DrawIndexed(tech, e.Vertices, e.Indices, e.Texture); err != nil {
			return fmt.Errorf("world: draw mesh %d of %s: %w", i, o.Name, err)
		}
	}
	return nil
}

// Dispose releases the object's buffers and abandons a pending load. The
// object is inert afterwards.
func (o *Object) Dispose() {
	if o.cancel != nil {
		o.cancel()
	}
	o.pending = nil
	if o.cache != nil {
		o.cache.Dispose()
	}
	o.loaded = false
	o.outOfView = true
}
