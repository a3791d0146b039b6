package skeleton

import (
	"time"

	"mu-client/internal/bmd"
	"mu-client/internal/mathutil"
)

// Pose selects the two keyframes a bone evaluation blends between.
type Pose struct {
	PriorAction   int
	CurrentAction int
	PriorFrame    int
	CurrentFrame  int
	T             float32 // blend factor in [0, 1)
}

// Animator evaluates one object's bone world matrices. The model is shared
// and read-only; the matrices belong to the Animator alone.
type Animator struct {
	model    *bmd.Model
	matrices []mathutil.Mat4

	CurrentAction int
	PriorAction   int
	BodyHeight    float32 // added to the root's Z while a root-locked action plays
}

// NewAnimator allocates one zero matrix per bone of model.
func NewAnimator(model *bmd.Model) *Animator {
	return &Animator{
		model:    model,
		matrices: make([]mathutil.Mat4, len(model.Bones)),
	}
}

// Model returns the skeleton being animated.
func (a *Animator) Model() *bmd.Model { return a.model }

// Matrices returns the bone world matrices from the last evaluation. The
// slice is owned by the Animator and overwritten by Evaluate.
func (a *Animator) Matrices() []mathutil.Mat4 { return a.matrices }

// PlayAction switches to action, keeping the one that was playing as the
// prior action so the first frames blend out of it.
func (a *Animator) PlayAction(action int) {
	if action == a.CurrentAction {
		return
	}
	a.PriorAction = a.CurrentAction
	a.CurrentAction = action
}

// clampActions resets out-of-range action indices to 0.
func (a *Animator) clampActions() {
	n := len(a.model.Actions)
	if a.PriorAction < 0 || a.PriorAction >= n {
		a.PriorAction = 0
	}
	if a.CurrentAction < 0 || a.CurrentAction >= n {
		a.CurrentAction = 0
	}
}

// Resolve turns a fractional frame into a Pose for the animator's current
// actions, clamping every index into range. ok is false when the model has
// no actions.
func (a *Animator) Resolve(f Frame) (p Pose, ok bool) {
	actions := a.model.Actions
	if len(actions) == 0 {
		return Pose{}, false
	}
	a.clampActions()

	p.PriorAction = a.PriorAction
	p.CurrentAction = a.CurrentAction
	p.CurrentFrame = int(f.Current)
	p.T = f.Current - float32(p.CurrentFrame)
	p.PriorFrame = int(f.Prior)

	if p.PriorFrame < 0 || p.PriorFrame >= actions[p.PriorAction].NumAnimationKeys {
		p.PriorFrame = 0
	}
	if p.CurrentFrame < 0 || p.CurrentFrame >= actions[p.CurrentAction].NumAnimationKeys {
		p.CurrentFrame = 0
	}
	return p, true
}

// Advance evaluates the skeleton at the given simulation time and reports
// whether any bone matrix changed. Actions without keys are not evaluated.
func (a *Animator) Advance(clock Clock, elapsed time.Duration, world mathutil.Mat4) bool {
	if len(a.model.Actions) == 0 {
		return false
	}
	a.clampActions()

	f, ok := clock.Frame(elapsed, a.model.Actions[a.CurrentAction].NumAnimationKeys)
	if !ok {
		return false
	}
	p, ok := a.Resolve(f)
	if !ok {
		return false
	}
	return a.Evaluate(p, world)
}

// Evaluate recomputes every bone's world matrix for p in index order, which
// puts parents before children. A bone whose parent index is out of range
// composes with world directly. Dummy bones and bones without keyframes for
// p are left untouched.
//
// Change detection is exact: a matrix that recomputes to the same bits does
// not count as changed.
func (a *Animator) Evaluate(p Pose, world mathutil.Mat4) (changed bool) {
	actions := a.model.Actions
	if p.PriorAction < 0 || p.PriorAction >= len(actions) ||
		p.CurrentAction < 0 || p.CurrentAction >= len(actions) {
		return false
	}
	locked := actions[p.PriorAction].LockPositions || actions[p.CurrentAction].LockPositions

	for i := range a.model.Bones {
		bone := &a.model.Bones[i]
		if bone.IsDummy {
			continue
		}
		bm1 := bone.Track(p.PriorAction)
		bm2 := bone.Track(p.CurrentAction)
		if !hasKey(bm1, p.PriorFrame) || !hasKey(bm2, p.CurrentFrame) {
			continue
		}

		q1 := bm1.Quaternion[p.PriorFrame]
		q2 := bm2.Quaternion[p.CurrentFrame]
		q := q1
		if q1 != q2 {
			q = mathutil.Slerp(q1, q2, p.T)
		}
		local := q.Mat4()

		p1 := bm1.Position[p.PriorFrame]
		p2 := bm2.Position[p.CurrentFrame]
		if i == 0 && locked {
			local[12] = bm2.Position[0][0]
			local[13] = bm2.Position[0][1]
			local[14] = p1[2]*(1-p.T) + p2[2]*p.T + a.BodyHeight
		} else {
			local.SetTranslation(mathutil.Lerp(p1, p2, p.T))
		}

		var m mathutil.Mat4
		if bone.Parent >= 0 && bone.Parent < len(a.matrices) {
			m = mathutil.Mat4Mul(local, a.matrices[bone.Parent])
		} else {
			m = mathutil.Mat4Mul(local, world)
		}

		if a.matrices[i] != m {
			a.matrices[i] = m
			changed = true
		}
	}
	return changed
}

func hasKey(bm *bmd.BoneMatrix, frame int) bool {
	return bm != nil && frame >= 0 &&
		frame < len(bm.Quaternion) && frame < len(bm.Position)
}
