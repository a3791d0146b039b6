package skeleton

import (
	"math"
	"time"
)

// DefaultAnimationSpeed is the keyframe rate, in keys per second, that the
// client plays every action at.
const DefaultAnimationSpeed = 3

// Frame is a fractional position within an action.
type Frame struct {
	Current float32
	Prior   float32 // one key behind Current, never negative
}

// Clock derives action frames from elapsed simulation time.
type Clock struct {
	Speed float64 // keys per second; zero means DefaultAnimationSpeed
}

// Frame returns the looping frame for an action with keys keyframes at the
// given elapsed time. ok is false when the action has no keys, in which case
// nothing should be evaluated.
func (c Clock) Frame(elapsed time.Duration, keys int) (f Frame, ok bool) {
	if keys <= 0 {
		return Frame{}, false
	}
	speed := c.Speed
	if speed == 0 {
		speed = DefaultAnimationSpeed
	}

	// Reduce in float64 so long sessions keep sub-frame precision.
	cur := math.Mod(elapsed.Seconds()*speed, float64(keys))
	if cur < 0 {
		cur += float64(keys)
	}
	f.Current = float32(cur)
	if f.Current >= float32(keys) {
		f.Current = 0
	}
	f.Prior = max(0, f.Current-1)
	return f, true
}
