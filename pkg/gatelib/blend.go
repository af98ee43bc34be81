package gatelib

import "sync"

// BlendStrategy selects how timer and readiness progress fold into the one
// combined value a run publishes.
type BlendStrategy string

const (
	// BlendSequential reserves the timer weight for the floor phase: before
	// the floor elapses combined is timer*weight, afterwards it is
	// weight + readiness*(1-weight).
	BlendSequential BlendStrategy = "sequential"
	// BlendWeighted mixes both inputs for the whole run:
	// timer*weight + readiness*(1-weight).
	BlendWeighted BlendStrategy = "weighted"
)

func (b BlendStrategy) valid() bool {
	return b == BlendSequential || b == BlendWeighted
}

// Blender folds the two progress inputs into the combined value. It owns the
// monotonic latch: a published value is never lower than any previously
// published one, no matter how the inputs move. Values stay capped below 1
// until Final is called.
type Blender struct {
	strategy BlendStrategy
	weight   float64
	cap      float64

	mu   sync.Mutex
	last float64
}

func NewBlender(strategy BlendStrategy, timerWeight float64) *Blender {
	if !strategy.valid() {
		strategy = BlendSequential
	}
	// Weight 0 is meaningful: a floorless run blends to readiness alone.
	if timerWeight < 0 || timerWeight >= 1 {
		timerWeight = DEF_TIMER_WEIGHT
	}
	return &Blender{
		strategy: strategy,
		weight:   timerWeight,
		cap:      DEF_PREFINAL_CAP,
	}
}

// combine computes the raw blend without latch or cap.
func (b *Blender) combine(timer, readiness float64, floorElapsed bool) float64 {
	timer, readiness = clamp01(timer), clamp01(readiness)
	switch b.strategy {
	case BlendWeighted:
		return timer*b.weight + readiness*(1-b.weight)
	default:
		if !floorElapsed {
			return timer * b.weight
		}
		return b.weight + readiness*(1-b.weight)
	}
}

// Combine folds the inputs, applies the pre-final cap and latches the result
// so combined progress never decreases within a run.
func (b *Blender) Combine(timer, readiness float64, floorElapsed bool) float64 {
	v := b.combine(timer, readiness, floorElapsed)
	if v > b.cap {
		v = b.cap
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if v < b.last {
		return b.last
	}
	b.last = v
	return v
}

// Final releases the cap and latches the terminal 1.0. Only the finalizer
// calls this.
func (b *Blender) Final() float64 {
	b.mu.Lock()
	b.last = 1
	b.mu.Unlock()
	return 1
}

// Last returns the most recently latched combined value.
func (b *Blender) Last() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
