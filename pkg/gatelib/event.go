package gatelib

import (
	"sync/atomic"
	"time"
)

// RevealEvent is the synthetic event a gate emits exactly once when it
// finalizes. Consumers may veto the default reveal action or stop further
// listeners from seeing the event.
type RevealEvent struct {
	RunID string `json:"run_id"`
	URL   string `json:"url"`
	// TimedOut is set when the ceiling, not readiness, finalized the run.
	TimedOut bool `json:"timed_out"`
	// Memoized is set when a session flag skipped readiness tracking.
	Memoized bool          `json:"memoized"`
	Elapsed  time.Duration `json:"elapsed"`

	defaultPrevented   int32
	propagationStopped int32
}

// PreventDefault vetoes the automatic reveal action; the run still counts
// as finalized.
func (e *RevealEvent) PreventDefault() {
	atomic.StoreInt32(&e.defaultPrevented, 1)
}

func (e *RevealEvent) DefaultPrevented() bool {
	return atomic.LoadInt32(&e.defaultPrevented) == 1
}

// StopPropagation keeps the event from reaching listeners registered after
// the current one.
func (e *RevealEvent) StopPropagation() {
	atomic.StoreInt32(&e.propagationStopped, 1)
}

func (e *RevealEvent) PropagationStopped() bool {
	return atomic.LoadInt32(&e.propagationStopped) == 1
}
