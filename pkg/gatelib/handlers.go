package gatelib

import "log"

type (
	ProgressHandlerFunc func(runID string, p Progress)
	AssetHandlerFunc    func(runID string, kind AssetKind, url string, ok bool)
	SettleHandlerFunc   func(runID string)
	StateHandlerFunc    func(runID string, state RunState)
	RevealHandlerFunc   func(runID string, ev *RevealEvent)
	CancelHandlerFunc   func(runID string)
	ErrorHandlerFunc    func(runID string, err error)
)

// Handlers carries the callbacks a gate invokes over its lifetime. Any nil
// field is replaced with a default at start, so callers only set what they
// care about.
type Handlers struct {
	// ProgressHandler receives every published progress observation.
	ProgressHandler ProgressHandlerFunc
	// AssetHandler is called once per tracked asset when it resolves;
	// ok is false when the asset failed (which still counts done).
	AssetHandler AssetHandlerFunc
	// SettleHandler fires when readiness (tracker and watcher) has settled.
	SettleHandler SettleHandlerFunc
	// StateHandler observes run state transitions.
	StateHandler StateHandlerFunc
	// RevealHandler is the exactly-once reveal callback.
	RevealHandler RevealHandlerFunc
	// CancelHandler fires when a run is stopped before revealing.
	CancelHandler CancelHandlerFunc
	// ErrorHandler receives swallowed asset errors and recovered panics.
	ErrorHandler ErrorHandlerFunc
}

func (h *Handlers) setDefault(l *log.Logger) {
	if h.ProgressHandler == nil {
		h.ProgressHandler = func(string, Progress) {}
	}
	if h.AssetHandler == nil {
		h.AssetHandler = func(string, AssetKind, string, bool) {}
	}
	if h.SettleHandler == nil {
		h.SettleHandler = func(string) {}
	}
	if h.StateHandler == nil {
		h.StateHandler = func(string, RunState) {}
	}
	if h.RevealHandler == nil {
		h.RevealHandler = func(runID string, ev *RevealEvent) {
			l.Printf("run %s: revealed (timed_out=%v)", runID, ev.TimedOut)
		}
	}
	if h.CancelHandler == nil {
		h.CancelHandler = func(string) {}
	}
	if h.ErrorHandler == nil {
		h.ErrorHandler = func(runID string, err error) {
			l.Printf("run %s: %s", runID, err.Error())
		}
	}
}
