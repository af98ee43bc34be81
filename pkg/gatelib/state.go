package gatelib

// RunState is the lifecycle phase of a gate run. Transitions are one way:
// a run that reached Complete or Canceled never re-enters an earlier state.
type RunState int32

const (
	// RunStateIdle is a constructed gate that has not started.
	RunStateIdle RunState = iota
	// RunStateRunning is a gate that is tracking readiness.
	RunStateRunning
	// RunStateFinalizing is a gate whose reveal trigger has fired and which
	// is tearing down its collaborators.
	RunStateFinalizing
	// RunStateComplete is a gate that has revealed.
	RunStateComplete
	// RunStateCanceled is a gate that was stopped before revealing.
	RunStateCanceled
)

var runStateNames = map[RunState]string{
	RunStateIdle:       "idle",
	RunStateRunning:    "running",
	RunStateFinalizing: "finalizing",
	RunStateComplete:   "complete",
	RunStateCanceled:   "canceled",
}

func (s RunState) String() string {
	if n, ok := runStateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Terminal reports whether the state is an end state.
func (s RunState) Terminal() bool {
	return s == RunStateComplete || s == RunStateCanceled
}
