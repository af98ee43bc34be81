package gatelib

import "fmt"

// Progress is one published progress observation for a run.
type Progress struct {
	Timer     float64         `json:"timer"`
	Readiness float64         `json:"readiness"`
	Combined  float64         `json:"combined"`
	State     RunState        `json:"-"`
	StateName string          `json:"state"`
	TimedOut  bool            `json:"timed_out,omitempty"`
	Counters  CounterSnapshot `json:"counters"`
}

// Percent formats the combined value for display, e.g. "62.5%".
func (p Progress) Percent() string {
	return fmt.Sprintf("%.1f%%", p.Combined*100)
}
