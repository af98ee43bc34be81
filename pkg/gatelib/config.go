package gatelib

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// UnmatchedPolicy decides what the custom signal watcher does when its
// selector never matches anything.
type UnmatchedPolicy string

const (
	// UnmatchedWait keeps the watcher pending forever; the timeout ceiling
	// is the escape. This is the default.
	UnmatchedWait UnmatchedPolicy = "wait"
	// UnmatchedResolve settles the watcher immediately when the selector
	// matches nothing at seed time.
	UnmatchedResolve UnmatchedPolicy = "resolve"
)

func (p UnmatchedPolicy) valid() bool {
	return p == UnmatchedWait || p == UnmatchedResolve
}

// GateConfig describes one gate run. A gate copies its config at start, so
// later mutation by the caller cannot affect a running gate.
type GateConfig struct {
	// MinSeconds is the minimum display floor. Zero means no floor.
	MinSeconds float64 `json:"min_seconds"`
	// TimeoutSeconds is the ceiling after which the gate reveals regardless
	// of readiness. Zero means no ceiling.
	TimeoutSeconds float64 `json:"timeout_seconds"`
	// QuietMs is how long pending==0 must hold before the tracker settles.
	QuietMs int `json:"quiet_ms"`

	// OncePerSession records a session flag on successful finalization and
	// skips readiness tracking while the flag is in effect.
	OncePerSession bool   `json:"once_per_session,omitempty"`
	SessionID      string `json:"session_id,omitempty"`

	// ScopeSelector restricts asset discovery to matching subtrees.
	// Empty means the whole document.
	ScopeSelector string `json:"scope_selector,omitempty"`
	// IncludeBackgrounds also tracks CSS background images.
	IncludeBackgrounds bool `json:"include_backgrounds,omitempty"`

	// CustomSelector enables the custom signal watcher.
	CustomSelector string `json:"custom_selector,omitempty"`
	// CustomEventName is the element event awaited on matches; "load" when
	// empty.
	CustomEventName string          `json:"custom_event_name,omitempty"`
	UnmatchedPolicy UnmatchedPolicy `json:"unmatched_policy,omitempty"`

	// Heuristic optionally names a loaded readiness predicate script used
	// by the host to decide already-loaded state for watched elements.
	Heuristic string `json:"heuristic,omitempty"`

	BlendStrategy BlendStrategy `json:"blend_strategy,omitempty"`
	// TimerWeight is the timer share of combined progress, in [0,1).
	// Forced to zero when MinSeconds is zero: with no floor the timer
	// contributes nothing and combined equals readiness.
	TimerWeight float64 `json:"timer_weight,omitempty"`
}

// Validate reports the first invalid field.
func (c *GateConfig) Validate() error {
	if bad(c.MinSeconds) || c.MinSeconds < 0 {
		return fmt.Errorf("%w: min_seconds must be >= 0", ErrInvalidConfig)
	}
	if bad(c.TimeoutSeconds) || c.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: timeout_seconds must be >= 0", ErrInvalidConfig)
	}
	if c.QuietMs < 0 {
		return fmt.Errorf("%w: quiet_ms must be >= 0", ErrInvalidConfig)
	}
	if bad(c.TimerWeight) || c.TimerWeight < 0 || c.TimerWeight >= 1 {
		return fmt.Errorf("%w: timer_weight must be in [0,1)", ErrInvalidConfig)
	}
	if c.CustomEventName != "" && strings.TrimSpace(c.CustomEventName) == "" {
		return fmt.Errorf("%w: custom_event_name is blank", ErrInvalidConfig)
	}
	if c.UnmatchedPolicy != "" && !c.UnmatchedPolicy.valid() {
		return fmt.Errorf("%w: unknown unmatched_policy %q", ErrInvalidConfig, c.UnmatchedPolicy)
	}
	if c.BlendStrategy != "" && !c.BlendStrategy.valid() {
		return fmt.Errorf("%w: unknown blend_strategy %q", ErrInvalidConfig, c.BlendStrategy)
	}
	return nil
}

// bad reports NaN or infinite floats.
func bad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// withDefaults returns a defaulted copy; the original stays untouched.
func (c GateConfig) withDefaults() GateConfig {
	if c.CustomEventName == "" {
		c.CustomEventName = DEF_CUSTOM_EVENT
	}
	if c.UnmatchedPolicy == "" {
		c.UnmatchedPolicy = UnmatchedWait
	}
	if c.BlendStrategy == "" {
		c.BlendStrategy = BlendSequential
	}
	// Without a display floor there is no timer phase to weight: combined
	// tracks readiness alone.
	if c.MinSeconds == 0 {
		c.TimerWeight = 0
	} else if c.TimerWeight == 0 {
		c.TimerWeight = DEF_TIMER_WEIGHT
	}
	return c
}

// Floor is the minimum display floor as a duration.
func (c *GateConfig) Floor() time.Duration {
	return secondsToDuration(c.MinSeconds)
}

// Ceiling is the timeout ceiling as a duration, zero when disabled.
func (c *GateConfig) Ceiling() time.Duration {
	return secondsToDuration(c.TimeoutSeconds)
}

// QuietWindow is the settle debounce as a duration.
func (c *GateConfig) QuietWindow() time.Duration {
	return time.Duration(c.QuietMs) * time.Millisecond
}

// Identity derives the session flag key for this config against a page URL.
func (c *GateConfig) Identity(pageURL string) string {
	return GateIdentity(pageURL, c.ScopeSelector, c.CustomSelector, c.SessionID)
}
