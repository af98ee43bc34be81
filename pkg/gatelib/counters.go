package gatelib

import "sync"

// AssetKind names a class of tracked readiness work.
type AssetKind string

const (
	AssetImage      AssetKind = "image"
	AssetFontSet    AssetKind = "font-set"
	AssetBackground AssetKind = "background"
	AssetCustom     AssetKind = "custom-element"
)

// Tally holds the per-kind readiness counts. Done+Pending never exceeds
// Total, Total never shrinks and Done never decreases.
type Tally struct {
	Total   int64 `json:"total"`
	Done    int64 `json:"done"`
	Pending int64 `json:"pending"`
}

// Counters aggregates readiness tallies for one gate run. Writers are the
// tracker and the watcher; everyone else reads snapshots.
type Counters struct {
	mu    sync.RWMutex
	kinds map[AssetKind]*Tally
}

func NewCounters() *Counters {
	return &Counters{kinds: make(map[AssetKind]*Tally)}
}

func (c *Counters) tally(kind AssetKind) *Tally {
	t, ok := c.kinds[kind]
	if !ok {
		t = &Tally{}
		c.kinds[kind] = t
	}
	return t
}

// Add registers n newly discovered assets of the given kind as pending.
func (c *Counters) Add(kind AssetKind, n int64) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	t := c.tally(kind)
	t.Total += n
	t.Pending += n
	c.mu.Unlock()
}

// Complete moves n assets of the given kind from pending to done.
func (c *Counters) Complete(kind AssetKind, n int64) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	t := c.tally(kind)
	if n > t.Pending {
		n = t.Pending
	}
	t.Pending -= n
	t.Done += n
	c.mu.Unlock()
}

// Pending returns the number of assets still awaited across all kinds.
func (c *Counters) Pending() (pending int64) {
	c.mu.RLock()
	for _, t := range c.kinds {
		pending += t.Pending
	}
	c.mu.RUnlock()
	return
}

// CounterSnapshot is a point-in-time copy of all tallies.
type CounterSnapshot struct {
	Kinds   map[AssetKind]Tally `json:"kinds"`
	Total   int64               `json:"total"`
	Done    int64               `json:"done"`
	Pending int64               `json:"pending"`
}

// Snapshot copies the current tallies.
func (c *Counters) Snapshot() CounterSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := CounterSnapshot{Kinds: make(map[AssetKind]Tally, len(c.kinds))}
	for kind, t := range c.kinds {
		s.Kinds[kind] = *t
		s.Total += t.Total
		s.Done += t.Done
		s.Pending += t.Pending
	}
	return s
}

// Progress is the readiness fraction: done over total, 1 when nothing was
// ever tracked.
func (s CounterSnapshot) Progress() float64 {
	if s.Total == 0 {
		return 1
	}
	return clamp01(float64(s.Done) / float64(s.Total))
}
