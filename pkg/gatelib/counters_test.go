package gatelib

import (
	"sync"
	"testing"
)

func TestCountersAddComplete(t *testing.T) {
	c := NewCounters()
	c.Add(AssetImage, 3)
	c.Add(AssetFontSet, 1)
	c.Complete(AssetImage, 2)

	s := c.Snapshot()
	img := s.Kinds[AssetImage]
	if img.Total != 3 || img.Done != 2 || img.Pending != 1 {
		t.Fatalf("image tally = %+v", img)
	}
	if s.Total != 4 || s.Done != 2 || s.Pending != 2 {
		t.Fatalf("rollup = %+v", s)
	}
	if c.Pending() != 2 {
		t.Fatalf("Pending = %d", c.Pending())
	}
}

func TestCountersCompleteClamps(t *testing.T) {
	c := NewCounters()
	c.Add(AssetImage, 1)
	c.Complete(AssetImage, 5)
	tally := c.Snapshot().Kinds[AssetImage]
	if tally.Done != 1 || tally.Pending != 0 {
		t.Fatalf("overcomplete was not clamped: %+v", tally)
	}
	// Done+Pending never exceeds Total.
	if tally.Done+tally.Pending > tally.Total {
		t.Fatalf("tally invariant broken: %+v", tally)
	}
}

func TestCountersIgnoreNonPositive(t *testing.T) {
	c := NewCounters()
	c.Add(AssetImage, 0)
	c.Add(AssetImage, -2)
	c.Complete(AssetImage, -1)
	if s := c.Snapshot(); s.Total != 0 {
		t.Fatalf("non-positive deltas moved the tally: %+v", s)
	}
}

func TestCountersProgress(t *testing.T) {
	c := NewCounters()
	if got := c.Snapshot().Progress(); got != 1 {
		t.Fatalf("empty progress = %v, want 1", got)
	}
	c.Add(AssetImage, 4)
	c.Complete(AssetImage, 1)
	if got := c.Snapshot().Progress(); got != 0.25 {
		t.Fatalf("progress = %v, want 0.25", got)
	}
}

func TestCountersSnapshotIsolated(t *testing.T) {
	c := NewCounters()
	c.Add(AssetImage, 1)
	s := c.Snapshot()
	c.Complete(AssetImage, 1)
	if s.Kinds[AssetImage].Done != 0 {
		t.Fatal("snapshot shares storage with live counters")
	}
}

func TestCountersConcurrent(t *testing.T) {
	c := NewCounters()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Add(AssetImage, 1)
				c.Complete(AssetImage, 1)
				_ = c.Snapshot()
			}
		}()
	}
	wg.Wait()
	s := c.Snapshot()
	if s.Total != 800 || s.Done != 800 || s.Pending != 0 {
		t.Fatalf("concurrent tally = %+v, want 800/800/0", s)
	}
}
