package gatelib

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "test: ", log.Ltime)
}

func runGate(t *testing.T, doc Document, cfg *GateConfig, opts *GateOpts) (*Gate, *captureHandlers, time.Duration, error) {
	t.Helper()
	capture := &captureHandlers{}
	if opts == nil {
		opts = &GateOpts{}
	}
	opts.Handlers = capture.handlers()
	g, err := NewGate(testLogger(), doc, cfg, opts)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	start := time.Now()
	rerr := g.Run(context.Background())
	return g, capture, time.Since(start), rerr
}

// TestGateRevealsAtFloorWhenReady covers the common case: everything is
// already loaded at mount, so the reveal lands at the minimum display floor.
func TestGateRevealsAtFloorWhenReady(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/home")
	doc.images = []ImageRef{
		{ID: "i1", URL: "https://kiosk.local/a.png", Complete: true},
		{ID: "i2", URL: "https://kiosk.local/b.png", Complete: true},
	}

	g, capture, elapsed, err := runGate(t, doc, &GateConfig{
		MinSeconds:     0.3,
		TimeoutSeconds: 5,
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed < 280*time.Millisecond {
		t.Fatalf("revealed before the floor: %v", elapsed)
	}
	if elapsed > time.Second {
		t.Fatalf("reveal took too long: %v", elapsed)
	}
	if g.TimedOut() {
		t.Fatal("run should not time out")
	}
	if capture.revealCount() != 1 {
		t.Fatalf("reveal fired %d times, want exactly once", capture.revealCount())
	}
	if g.State() != RunStateComplete {
		t.Fatalf("state = %s, want %s", g.State(), RunStateComplete)
	}
	ev := capture.lastReveal()
	if ev.TimedOut || ev.Memoized {
		t.Fatalf("unexpected reveal flags: %+v", ev)
	}
	if ev.URL != "https://kiosk.local/home" {
		t.Fatalf("reveal URL = %q", ev.URL)
	}
}

// TestGateWaitsForLateAssets covers a zero floor with slow assets: the
// reveal lands when the last asset resolves plus the quiet window.
func TestGateWaitsForLateAssets(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/menu")
	doc.images = []ImageRef{{ID: "i1", URL: "https://kiosk.local/hero.jpg"}}
	doc.imageDelay["https://kiosk.local/hero.jpg"] = 250 * time.Millisecond

	g, capture, elapsed, err := runGate(t, doc, &GateConfig{
		MinSeconds:     0,
		TimeoutSeconds: 5,
		QuietMs:        150,
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed < 390*time.Millisecond {
		t.Fatalf("revealed before settle+quiet: %v", elapsed)
	}
	if elapsed > 1500*time.Millisecond {
		t.Fatalf("reveal took too long: %v", elapsed)
	}
	if g.TimedOut() {
		t.Fatal("run should not time out")
	}
	if capture.revealCount() != 1 {
		t.Fatalf("reveal fired %d times", capture.revealCount())
	}
	snap := g.Progress()
	if snap.Combined != 1 {
		t.Fatalf("final combined = %v, want 1", snap.Combined)
	}
}

// TestGateTimeoutCeiling covers assets that never resolve: the ceiling
// forces the reveal and flags the run as timed out.
func TestGateTimeoutCeiling(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/broken")
	doc.images = []ImageRef{{ID: "i1", URL: "https://kiosk.local/never.png"}}
	doc.imageDelay["https://kiosk.local/never.png"] = time.Minute

	g, capture, elapsed, err := runGate(t, doc, &GateConfig{
		MinSeconds:     0.1,
		TimeoutSeconds: 0.5,
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed < 480*time.Millisecond || elapsed > 1500*time.Millisecond {
		t.Fatalf("timeout reveal at %v, want about 500ms", elapsed)
	}
	if !g.TimedOut() {
		t.Fatal("run should be flagged timed out")
	}
	if capture.revealCount() != 1 {
		t.Fatalf("reveal fired %d times", capture.revealCount())
	}
	if !capture.lastReveal().TimedOut {
		t.Fatal("reveal event should carry the timeout flag")
	}
	// Readiness never settled, so no settle callback.
	capture.mu.Lock()
	settles := capture.settles
	capture.mu.Unlock()
	if settles != 0 {
		t.Fatalf("settle fired %d times on a timed out run", settles)
	}
}

// TestGateSessionMemoized covers the once-per-session skip: a marked
// session honors the floor but never tracks assets.
func TestGateSessionMemoized(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/home")
	doc.images = []ImageRef{{ID: "i1", URL: "https://kiosk.local/slow.png"}}
	doc.imageDelay["https://kiosk.local/slow.png"] = time.Minute

	session := NewMemSessionStore(0)
	cfg := &GateConfig{MinSeconds: 0.2, TimeoutSeconds: 5, OncePerSession: true}
	if err := session.Mark(cfg.Identity(doc.url)); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	g, capture, elapsed, err := runGate(t, doc, cfg, &GateOpts{Session: session})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed < 180*time.Millisecond || elapsed > time.Second {
		t.Fatalf("memoized reveal at %v, want about 200ms", elapsed)
	}
	if !g.Memoized() {
		t.Fatal("run should be memoized")
	}
	if !capture.lastReveal().Memoized {
		t.Fatal("reveal event should carry the memoized flag")
	}
	if got := doc.imagesCalls; got != 0 {
		t.Fatalf("memoized run discovered images %d times, want 0", got)
	}
}

// TestGateMarksSessionOnReveal verifies the flag is written at successful
// finalization, timeout finalization included, but never on cancel.
func TestGateMarksSessionOnReveal(t *testing.T) {
	t.Run("clean reveal", func(t *testing.T) {
		doc := newFakeDoc("https://kiosk.local/a")
		session := NewMemSessionStore(0)
		cfg := &GateConfig{OncePerSession: true}
		_, _, _, err := runGate(t, doc, cfg, &GateOpts{Session: session})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if !session.Seen(cfg.Identity(doc.url)) {
			t.Fatal("session flag not set after reveal")
		}
	})

	t.Run("timeout reveal", func(t *testing.T) {
		doc := newFakeDoc("https://kiosk.local/b")
		doc.images = []ImageRef{{ID: "i", URL: "u"}}
		doc.imageDelay["u"] = time.Minute
		session := NewMemSessionStore(0)
		cfg := &GateConfig{TimeoutSeconds: 0.2, OncePerSession: true}
		g, _, _, err := runGate(t, doc, cfg, &GateOpts{Session: session})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if !g.TimedOut() {
			t.Fatal("expected timeout")
		}
		if !session.Seen(cfg.Identity(doc.url)) {
			t.Fatal("timeout finalization should still mark the session")
		}
	})

	t.Run("cancel", func(t *testing.T) {
		doc := newFakeDoc("https://kiosk.local/c")
		session := NewMemSessionStore(0)
		cfg := &GateConfig{MinSeconds: 5, OncePerSession: true}
		capture := &captureHandlers{}
		g, err := NewGate(testLogger(), doc, cfg, &GateOpts{
			Handlers: capture.handlers(),
			Session:  session,
		})
		if err != nil {
			t.Fatalf("NewGate: %v", err)
		}
		go func() {
			time.Sleep(100 * time.Millisecond)
			g.Stop()
		}()
		if err := g.Run(context.Background()); !errors.Is(err, ErrGateCanceled) {
			t.Fatalf("Run = %v, want ErrGateCanceled", err)
		}
		if session.Seen(cfg.Identity(doc.url)) {
			t.Fatal("canceled run must not mark the session")
		}
	})
}

// TestGateStopSuppressesReveal verifies that no reveal callback fires after
// Stop, and the run lands in the canceled state.
func TestGateStopSuppressesReveal(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/stop")
	capture := &captureHandlers{}
	g, err := NewGate(testLogger(), doc, &GateConfig{MinSeconds: 3}, &GateOpts{
		Handlers: capture.handlers(),
	})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	go func() {
		time.Sleep(80 * time.Millisecond)
		g.Stop()
	}()
	if err := g.Run(context.Background()); !errors.Is(err, ErrGateCanceled) {
		t.Fatalf("Run = %v, want ErrGateCanceled", err)
	}
	// Give any stray finalization a moment to surface.
	time.Sleep(100 * time.Millisecond)
	if capture.revealCount() != 0 {
		t.Fatalf("reveal fired %d times after Stop", capture.revealCount())
	}
	capture.mu.Lock()
	cancels := capture.cancels
	capture.mu.Unlock()
	if cancels != 1 {
		t.Fatalf("cancel handler fired %d times, want 1", cancels)
	}
	if g.State() != RunStateCanceled {
		t.Fatalf("state = %s, want %s", g.State(), RunStateCanceled)
	}
	waitClosed(t, g.Done(), time.Second, "done channel")
}

// TestGateStopBeforeRun: a gate stopped before Run never runs at all.
func TestGateStopBeforeRun(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/early")
	capture := &captureHandlers{}
	g, err := NewGate(testLogger(), doc, &GateConfig{}, &GateOpts{Handlers: capture.handlers()})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	g.Stop()
	if err := g.Run(context.Background()); !errors.Is(err, ErrGateCanceled) {
		t.Fatalf("Run = %v, want ErrGateCanceled", err)
	}
	if capture.revealCount() != 0 {
		t.Fatal("reveal fired on a stopped gate")
	}
}

// TestGateRunTwice: gates are single shot.
func TestGateRunTwice(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/twice")
	g, _, _, err := runGate(t, doc, &GateConfig{}, nil)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := g.Run(context.Background()); !errors.Is(err, ErrGateAlreadyStarted) {
		t.Fatalf("second Run = %v, want ErrGateAlreadyStarted", err)
	}
}

// TestGateFloorOutlivesCeiling: with min > timeout the ceiling decides the
// outcome but the floor still decides the moment.
func TestGateFloorOutlivesCeiling(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/floorwins")
	doc.images = []ImageRef{{ID: "i", URL: "u"}}
	doc.imageDelay["u"] = time.Minute

	g, _, elapsed, err := runGate(t, doc, &GateConfig{
		MinSeconds:     0.4,
		TimeoutSeconds: 0.1,
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !g.TimedOut() {
		t.Fatal("run should be timed out")
	}
	if elapsed < 380*time.Millisecond {
		t.Fatalf("floor not honored on timeout path: %v", elapsed)
	}
}

// TestGateProgressMonotonic asserts the published combined series never
// decreases and stays capped until the final 1.0.
func TestGateProgressMonotonic(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/progress")
	doc.images = []ImageRef{
		{ID: "i1", URL: "u1"},
		{ID: "i2", URL: "u2"},
		{ID: "i3", URL: "u3"},
	}
	doc.imageDelay["u1"] = 50 * time.Millisecond
	doc.imageDelay["u2"] = 150 * time.Millisecond
	doc.imageDelay["u3"] = 250 * time.Millisecond

	g, capture, _, err := runGate(t, doc, &GateConfig{
		MinSeconds:     0.5,
		TimeoutSeconds: 5,
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	_ = g
	values := capture.progressValues()
	if len(values) < 3 {
		t.Fatalf("too few progress snapshots: %d", len(values))
	}
	prev := -1.0
	for i, p := range values {
		if p.Combined < prev {
			t.Fatalf("combined decreased at %d: %v -> %v", i, prev, p.Combined)
		}
		prev = p.Combined
		if p.State != RunStateComplete && p.Combined > DEF_PREFINAL_CAP {
			t.Fatalf("pre-final combined above cap: %v", p.Combined)
		}
	}
	last := values[len(values)-1]
	if last.Combined != 1 || last.State != RunStateComplete {
		t.Fatalf("final snapshot = %+v, want combined 1 in complete state", last)
	}
}

// TestGateFloorlessTracksReadiness: with no display floor the timer has no
// share, so combined progress follows readiness instead of opening at the
// timer weight.
func TestGateFloorlessTracksReadiness(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/floorless")
	doc.images = []ImageRef{
		{ID: "i1", URL: "u1"},
		{ID: "i2", URL: "u2"},
	}
	doc.imageDelay["u1"] = 80 * time.Millisecond
	doc.imageDelay["u2"] = 200 * time.Millisecond

	_, capture, _, err := runGate(t, doc, &GateConfig{
		TimeoutSeconds: 5,
		QuietMs:        100,
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	sawPartial := false
	for i, p := range capture.progressValues() {
		if p.State == RunStateComplete {
			continue
		}
		if p.Combined > p.Readiness {
			t.Fatalf("snapshot %d: combined %v above readiness %v on a floorless run",
				i, p.Combined, p.Readiness)
		}
		if p.Combined > 0 && p.Combined < 0.9 {
			sawPartial = true
		}
	}
	if !sawPartial {
		t.Fatal("no partial combined value observed while assets resolved")
	}
}

// TestGateCustomWatcher gates on nominated elements alongside assets.
func TestGateCustomWatcher(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/widgets")
	doc.elements["media-box"] = []ElementRef{
		{ID: "m1", Tag: "media-box"},
		{ID: "m2", Tag: "media-box"},
	}

	capture := &captureHandlers{}
	g, err := NewGate(testLogger(), doc, &GateConfig{
		TimeoutSeconds: 5,
		CustomSelector: "media-box",
	}, &GateOpts{Handlers: capture.handlers()})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		doc.fireEvent("m1")
		time.Sleep(100 * time.Millisecond)
		doc.fireEvent("m2")
	}()

	start := time.Now()
	if err := g.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 190*time.Millisecond {
		t.Fatalf("revealed before both elements signaled: %v", elapsed)
	}
	if g.TimedOut() {
		t.Fatal("run should not time out")
	}
	snap := g.Progress()
	custom := snap.Counters.Kinds[AssetCustom]
	if custom.Total != 2 || custom.Done != 2 {
		t.Fatalf("custom counters = %+v, want 2/2", custom)
	}
}

// TestGateUnmatchedPolicies: an empty selection either resolves at once or
// holds out for the ceiling.
func TestGateUnmatchedPolicies(t *testing.T) {
	t.Run("resolve", func(t *testing.T) {
		doc := newFakeDoc("https://kiosk.local/none")
		g, _, elapsed, err := runGate(t, doc, &GateConfig{
			TimeoutSeconds:  5,
			CustomSelector:  "missing-thing",
			UnmatchedPolicy: UnmatchedResolve,
		}, nil)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if g.TimedOut() {
			t.Fatal("resolve policy should not time out")
		}
		if elapsed > time.Second {
			t.Fatalf("resolve policy took %v", elapsed)
		}
	})

	t.Run("wait", func(t *testing.T) {
		doc := newFakeDoc("https://kiosk.local/none")
		g, _, elapsed, err := runGate(t, doc, &GateConfig{
			TimeoutSeconds: 0.3,
			CustomSelector: "missing-thing",
		}, nil)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if !g.TimedOut() {
			t.Fatal("wait policy should ride to the ceiling")
		}
		if elapsed < 280*time.Millisecond {
			t.Fatalf("ceiling fired early: %v", elapsed)
		}
	})
}

// TestGateCollaboratorStartFailure: a collaborator that fails to start must
// still leave the gate terminal, with the done channel closed and the cancel
// handler fired, so a waiter on Done never hangs.
func TestGateCollaboratorStartFailure(t *testing.T) {
	orig := startCollaborator
	t.Cleanup(func() { startCollaborator = orig })
	boom := errors.New("collaborator start failed")
	startCollaborator = func(context.Context, interface {
		Start(context.Context) error
	}) error {
		return boom
	}

	doc := newFakeDoc("https://kiosk.local/badstart")
	capture := &captureHandlers{}
	g, err := NewGate(testLogger(), doc, &GateConfig{TimeoutSeconds: 5}, &GateOpts{
		Handlers: capture.handlers(),
	})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	if err := g.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run = %v, want the start error", err)
	}
	waitClosed(t, g.Done(), time.Second, "done channel")
	if g.State() != RunStateCanceled {
		t.Fatalf("state = %s, want %s", g.State(), RunStateCanceled)
	}
	capture.mu.Lock()
	cancels := capture.cancels
	capture.mu.Unlock()
	if cancels != 1 {
		t.Fatalf("cancel handler fired %d times, want 1", cancels)
	}
	if capture.revealCount() != 0 {
		t.Fatal("reveal fired after a failed start")
	}
}

// TestGateContextCancel: canceling the run context behaves like Stop.
func TestGateContextCancel(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/ctx")
	capture := &captureHandlers{}
	g, err := NewGate(testLogger(), doc, &GateConfig{MinSeconds: 3}, &GateOpts{
		Handlers: capture.handlers(),
	})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := g.Run(ctx); !errors.Is(err, ErrGateCanceled) {
		t.Fatalf("Run = %v, want ErrGateCanceled", err)
	}
	if capture.revealCount() != 0 {
		t.Fatal("reveal fired on canceled context")
	}
	if g.State() != RunStateCanceled {
		t.Fatalf("state = %s", g.State())
	}
}

// TestGateNilDocument: construction requires a host.
func TestGateNilDocument(t *testing.T) {
	if _, err := NewGate(testLogger(), nil, &GateConfig{}, nil); !errors.Is(err, ErrNilDocument) {
		t.Fatalf("err = %v, want ErrNilDocument", err)
	}
}

// TestGateInvalidConfig: validation runs at construction.
func TestGateInvalidConfig(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/bad")
	if _, err := NewGate(testLogger(), doc, &GateConfig{MinSeconds: -1}, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

// TestGateRevealEventControls exercises the DOM-style event switches.
func TestGateRevealEventControls(t *testing.T) {
	ev := &RevealEvent{RunID: "r", URL: "u"}
	if ev.DefaultPrevented() || ev.PropagationStopped() {
		t.Fatal("fresh event should have no flags")
	}
	ev.PreventDefault()
	ev.StopPropagation()
	if !ev.DefaultPrevented() || !ev.PropagationStopped() {
		t.Fatal("flags did not latch")
	}
}
