package gatelib

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type trackerRecorder struct {
	mu       sync.Mutex
	progress []float64
	assets   map[string]bool
	errs     []error
}

func newTrackerRecorder() *trackerRecorder {
	return &trackerRecorder{assets: make(map[string]bool)}
}

func (r *trackerRecorder) opts(counters *Counters) *TrackerOpts {
	return &TrackerOpts{
		Counters: counters,
		ProgressFn: func(v float64) {
			r.mu.Lock()
			r.progress = append(r.progress, v)
			r.mu.Unlock()
		},
		AssetFn: func(kind AssetKind, url string, ok bool) {
			r.mu.Lock()
			r.assets[string(kind)+":"+url] = ok
			r.mu.Unlock()
		},
		ErrorFn: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *trackerRecorder) asset(key string) (ok, seen bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok, seen = r.assets[key]
	return
}

func TestTrackerSeedSettles(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/seed")
	doc.images = []ImageRef{
		{ID: "i1", URL: "u1", Complete: true},
		{ID: "i2", URL: "u2", Complete: true, Broken: true},
		{ID: "i3", URL: "u3"},
	}
	doc.imageDelay["u3"] = 50 * time.Millisecond
	doc.hasFonts = true
	doc.fontDelay = 30 * time.Millisecond

	rec := newTrackerRecorder()
	counters := NewCounters()
	tr := NewTracker(testLogger(), doc, rec.opts(counters))
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()

	waitClosed(t, tr.Settled(), 2*time.Second, "tracker settle")

	snap := counters.Snapshot()
	img := snap.Kinds[AssetImage]
	if img.Total != 3 || img.Done != 3 || img.Pending != 0 {
		t.Fatalf("image tally = %+v, want 3/3/0", img)
	}
	fonts := snap.Kinds[AssetFontSet]
	if fonts.Total != 1 || fonts.Done != 1 {
		t.Fatalf("font tally = %+v, want 1/1", fonts)
	}
	if tr.Progress() != 1 {
		t.Fatalf("settled readiness = %v, want 1", tr.Progress())
	}
	// The broken image resolved, but not ok.
	if ok, seen := rec.asset("image:u2"); !seen || ok {
		t.Fatalf("broken image callback = (%v, %v), want seen and not ok", ok, seen)
	}
	if ok, _ := rec.asset("image:u1"); !ok {
		t.Fatal("complete image should report ok")
	}
}

func TestTrackerNoFontFacility(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/nofonts")

	counters := NewCounters()
	tr := NewTracker(testLogger(), doc, &TrackerOpts{Counters: counters})
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()

	waitClosed(t, tr.Settled(), time.Second, "tracker settle")
	fonts := counters.Snapshot().Kinds[AssetFontSet]
	if fonts.Total != 1 || fonts.Done != 1 {
		t.Fatalf("font tally without facility = %+v, want immediate 1/1", fonts)
	}
}

func TestTrackerFailedAwaitStillSettles(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/broken")
	doc.images = []ImageRef{{ID: "i1", URL: "u1"}}
	doc.imageErr["u1"] = errors.New("decode failed")

	rec := newTrackerRecorder()
	counters := NewCounters()
	tr := NewTracker(testLogger(), doc, rec.opts(counters))
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()

	waitClosed(t, tr.Settled(), time.Second, "tracker settle")
	if ok, seen := rec.asset("image:u1"); !seen || ok {
		t.Fatalf("failed await callback = (%v, %v), want seen and not ok", ok, seen)
	}
	img := counters.Snapshot().Kinds[AssetImage]
	if img.Done != 1 {
		t.Fatalf("failed image not counted done: %+v", img)
	}
}

func TestTrackerQuietWindowExtends(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/quiet")
	doc.images = []ImageRef{{ID: "i1", URL: "u1"}}
	doc.imageDelay["u1"] = 100 * time.Millisecond
	doc.imageDelay["u2"] = 100 * time.Millisecond

	counters := NewCounters()
	tr := NewTracker(testLogger(), doc, &TrackerOpts{
		Counters:    counters,
		QuietWindow: 120 * time.Millisecond,
	})
	start := time.Now()
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()

	// u1 resolves at 100ms and the quiet window starts. The mutation at
	// 150ms lands inside it, so settlement must wait for u2 plus a fresh
	// window: about 150+100+120 ms.
	time.Sleep(150 * time.Millisecond)
	doc.pushMutation(Mutation{Images: []ImageRef{{ID: "i2", URL: "u2"}}})

	waitClosed(t, tr.Settled(), 2*time.Second, "tracker settle")
	elapsed := time.Since(start)
	if elapsed < 360*time.Millisecond {
		t.Fatalf("settled at %v, quiet window did not extend", elapsed)
	}

	img := counters.Snapshot().Kinds[AssetImage]
	if img.Total != 2 || img.Done != 2 {
		t.Fatalf("image tally = %+v, want 2/2", img)
	}
}

func TestTrackerIgnoresAdditionsAfterSettle(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/late")
	doc.images = []ImageRef{{ID: "i1", URL: "u1", Complete: true}}

	counters := NewCounters()
	tr := NewTracker(testLogger(), doc, &TrackerOpts{Counters: counters})
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()
	waitClosed(t, tr.Settled(), time.Second, "tracker settle")

	doc.pushMutation(Mutation{Images: []ImageRef{{ID: "i2", URL: "u2"}}})
	time.Sleep(50 * time.Millisecond)

	img := counters.Snapshot().Kinds[AssetImage]
	if img.Total != 1 {
		t.Fatalf("settled tally moved: %+v", img)
	}
}

func TestTrackerBackgroundDedupe(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/bg")
	doc.backgrounds = []string{"b1", "b1", "b2"}

	counters := NewCounters()
	tr := NewTracker(testLogger(), doc, &TrackerOpts{
		Counters:           counters,
		IncludeBackgrounds: true,
	})
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()
	waitClosed(t, tr.Settled(), time.Second, "tracker settle")

	// The same URL arriving again via mutation is also not new work.
	doc.pushMutation(Mutation{Backgrounds: []string{"b2"}})
	time.Sleep(50 * time.Millisecond)

	bg := counters.Snapshot().Kinds[AssetBackground]
	if bg.Total != 2 || bg.Done != 2 {
		t.Fatalf("background tally = %+v, want 2/2", bg)
	}
}

func TestTrackerBackgroundsOffByDefault(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/nobg")
	doc.backgrounds = []string{"b1"}

	counters := NewCounters()
	tr := NewTracker(testLogger(), doc, &TrackerOpts{Counters: counters})
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()
	waitClosed(t, tr.Settled(), time.Second, "tracker settle")

	if bg, ok := counters.Snapshot().Kinds[AssetBackground]; ok && bg.Total != 0 {
		t.Fatalf("backgrounds tracked without opt-in: %+v", bg)
	}
}

func TestTrackerStopAbandonsAwaits(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/stop")
	doc.images = []ImageRef{{ID: "i1", URL: "u1"}}
	doc.imageDelay["u1"] = time.Minute

	counters := NewCounters()
	tr := NewTracker(testLogger(), doc, &TrackerOpts{Counters: counters})
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	tr.Stop()
	time.Sleep(50 * time.Millisecond)

	assertOpen(t, tr.Settled(), "settle after Stop")
	img := counters.Snapshot().Kinds[AssetImage]
	if img.Done != 0 {
		t.Fatalf("abandoned await was counted: %+v", img)
	}
}

func TestTrackerNoMutationFeed(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/static")
	doc.noMutations = true
	doc.images = []ImageRef{{ID: "i1", URL: "u1", Complete: true}}

	tr := NewTracker(testLogger(), doc, nil)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start should degrade, got: %v", err)
	}
	defer tr.Stop()
	waitClosed(t, tr.Settled(), time.Second, "tracker settle")
}

func TestTrackerDiscoveryErrorDegrades(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/degraded")
	discoveryErr := errors.New("scope selector rejected")
	doc.imagesErr = discoveryErr

	rec := newTrackerRecorder()
	tr := NewTracker(testLogger(), doc, rec.opts(nil))
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start should degrade, got: %v", err)
	}
	defer tr.Stop()
	waitClosed(t, tr.Settled(), time.Second, "tracker settle")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], discoveryErr) {
		t.Fatalf("errs = %v, want the discovery error surfaced", rec.errs)
	}
}

func TestTrackerStartTwice(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/twice")
	tr := NewTracker(testLogger(), doc, nil)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()
	if err := tr.Start(context.Background()); !errors.Is(err, ErrTrackerAlreadyStarted) {
		t.Fatalf("second Start = %v, want ErrTrackerAlreadyStarted", err)
	}
}

func TestTrackerReadinessReachesOne(t *testing.T) {
	doc := newFakeDoc("https://kiosk.local/fraction")
	doc.images = []ImageRef{
		{ID: "i1", URL: "u1"},
		{ID: "i2", URL: "u2"},
	}
	doc.imageDelay["u1"] = 30 * time.Millisecond
	doc.imageDelay["u2"] = 60 * time.Millisecond

	rec := newTrackerRecorder()
	tr := NewTracker(testLogger(), doc, rec.opts(nil))
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()
	waitClosed(t, tr.Settled(), time.Second, "tracker settle")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.progress) == 0 {
		t.Fatal("no readiness published")
	}
	last := rec.progress[len(rec.progress)-1]
	if last != 1 {
		t.Fatalf("final readiness = %v, want 1", last)
	}
	for _, v := range rec.progress {
		if v < 0 || v > 1 {
			t.Fatalf("readiness out of range: %v", v)
		}
	}
}
