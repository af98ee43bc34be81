package gatelib

import (
	"context"
	"log"
	"sync"
	"time"
)

// TrackerOpts carries the knobs a Tracker needs beyond the document itself.
// The zero value is usable: no scope, no backgrounds, no quiet window.
type TrackerOpts struct {
	// Scope restricts discovery to elements under the matching container.
	// Empty means the whole document.
	Scope string
	// IncludeBackgrounds also tracks CSS background images.
	IncludeBackgrounds bool
	// QuietWindow is how long Pending must hold zero before settlement.
	QuietWindow time.Duration
	// MaxAwaits bounds concurrently running asset awaits.
	// Defaults to DEF_MAX_AWAITS.
	MaxAwaits int
	// Counters is the tally shared with the owning gate. A fresh set is
	// created when nil.
	Counters *Counters
	Clock    Clock

	ProgressFn func(readiness float64)
	AssetFn    func(kind AssetKind, url string, ok bool)
	ErrorFn    func(err error)
}

// Tracker discovers the trackable assets of a document, awaits each one and
// keeps the shared counters current. It settles once every pending asset has
// resolved and the quiet window has passed without new arrivals.
//
// Await failures are not errors for settlement purposes: a broken image is
// as settled as a loaded one. The asset callback carries the distinction.
type Tracker struct {
	l    *log.Logger
	doc  Document
	opts TrackerOpts

	counters   *Counters
	clock      Clock
	sem        chan struct{}
	progressFn func(float64)
	assetFn    func(AssetKind, string, bool)
	errorFn    func(error)

	settledCh  chan struct{}
	settleOnce sync.Once

	mu         sync.Mutex
	started    bool
	seeding    bool
	settled    bool
	stopped    bool
	quietTimer Timer
	quietGen   uint64
	seenBG     map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTracker builds a tracker over doc. Call Start to begin discovery.
func NewTracker(l *log.Logger, doc Document, opts *TrackerOpts) *Tracker {
	if l == nil {
		l = log.Default()
	}
	if opts == nil {
		opts = &TrackerOpts{}
	}
	t := &Tracker{
		l:          l,
		doc:        doc,
		opts:       *opts,
		counters:   opts.Counters,
		clock:      opts.Clock,
		progressFn: opts.ProgressFn,
		assetFn:    opts.AssetFn,
		errorFn:    opts.ErrorFn,
		settledCh:  make(chan struct{}),
		seenBG:     make(map[string]struct{}),
	}
	if t.counters == nil {
		t.counters = NewCounters()
	}
	if t.clock == nil {
		t.clock = SystemClock()
	}
	if t.progressFn == nil {
		t.progressFn = func(float64) {}
	}
	if t.assetFn == nil {
		t.assetFn = func(AssetKind, string, bool) {}
	}
	if t.errorFn == nil {
		t.errorFn = func(error) {}
	}
	n := opts.MaxAwaits
	if n <= 0 {
		n = DEF_MAX_AWAITS
	}
	t.sem = make(chan struct{}, n)
	return t
}

// Start seeds the tracker from the document's current state and begins
// watching for mutations. Discovery failures degrade the run rather than
// abort it: whatever could not be listed simply is not tracked.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrTrackerAlreadyStarted
	}
	t.started = true
	t.seeding = true
	t.mu.Unlock()

	t.ctx, t.cancel = context.WithCancel(ctx)

	imgs, err := t.doc.Images(t.opts.Scope)
	if err != nil {
		t.l.Printf("tracker: image discovery failed: %s\n", err.Error())
		t.errorFn(err)
	}
	for _, img := range imgs {
		t.addImage(img)
	}

	t.counters.Add(AssetFontSet, 1)
	if t.doc.HasFonts() {
		t.wg.Add(1)
		safeGo(t.l, &t.wg, "font await", t.panicErr, func() {
			err := t.doc.AwaitFonts(t.ctx)
			if t.abandoned() {
				return
			}
			t.completeAsset(AssetFontSet, "", err == nil)
		})
	} else {
		t.completeAsset(AssetFontSet, "", true)
	}

	if t.opts.IncludeBackgrounds {
		urls, err := t.doc.Backgrounds(t.opts.Scope)
		if err != nil {
			t.l.Printf("tracker: background discovery failed: %s\n", err.Error())
			t.errorFn(err)
		}
		for _, u := range urls {
			t.addBackground(u)
		}
	}

	t.watchMutations()
	t.mu.Lock()
	t.seeding = false
	t.mu.Unlock()
	t.publishProgress()
	t.checkQuiet()
	return nil
}

func (t *Tracker) watchMutations() {
	feed, err := t.doc.Watch(t.ctx)
	if err != nil {
		if err == ErrMutationsUnsupported {
			t.l.Println("tracker: document host reports no mutation feed, late assets will not be tracked")
			return
		}
		t.errorFn(err)
		return
	}
	t.wg.Add(1)
	safeGo(t.l, &t.wg, "mutation loop", t.panicErr, func() {
		for {
			select {
			case <-t.ctx.Done():
				return
			case mut, ok := <-feed:
				if !ok {
					return
				}
				t.addMutation(mut)
			}
		}
	})
}

func (t *Tracker) addMutation(mut Mutation) {
	for _, img := range mut.Images {
		t.addImage(img)
	}
	if t.opts.IncludeBackgrounds {
		for _, u := range mut.Backgrounds {
			t.addBackground(u)
		}
	}
}

// addImage registers one image. Already-complete images count done at once,
// broken ones included; the rest are awaited. Additions after settlement or
// stop are ignored so a settled tally never moves again.
func (t *Tracker) addImage(img ImageRef) {
	if t.closed() {
		return
	}
	t.counters.Add(AssetImage, 1)
	if img.Complete {
		t.completeAsset(AssetImage, img.URL, !img.Broken)
		return
	}
	t.disarmQuiet()
	t.wg.Add(1)
	safeGo(t.l, &t.wg, "image await", t.panicErr, func() {
		t.sem <- struct{}{}
		err := t.doc.AwaitImage(t.ctx, img)
		<-t.sem
		if t.abandoned() {
			return
		}
		t.completeAsset(AssetImage, img.URL, err == nil)
	})
}

// addBackground registers one CSS background URL, deduplicated across the
// whole run. The same URL reported by two mutations is one unit of work.
func (t *Tracker) addBackground(url string) {
	if url == "" || t.closed() {
		return
	}
	t.mu.Lock()
	if _, dup := t.seenBG[url]; dup {
		t.mu.Unlock()
		return
	}
	t.seenBG[url] = struct{}{}
	t.mu.Unlock()

	t.counters.Add(AssetBackground, 1)
	t.disarmQuiet()
	t.wg.Add(1)
	safeGo(t.l, &t.wg, "background await", t.panicErr, func() {
		t.sem <- struct{}{}
		err := t.doc.AwaitBackground(t.ctx, url)
		<-t.sem
		if t.abandoned() {
			return
		}
		t.completeAsset(AssetBackground, url, err == nil)
	})
}

func (t *Tracker) completeAsset(kind AssetKind, url string, ok bool) {
	t.counters.Complete(kind, 1)
	t.assetFn(kind, url, ok)
	t.publishProgress()
	t.checkQuiet()
}

func (t *Tracker) publishProgress() {
	t.progressFn(t.counters.Snapshot().Progress())
}

// checkQuiet arms the quiet window when nothing is pending and disarms it
// when work is outstanding. Settlement happens only from here, and never
// while the initial seed is still being read.
func (t *Tracker) checkQuiet() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.settled || t.stopped || t.seeding {
		return
	}
	if t.counters.Pending() != 0 {
		t.disarmQuietLocked()
		return
	}
	if t.opts.QuietWindow <= 0 {
		t.settleLocked()
		return
	}
	if t.quietTimer != nil {
		return
	}
	t.quietGen++
	gen := t.quietGen
	timer := t.clock.NewTimer(t.opts.QuietWindow)
	t.quietTimer = timer
	safeGo(t.l, nil, "quiet window", t.panicErr, func() {
		select {
		case <-t.ctx.Done():
			timer.Stop()
		case <-timer.C():
			t.quietElapsed(gen)
		}
	})
}

func (t *Tracker) quietElapsed(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.settled || t.stopped || t.quietGen != gen {
		return
	}
	// The timer is spent either way; a fresh window needs a fresh one.
	t.quietTimer = nil
	if t.counters.Pending() != 0 {
		return
	}
	t.settleLocked()
}

func (t *Tracker) disarmQuiet() {
	t.mu.Lock()
	t.disarmQuietLocked()
	t.mu.Unlock()
}

func (t *Tracker) disarmQuietLocked() {
	t.quietGen++
	if t.quietTimer != nil {
		t.quietTimer.Stop()
		t.quietTimer = nil
	}
}

func (t *Tracker) settleLocked() {
	t.settled = true
	t.settleOnce.Do(func() { close(t.settledCh) })
	if t.cancel != nil {
		t.cancel()
	}
}

// Settled closes once readiness has settled. It never closes after Stop.
func (t *Tracker) Settled() <-chan struct{} {
	return t.settledCh
}

// Progress is the current readiness fraction in [0,1].
func (t *Tracker) Progress() float64 {
	return t.counters.Snapshot().Progress()
}

// Stop abandons tracking. In-flight awaits are cut loose and never counted.
// Idempotent, and safe concurrently with settlement.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.disarmQuietLocked()
	t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Tracker) closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settled || t.stopped
}

// abandoned reports whether the tracker context ended before an await
// resolved on its own. Such awaits must not touch the counters.
func (t *Tracker) abandoned() bool {
	select {
	case <-t.ctx.Done():
		return t.closed()
	default:
		return false
	}
}

func (t *Tracker) panicErr(r interface{}) {
	t.errorFn(newPanicError("tracker", r))
}
