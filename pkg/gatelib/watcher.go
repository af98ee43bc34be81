package gatelib

import (
	"context"
	"log"
	"sync"
)

// WatcherOpts configures a SignalWatcher. Selector is required; Event
// defaults to DEF_CUSTOM_EVENT.
type WatcherOpts struct {
	Selector string
	Event    string
	Policy   UnmatchedPolicy
	Counters *Counters

	// ReadyFn decides whether a matched element already looks loaded and
	// can skip the event wait. Defaults to the built-in attribute check.
	ReadyFn func(el ElementRef) bool

	ProgressFn func(readiness float64)
	AssetFn    func(kind AssetKind, url string, ok bool)
	ErrorFn    func(err error)
}

// SignalWatcher gates on author-nominated elements: everything matching the
// selector must emit the readiness event (or already look loaded) before the
// watcher settles. Unlike the asset tracker there is no quiet window, but
// settlement additionally requires that at least one element ever matched,
// unless the unmatched policy says an empty selection resolves at once.
type SignalWatcher struct {
	l    *log.Logger
	doc  Document
	opts WatcherOpts

	counters   *Counters
	progressFn func(float64)
	assetFn    func(AssetKind, string, bool)
	errorFn    func(error)

	settledCh  chan struct{}
	settleOnce sync.Once

	mu          sync.Mutex
	started     bool
	seeding     bool
	settled     bool
	stopped     bool
	everMatched bool
	eventsDead  bool
	seen        map[string]struct{}
	pending     map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSignalWatcher builds a watcher over doc. Call Start to begin.
func NewSignalWatcher(l *log.Logger, doc Document, opts *WatcherOpts) *SignalWatcher {
	if l == nil {
		l = log.Default()
	}
	if opts == nil {
		opts = &WatcherOpts{}
	}
	w := &SignalWatcher{
		l:          l,
		doc:        doc,
		opts:       *opts,
		counters:   opts.Counters,
		progressFn: opts.ProgressFn,
		assetFn:    opts.AssetFn,
		errorFn:    opts.ErrorFn,
		settledCh:  make(chan struct{}),
		seen:       make(map[string]struct{}),
		pending:    make(map[string]struct{}),
	}
	if w.opts.Event == "" {
		w.opts.Event = DEF_CUSTOM_EVENT
	}
	if !w.opts.Policy.valid() {
		w.opts.Policy = UnmatchedWait
	}
	if w.opts.ReadyFn == nil {
		w.opts.ReadyFn = defaultReadyFn(w.opts.Event)
	}
	if w.counters == nil {
		w.counters = NewCounters()
	}
	if w.progressFn == nil {
		w.progressFn = func(float64) {}
	}
	if w.assetFn == nil {
		w.assetFn = func(AssetKind, string, bool) {}
	}
	if w.errorFn == nil {
		w.errorFn = func(error) {}
	}
	return w
}

// Start seeds the watcher with the current selector matches and subscribes
// to mutations for late arrivals. Under UnmatchedResolve an empty seed
// settles immediately and later matches are ignored.
func (w *SignalWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrWatcherAlreadyStarted
	}
	w.started = true
	w.seeding = true
	w.mu.Unlock()

	w.ctx, w.cancel = context.WithCancel(ctx)

	els, err := w.doc.Query(w.opts.Selector)
	if err != nil {
		w.l.Printf("watcher: query %q failed: %s\n", w.opts.Selector, err.Error())
		w.errorFn(err)
	}
	for _, el := range els {
		w.addElement(el)
	}

	w.mu.Lock()
	w.seeding = false
	unmatched := !w.everMatched
	w.mu.Unlock()

	if unmatched && w.opts.Policy == UnmatchedResolve {
		w.settle()
		return nil
	}
	w.watchMutations()
	w.checkSettle()
	return nil
}

func (w *SignalWatcher) watchMutations() {
	feed, err := w.doc.Watch(w.ctx)
	if err != nil {
		if err == ErrMutationsUnsupported {
			return
		}
		w.errorFn(err)
		return
	}
	w.wg.Add(1)
	safeGo(w.l, &w.wg, "watcher mutation loop", w.panicErr, func() {
		for {
			select {
			case <-w.ctx.Done():
				return
			case mut, ok := <-feed:
				if !ok {
					return
				}
				for _, el := range mut.Elements {
					match, err := w.doc.Match(w.opts.Selector, el)
					if err != nil {
						w.errorFn(err)
						continue
					}
					if match {
						w.addElement(el)
					}
				}
			}
		}
	})
}

// addElement registers one matched element, deduplicated by element ID.
func (w *SignalWatcher) addElement(el ElementRef) {
	if el.ID == "" {
		return
	}
	w.mu.Lock()
	if w.settled || w.stopped {
		w.mu.Unlock()
		return
	}
	if _, dup := w.seen[el.ID]; dup {
		w.mu.Unlock()
		return
	}
	w.seen[el.ID] = struct{}{}
	w.everMatched = true
	done := w.opts.ReadyFn(el)
	if !done {
		w.pending[el.ID] = struct{}{}
	}
	w.mu.Unlock()

	w.counters.Add(AssetCustom, 1)
	if done {
		w.completeElement(el.ID)
		return
	}
	w.subscribe(el)
}

func (w *SignalWatcher) subscribe(el ElementRef) {
	events, cancelSub, err := w.doc.On(w.ctx, el.ID, w.opts.Event)
	if err != nil {
		w.noteEventsDead(err)
		return
	}
	w.wg.Add(1)
	safeGo(w.l, &w.wg, "element event await", w.panicErr, func() {
		defer cancelSub()
		select {
		case <-w.ctx.Done():
		case _, ok := <-events:
			if !ok {
				return
			}
			w.completeElement(el.ID)
		}
	})
}

// noteEventsDead logs the degraded mode once. Elements without an event
// source stay pending until the run's ceiling resolves them.
func (w *SignalWatcher) noteEventsDead(err error) {
	w.mu.Lock()
	first := !w.eventsDead
	w.eventsDead = true
	w.mu.Unlock()
	if first {
		w.l.Printf("watcher: element events unavailable: %s\n", err.Error())
		w.errorFn(err)
	}
}

func (w *SignalWatcher) completeElement(id string) {
	w.mu.Lock()
	if w.settled || w.stopped {
		w.mu.Unlock()
		return
	}
	delete(w.pending, id)
	w.mu.Unlock()

	w.counters.Complete(AssetCustom, 1)
	w.assetFn(AssetCustom, id, true)
	w.progressFn(w.counters.Snapshot().Progress())
	w.checkSettle()
}

func (w *SignalWatcher) checkSettle() {
	w.mu.Lock()
	ok := !w.settled && !w.stopped && !w.seeding &&
		w.everMatched && len(w.pending) == 0
	w.mu.Unlock()
	if ok {
		w.settle()
	}
}

func (w *SignalWatcher) settle() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.settled = true
	w.mu.Unlock()
	w.settleOnce.Do(func() { close(w.settledCh) })
	if w.cancel != nil {
		w.cancel()
	}
}

// Settled closes once every matched element has signaled readiness.
func (w *SignalWatcher) Settled() <-chan struct{} {
	return w.settledCh
}

// Stop abandons watching. Idempotent.
func (w *SignalWatcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *SignalWatcher) panicErr(r interface{}) {
	w.errorFn(newPanicError("watcher", r))
}

// defaultReadyFn builds the already-loaded check for matched elements. The
// host's Complete flag describes load completion, so it only short-circuits
// the default load event; an element awaiting a custom event must still emit
// it even when already loaded. A data-ready attribute is an outright author
// promise and counts for any event.
func defaultReadyFn(event string) func(ElementRef) bool {
	return func(el ElementRef) bool {
		if event == DEF_CUSTOM_EVENT {
			if el.Complete || el.Attrs["complete"] == "true" {
				return true
			}
		}
		switch el.Attrs["data-ready"] {
		case "", "false", "0":
			return false
		default:
			return true
		}
	}
}
