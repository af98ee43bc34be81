package gatelib

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// startCollaborator is a seam so tests can fail a collaborator start.
var startCollaborator = func(ctx context.Context, c interface {
	Start(context.Context) error
}) error {
	return c.Start(ctx)
}

// GateOpts carries the optional collaborators of a gate. Zero value works:
// system clock, default handlers, no session memoization.
type GateOpts struct {
	Handlers *Handlers
	Clock    Clock
	Session  SessionStore
	// MaxAwaits bounds the tracker's concurrent asset awaits.
	MaxAwaits int
	// ReadyFn overrides the watcher's already-loaded check, letting a
	// loaded heuristic script decide per element.
	ReadyFn func(el ElementRef) bool
}

// Gate runs one readiness-gated reveal over a document host. It blends the
// pace timer with asset readiness into a single monotonic progress value and
// fires the reveal exactly once, never before the minimum display floor and
// never after the timeout ceiling.
//
// A gate is single-shot. Build a new one per run.
type Gate struct {
	l        *log.Logger
	doc      Document
	cfg      GateConfig
	handlers *Handlers
	clock    Clock
	session  SessionStore

	runID     string
	identity  string
	startedAt time.Time
	state     int32

	blender  *Blender
	counters *Counters
	tracker  *Tracker
	watcher  *SignalWatcher
	pace     *PaceTimer

	readyFn func(ElementRef) bool

	fireMu   sync.Mutex
	fired    bool
	stopped  bool
	timedOut bool
	memoized bool

	progMu        sync.Mutex
	lastTimer     float64
	lastReadiness float64

	// pubMu serializes progress delivery so handlers observe the combined
	// series in latch order.
	pubMu sync.Mutex

	maxAwaits int
	cancel    context.CancelFunc
	done      chan struct{}
	doneOnce  sync.Once
}

// NewGate validates cfg, applies its defaults and builds a gate over doc.
func NewGate(l *log.Logger, doc Document, cfg *GateConfig, opts *GateOpts) (*Gate, error) {
	if l == nil {
		l = log.Default()
	}
	if doc == nil {
		return nil, ErrNilDocument
	}
	if cfg == nil {
		cfg = &GateConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &GateOpts{}
	}
	handlers := opts.Handlers
	if handlers == nil {
		handlers = &Handlers{}
	}
	handlers.setDefault(l)
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	c := cfg.withDefaults()
	g := &Gate{
		l:         l,
		doc:       doc,
		cfg:       c,
		handlers:  handlers,
		clock:     clock,
		session:   opts.Session,
		runID:     newRunID(),
		identity:  c.Identity(doc.URL()),
		state:     int32(RunStateIdle),
		blender:   NewBlender(c.BlendStrategy, c.TimerWeight),
		counters:  NewCounters(),
		maxAwaits: opts.MaxAwaits,
		readyFn:   opts.ReadyFn,
		done:      make(chan struct{}),
	}
	return g, nil
}

func (g *Gate) RunID() string {
	return g.runID
}

func (g *Gate) URL() string {
	return g.doc.URL()
}

// Config returns the effective configuration, defaults applied.
func (g *Gate) Config() GateConfig {
	return g.cfg
}

func (g *Gate) State() RunState {
	return RunState(atomic.LoadInt32(&g.state))
}

func (g *Gate) setState(s RunState) {
	atomic.StoreInt32(&g.state, int32(s))
	g.handlers.StateHandler(g.runID, s)
}

// TimedOut reports whether the reveal was forced by the ceiling.
func (g *Gate) TimedOut() bool {
	g.fireMu.Lock()
	defer g.fireMu.Unlock()
	return g.timedOut
}

// Memoized reports whether the session flag skipped readiness tracking.
func (g *Gate) Memoized() bool {
	g.fireMu.Lock()
	defer g.fireMu.Unlock()
	return g.memoized
}

// Done closes when the run reaches a terminal state.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Progress is a snapshot of the current run progress.
func (g *Gate) Progress() Progress {
	g.progMu.Lock()
	timer, readiness := g.lastTimer, g.lastReadiness
	g.progMu.Unlock()
	st := g.State()
	combined := g.blender.Last()
	if st == RunStateComplete {
		timer, combined = 1, g.blender.Final()
	}
	return Progress{
		Timer:     timer,
		Readiness: readiness,
		Combined:  combined,
		State:     st,
		StateName: st.String(),
		TimedOut:  g.TimedOut(),
		Counters:  g.counters.Snapshot(),
	}
}

// Run executes the gate to its terminal state and blocks until then. It
// returns ErrGateCanceled when ctx ends or Stop is called before the reveal,
// nil otherwise. Calling Run twice returns ErrGateAlreadyStarted.
func (g *Gate) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&g.state, int32(RunStateIdle), int32(RunStateRunning)) {
		return ErrGateAlreadyStarted
	}
	g.fireMu.Lock()
	if g.stopped {
		g.fireMu.Unlock()
		g.setState(RunStateCanceled)
		g.handlers.CancelHandler(g.runID)
		g.doneOnce.Do(func() { close(g.done) })
		return ErrGateCanceled
	}
	g.fireMu.Unlock()
	g.handlers.StateHandler(g.runID, RunStateRunning)

	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	defer cancel()
	g.startedAt = g.clock.Now()

	memoized := g.cfg.OncePerSession && g.session != nil && g.session.Seen(g.identity)
	g.fireMu.Lock()
	g.memoized = memoized
	g.fireMu.Unlock()

	g.pace = NewPaceTimer(g.l, g.clock, g.cfg.Floor(), g.cfg.Ceiling(), g.onTimerProgress)
	g.pace.Start(ctx)
	defer g.pace.Stop()

	trackerSettled := (<-chan struct{})(closedChan)
	watcherSettled := (<-chan struct{})(closedChan)
	if memoized {
		// Seen this session already: readiness is a given, only the
		// floor still applies.
		g.setReadiness(1)
		g.publish()
	} else {
		g.tracker = NewTracker(g.l, g.doc, &TrackerOpts{
			Scope:              g.cfg.ScopeSelector,
			IncludeBackgrounds: g.cfg.IncludeBackgrounds,
			QuietWindow:        g.cfg.QuietWindow(),
			MaxAwaits:          g.maxAwaits,
			Counters:           g.counters,
			Clock:              g.clock,
			ProgressFn:         g.onReadinessProgress,
			AssetFn:            g.onAsset,
			ErrorFn:            g.onError,
		})
		// A failed start tears the run down like a cancellation so the
		// done channel still closes and handlers see a terminal state.
		if err := startCollaborator(ctx, g.tracker); err != nil {
			g.teardownCanceled()
			return err
		}
		defer g.tracker.Stop()
		trackerSettled = g.tracker.Settled()

		if g.cfg.CustomSelector != "" {
			g.watcher = NewSignalWatcher(g.l, g.doc, &WatcherOpts{
				Selector:   g.cfg.CustomSelector,
				Event:      g.cfg.CustomEventName,
				Policy:     g.cfg.UnmatchedPolicy,
				Counters:   g.counters,
				ReadyFn:    g.readyFn,
				ProgressFn: g.onReadinessProgress,
				AssetFn:    g.onAsset,
				ErrorFn:    g.onError,
			})
			if err := startCollaborator(ctx, g.watcher); err != nil {
				g.teardownCanceled()
				return err
			}
			defer g.watcher.Stop()
			watcherSettled = g.watcher.Settled()
		}
	}

	timedOut := false
	ceiling := g.pace.CeilingElapsed()
	for trackerSettled != nil || watcherSettled != nil {
		select {
		case <-ctx.Done():
			return g.teardownCanceled()
		case <-trackerSettled:
			trackerSettled = nil
		case <-watcherSettled:
			watcherSettled = nil
		case <-ceiling:
			timedOut = true
			trackerSettled, watcherSettled = nil, nil
		}
	}
	if !timedOut {
		g.handlers.SettleHandler(g.runID)
	}

	// The floor binds every path to the reveal, ceiling included.
	select {
	case <-ctx.Done():
		return g.teardownCanceled()
	case <-g.pace.FloorElapsed():
	}
	return g.finalize(timedOut)
}

// finalize performs the exactly-once reveal. The fired flag is checked and
// set under the same lock that Stop takes, so a cancellation that lost the
// race observes fired and stays silent, and vice versa.
func (g *Gate) finalize(timedOut bool) error {
	g.fireMu.Lock()
	if g.stopped {
		g.fireMu.Unlock()
		return ErrGateCanceled
	}
	if g.fired {
		g.fireMu.Unlock()
		return nil
	}
	g.fired = true
	g.timedOut = timedOut
	memoized := g.memoized
	g.fireMu.Unlock()

	g.setState(RunStateFinalizing)
	if g.tracker != nil {
		g.tracker.Stop()
	}
	if g.watcher != nil {
		g.watcher.Stop()
	}
	g.pace.Stop()

	if g.cfg.OncePerSession && g.session != nil {
		if err := g.session.Mark(g.identity); err != nil {
			g.l.Printf("gate: session mark failed: %s\n", err.Error())
			g.onError(err)
		}
	}

	elapsed := g.clock.Since(g.startedAt)
	g.progMu.Lock()
	g.lastTimer = 1
	readiness := g.lastReadiness
	g.progMu.Unlock()

	g.setState(RunStateComplete)
	g.pubMu.Lock()
	g.handlers.ProgressHandler(g.runID, Progress{
		Timer:     1,
		Readiness: readiness,
		Combined:  g.blender.Final(),
		State:     RunStateComplete,
		StateName: RunStateComplete.String(),
		TimedOut:  timedOut,
		Counters:  g.counters.Snapshot(),
	})
	g.pubMu.Unlock()
	ev := &RevealEvent{
		RunID:    g.runID,
		URL:      g.doc.URL(),
		TimedOut: timedOut,
		Memoized: memoized,
		Elapsed:  elapsed,
	}
	g.handlers.RevealHandler(g.runID, ev)
	g.doneOnce.Do(func() { close(g.done) })
	return nil
}

func (g *Gate) teardownCanceled() error {
	g.fireMu.Lock()
	if g.fired {
		g.fireMu.Unlock()
		return nil
	}
	g.stopped = true
	g.fireMu.Unlock()

	if g.tracker != nil {
		g.tracker.Stop()
	}
	if g.watcher != nil {
		g.watcher.Stop()
	}
	g.pace.Stop()
	g.setState(RunStateCanceled)
	g.handlers.CancelHandler(g.runID)
	g.doneOnce.Do(func() { close(g.done) })
	return ErrGateCanceled
}

// Stop cancels the run. After Stop returns no reveal callback will fire,
// unless the reveal had already happened. Idempotent, safe from any
// goroutine, and a no-op on a terminal gate.
func (g *Gate) Stop() {
	g.fireMu.Lock()
	if g.fired || g.stopped {
		g.fireMu.Unlock()
		return
	}
	g.stopped = true
	g.fireMu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
}

func (g *Gate) onTimerProgress(v float64) {
	g.progMu.Lock()
	g.lastTimer = v
	g.progMu.Unlock()
	g.publish()
}

func (g *Gate) onReadinessProgress(v float64) {
	g.setReadiness(v)
	g.publish()
}

func (g *Gate) setReadiness(v float64) {
	g.progMu.Lock()
	g.lastReadiness = v
	g.progMu.Unlock()
}

func (g *Gate) onAsset(kind AssetKind, url string, ok bool) {
	g.handlers.AssetHandler(g.runID, kind, url, ok)
}

func (g *Gate) onError(err error) {
	g.handlers.ErrorHandler(g.runID, err)
}

// publish folds the latest timer and readiness fractions through the blender
// and emits a progress snapshot. Terminal states publish nothing; the final
// snapshot is finalize's alone. The state check and the delivery sit under
// pubMu so a publish racing finalize cannot land after the final 1.0.
func (g *Gate) publish() {
	g.pubMu.Lock()
	defer g.pubMu.Unlock()
	st := g.State()
	if st.Terminal() || st == RunStateFinalizing {
		return
	}
	g.progMu.Lock()
	timer, readiness := g.lastTimer, g.lastReadiness
	g.progMu.Unlock()
	combined := g.blender.Combine(timer, readiness, g.pace.FloorDone())
	g.handlers.ProgressHandler(g.runID, Progress{
		Timer:     timer,
		Readiness: readiness,
		Combined:  combined,
		State:     st,
		StateName: st.String(),
		Counters:  g.counters.Snapshot(),
	})
}
