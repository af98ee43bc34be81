package gatelib

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// PaceTimer drives the timed half of a gate run: it publishes timer progress
// on a fixed cadence while the minimum display floor is running, closes the
// floor channel once the floor has fully elapsed and fires the one-shot
// ceiling channel when the timeout ceiling passes.
type PaceTimer struct {
	l          *log.Logger
	clock      Clock
	floor      time.Duration
	ceiling    time.Duration
	progressFn func(float64)

	startedAt time.Time
	floorCh   chan struct{}
	ceilCh    chan struct{}
	floorDone int32
	started   int32
	stopped   int32
	cancel    context.CancelFunc
}

// NewPaceTimer builds a pace timer. A zero floor closes the floor channel
// immediately on start; a zero ceiling disables the ceiling entirely.
func NewPaceTimer(l *log.Logger, clock Clock, floor, ceiling time.Duration, progressFn func(float64)) *PaceTimer {
	if l == nil {
		l = log.Default()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if progressFn == nil {
		progressFn = func(float64) {}
	}
	return &PaceTimer{
		l:          l,
		clock:      clock,
		floor:      floor,
		ceiling:    ceiling,
		progressFn: progressFn,
		floorCh:    make(chan struct{}),
		ceilCh:     make(chan struct{}),
	}
}

// Start begins pacing. It is non-blocking and must be called at most once.
func (p *PaceTimer) Start(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.started, 0, 1) {
		return
	}
	p.startedAt = p.clock.Now()
	ctx, p.cancel = context.WithCancel(ctx)
	if p.floor <= 0 {
		p.markFloorDone()
	}
	safeGo(p.l, nil, "pace timer", nil, func() { p.loop(ctx) })
}

func (p *PaceTimer) loop(ctx context.Context) {
	var (
		tickCh  <-chan time.Time
		floorC  <-chan time.Time
		ceilC   <-chan time.Time
		ticker  Ticker
		timers  []Timer
		ceiling = p.ceiling > 0
	)
	stopAll := func() {
		if ticker != nil {
			ticker.Stop()
		}
		for _, t := range timers {
			t.Stop()
		}
	}
	defer stopAll()

	if p.floor > 0 {
		ticker = p.clock.NewTicker(DEF_TICK_INTERVAL)
		tickCh = ticker.C()
		ft := p.clock.NewTimer(p.floor)
		timers = append(timers, ft)
		floorC = ft.C()
	}
	if ceiling {
		ct := p.clock.NewTimer(p.ceiling)
		timers = append(timers, ct)
		ceilC = ct.C()
	}

	for {
		if p.FloorDone() && ceilC == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-tickCh:
			p.progressFn(frac(p.clock.Since(p.startedAt), p.floor))
		case <-floorC:
			floorC = nil
			tickCh = nil
			if ticker != nil {
				ticker.Stop()
			}
			p.markFloorDone()
		case <-ceilC:
			ceilC = nil
			close(p.ceilCh)
		}
	}
}

func (p *PaceTimer) markFloorDone() {
	if atomic.CompareAndSwapInt32(&p.floorDone, 0, 1) {
		close(p.floorCh)
		p.progressFn(1)
	}
}

// FloorElapsed closes once the minimum display floor has fully elapsed.
func (p *PaceTimer) FloorElapsed() <-chan struct{} {
	return p.floorCh
}

// FloorDone reports whether the floor has elapsed.
func (p *PaceTimer) FloorDone() bool {
	return atomic.LoadInt32(&p.floorDone) == 1
}

// CeilingElapsed fires at most once when the timeout ceiling passes. It
// returns nil when no ceiling is configured, which blocks forever in a
// select.
func (p *PaceTimer) CeilingElapsed() <-chan struct{} {
	if p.ceiling <= 0 {
		return nil
	}
	return p.ceilCh
}

// Elapsed is the time since Start.
func (p *PaceTimer) Elapsed() time.Duration {
	if atomic.LoadInt32(&p.started) == 0 {
		return 0
	}
	return p.clock.Since(p.startedAt)
}

// Stop releases the timers. Idempotent; after Stop the ceiling never fires.
func (p *PaceTimer) Stop() {
	if !atomic.CompareAndSwapInt32(&p.stopped, 0, 1) {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
}
