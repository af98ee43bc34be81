// Package sweeper runs the daemon's retention loop: a single goroutine over
// a min-heap of due events with a 60-second max-sleep-cap to handle NTP
// steps, DST transitions and system sleep. One-shot events evict a finished
// run from the manager once its retention lapses; recurring cron events
// sweep expired session flags. The heap is in-memory only and is rebuilt
// from the manager's completed runs on daemon restart.
package sweeper

import (
	"container/heap"
	"context"
	"time"

	"github.com/adhocore/gronx"
)

const maxSleepCap = 60 * time.Second

// Event is one pending sweep in the heap.
type Event struct {
	// RunID is the run to evict when DueAt is reached. Empty means a full
	// sweep instead.
	RunID string
	// DueAt is the wall-clock time this event fires.
	DueAt time.Time
	// CronExpr re-schedules the event after firing. Empty means one-shot.
	CronExpr string
}

// Hooks are the sweeper's targets. Nil hooks are no-ops.
type Hooks struct {
	// EvictRun drops one finished run from the live manager view.
	EvictRun func(runID string)
	// Sweep expires stale state, session flags included.
	Sweep func()
}

// Sweeper manages retention events using a min-heap. It runs a background
// goroutine that sleeps until the next event's due time, then calls the
// matching hook.
type Sweeper struct {
	addChan    chan Event
	removeChan chan string
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates and starts a new Sweeper. The goroutine exits when ctx is
// cancelled or Stop is called.
func New(ctx context.Context, hooks Hooks) *Sweeper {
	if hooks.EvictRun == nil {
		hooks.EvictRun = func(string) {}
	}
	if hooks.Sweep == nil {
		hooks.Sweep = func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Sweeper{
		addChan:    make(chan Event, 64),
		removeChan: make(chan string, 64),
		ctx:        ctx,
		cancel:     cancel,
	}
	go s.run(hooks)
	return s
}

// Add enqueues a new sweep event.
func (s *Sweeper) Add(event Event) {
	select {
	case s.addChan <- event:
	case <-s.ctx.Done():
	}
}

// Remove cancels a pending run eviction by run id.
func (s *Sweeper) Remove(runID string) {
	select {
	case s.removeChan <- runID:
	case <-s.ctx.Done():
	}
}

// ScheduleCron validates expr and enqueues its next occurrence as a
// recurring full sweep.
func (s *Sweeper) ScheduleCron(expr string) error {
	next, err := nextCronOccurrence(expr, time.Now())
	if err != nil {
		return err
	}
	s.Add(Event{DueAt: next, CronExpr: expr})
	return nil
}

// Stop shuts the sweeper down. Pending events never fire.
func (s *Sweeper) Stop() {
	s.cancel()
}

// run is the core loop implementing the active-object pattern. It maintains
// a min-heap of events and sleeps with the max-sleep-cap. For recurring
// events the next cron occurrence is computed and re-added after firing.
func (s *Sweeper) run(hooks Hooks) {
	h := &sweepHeap{}
	heap.Init(h)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			// No events, block indefinitely on the channels.
			return nil
		}
		dur := time.Until((*h)[0].DueAt)
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-s.ctx.Done():
			return

		case event := <-s.addChan:
			heapPush(h, event)
			timerCh = resetTimer()

		case runID := <-s.removeChan:
			heapRemoveByRun(h, runID)
			timerCh = resetTimer()

		case <-timerCh:
			now := time.Now()
			for h.Len() > 0 && !(*h)[0].DueAt.After(now) {
				event := heapPop(h)
				if event.RunID != "" {
					hooks.EvictRun(event.RunID)
				} else {
					hooks.Sweep()
				}
				if event.CronExpr != "" {
					next, err := nextCronOccurrence(event.CronExpr, time.Now())
					if err == nil {
						heapPush(h, Event{
							RunID:    event.RunID,
							DueAt:    next,
							CronExpr: event.CronExpr,
						})
					}
				}
			}
			timerCh = resetTimer()
		}
	}
}

// nextCronOccurrence returns the next time the cron expression fires
// strictly after start.
func nextCronOccurrence(expr string, start time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, start, false)
}
