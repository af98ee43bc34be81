package gatelib

import (
	"log"
	"sync"
	"time"
)

// RunRecord is the journaled outcome of a finished run.
type RunRecord struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	SessionID   string    `json:"session_id,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinalizedAt time.Time `json:"finalized_at"`
	Outcome     string    `json:"outcome"`
	TimedOut    bool      `json:"timed_out"`
	Memoized    bool      `json:"memoized"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	Combined    float64   `json:"combined"`
}

// Outcomes recorded in the journal.
const (
	OutcomeRevealed = "revealed"
	OutcomeCanceled = "canceled"
)

// Journal records finished runs durably. Implementations must be safe for
// concurrent use.
type Journal interface {
	Record(r *RunRecord) error
	List(limit int) ([]*RunRecord, error)
	Flush() error
	Close() error
}

// Run is a managed gate run. Exported fields are the wire view; the manager
// keeps them current from the gate's own handlers.
type Run struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	SessionID string    `json:"session_id,omitempty"`
	StartedAt time.Time `json:"started_at"`

	State     RunState `json:"-"`
	StateName string   `json:"state"`
	Current   Progress `json:"progress"`
	TimedOut  bool     `json:"timed_out"`
	Memoized  bool     `json:"memoized"`

	FinalizedAt time.Time `json:"finalized_at,omitempty"`

	mu   *sync.RWMutex
	gate *Gate
}

// Gate returns the underlying gate.
func (r *Run) Gate() *Gate {
	return r.gate
}

// Snapshot returns a copy of the run's wire view, safe to serialize while
// the run keeps moving.
func (r *Run) Snapshot() Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := *r
	cp.mu = nil
	cp.gate = nil
	return cp
}

func (r *Run) setState(s RunState) {
	r.mu.Lock()
	r.State = s
	r.StateName = s.String()
	r.mu.Unlock()
}

func (r *Run) setProgress(p Progress) {
	r.mu.Lock()
	r.Current = p
	r.mu.Unlock()
}

// Manager owns the live runs of a daemon and journals their outcomes.
type Manager struct {
	runs    map[string]*Run
	mu      *sync.RWMutex
	journal Journal
	l       *log.Logger
}

// InitManager creates a new manager instance. journal may be nil, in which
// case outcomes are not recorded.
func InitManager(l *log.Logger, journal Journal) *Manager {
	if l == nil {
		l = log.Default()
	}
	return &Manager{
		runs:    make(map[string]*Run),
		mu:      new(sync.RWMutex),
		journal: journal,
		l:       l,
	}
}

// AddRun registers a gate with the manager. The gate's handlers are patched
// so the managed view and the journal stay current; the caller's own
// handlers keep firing unchanged. Must be called before Gate.Run.
func (m *Manager) AddRun(g *Gate) *Run {
	run := &Run{
		ID:        g.RunID(),
		URL:       g.URL(),
		SessionID: g.Config().SessionID,
		StartedAt: time.Now(),
		State:     g.State(),
		StateName: g.State().String(),
		mu:        m.mu,
		gate:      g,
	}
	m.patchHandlers(g, run)
	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()
	return run
}

// patchHandlers patches the handlers of the gate to update the run.
func (m *Manager) patchHandlers(g *Gate, run *Run) {
	oPH := g.handlers.ProgressHandler
	g.handlers.ProgressHandler = func(id string, p Progress) {
		run.setProgress(p)
		oPH(id, p)
	}
	oSH := g.handlers.StateHandler
	g.handlers.StateHandler = func(id string, s RunState) {
		run.setState(s)
		oSH(id, s)
	}
	oRH := g.handlers.RevealHandler
	g.handlers.RevealHandler = func(id string, ev *RevealEvent) {
		run.mu.Lock()
		run.TimedOut = ev.TimedOut
		run.Memoized = ev.Memoized
		run.FinalizedAt = time.Now()
		run.mu.Unlock()
		m.record(run, OutcomeRevealed, ev)
		oRH(id, ev)
	}
	oCH := g.handlers.CancelHandler
	g.handlers.CancelHandler = func(id string) {
		run.mu.Lock()
		run.FinalizedAt = time.Now()
		run.mu.Unlock()
		m.record(run, OutcomeCanceled, nil)
		oCH(id)
	}
}

func (m *Manager) record(run *Run, outcome string, ev *RevealEvent) {
	if m.journal == nil {
		return
	}
	snap := run.Snapshot()
	rec := &RunRecord{
		ID:          snap.ID,
		URL:         snap.URL,
		SessionID:   snap.SessionID,
		StartedAt:   snap.StartedAt,
		FinalizedAt: snap.FinalizedAt,
		Outcome:     outcome,
		TimedOut:    snap.TimedOut,
		Memoized:    snap.Memoized,
		Combined:    snap.Current.Combined,
	}
	if ev != nil {
		rec.ElapsedMs = ev.Elapsed.Milliseconds()
	} else {
		rec.ElapsedMs = time.Since(snap.StartedAt).Milliseconds()
	}
	if err := m.journal.Record(rec); err != nil {
		m.l.Printf("manager: journal record failed: %s\n", err.Error())
	}
}

// GetRun returns the run with the given id.
func (m *Manager) GetRun(id string) (*Run, error) {
	m.mu.RLock()
	run := m.runs[id]
	m.mu.RUnlock()
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// GetRuns returns all managed runs in chronological start order.
func (m *Manager) GetRuns() []*Run {
	m.mu.RLock()
	runs := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, run)
	}
	m.mu.RUnlock()
	SortRuns(runs)
	return runs
}

// GetActiveRuns returns the runs that have not reached a terminal state.
func (m *Manager) GetActiveRuns() []*Run {
	var active []*Run
	for _, run := range m.GetRuns() {
		if run.gate.State().Terminal() {
			continue
		}
		active = append(active, run)
	}
	return active
}

// GetCompletedRuns returns the runs that reached a terminal state.
func (m *Manager) GetCompletedRuns() []*Run {
	var done []*Run
	for _, run := range m.GetRuns() {
		if !run.gate.State().Terminal() {
			continue
		}
		done = append(done, run)
	}
	return done
}

// CancelRun stops an active run.
func (m *Manager) CancelRun(id string) error {
	run, err := m.GetRun(id)
	if err != nil {
		return err
	}
	if run.gate.State().Terminal() {
		return ErrRunNotActive
	}
	run.gate.Stop()
	return nil
}

// FlushRun drops a terminal run from the manager. Active runs cannot be
// flushed.
func (m *Manager) FlushRun(id string) error {
	run, err := m.GetRun(id)
	if err != nil {
		return err
	}
	if !run.gate.State().Terminal() {
		return ErrFlushRunActive
	}
	m.mu.Lock()
	delete(m.runs, id)
	m.mu.Unlock()
	return nil
}

// FlushCompleted drops every terminal run and reports how many went.
func (m *Manager) FlushCompleted() int {
	var n int
	for _, run := range m.GetCompletedRuns() {
		m.mu.Lock()
		delete(m.runs, run.ID)
		m.mu.Unlock()
		n++
	}
	return n
}

// Close stops every active run. The journal, if any, is left open for the
// owner to close.
func (m *Manager) Close() {
	for _, run := range m.GetActiveRuns() {
		run.gate.Stop()
	}
}
