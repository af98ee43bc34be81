package server

import (
	"context"
	"log"
	"net/http"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/unveil/unveil/internal/htmldoc"
	"github.com/unveil/unveil/pkg/gatelib"
)

// Custom JSON-RPC error codes for gate operations.
const (
	codeRunNotFound   = jrpc2.Code(-32001)
	codeRunNotActive  = jrpc2.Code(-32002)
	codeInvalidParams = jrpc2.Code(-32602)
)

// RPCConfig holds configuration for the JSON-RPC endpoint.
type RPCConfig struct {
	Secret    string // Auth token (required -- empty means RPC disabled)
	ListenAll bool   // If true, bind to 0.0.0.0 instead of 127.0.0.1
	Version   string // Daemon version
	Commit    string // Git commit
	BuildType string // Build type
}

// RPCServer manages the JSON-RPC 2.0 bridge and method handlers. Gates
// started over RPC always scan their page statically; a shell that wants to
// feed a live DOM uses the socket protocol instead.
type RPCServer struct {
	bridge    jhttp.Bridge
	methods   handler.Map
	log       *log.Logger
	secret    string
	version   string
	commit    string
	buildType string
	manager   *gatelib.Manager
	journal   gatelib.Journal
	client    *http.Client
	pool      *Pool
	notifier  *RPCNotifier
}

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}

// StartParams is the input for gate.start.
type StartParams struct {
	URL                string          `json:"url"`
	MinSeconds         float64         `json:"minSeconds,omitempty"`
	TimeoutSeconds     float64         `json:"timeoutSeconds,omitempty"`
	QuietMs            int             `json:"quietMs,omitempty"`
	OncePerSession     bool            `json:"oncePerSession,omitempty"`
	SessionID          string          `json:"sessionId,omitempty"`
	ScopeSelector      string          `json:"scopeSelector,omitempty"`
	IncludeBackgrounds bool            `json:"includeBackgrounds,omitempty"`
	CustomSelector     string          `json:"customSelector,omitempty"`
	CustomEventName    string          `json:"customEventName,omitempty"`
	UnmatchedPolicy    string          `json:"unmatchedPolicy,omitempty"`
	BlendStrategy      string          `json:"blendStrategy,omitempty"`
	TimerWeight        float64         `json:"timerWeight,omitempty"`
	Headers            gatelib.Headers `json:"headers,omitempty"`
}

// StartResult is the response for gate.start.
type StartResult struct {
	RunID string `json:"runId"`
	URL   string `json:"url"`
	State string `json:"state"`
}

// RunIDParam is a common input with just a gate run id.
type RunIDParam struct {
	RunID string `json:"runId"`
}

// StatusResult is the response for gate.status.
type StatusResult struct {
	RunID     string  `json:"runId"`
	URL       string  `json:"url"`
	State     string  `json:"state"`
	Timer     float64 `json:"timer"`
	Readiness float64 `json:"readiness"`
	Combined  float64 `json:"combined"`
	TimedOut  bool    `json:"timedOut"`
	Memoized  bool    `json:"memoized"`
}

// ListParamsRPC is the input for gate.list.
type ListParamsRPC struct {
	Status string `json:"status,omitempty"` // "active", "complete", "all" (default)
}

// ListResult is the response for gate.list.
type ListResult struct {
	Runs []*StatusResult `json:"runs"`
}

// HistoryParamsRPC is the input for gate.history.
type HistoryParamsRPC struct {
	Limit int `json:"limit,omitempty"`
}

// HistoryResult is the response for gate.history.
type HistoryResult struct {
	Records []*gatelib.RunRecord `json:"records"`
}

// EmptyResult is a placeholder for methods that return no data.
type EmptyResult struct{}

// NewRPCServer creates a new RPCServer with method handlers and HTTP bridge.
func NewRPCServer(l *log.Logger, cfg *RPCConfig, m *gatelib.Manager, jrn gatelib.Journal, client *http.Client, pool *Pool, notifier *RPCNotifier) *RPCServer {
	if l == nil {
		l = log.Default()
	}
	rs := &RPCServer{
		log:       l,
		secret:    cfg.Secret,
		version:   cfg.Version,
		commit:    cfg.Commit,
		buildType: cfg.BuildType,
		manager:   m,
		journal:   jrn,
		client:    client,
		pool:      pool,
		notifier:  notifier,
	}

	rs.methods = handler.Map{
		"system.getVersion": handler.New(rs.systemGetVersion),
		"gate.start":        handler.New(rs.gateStart),
		"gate.cancel":       handler.New(rs.gateCancel),
		"gate.remove":       handler.New(rs.gateRemove),
		"gate.status":       handler.New(rs.gateStatus),
		"gate.list":         handler.New(rs.gateList),
		"gate.history":      handler.New(rs.gateHistory),
	}

	rs.bridge = jhttp.NewBridge(rs.methods, nil)
	return rs
}

func (rs *RPCServer) systemGetVersion(_ context.Context) (*VersionResult, error) {
	return &VersionResult{
		Version:   rs.version,
		Commit:    rs.commit,
		BuildType: rs.buildType,
	}, nil
}

// gateStart scans a page and starts a readiness gate over it.
func (rs *RPCServer) gateStart(ctx context.Context, p *StartParams) (*StartResult, error) {
	if p.URL == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: url"}
	}

	doc, err := htmldoc.Fetch(ctx, rs.log, p.URL, &htmldoc.Opts{
		Client:  rs.client,
		Headers: p.Headers,
	})
	if err != nil {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	}

	cfg := &gatelib.GateConfig{
		MinSeconds:         p.MinSeconds,
		TimeoutSeconds:     p.TimeoutSeconds,
		QuietMs:            p.QuietMs,
		OncePerSession:     p.OncePerSession,
		SessionID:          p.SessionID,
		ScopeSelector:      p.ScopeSelector,
		IncludeBackgrounds: p.IncludeBackgrounds,
		CustomSelector:     p.CustomSelector,
		CustomEventName:    p.CustomEventName,
		UnmatchedPolicy:    gatelib.UnmatchedPolicy(p.UnmatchedPolicy),
		BlendStrategy:      gatelib.BlendStrategy(p.BlendStrategy),
		TimerWeight:        p.TimerWeight,
	}
	g, err := gatelib.NewGate(rs.log, doc, cfg, &gatelib.GateOpts{
		Handlers: BroadcastHandlers(rs.pool, rs.notifier),
	})
	if err != nil {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	}

	run := rs.manager.AddRun(g)
	rs.pool.AddRun(g.RunID(), nil)
	go func() {
		if err := g.Run(context.Background()); err != nil && err != gatelib.ErrGateCanceled {
			rs.log.Println("Error running gate:", err.Error())
		}
	}()
	return &StartResult{
		RunID: run.ID,
		URL:   run.URL,
		State: g.State().String(),
	}, nil
}

// gateCancel stops an active gate run.
func (rs *RPCServer) gateCancel(_ context.Context, p *RunIDParam) (*EmptyResult, error) {
	if err := rs.manager.CancelRun(p.RunID); err != nil {
		switch err {
		case gatelib.ErrRunNotFound:
			return nil, &jrpc2.Error{Code: codeRunNotFound, Message: "run not found"}
		case gatelib.ErrRunNotActive:
			return nil, &jrpc2.Error{Code: codeRunNotActive, Message: "run not active"}
		default:
			return nil, &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
		}
	}
	return &EmptyResult{}, nil
}

// gateRemove drops a finished run from the manager.
func (rs *RPCServer) gateRemove(_ context.Context, p *RunIDParam) (*EmptyResult, error) {
	if err := rs.manager.FlushRun(p.RunID); err != nil {
		switch err {
		case gatelib.ErrRunNotFound:
			return nil, &jrpc2.Error{Code: codeRunNotFound, Message: "run not found"}
		case gatelib.ErrFlushRunActive:
			return nil, &jrpc2.Error{Code: codeRunNotActive, Message: "run still active"}
		default:
			return nil, &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
		}
	}
	return &EmptyResult{}, nil
}

// gateStatus reports the current progress of one run.
func (rs *RPCServer) gateStatus(_ context.Context, p *RunIDParam) (*StatusResult, error) {
	run, err := rs.manager.GetRun(p.RunID)
	if err != nil {
		return nil, &jrpc2.Error{Code: codeRunNotFound, Message: "run not found"}
	}
	return runStatus(run), nil
}

// gateList returns the managed runs, optionally filtered by state.
func (rs *RPCServer) gateList(_ context.Context, p *ListParamsRPC) (*ListResult, error) {
	var runs []*gatelib.Run

	switch p.Status {
	case "active":
		runs = rs.manager.GetActiveRuns()
	case "complete":
		runs = rs.manager.GetCompletedRuns()
	default:
		runs = rs.manager.GetRuns()
	}

	out := make([]*StatusResult, 0, len(runs))
	for _, run := range runs {
		out = append(out, runStatus(run))
	}
	return &ListResult{Runs: out}, nil
}

// gateHistory lists journaled run outcomes, newest first.
func (rs *RPCServer) gateHistory(_ context.Context, p *HistoryParamsRPC) (*HistoryResult, error) {
	if rs.journal == nil {
		return &HistoryResult{Records: []*gatelib.RunRecord{}}, nil
	}
	records, err := rs.journal.List(p.Limit)
	if err != nil {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: err.Error()}
	}
	return &HistoryResult{Records: records}, nil
}

// runStatus converts a managed run to its RPC view.
func runStatus(run *gatelib.Run) *StatusResult {
	snap := run.Snapshot()
	return &StatusResult{
		RunID:     snap.ID,
		URL:       snap.URL,
		State:     snap.StateName,
		Timer:     snap.Current.Timer,
		Readiness: snap.Current.Readiness,
		Combined:  snap.Current.Combined,
		TimedOut:  snap.TimedOut,
		Memoized:  snap.Memoized,
	}
}

// Close shuts down the jrpc2 bridge, releasing internal goroutines.
func (rs *RPCServer) Close() {
	rs.bridge.Close()
}
