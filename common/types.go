package common

import "github.com/unveil/unveil/pkg/gatelib"

type InputRunId struct {
	RunId string `json:"run_id"`
}

// WatchParams starts a gate run. Source selects the document host: "page"
// scans the URL over HTTP, "shell" opens a report-fed live session.
type WatchParams struct {
	Url                string          `json:"url"`
	Source             string          `json:"source,omitempty"`
	MinSeconds         float64         `json:"min_seconds,omitempty"`
	TimeoutSeconds     float64         `json:"timeout_seconds,omitempty"`
	QuietMs            int             `json:"quiet_ms,omitempty"`
	OncePerSession     bool            `json:"once_per_session,omitempty"`
	SessionId          string          `json:"session_id,omitempty"`
	ScopeSelector      string          `json:"scope_selector,omitempty"`
	IncludeBackgrounds bool            `json:"include_backgrounds,omitempty"`
	CustomSelector     string          `json:"custom_selector,omitempty"`
	CustomEventName    string          `json:"custom_event_name,omitempty"`
	UnmatchedPolicy    string          `json:"unmatched_policy,omitempty"`
	Heuristic          string          `json:"heuristic,omitempty"`
	BlendStrategy      string          `json:"blend_strategy,omitempty"`
	TimerWeight        float64         `json:"timer_weight,omitempty"`
	Headers            gatelib.Headers `json:"headers,omitempty"`
}

// GateConfig converts the wire params into an engine config.
func (p *WatchParams) GateConfig() *gatelib.GateConfig {
	return &gatelib.GateConfig{
		MinSeconds:         p.MinSeconds,
		TimeoutSeconds:     p.TimeoutSeconds,
		QuietMs:            p.QuietMs,
		OncePerSession:     p.OncePerSession,
		SessionID:          p.SessionId,
		ScopeSelector:      p.ScopeSelector,
		IncludeBackgrounds: p.IncludeBackgrounds,
		CustomSelector:     p.CustomSelector,
		CustomEventName:    p.CustomEventName,
		UnmatchedPolicy:    gatelib.UnmatchedPolicy(p.UnmatchedPolicy),
		Heuristic:          p.Heuristic,
		BlendStrategy:      gatelib.BlendStrategy(p.BlendStrategy),
		TimerWeight:        p.TimerWeight,
	}
}

type WatchResponse struct {
	RunId          string  `json:"run_id"`
	Url            string  `json:"url"`
	State          string  `json:"state"`
	MinSeconds     float64 `json:"min_seconds"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
	Memoized       bool    `json:"memoized,omitempty"`
}

// GatingResponse is the streamed update for a running gate. Progress is set
// for GateProgress, Reveal for GateRevealed; the other actions carry only
// the action itself.
type GatingResponse struct {
	RunId    string            `json:"run_id"`
	Action   GatingAction      `json:"action"`
	State    string            `json:"state,omitempty"`
	Progress *gatelib.Progress `json:"progress,omitempty"`
	Reveal   *RevealFacts      `json:"reveal,omitempty"`
}

// RevealFacts is the wire form of a reveal event.
type RevealFacts struct {
	Url       string `json:"url"`
	TimedOut  bool   `json:"timed_out,omitempty"`
	Memoized  bool   `json:"memoized,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type AttachParams struct {
	RunId string `json:"run_id"`
}

type AttachResponse struct {
	RunId    string           `json:"run_id"`
	Url      string           `json:"url"`
	State    string           `json:"state"`
	Progress gatelib.Progress `json:"progress"`
}

// ReportParams feeds live document state from a shell into a running gate.
type ReportParams struct {
	RunId    string            `json:"run_id"`
	Kind     ReportKind        `json:"kind"`
	Snapshot *ShellSnapshot    `json:"snapshot,omitempty"`
	Mutation *gatelib.Mutation `json:"mutation,omitempty"`
	Asset    *AssetDone        `json:"asset,omitempty"`
	Event    *ElementEvent     `json:"event,omitempty"`
}

// ShellSnapshot is the initial DOM state a shell posts before tracking
// starts.
type ShellSnapshot struct {
	Images      []gatelib.ImageRef   `json:"images,omitempty"`
	Backgrounds []string             `json:"backgrounds,omitempty"`
	Elements    []gatelib.ElementRef `json:"elements,omitempty"`
	HasFonts    bool                 `json:"has_fonts,omitempty"`
}

// AssetDone reports one awaited asset finished loading in the shell.
type AssetDone struct {
	Kind string `json:"kind"`
	Id   string `json:"id,omitempty"`
	Url  string `json:"url,omitempty"`
	Ok   bool   `json:"ok"`
}

// ElementEvent reports one element event observed in the shell.
type ElementEvent struct {
	ElementId string `json:"element_id"`
	Event     string `json:"event"`
}

type ReportResponse struct {
	RunId string     `json:"run_id"`
	Kind  ReportKind `json:"kind"`
}

type CancelResponse struct {
	RunId string `json:"run_id"`
	State string `json:"state"`
}

type FlushParams struct {
	RunId string `json:"run_id,omitempty"`
}

type FlushResponse struct {
	Flushed int `json:"flushed"`
}

type ListParams struct {
	ShowCompleted bool `json:"show_completed"`
	ShowPending   bool `json:"show_pending"`
}

type ListResponse struct {
	Runs []gatelib.Run `json:"runs"`
}

type StatusResponse struct {
	Run gatelib.Run `json:"run"`
}

type HistoryParams struct {
	Limit int `json:"limit,omitempty"`
}

type HistoryResponse struct {
	Records []*gatelib.RunRecord `json:"records"`
}

type LoadHeuristicParams struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type LoadHeuristicResponse struct {
	Name string `json:"name"`
}

type ListHeuristicsResponse struct {
	Names []string `json:"names"`
}

type DropHeuristicParams struct {
	Name string `json:"name"`
}

type DropHeuristicResponse struct {
	Name string `json:"name"`
}

type VersionParams struct {
	ClientVersion string `json:"client_version"`
}

type VersionResponse struct {
	DaemonVersion string `json:"daemon_version"`
}
