package unveilcli

import (
	"encoding/json"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/pkg/gatelib"
)

func invoke[T any](c *Client, method common.UpdateType, message any) (*T, error) {
	resp, err := c.invoke(method, message)
	if err != nil {
		return nil, err
	}
	var d T
	return &d, json.Unmarshal(resp, &d)
}

// WatchOpts tunes a gate run started by Watch. The zero value uses the
// daemon's defaults for everything.
type WatchOpts struct {
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

// Watch starts a gate run over the given URL and returns its run id. Stream
// progress by registering a GatingHandler and calling Listen.
func (c *Client) Watch(url string, opts *WatchOpts) (*common.WatchResponse, error) {
	if opts == nil {
		opts = &WatchOpts{}
	}
	return invoke[common.WatchResponse](c, common.UPDATE_WATCH, &common.WatchParams{
		Url:                url,
		Source:             opts.Source,
		MinSeconds:         opts.MinSeconds,
		TimeoutSeconds:     opts.TimeoutSeconds,
		QuietMs:            opts.QuietMs,
		OncePerSession:     opts.OncePerSession,
		SessionId:          opts.SessionId,
		ScopeSelector:      opts.ScopeSelector,
		IncludeBackgrounds: opts.IncludeBackgrounds,
		CustomSelector:     opts.CustomSelector,
		CustomEventName:    opts.CustomEventName,
		UnmatchedPolicy:    opts.UnmatchedPolicy,
		Heuristic:          opts.Heuristic,
		BlendStrategy:      opts.BlendStrategy,
		TimerWeight:        opts.TimerWeight,
		Headers:            opts.Headers,
	})
}

// Attach subscribes this connection to an already running gate.
func (c *Client) Attach(runID string) (*common.AttachResponse, error) {
	return invoke[common.AttachResponse](c, common.UPDATE_ATTACH, &common.AttachParams{RunId: runID})
}

// Report feeds live document state from a shell into a running gate.
func (c *Client) Report(params *common.ReportParams) (*common.ReportResponse, error) {
	return invoke[common.ReportResponse](c, common.UPDATE_REPORT, params)
}

// Cancel stops a running gate before it reveals.
func (c *Client) Cancel(runID string) (*common.CancelResponse, error) {
	return invoke[common.CancelResponse](c, common.UPDATE_CANCEL, &common.InputRunId{RunId: runID})
}

// Status returns a snapshot of one run.
func (c *Client) Status(runID string) (*common.StatusResponse, error) {
	return invoke[common.StatusResponse](c, common.UPDATE_STATUS, &common.InputRunId{RunId: runID})
}

type ListOpts common.ListParams

// List returns run snapshots. A nil opts lists active runs only.
func (c *Client) List(opts *ListOpts) (*common.ListResponse, error) {
	if opts == nil {
		opts = &ListOpts{ShowPending: true}
	}
	return invoke[common.ListResponse](c, common.UPDATE_LIST, (*common.ListParams)(opts))
}

// History returns journaled records of finished runs, newest first.
func (c *Client) History(limit int) (*common.HistoryResponse, error) {
	return invoke[common.HistoryResponse](c, common.UPDATE_HISTORY, &common.HistoryParams{Limit: limit})
}

// Flush drops a finished run, or every finished run when runID is empty.
func (c *Client) Flush(runID string) (bool, error) {
	_, err := c.invoke(common.UPDATE_FLUSH, &common.FlushParams{RunId: runID})
	return err == nil, err
}

// LoadHeuristic installs a named readiness script on the daemon.
func (c *Client) LoadHeuristic(name, source string) (*common.LoadHeuristicResponse, error) {
	return invoke[common.LoadHeuristicResponse](c, common.UPDATE_LOAD_HEURISTIC, &common.LoadHeuristicParams{
		Name:   name,
		Source: source,
	})
}

// ListHeuristics names the readiness scripts loaded on the daemon.
func (c *Client) ListHeuristics() (*common.ListHeuristicsResponse, error) {
	return invoke[common.ListHeuristicsResponse](c, common.UPDATE_LIST_HEURISTIC, nil)
}

// DropHeuristic removes a named readiness script from the daemon.
func (c *Client) DropHeuristic(name string) (*common.DropHeuristicResponse, error) {
	return invoke[common.DropHeuristicResponse](c, common.UPDATE_DROP_HEURISTIC, &common.DropHeuristicParams{Name: name})
}

// GetDaemonVersion asks the daemon for its build version.
func (c *Client) GetDaemonVersion() (*common.VersionResponse, error) {
	return invoke[common.VersionResponse](c, common.UPDATE_VERSION, &common.VersionParams{})
}

// StopDaemon asks the daemon to shut down after acknowledging.
func (c *Client) StopDaemon() error {
	_, err := c.invoke(common.UPDATE_STOP_DAEMON, nil)
	return err
}
