package common

import "time"

type UpdateType string

const (
	UPDATE_WATCH          UpdateType = "watch"
	UPDATE_GATING         UpdateType = "gating"
	UPDATE_ATTACH         UpdateType = "attach"
	UPDATE_REPORT         UpdateType = "report"
	UPDATE_CANCEL         UpdateType = "cancel"
	UPDATE_FLUSH          UpdateType = "flush"
	UPDATE_LIST           UpdateType = "list"
	UPDATE_STATUS         UpdateType = "status"
	UPDATE_HISTORY        UpdateType = "history"
	UPDATE_LOAD_HEURISTIC UpdateType = "load_heuristic"
	UPDATE_LIST_HEURISTIC UpdateType = "list_heuristics"
	UPDATE_DROP_HEURISTIC UpdateType = "drop_heuristic"
	UPDATE_VERSION        UpdateType = "version"
	UPDATE_STOP_DAEMON    UpdateType = "stop_daemon"
)

// TCPHost is the loopback host used for TCP fallback transport.
const TCPHost = "127.0.0.1"

// DefaultTCPPort is the fallback TCP port for client-daemon traffic when no
// unix socket or named pipe is available.
const DefaultTCPPort = 4362

// MaxMessageSize caps one length-prefixed frame. Snapshots of large pages
// stay well under this; anything bigger is a protocol error.
const MaxMessageSize = 4 << 20

// DefaultDialTimeout bounds one transport dial attempt.
const DefaultDialTimeout = 2 * time.Second

type GatingAction string

const (
	AttachProgress GatingAction = "attach_progress"
	GateProgress   GatingAction = "gate_progress"
	GateState      GatingAction = "gate_state"
	GateSettled    GatingAction = "gate_settled"
	GateRevealed   GatingAction = "gate_revealed"
	GateCanceled   GatingAction = "gate_canceled"
)

// ReportKind tags one shell report payload.
type ReportKind string

const (
	REPORT_SNAPSHOT ReportKind = "snapshot"
	REPORT_MUTATION ReportKind = "mutation"
	REPORT_ASSET    ReportKind = "asset_done"
	REPORT_EVENT    ReportKind = "event"
	REPORT_FONTS    ReportKind = "fonts_ready"
)
