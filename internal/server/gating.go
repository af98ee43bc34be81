package server

import (
	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/pkg/gatelib"
)

// BroadcastHandlers builds the gate callbacks that stream run updates to
// every attached socket connection and push them to WebSocket RPC clients.
// Terminal events drop the run from the pool; connections stay open for the
// clients that own them.
func BroadcastHandlers(pool *Pool, notifier *RPCNotifier) *gatelib.Handlers {
	return &gatelib.Handlers{
		ProgressHandler: func(id string, p gatelib.Progress) {
			_ = pool.Broadcast(id, MakeResult(common.UPDATE_GATING, &common.GatingResponse{
				RunId:    id,
				Action:   common.GateProgress,
				Progress: &p,
			}))
			notifier.Broadcast("gate.progress", &GateProgressNotification{
				RunID:     id,
				Timer:     p.Timer,
				Readiness: p.Readiness,
				Combined:  p.Combined,
				State:     p.StateName,
			})
		},
		StateHandler: func(id string, st gatelib.RunState) {
			_ = pool.Broadcast(id, MakeResult(common.UPDATE_GATING, &common.GatingResponse{
				RunId:  id,
				Action: common.GateState,
				State:  st.String(),
			}))
		},
		SettleHandler: func(id string) {
			_ = pool.Broadcast(id, MakeResult(common.UPDATE_GATING, &common.GatingResponse{
				RunId:  id,
				Action: common.GateSettled,
			}))
		},
		RevealHandler: func(id string, ev *gatelib.RevealEvent) {
			_ = pool.Broadcast(id, MakeResult(common.UPDATE_GATING, &common.GatingResponse{
				RunId:  id,
				Action: common.GateRevealed,
				Reveal: &common.RevealFacts{
					Url:       ev.URL,
					TimedOut:  ev.TimedOut,
					Memoized:  ev.Memoized,
					ElapsedMs: ev.Elapsed.Milliseconds(),
				},
			}))
			notifier.Broadcast("gate.revealed", &GateRevealedNotification{
				RunID:     id,
				URL:       ev.URL,
				TimedOut:  ev.TimedOut,
				Memoized:  ev.Memoized,
				ElapsedMs: ev.Elapsed.Milliseconds(),
			})
			pool.DropRun(id)
		},
		CancelHandler: func(id string) {
			_ = pool.Broadcast(id, MakeResult(common.UPDATE_GATING, &common.GatingResponse{
				RunId:  id,
				Action: common.GateCanceled,
			}))
			notifier.Broadcast("gate.canceled", &GateCanceledNotification{RunID: id})
			pool.DropRun(id)
		},
		ErrorHandler: func(id string, err error) {
			pool.WriteError(id, ErrorTypeWarning, err.Error())
			notifier.Broadcast("gate.error", &GateErrorNotification{RunID: id, Error: err.Error()})
		},
	}
}
