package unveilcli

import (
	"encoding/json"

	"github.com/unveil/unveil/common"
)

// Handler defines the interface for processing daemon updates.
// Implementations receive raw JSON messages and are responsible for
// unmarshaling and processing them appropriately.
type Handler interface {
	Handle(json.RawMessage) error
}

// NewGatingHandler creates a handler for streamed gate updates. The action
// parameter filters updates to only those matching the given gating action;
// pass an empty string to receive all actions. The callback is invoked for
// each matching update.
func NewGatingHandler(action common.GatingAction, callback func(*common.GatingResponse) error) *GatingHandler {
	return &GatingHandler{
		Action:   action,
		Callback: callback,
	}
}

// GatingHandler processes gate progress updates from the daemon. It filters
// updates by action and invokes a callback for matching ones.
type GatingHandler struct {
	Action   common.GatingAction
	Callback func(*common.GatingResponse) error
}

// Handle unmarshals one gating update, applies the action filter and invokes
// the callback when it matches.
func (h *GatingHandler) Handle(m json.RawMessage) error {
	var v common.GatingResponse
	err := json.Unmarshal(m, &v)
	if err != nil {
		return err
	}
	if h.Action != "" && v.Action != h.Action {
		return nil
	}
	return h.Callback(&v)
}
