package unveilcli

import (
	"encoding/json"

	"github.com/unveil/unveil/common"
)

// Request is one framed method call sent to the daemon.
type Request struct {
	Method  common.UpdateType `json:"method"`
	Message any               `json:"message,omitempty"`
}

// Response is one framed daemon reply. Error is set when Ok is false.
type Response struct {
	Ok     bool    `json:"ok"`
	Error  string  `json:"error,omitempty"`
	Update *Update `json:"update,omitempty"`
}

// Update carries the typed payload of a daemon reply or broadcast.
type Update struct {
	Type    common.UpdateType `json:"type"`
	Message json.RawMessage   `json:"message"`
}
