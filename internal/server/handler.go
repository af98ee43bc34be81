package server

import (
	"encoding/json"

	"github.com/unveil/unveil/common"
)

// HandlerFunc is the signature of a socket request handler. It receives the
// requesting connection, the shared connection pool, and the raw message
// body, and returns the update type for the response, the response payload,
// and any error.
type HandlerFunc func(
	conn *SyncConn,
	pool *Pool,
	body json.RawMessage,
) (
	common.UpdateType,
	any,
	error,
)
