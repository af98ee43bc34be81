package api

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/server"
)

// stopDaemonHandler acknowledges first, then triggers shutdown shortly
// after so the response still reaches the client over the closing socket.
func (s *Api) stopDaemonHandler(_ *server.SyncConn, _ *server.Pool, _ json.RawMessage) (common.UpdateType, any, error) {
	if s.shutdown == nil {
		return common.UPDATE_STOP_DAEMON, nil, errors.New("daemon does not support remote shutdown")
	}
	time.AfterFunc(100*time.Millisecond, s.shutdown)
	return common.UPDATE_STOP_DAEMON, &common.VersionResponse{DaemonVersion: s.version}, nil
}
