package api

import (
	"encoding/json"
	"errors"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/server"
)

func (s *Api) statusHandler(_ *server.SyncConn, _ *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.InputRunId
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_STATUS, nil, err
	}
	if m.RunId == "" {
		return common.UPDATE_STATUS, nil, errors.New("run_id is required")
	}
	run, err := s.manager.GetRun(m.RunId)
	if err != nil {
		return common.UPDATE_STATUS, nil, errors.New("run not found")
	}
	snap := run.Snapshot()
	snap.Current = run.Gate().Progress()
	return common.UPDATE_STATUS, &common.StatusResponse{Run: snap}, nil
}
