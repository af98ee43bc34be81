package api

import (
	"encoding/json"
	"errors"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/server"
)

func (s *Api) cancelHandler(_ *server.SyncConn, _ *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.InputRunId
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_CANCEL, nil, err
	}
	if m.RunId == "" {
		return common.UPDATE_CANCEL, nil, errors.New("run_id is required")
	}
	run, err := s.manager.GetRun(m.RunId)
	if err != nil {
		return common.UPDATE_CANCEL, nil, errors.New("run not found")
	}
	if err := s.manager.CancelRun(m.RunId); err != nil {
		return common.UPDATE_CANCEL, nil, err
	}
	return common.UPDATE_CANCEL, &common.CancelResponse{
		RunId: m.RunId,
		State: run.Gate().State().String(),
	}, nil
}
