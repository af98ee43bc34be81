package api

import (
	"encoding/json"
	"errors"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/server"
)

func (s *Api) attachHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.AttachParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_ATTACH, nil, err
	}
	if m.RunId == "" {
		return common.UPDATE_ATTACH, nil, errors.New("run_id is required")
	}
	run, err := s.manager.GetRun(m.RunId)
	if err != nil {
		return common.UPDATE_ATTACH, nil, errors.New("run not found")
	}
	if !pool.HasRun(m.RunId) {
		return common.UPDATE_ATTACH, nil, errors.New("run not streaming")
	}
	pool.AddConnection(m.RunId, sconn)
	snap := run.Snapshot()
	return common.UPDATE_ATTACH, &common.AttachResponse{
		RunId:    snap.ID,
		Url:      snap.URL,
		State:    snap.StateName,
		Progress: snap.Current,
	}, nil
}
