package api

import (
	"encoding/json"
	"errors"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/server"
)

func (s *Api) reportHandler(_ *server.SyncConn, _ *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.ReportParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_REPORT, nil, err
	}
	if m.RunId == "" {
		return common.UPDATE_REPORT, nil, errors.New("run_id is required")
	}
	sess, ok := s.registry.Get(m.RunId)
	if !ok {
		return common.UPDATE_REPORT, nil, errors.New("no shell session for run")
	}
	if err := sess.Apply(&m); err != nil {
		return common.UPDATE_REPORT, nil, err
	}
	return common.UPDATE_REPORT, &common.ReportResponse{
		RunId: m.RunId,
		Kind:  m.Kind,
	}, nil
}
