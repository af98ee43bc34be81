package api

import (
	"encoding/json"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/server"
	"github.com/unveil/unveil/pkg/gatelib"
)

func (s *Api) historyHandler(_ *server.SyncConn, _ *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.HistoryParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_HISTORY, nil, err
	}
	if s.journal == nil {
		return common.UPDATE_HISTORY, &common.HistoryResponse{Records: []*gatelib.RunRecord{}}, nil
	}
	records, err := s.journal.List(m.Limit)
	if err != nil {
		return common.UPDATE_HISTORY, nil, err
	}
	return common.UPDATE_HISTORY, &common.HistoryResponse{Records: records}, nil
}
