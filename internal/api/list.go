package api

import (
	"encoding/json"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/server"
	"github.com/unveil/unveil/pkg/gatelib"
)

func (s *Api) listHandler(_ *server.SyncConn, _ *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.ListParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_LIST, nil, err
	}

	var runs []*gatelib.Run
	switch {
	case m.ShowCompleted && m.ShowPending:
		runs = s.manager.GetRuns()
	case m.ShowCompleted:
		runs = s.manager.GetCompletedRuns()
	default:
		runs = s.manager.GetActiveRuns()
	}

	out := make([]gatelib.Run, 0, len(runs))
	for _, run := range runs {
		out = append(out, run.Snapshot())
	}
	return common.UPDATE_LIST, &common.ListResponse{Runs: out}, nil
}
