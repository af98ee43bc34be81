package api

import (
	"encoding/json"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/server"
)

// flushHandler drops finished runs. A run id flushes that one run; no id
// flushes every terminal run plus the journal rows and session flags.
func (s *Api) flushHandler(_ *server.SyncConn, _ *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.FlushParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_FLUSH, nil, err
	}

	if m.RunId != "" {
		if err := s.manager.FlushRun(m.RunId); err != nil {
			return common.UPDATE_FLUSH, nil, err
		}
		return common.UPDATE_FLUSH, &common.FlushResponse{Flushed: 1}, nil
	}

	n := s.manager.FlushCompleted()
	if s.journal != nil {
		if err := s.journal.Flush(); err != nil {
			s.log.Println("journal flush failed:", err.Error())
		}
	}
	if s.session != nil {
		if err := s.session.Flush(); err != nil {
			s.log.Println("session flush failed:", err.Error())
		}
	}
	return common.UPDATE_FLUSH, &common.FlushResponse{Flushed: n}, nil
}
