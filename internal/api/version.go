package api

import (
	"encoding/json"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/server"
)

func (s *Api) versionHandler(_ *server.SyncConn, _ *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.VersionParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_VERSION, nil, err
	}
	if m.ClientVersion != "" && m.ClientVersion != s.version {
		s.log.Printf("client version %s differs from daemon version %s\n", m.ClientVersion, s.version)
	}
	return common.UPDATE_VERSION, &common.VersionResponse{DaemonVersion: s.version}, nil
}
