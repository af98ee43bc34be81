package api

import (
	"encoding/json"
	"errors"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/server"
)

var errNoEngine = errors.New("no heuristic engine loaded")

func (s *Api) loadHeuristicHandler(_ *server.SyncConn, _ *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.LoadHeuristicParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_LOAD_HEURISTIC, nil, err
	}
	if m.Name == "" {
		return common.UPDATE_LOAD_HEURISTIC, nil, errors.New("name is required")
	}
	if s.heur == nil {
		return common.UPDATE_LOAD_HEURISTIC, nil, errNoEngine
	}
	if err := s.heur.Load(m.Name, m.Source); err != nil {
		return common.UPDATE_LOAD_HEURISTIC, nil, err
	}
	return common.UPDATE_LOAD_HEURISTIC, &common.LoadHeuristicResponse{Name: m.Name}, nil
}

func (s *Api) listHeuristicsHandler(_ *server.SyncConn, _ *server.Pool, _ json.RawMessage) (common.UpdateType, any, error) {
	if s.heur == nil {
		return common.UPDATE_LIST_HEURISTIC, &common.ListHeuristicsResponse{}, nil
	}
	return common.UPDATE_LIST_HEURISTIC, &common.ListHeuristicsResponse{
		Names: s.heur.List(),
	}, nil
}

func (s *Api) dropHeuristicHandler(_ *server.SyncConn, _ *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.DropHeuristicParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_DROP_HEURISTIC, nil, err
	}
	if m.Name == "" {
		return common.UPDATE_DROP_HEURISTIC, nil, errors.New("name is required")
	}
	if s.heur == nil {
		return common.UPDATE_DROP_HEURISTIC, nil, errNoEngine
	}
	if err := s.heur.Remove(m.Name); err != nil {
		return common.UPDATE_DROP_HEURISTIC, nil, err
	}
	return common.UPDATE_DROP_HEURISTIC, &common.DropHeuristicResponse{Name: m.Name}, nil
}
