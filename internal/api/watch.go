package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/htmldoc"
	"github.com/unveil/unveil/internal/server"
	"github.com/unveil/unveil/internal/shellhost"
	"github.com/unveil/unveil/pkg/gatelib"
)

// snapshotTimeout bounds how long a shell-hosted gate waits for the initial
// DOM snapshot before giving up the run.
const snapshotTimeout = 30 * time.Second

func (s *Api) watchHandler(sconn *server.SyncConn, pool *server.Pool, body json.RawMessage) (common.UpdateType, any, error) {
	var m common.WatchParams
	if err := json.Unmarshal(body, &m); err != nil {
		return common.UPDATE_WATCH, nil, err
	}
	if m.Url == "" {
		return common.UPDATE_WATCH, nil, errors.New("url is required")
	}

	var (
		doc  gatelib.Document
		sess *shellhost.Session
	)
	switch m.Source {
	case "", "page":
		var err error
		doc, err = htmldoc.Fetch(context.Background(), s.log, m.Url, &htmldoc.Opts{
			Client:  s.client,
			Headers: m.Headers,
		})
		if err != nil {
			return common.UPDATE_WATCH, nil, err
		}
	case "shell":
		sess = shellhost.NewSession(s.log, m.Url)
		doc = sess
	default:
		return common.UPDATE_WATCH, nil, fmt.Errorf("unknown source %q", m.Source)
	}

	opts := &gatelib.GateOpts{
		Handlers: server.BroadcastHandlers(pool, s.notifier),
		Session:  s.session,
	}
	if m.Heuristic != "" {
		if s.heur == nil {
			return common.UPDATE_WATCH, nil, errors.New("no heuristic engine loaded")
		}
		fn, err := s.heur.ReadyFn(m.Heuristic, m.CustomEventName)
		if err != nil {
			return common.UPDATE_WATCH, nil, err
		}
		opts.ReadyFn = fn
	}

	g, err := gatelib.NewGate(s.log, doc, m.GateConfig(), opts)
	if err != nil {
		return common.UPDATE_WATCH, nil, err
	}
	run := s.manager.AddRun(g)
	if sess != nil {
		s.registry.Add(g.RunID(), sess)
	}
	pool.AddRun(g.RunID(), sconn)

	go s.runGate(g, sess)

	cfg := g.Config()
	return common.UPDATE_WATCH, &common.WatchResponse{
		RunId:          run.ID,
		Url:            run.URL,
		State:          g.State().String(),
		MinSeconds:     cfg.MinSeconds,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, nil
}

// runGate drives one gate to its terminal state. Shell-hosted gates wait for
// the snapshot report first; a shell that never posts one forfeits the run.
func (s *Api) runGate(g *gatelib.Gate, sess *shellhost.Session) {
	id := g.RunID()
	if sess != nil {
		defer s.registry.Remove(id)
		select {
		case <-sess.SnapshotArrived():
		case <-time.After(snapshotTimeout):
			// Stop before Run: Run observes the stopped flag, walks the
			// cancel path and leaves the run terminal, not stuck idle.
			s.log.Printf("run %s: no shell snapshot within %s, canceling\n", id, snapshotTimeout)
			g.Stop()
		}
	}
	if err := g.Run(context.Background()); err != nil && err != gatelib.ErrGateCanceled {
		s.log.Printf("run %s: %s\n", id, err.Error())
	}
	if s.retire != nil {
		s.retire(id)
	}
}
