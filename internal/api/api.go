// Package api wires the daemon's socket operations to the gate engine. One
// file per operation; handlers share the Api struct built at daemon start.
package api

import (
	"log"
	"net/http"

	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/heuristic"
	"github.com/unveil/unveil/internal/server"
	"github.com/unveil/unveil/internal/shellhost"
	"github.com/unveil/unveil/pkg/gatelib"
)

type Api struct {
	log      *log.Logger
	manager  *gatelib.Manager
	journal  gatelib.Journal
	registry *shellhost.Registry
	heur     *heuristic.Engine
	session  gatelib.SessionStore
	client   *http.Client
	notifier *server.RPCNotifier

	version   string
	commit    string
	buildType string

	// shutdown stops the daemon; installed by the daemon runner so the
	// stop_daemon operation can reach it.
	shutdown func()
	// retire is called with a run id once its gate goes terminal, letting
	// the daemon schedule retention for the finished run.
	retire func(runID string)
}

func NewApi(l *log.Logger, m *gatelib.Manager, jrn gatelib.Journal, reg *shellhost.Registry, heur *heuristic.Engine, session gatelib.SessionStore, client *http.Client, version, commit, buildType string) (*Api, error) {
	if l == nil {
		l = log.Default()
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Api{
		log:       l,
		manager:   m,
		journal:   jrn,
		registry:  reg,
		heur:      heur,
		session:   session,
		client:    client,
		notifier:  server.NewRPCNotifier(l),
		version:   version,
		commit:    commit,
		buildType: buildType,
	}, nil
}

// SetShutdown installs the callback invoked by the stop_daemon operation.
func (s *Api) SetShutdown(fn func()) {
	s.shutdown = fn
}

// SetRetire installs the callback invoked when a run goes terminal.
func (s *Api) SetRetire(fn func(runID string)) {
	s.retire = fn
}

func (s *Api) RegisterHandlers(serv *server.Server) {
	s.notifier = serv.Notifier()

	// gate API methods
	serv.RegisterHandler(common.UPDATE_WATCH, s.watchHandler)
	serv.RegisterHandler(common.UPDATE_ATTACH, s.attachHandler)
	serv.RegisterHandler(common.UPDATE_REPORT, s.reportHandler)
	serv.RegisterHandler(common.UPDATE_CANCEL, s.cancelHandler)
	serv.RegisterHandler(common.UPDATE_LIST, s.listHandler)
	serv.RegisterHandler(common.UPDATE_STATUS, s.statusHandler)
	serv.RegisterHandler(common.UPDATE_HISTORY, s.historyHandler)
	serv.RegisterHandler(common.UPDATE_FLUSH, s.flushHandler)

	// heuristic API methods
	serv.RegisterHandler(common.UPDATE_LOAD_HEURISTIC, s.loadHeuristicHandler)
	serv.RegisterHandler(common.UPDATE_LIST_HEURISTIC, s.listHeuristicsHandler)
	serv.RegisterHandler(common.UPDATE_DROP_HEURISTIC, s.dropHeuristicHandler)

	// daemon API methods
	serv.RegisterHandler(common.UPDATE_VERSION, s.versionHandler)
	serv.RegisterHandler(common.UPDATE_STOP_DAEMON, s.stopDaemonHandler)
}

func (s *Api) Close() error {
	s.manager.Close()
	s.registry.CloseAll()
	return nil
}
