// Command unveild runs the Unveil daemon without the CLI wrapper. It is
// the binary supervisors point at: no subcommands, no progress UI, just
// the gate service until the process is signaled.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/api"
	"github.com/unveil/unveil/internal/daemon"
	"github.com/unveil/unveil/internal/heuristic"
	"github.com/unveil/unveil/internal/journal"
	"github.com/unveil/unveil/internal/server"
	"github.com/unveil/unveil/internal/shellhost"
	"github.com/unveil/unveil/pkg/gatelib"
)

var (
	version   string
	commit    string
	buildType string = "unclassified"
)

func main() {
	if err := run(); err != nil {
		fmt.Println("unveild:", err.Error())
		os.Exit(1)
	}
}

// gateService is the assembled daemon the runner supervises: the serve
// loop plus everything it has to tear down afterwards.
type gateService struct {
	jrn     *journal.Store
	session *gatelib.FileSessionStore
	manager *gatelib.Manager
	api     *api.Api
	serv    *server.Server
}

func (g *gateService) Serve(ctx context.Context) error {
	return g.serv.Start(ctx)
}

func (g *gateService) Close() {
	for _, run := range g.manager.GetActiveRuns() {
		_ = g.manager.CancelRun(run.ID)
	}
	_ = g.api.Close()
	g.manager.Close()
	_ = g.session.Close()
	_ = g.jrn.Close()
}

func assemble(l *log.Logger, stop func()) (daemon.Instance, error) {
	jrn, err := journal.Open(journal.DefaultPath())
	if err != nil {
		return nil, err
	}

	fs := afero.NewOsFs()
	session, err := gatelib.NewFileSessionStore(l, fs, gatelib.SessionFilePath(), gatelib.DEF_SESSION_TTL)
	if err != nil {
		jrn.Close()
		return nil, err
	}

	heur, err := heuristic.NewEngine(l, fs, gatelib.HeuristicsDir)
	if err != nil {
		session.Close()
		jrn.Close()
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		session.Close()
		jrn.Close()
		return nil, err
	}
	client := &http.Client{Jar: jar}

	reg := shellhost.NewRegistry()
	m := gatelib.InitManager(l, jrn)

	s, err := api.NewApi(l, m, jrn, reg, heur, session, client, version, commit, buildType)
	if err != nil {
		m.Close()
		session.Close()
		jrn.Close()
		return nil, err
	}
	serv := server.NewServer(l, m, jrn, reg, client, common.DefaultTCPPort, &server.RPCConfig{
		Secret: server.ResolveRPCSecret(l),
	})
	s.RegisterHandlers(serv)
	s.SetShutdown(stop)

	return &gateService{
		jrn:     jrn,
		session: session,
		manager: m,
		api:     s,
		serv:    serv,
	}, nil
}

func run() error {
	l := log.Default()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner := daemon.New(nil, func(stop func()) (daemon.Instance, error) {
		return assemble(l, stop)
	})
	return runner.Start(ctx)
}
