package cmd

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/spf13/afero"
	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/internal/api"
	"github.com/unveil/unveil/internal/heuristic"
	"github.com/unveil/unveil/internal/journal"
	"github.com/unveil/unveil/internal/server"
	"github.com/unveil/unveil/internal/shellhost"
	"github.com/unveil/unveil/internal/sweeper"
	"github.com/unveil/unveil/pkg/gatelib"
	"github.com/unveil/unveil/pkg/logger"
)

// runRetention is how long a finalized run stays listable before the
// sweeper evicts it from the live manager view. The journal keeps the
// record either way.
const runRetention = 30 * time.Minute

// sessionSweepCron fires the periodic session-flag sweep.
const sessionSweepCron = "*/10 * * * *"

// DaemonComponents holds all initialized daemon components.
// This allows for unified initialization and cleanup across
// console mode and Windows service mode.
type DaemonComponents struct {
	Journal   *journal.Store
	Session   *gatelib.FileSessionStore
	Heuristic *heuristic.Engine
	Registry  *shellhost.Registry
	Manager   *gatelib.Manager
	Api       *api.Api
	Server    *server.Server
	logger    logger.Logger
	stdLogger interface{ Println(v ...interface{}) }
}

// Serve runs the socket and web surfaces until ctx ends, with the
// retention sweeper alongside: finalized runs are evicted from the live
// view after runRetention and expired session flags are swept on the
// cron schedule.
func (c *DaemonComponents) Serve(ctx context.Context) error {
	sw := sweeper.New(ctx, sweeper.Hooks{
		EvictRun: func(id string) {
			_ = c.Manager.FlushRun(id)
		},
		Sweep: func() {
			if n := c.Session.Sweep(); n > 0 {
				c.logger.Info("Swept %d expired session flags", n)
			}
		},
	})
	defer sw.Stop()
	if err := sw.ScheduleCron(sessionSweepCron); err != nil {
		c.logger.Warning("Session sweep scheduling failed: %v", err)
	}
	c.Api.SetRetire(func(id string) {
		sw.Add(sweeper.Event{RunID: id, DueAt: time.Now().Add(runRetention)})
	})

	return c.Server.Start(ctx)
}

// Close releases all daemon component resources in reverse order of
// initialization. This ensures proper cleanup regardless of how the
// daemon was started.
func (c *DaemonComponents) Close() {
	if c.stdLogger != nil {
		c.stdLogger.Println("Shutting down daemon...")
	}

	// Cancel any gate still in flight so the run goes terminal.
	if c.Manager != nil {
		for _, run := range c.Manager.GetActiveRuns() {
			if c.stdLogger != nil {
				c.stdLogger.Println("Canceling gate:", run.ID)
			}
			_ = c.Manager.CancelRun(run.ID)
		}
	}

	if c.Api != nil {
		_ = c.Api.Close()
	}

	if c.Manager != nil {
		c.Manager.Close()
	}

	if c.Session != nil {
		_ = c.Session.Close()
	}

	if c.Journal != nil {
		_ = c.Journal.Close()
	}

	if c.stdLogger != nil {
		c.stdLogger.Println("Daemon stopped")
	}
}

// initDaemonComponents initializes all daemon components with the
// provided logger. This is the shared initialization used by both
// console mode and Windows service mode.
//
// On error, any partially initialized components are cleaned up before
// returning.
var initDaemonComponents = func(log logger.Logger) (*DaemonComponents, error) {
	stdLog := logger.ToStdLogger(log, "")

	jrn, err := journal.Open(journal.DefaultPath())
	if err != nil {
		log.Error("Journal initialization failed: %v", err)
		return nil, err
	}

	fs := afero.NewOsFs()
	session, err := gatelib.NewFileSessionStore(stdLog, fs, gatelib.SessionFilePath(), gatelib.DEF_SESSION_TTL)
	if err != nil {
		log.Error("Session store initialization failed: %v", err)
		jrn.Close()
		return nil, err
	}

	heur, err := heuristic.NewEngine(stdLog, fs, gatelib.HeuristicsDir)
	if err != nil {
		log.Error("Heuristic engine initialization failed: %v", err)
		session.Close()
		jrn.Close()
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Error("Cookie jar creation failed: %v", err)
		session.Close()
		jrn.Close()
		return nil, err
	}
	client := &http.Client{Jar: jar}

	reg := shellhost.NewRegistry()
	m := gatelib.InitManager(stdLog, jrn)

	s, err := api.NewApi(stdLog, m, jrn, reg, heur, session, client,
		currentBuildArgs.Version, currentBuildArgs.Commit, currentBuildArgs.BuildType)
	if err != nil {
		log.Error("API initialization failed: %v", err)
		m.Close()
		session.Close()
		jrn.Close()
		return nil, err
	}

	serv := server.NewServer(stdLog, m, jrn, reg, client, common.DefaultTCPPort, &server.RPCConfig{
		Secret: server.ResolveRPCSecret(stdLog),
	})
	s.RegisterHandlers(serv)

	return &DaemonComponents{
		Journal:   jrn,
		Session:   session,
		Heuristic: heur,
		Registry:  reg,
		Manager:   m,
		Api:       s,
		Server:    serv,
		logger:    log,
		stdLogger: stdLog,
	}, nil
}
