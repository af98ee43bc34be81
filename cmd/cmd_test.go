package cmd

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/urfave/cli"
	cmdcommon "github.com/unveil/unveil/cmd/common"
	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/pkg/gatelib"
	"github.com/unveil/unveil/pkg/unveilcli"
)

type fakeServer struct {
	listener net.Listener
	wg       sync.WaitGroup
}

func (s *fakeServer) close() {
	_ = s.listener.Close()
	s.wg.Wait()
}

// startFakeServer runs a daemon stand-in on a unix socket. Each request is
// answered with a canned per-method payload; methods in fail get an error
// response instead.
func startFakeServer(t *testing.T, socketPath string, fail ...map[common.UpdateType]string) *fakeServer {
	t.Helper()
	_ = os.Remove(socketPath)
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &fakeServer{listener: listener}
	var failMap map[common.UpdateType]string
	if len(fail) > 0 {
		failMap = fail[0]
	}
	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			srv.wg.Add(1)
			go func(c net.Conn) {
				defer srv.wg.Done()
				defer c.Close()
				for {
					buf, err := unveilcli.ReadForTesting(c)
					if err != nil {
						return
					}
					var req struct {
						Method  common.UpdateType `json:"method"`
						Message json.RawMessage   `json:"message"`
					}
					if err := json.Unmarshal(buf, &req); err != nil {
						return
					}
					resp := buildFakeResponse(req.Method, failMap)
					out, _ := json.Marshal(resp)
					if err := unveilcli.WriteForTesting(c, out); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return srv
}

func buildFakeResponse(method common.UpdateType, fail map[common.UpdateType]string) *unveilcli.Response {
	if msg, ok := fail[method]; ok {
		return &unveilcli.Response{Ok: false, Error: msg}
	}
	var payload any
	switch method {
	case common.UPDATE_VERSION:
		payload = common.VersionResponse{DaemonVersion: "test"}
	case common.UPDATE_LIST:
		payload = common.ListResponse{Runs: []gatelib.Run{
			{ID: "run-1", URL: "https://example.org/a", StateName: "running"},
			{ID: "run-2", URL: "https://example.org/b", StateName: "complete", TimedOut: true},
		}}
	case common.UPDATE_STATUS:
		payload = common.StatusResponse{Run: gatelib.Run{
			ID:        "run-1",
			URL:       "https://example.org/a",
			StateName: "running",
			Current:   gatelib.Progress{Timer: 0.5, Readiness: 0.25, Combined: 0.375},
		}}
	case common.UPDATE_CANCEL:
		payload = common.CancelResponse{RunId: "run-1", State: "canceled"}
	case common.UPDATE_FLUSH:
		payload = common.FlushResponse{Flushed: 2}
	case common.UPDATE_HISTORY:
		payload = common.HistoryResponse{Records: []*gatelib.RunRecord{
			{ID: "run-9", URL: "https://example.org/old", Outcome: "revealed", ElapsedMs: 1500},
		}}
	case common.UPDATE_LIST_HEURISTIC:
		payload = common.ListHeuristicsResponse{Names: []string{"hero-media"}}
	case common.UPDATE_LOAD_HEURISTIC:
		payload = common.LoadHeuristicResponse{Name: "hero-media"}
	case common.UPDATE_DROP_HEURISTIC:
		payload = common.DropHeuristicResponse{Name: "hero-media"}
	default:
		payload = struct{}{}
	}
	raw, _ := json.Marshal(payload)
	return &unveilcli.Response{
		Ok:     true,
		Update: &unveilcli.Update{Type: method, Message: raw},
	}
}

func withFakeDaemon(t *testing.T, fail ...map[common.UpdateType]string) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "unveild.sock")
	t.Setenv(common.SocketPathEnv, socketPath)
	t.Setenv(unveilcli.VersionCheckEnv, "1")
	srv := startFakeServer(t, socketPath, fail...)
	t.Cleanup(srv.close)
}

// The CLI templates back every command's help text; an empty one would
// render blank help screens.
func TestTemplatesNotEmpty(t *testing.T) {
	if DESCRIPTION == "" {
		t.Error("DESCRIPTION is empty")
	}
	if HELP_TEMPL == "" {
		t.Error("HELP_TEMPL is empty")
	}
	if CMD_HELP_TEMPL == "" {
		t.Error("CMD_HELP_TEMPL is empty")
	}
}

func TestExecuteHelp(t *testing.T) {
	// "help <command>" avoids the exit path taken by bare "help".
	stdout, _ := captureOutput(func() {
		err := Execute([]string{"unveil", "help", "watch"}, BuildArgs{Version: "0.0.1", BuildType: "test"})
		if err != nil {
			t.Errorf("Execute: %v", err)
		}
	})
	assertContains(t, stdout, "readiness")
}

func TestExecuteVersion(t *testing.T) {
	stdout, _ := captureOutput(func() {
		err := Execute([]string{"unveil", "version"}, BuildArgs{Version: "0.0.1", BuildType: "test"})
		if err != nil {
			t.Errorf("Execute: %v", err)
		}
	})
	assertContains(t, stdout, "0.0.1-test")
}

func TestListCommand(t *testing.T) {
	withFakeDaemon(t)

	showCompleted, showPending, showAll = false, true, false
	ctx := newContext(cli.NewApp(), nil, "list")
	stdout, _ := captureOutput(func() {
		if err := list(ctx); err != nil {
			t.Errorf("list: %v", err)
		}
	})
	assertContains(t, stdout, "run-1")
	assertContains(t, stdout, "run-2")
	assertContains(t, stdout, "timeout")
}

func TestStatusCommand(t *testing.T) {
	withFakeDaemon(t)

	app := cli.NewApp()
	ctx := newContext(app, []string{"run-1"}, "status")
	stdout, _ := captureOutput(func() {
		if err := status(ctx); err != nil {
			t.Errorf("status: %v", err)
		}
	})
	assertContains(t, stdout, "run-1")
	assertContains(t, stdout, "37.5%")
}

func TestStatusCommand_NoArg(t *testing.T) {
	ctx := newContext(cli.NewApp(), nil, "status")
	stdout, _ := captureOutput(func() {
		if err := status(ctx); err != nil {
			t.Errorf("status: %v", err)
		}
	})
	assertContains(t, stdout, "no run id")
}

func TestCancelCommand(t *testing.T) {
	withFakeDaemon(t)

	ctx := newContext(cli.NewApp(), []string{"run-1"}, "cancel")
	stdout, _ := captureOutput(func() {
		if err := cancel(ctx); err != nil {
			t.Errorf("cancel: %v", err)
		}
	})
	assertContains(t, stdout, "canceled")
}

func TestCancelCommand_DaemonError(t *testing.T) {
	withFakeDaemon(t, map[common.UpdateType]string{
		common.UPDATE_CANCEL: "run not found",
	})

	ctx := newContext(cli.NewApp(), []string{"nope"}, "cancel")
	stdout, _ := captureOutput(func() {
		if err := cancel(ctx); err != nil {
			t.Errorf("cancel: %v", err)
		}
	})
	assertContains(t, stdout, "run not found")
}

func TestFlushCommand(t *testing.T) {
	withFakeDaemon(t)

	ctx := newContext(cli.NewApp(), nil, "flush")
	stdout, _ := captureOutput(func() {
		if err := flush(ctx); err != nil {
			t.Errorf("flush: %v", err)
		}
	})
	assertContains(t, stdout, "Flushed all settled gates")
}

func TestHistoryCommand(t *testing.T) {
	withFakeDaemon(t)

	historyLimit = 20
	ctx := newContext(cli.NewApp(), nil, "history")
	stdout, _ := captureOutput(func() {
		if err := history(ctx); err != nil {
			t.Errorf("history: %v", err)
		}
	})
	assertContains(t, stdout, "revealed")
	assertContains(t, stdout, "https://example.org/old")
}

func TestHeuristicCommands(t *testing.T) {
	withFakeDaemon(t)

	t.Run("list", func(t *testing.T) {
		ctx := newContext(cli.NewApp(), nil, "list")
		stdout, _ := captureOutput(func() {
			if err := heuristicList(ctx); err != nil {
				t.Errorf("heuristicList: %v", err)
			}
		})
		assertContains(t, stdout, "hero-media")
	})

	t.Run("load", func(t *testing.T) {
		script := filepath.Join(t.TempDir(), "hero-media.js")
		if err := os.WriteFile(script, []byte("function isReady(el) { return true }"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		ctx := newContext(cli.NewApp(), []string{script}, "load")
		stdout, _ := captureOutput(func() {
			if err := heuristicLoad(ctx); err != nil {
				t.Errorf("heuristicLoad: %v", err)
			}
		})
		assertContains(t, stdout, "hero-media")
	})

	t.Run("drop", func(t *testing.T) {
		ctx := newContext(cli.NewApp(), []string{"hero-media"}, "drop")
		stdout, _ := captureOutput(func() {
			if err := heuristicDrop(ctx); err != nil {
				t.Errorf("heuristicDrop: %v", err)
			}
		})
		assertContains(t, stdout, "Dropped")
	})
}

func TestBeaut(t *testing.T) {
	got := cmdcommon.Beaut("ab", 6)
	if len(got) != 6 {
		t.Fatalf("expected width 6, got %d (%q)", len(got), got)
	}
	odd := cmdcommon.Beaut("abc", 6)
	if len(odd) != 6 {
		t.Fatalf("expected width 6, got %d (%q)", len(odd), odd)
	}
}
