package cmd

import (
	"errors"
	"os"
	"testing"

	"github.com/urfave/cli"
	"github.com/unveil/unveil/common"
	"github.com/unveil/unveil/pkg/gatelib"
	"github.com/unveil/unveil/pkg/logger"
)

// Close on a zero-value component set must be a no-op; partial
// initialization failures hand it exactly that.
func TestDaemonComponentsClose_Empty(t *testing.T) {
	c := &DaemonComponents{}
	c.Close() // must not panic
}

func TestInitDaemonComponents(t *testing.T) {
	tmpDir := t.TempDir()
	if err := gatelib.SetConfigDir(tmpDir); err != nil {
		t.Fatalf("SetConfigDir: %v", err)
	}
	t.Setenv(common.RPCSecretEnv, "test-secret")

	comps, err := initDaemonComponents(logger.NewNopLogger())
	if err != nil {
		t.Fatalf("initDaemonComponents: %v", err)
	}
	defer comps.Close()

	if comps.Journal == nil {
		t.Error("expected journal to be initialized")
	}
	if comps.Session == nil {
		t.Error("expected session store to be initialized")
	}
	if comps.Manager == nil {
		t.Error("expected manager to be initialized")
	}
	if comps.Api == nil {
		t.Error("expected api to be initialized")
	}
	if comps.Server == nil {
		t.Error("expected server to be initialized")
	}
}

func TestDaemon_InitFailure(t *testing.T) {
	tmpDir := t.TempDir()
	if err := gatelib.SetConfigDir(tmpDir); err != nil {
		t.Fatalf("SetConfigDir: %v", err)
	}

	old := initDaemonComponents
	initDaemonComponents = func(log logger.Logger) (*DaemonComponents, error) {
		return nil, errors.New("component init failed")
	}
	defer func() { initDaemonComponents = old }()

	ctx := newContext(cli.NewApp(), nil, "daemon")
	stdout, _ := captureOutput(func() {
		if err := daemon(ctx); err != nil {
			t.Errorf("daemon: %v", err)
		}
	})
	assertContains(t, stdout, "component init failed")

	// PID file is cleaned up on the failure path too.
	if _, err := os.Stat(getPidFilePath()); !os.IsNotExist(err) {
		t.Fatal("expected PID file to be removed")
	}
}
