//go:build windows

package unveilcli

import (
	"fmt"
	"net"
	"os"
	"os/exec"

	"github.com/unveil/unveil/common"
)

// getConnectionPath returns the address probed to detect a live daemon.
func getConnectionPath() string {
	if forceTCP() {
		return tcpAddress()
	}
	return common.PipePath()
}

// isDaemonRunning probes the pipe (or TCP address) with a short dial.
func isDaemonRunning(path string) bool {
	if forceTCP() {
		conn, err := net.DialTimeout("tcp", path, socketDialTimeout)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
	timeout := socketDialTimeout
	conn, err := dialPipeFunc(path, &timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// spawnDaemon starts the daemon as a background process on Windows.
func spawnDaemon() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(executable, "daemon")
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Release process so it doesn't become a zombie when it exits.
	_ = cmd.Process.Release()

	return nil
}
