//go:build !windows

package unveilcli

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"
)

// getConnectionPath returns the address probed to detect a live daemon.
func getConnectionPath() string {
	if forceTCP() {
		return tcpAddress()
	}
	return socketPath()
}

// isDaemonRunning probes the socket with a short dial.
func isDaemonRunning(path string) bool {
	network := "unix"
	if forceTCP() {
		network = "tcp"
	}
	conn, err := net.DialTimeout(network, path, socketDialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// spawnDaemon starts the daemon as a background process on Unix systems.
func spawnDaemon() error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(executable, "daemon")
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	// Detach from parent process group so the daemon survives CLI exit.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Release process so it doesn't become a zombie when it exits.
	_ = cmd.Process.Release()

	return nil
}
