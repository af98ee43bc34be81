//go:build !windows

package cmd

import "github.com/urfave/cli"

// getDaemonAction returns the platform-specific daemon action. On
// non-Windows platforms the console daemon is the only mode.
func getDaemonAction() cli.ActionFunc {
	return daemon
}
