//go:build windows

package server

import (
	"github.com/unveil/unveil/common"
)

// pipePath returns the Windows named pipe path for the daemon.
func pipePath() string {
	return common.PipePath()
}
