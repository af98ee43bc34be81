//go:build windows

package unveilcli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
	"github.com/unveil/unveil/common"
)

// dialPipeFunc is swappable for tests.
var dialPipeFunc = dialPipeImpl

// dialPipeImpl dials a Windows named pipe. If timeout is nil, the default
// from common.DefaultDialTimeout is used.
func dialPipeImpl(path string, timeout *time.Duration) (net.Conn, error) {
	if timeout == nil {
		defaultTimeout := common.DefaultDialTimeout
		timeout = &defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return winio.DialPipeContext(ctx, path)
}

// dial establishes a connection to the daemon using a named pipe with TCP
// fallback. Transport priority: Named pipe > TCP.
func dial() (net.Conn, error) {
	if forceTCP() {
		debugLog("UNVEIL_FORCE_TCP set, connecting via TCP to %s", tcpAddress())
		return dialFunc("tcp", tcpAddress())
	}
	path := common.PipePath()
	debugLog("Attempting connection via named pipe at %s", path)
	timeout := common.DefaultDialTimeout
	conn, pipeErr := dialPipeFunc(path, &timeout)
	if pipeErr != nil {
		debugLog("Named pipe connection failed: %v, falling back to TCP", pipeErr)
		conn, err := dialFunc("tcp", tcpAddress())
		if err != nil {
			return nil, fmt.Errorf("failed to connect: named pipe error: %v; tcp error: %w", pipeErr, err)
		}
		debugLog("Successfully connected via TCP fallback to %s", tcpAddress())
		return conn, nil
	}
	debugLog("Successfully connected via named pipe")
	return conn, nil
}
