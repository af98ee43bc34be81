//go:build windows

// Package service integrates the Unveil daemon with the Windows Service
// Control Manager: an svc.Handler that drives the shared daemon runner,
// plus install/uninstall/status plumbing for the service registration.
package service

import (
	"context"
	"time"

	"golang.org/x/sys/windows/svc"
)

// acceptedCommands defines which SCM commands the service handles. The
// gate daemon has nothing to pause, so only stop and shutdown.
const acceptedCommands = svc.AcceptStop | svc.AcceptShutdown

// startGrace is how long Execute waits for an immediate assembly
// failure before reporting Running to the SCM. Component init (journal,
// session store, listeners) fails fast or not at all.
const startGrace = 50 * time.Millisecond

// RunnerInterface is the daemon lifecycle the handler drives. Start
// blocks for the life of the daemon; Shutdown stops it from the SCM
// control thread.
type RunnerInterface interface {
	Start(ctx context.Context) error
	Shutdown() error
	IsRunning() bool
}

// WindowsHandler implements svc.Handler, bridging SCM control requests
// to the gate daemon runner.
type WindowsHandler struct {
	runner RunnerInterface
	logger EventLogger
}

// NewWindowsHandler builds a handler that logs to the console.
func NewWindowsHandler(runner RunnerInterface) *WindowsHandler {
	return NewWindowsHandlerWithLogger(runner, nil)
}

// NewWindowsHandlerWithLogger builds a handler with a custom event
// logger. A nil logger falls back to the console.
func NewWindowsHandlerWithLogger(runner RunnerInterface, logger EventLogger) *WindowsHandler {
	if logger == nil {
		logger = NewConsoleEventLogger(nil)
	}
	return &WindowsHandler{
		runner: runner,
		logger: logger,
	}
}

// Execute implements svc.Handler. Service start arguments are ignored:
// the daemon discovers its configuration from the unveil config
// directory, not the command line.
//
// The state machine follows the Windows service model,
// StartPending -> Running -> StopPending -> Stopped. The exit code is 0
// on a clean shutdown, non-zero when assembly or teardown failed.
func (h *WindowsHandler) Execute(args []string, requests <-chan svc.ChangeRequest, status chan<- svc.Status) (svcSpecificEC bool, exitCode uint32) {
	_ = args

	status <- svc.Status{State: svc.StartPending}
	_ = h.logger.Info("Unveil service starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startErrCh := make(chan error, 1)
	go func() {
		startErrCh <- h.runner.Start(ctx)
	}()

	// Catch an assembly failure before claiming Running. The grace
	// window also guarantees the goroutine actually got to run, so a
	// non-blocking check cannot race it.
	select {
	case err := <-startErrCh:
		if err != nil {
			_ = h.logger.Error("Failed to start Unveil service: " + err.Error())
			status <- svc.Status{State: svc.Stopped}
			return false, 1
		}
	case <-time.After(startGrace):
	}

	status <- svc.Status{State: svc.Running, Accepts: acceptedCommands}
	_ = h.logger.Info("Unveil service started successfully")

	return h.processControlRequests(requests, status)
}

// processControlRequests handles incoming service control requests
// until a stop or shutdown command arrives.
func (h *WindowsHandler) processControlRequests(requests <-chan svc.ChangeRequest, status chan<- svc.Status) (svcSpecificEC bool, exitCode uint32) {
	for req := range requests {
		switch req.Cmd {
		case svc.Interrogate:
			status <- svc.Status{State: svc.Running, Accepts: acceptedCommands}

		case svc.Stop, svc.Shutdown:
			return h.handleStopRequest(status)
		}
	}

	// Request channel closed unexpectedly.
	return false, 0
}

// handleStopRequest drains the daemon through the runner and reports
// the stopped state. The runner owns cancellation and waits for the
// serve loop, so by the time Shutdown returns the gates are torn down.
func (h *WindowsHandler) handleStopRequest(status chan<- svc.Status) (svcSpecificEC bool, exitCode uint32) {
	_ = h.logger.Info("Unveil service stopping...")
	status <- svc.Status{State: svc.StopPending}

	if err := h.runner.Shutdown(); err != nil {
		// The service is stopping regardless of teardown errors.
		_ = h.logger.Error("Error during service shutdown: " + err.Error())
		status <- svc.Status{State: svc.Stopped}
		return false, 1
	}

	_ = h.logger.Info("Unveil service stopped successfully")
	status <- svc.Status{State: svc.Stopped}
	return false, 0
}

// AcceptedCommands returns the service commands this handler accepts.
func (h *WindowsHandler) AcceptedCommands() svc.Accepted {
	return acceptedCommands
}
