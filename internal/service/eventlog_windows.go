//go:build windows

package service

import (
	"fmt"
	"log"

	"golang.org/x/sys/windows/svc/eventlog"
)

// Event IDs recorded with each level. The message DLL registered by
// InstallAsEventCreate formats any ID, so these only need to be stable.
const (
	eventIDInfo    = 1
	eventIDWarning = 2
	eventIDError   = 3
)

// EventLogger records service lifecycle events. The Windows Event Log
// backs it when running under the SCM; a console variant covers tests
// and foreground runs.
type EventLogger interface {
	Info(msg string) error
	Warning(msg string) error
	Error(msg string) error
	Close() error
}

// WindowsEventLogger writes to the Windows Event Log under the Unveil
// service's event source.
type WindowsEventLogger struct {
	log *eventlog.Log
}

// NewWindowsEventLogger opens the event log for the named service,
// registering the event source first when it is missing. Registration
// failure is tolerated: the source usually already exists from a prior
// install.
func NewWindowsEventLogger(serviceName string) (*WindowsEventLogger, error) {
	_ = eventlog.InstallAsEventCreate(serviceName, eventlog.Error|eventlog.Warning|eventlog.Info)

	elog, err := eventlog.Open(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return &WindowsEventLogger{log: elog}, nil
}

func (w *WindowsEventLogger) Info(msg string) error {
	return w.log.Info(eventIDInfo, msg)
}

func (w *WindowsEventLogger) Warning(msg string) error {
	return w.log.Warning(eventIDWarning, msg)
}

func (w *WindowsEventLogger) Error(msg string) error {
	return w.log.Error(eventIDError, msg)
}

func (w *WindowsEventLogger) Close() error {
	return w.log.Close()
}

// ConsoleEventLogger is the EventLogger used when the daemon runs in
// the foreground rather than under the SCM.
type ConsoleEventLogger struct {
	logger *log.Logger
}

// NewConsoleEventLogger wraps a standard logger; nil uses log.Default.
func NewConsoleEventLogger(logger *log.Logger) *ConsoleEventLogger {
	if logger == nil {
		logger = log.Default()
	}
	return &ConsoleEventLogger{logger: logger}
}

func (c *ConsoleEventLogger) Info(msg string) error {
	c.logger.Printf("[INFO] %s", msg)
	return nil
}

func (c *ConsoleEventLogger) Warning(msg string) error {
	c.logger.Printf("[WARNING] %s", msg)
	return nil
}

func (c *ConsoleEventLogger) Error(msg string) error {
	c.logger.Printf("[ERROR] %s", msg)
	return nil
}

func (c *ConsoleEventLogger) Close() error {
	return nil
}

// RegisterEventSource registers the service's event source with the
// Windows Event Log. Called during service installation.
func RegisterEventSource(serviceName string) error {
	return eventlog.InstallAsEventCreate(serviceName, eventlog.Error|eventlog.Warning|eventlog.Info)
}

// RemoveEventSource deletes the event source. Called during service
// uninstallation.
func RemoveEventSource(serviceName string) error {
	return eventlog.Remove(serviceName)
}
