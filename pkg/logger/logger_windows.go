//go:build windows

package logger

import (
	"fmt"

	"golang.org/x/sys/windows/svc/eventlog"
)

// Event IDs recorded per level. They only need to stay stable so log
// filters keep working across releases.
const (
	EventIDInfo    uint32 = 1
	EventIDWarning uint32 = 2
	EventIDError   uint32 = 3
)

// EventLogWriter is the slice of eventlog.Log that EventLogger needs,
// abstracted so tests run without an event source registered.
type EventLogWriter interface {
	Info(eid uint32, msg string) error
	Warning(eid uint32, msg string) error
	Error(eid uint32, msg string) error
	Close() error
}

// eventLogOpener is a seam for tests; production opens the real log.
var eventLogOpener = func(sourceName string) (EventLogWriter, error) {
	return eventlog.Open(sourceName)
}

// EventLogger is the Logger used when the daemon runs as a Windows
// service. The event source must already be registered (the service
// install command does this).
type EventLogger struct {
	log EventLogWriter
}

// NewEventLogger opens the Windows Event Log under sourceName,
// typically the service name.
func NewEventLogger(sourceName string) (*EventLogger, error) {
	elog, err := eventLogOpener(sourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return &EventLogger{log: elog}, nil
}

// NewEventLoggerWithWriter wraps an explicit writer. Intended for
// tests.
func NewEventLoggerWithWriter(w EventLogWriter) *EventLogger {
	return &EventLogger{log: w}
}

// Write errors are dropped on all three levels: a service that cannot
// log must still serve gates.

func (e *EventLogger) Info(format string, args ...interface{}) {
	_ = e.log.Info(EventIDInfo, fmt.Sprintf(format, args...))
}

func (e *EventLogger) Warning(format string, args ...interface{}) {
	_ = e.log.Warning(EventIDWarning, fmt.Sprintf(format, args...))
}

func (e *EventLogger) Error(format string, args ...interface{}) {
	_ = e.log.Error(EventIDError, fmt.Sprintf(format, args...))
}

// Close releases the event log handle.
func (e *EventLogger) Close() error {
	if e.log != nil {
		return e.log.Close()
	}
	return nil
}

var _ Logger = (*EventLogger)(nil)
