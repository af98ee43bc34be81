package logger

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
)

func TestStandardLoggerPrefixes(t *testing.T) {
	var buf bytes.Buffer
	lg := NewStandardLogger(log.New(&buf, "", 0))

	lg.Info("gate %s started", "run-1")
	lg.Warning("floor missed by %dms", 40)
	lg.Error("journal write failed: %v", errors.New("disk full"))
	if err := lg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"[INFO] gate run-1 started",
		"[WARNING] floor missed by 40ms",
		"[ERROR] journal write failed: disk full",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	lg := NewNopLogger()
	lg.Info("dropped")
	lg.Warning("dropped")
	lg.Error("dropped")
	if err := lg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestMockLoggerRecords(t *testing.T) {
	lg := NewMockLogger()

	lg.Info("run %s revealed", "run-2")
	lg.Warning("watcher settle slow")
	lg.Error("tracker lost")

	if len(lg.InfoCalls) != 1 || lg.InfoCalls[0] != "run run-2 revealed" {
		t.Errorf("InfoCalls = %v", lg.InfoCalls)
	}
	if len(lg.WarningCalls) != 1 || lg.WarningCalls[0] != "watcher settle slow" {
		t.Errorf("WarningCalls = %v", lg.WarningCalls)
	}
	if len(lg.ErrorCalls) != 1 || lg.ErrorCalls[0] != "tracker lost" {
		t.Errorf("ErrorCalls = %v", lg.ErrorCalls)
	}

	if err := lg.Close(); err != nil || !lg.CloseCalled {
		t.Fatalf("Close = %v, CloseCalled = %v", err, lg.CloseCalled)
	}
}

func TestTeeBroadcasts(t *testing.T) {
	a := NewMockLogger()
	b := NewMockLogger()
	lg := Tee(a, b)

	lg.Info("daemon listening on %s", "127.0.0.1:4427")
	lg.Warning("session sweep skipped")
	lg.Error("reveal handler panicked")

	for name, m := range map[string]*MockLogger{"first": a, "second": b} {
		if len(m.InfoCalls) != 1 || len(m.WarningCalls) != 1 || len(m.ErrorCalls) != 1 {
			t.Errorf("%s backend missed messages: %+v", name, m)
		}
	}
}

// closeFailLogger fails Close with a fixed error.
type closeFailLogger struct {
	NopLogger
	err error
}

func (c *closeFailLogger) Close() error { return c.err }

func TestTeeCloseFirstError(t *testing.T) {
	errA := errors.New("event log handle")
	errB := errors.New("file handle")
	mid := NewMockLogger()

	lg := Tee(&closeFailLogger{err: errA}, mid, &closeFailLogger{err: errB})
	if err := lg.Close(); !errors.Is(err, errA) {
		t.Fatalf("Close = %v, want first error", err)
	}
	if !mid.CloseCalled {
		t.Fatal("Tee must close every backend even after a failure")
	}
}

func TestTeeEmpty(t *testing.T) {
	lg := Tee()
	lg.Info("nowhere to go")
	if err := lg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
