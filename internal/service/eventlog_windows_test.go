//go:build windows

package service

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestConsoleEventLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	el := NewConsoleEventLogger(log.New(&buf, "", 0))

	if err := el.Info("gate daemon started"); err != nil {
		t.Fatalf("Info: %v", err)
	}
	if err := el.Warning("journal nearly full"); err != nil {
		t.Fatalf("Warning: %v", err)
	}
	if err := el.Error("listener bind failed"); err != nil {
		t.Fatalf("Error: %v", err)
	}
	if err := el.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"[INFO] gate daemon started",
		"[WARNING] journal nearly full",
		"[ERROR] listener bind failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleEventLoggerNilFallback(t *testing.T) {
	el := NewConsoleEventLogger(nil)
	if el.logger == nil {
		t.Fatal("nil logger must fall back to log.Default")
	}
}
