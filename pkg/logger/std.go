package logger

import (
	"log"
	"strings"
)

// infoWriter adapts a Logger into an io.Writer that records every line at
// Info level. The gate engine speaks *log.Logger, the daemon speaks Logger;
// this is the bridge between the two.
type infoWriter struct {
	l Logger
}

func (w infoWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if msg != "" {
		w.l.Info("%s", msg)
	}
	return len(p), nil
}

// ToStdLogger returns a stdlib *log.Logger whose output is forwarded to l.
// The returned logger carries no flags; timestamps and severity are the
// backend's concern.
func ToStdLogger(l Logger, prefix string) *log.Logger {
	return log.New(infoWriter{l: l}, prefix, 0)
}
