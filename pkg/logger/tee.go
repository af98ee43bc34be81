package logger

// teeLogger fans each message out to every backend in order.
type teeLogger []Logger

// Tee combines several backends into one Logger. The Windows service
// path uses it to write to the Event Log and a daemon log file at the
// same time. Write errors from individual backends are swallowed so
// one failing backend cannot silence the others.
func Tee(backends ...Logger) Logger {
	return teeLogger(backends)
}

func (t teeLogger) Info(format string, args ...interface{}) {
	for _, l := range t {
		l.Info(format, args...)
	}
}

func (t teeLogger) Warning(format string, args ...interface{}) {
	for _, l := range t {
		l.Warning(format, args...)
	}
}

func (t teeLogger) Error(format string, args ...interface{}) {
	for _, l := range t {
		l.Error(format, args...)
	}
}

// Close closes every backend and reports the first failure.
func (t teeLogger) Close() error {
	var firstErr error
	for _, l := range t {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
