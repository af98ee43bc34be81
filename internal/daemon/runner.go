// Package daemon supervises one assembled Unveil instance: the console
// entry points and the Windows service handler share its Runner, so the
// daemon tears down the same way however it was started.
package daemon

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrAlreadyRunning is returned when Start is called on a running daemon.
	ErrAlreadyRunning = errors.New("daemon is already running")

	// ErrNotRunning is returned when Shutdown is called on a stopped daemon.
	ErrNotRunning = errors.New("daemon is not running")

	// ErrShutdownTimeout is returned when the serve loop does not drain
	// within the configured timeout.
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

// Service identity used for Windows service registration.
const (
	DefaultServiceName = "Unveil"
	DefaultDisplayName = "Unveil Readiness Gate"
	DefaultDescription = "Readiness gate daemon for coordinated page reveal"
)

// Instance is one assembled daemon: a blocking serve loop plus the
// teardown of everything behind it (journal, session store, run manager).
type Instance interface {
	// Serve blocks until ctx ends or the instance fails.
	Serve(ctx context.Context) error

	// Close releases the instance's resources. Called exactly once,
	// after Serve returns.
	Close()
}

// InitFunc assembles the instance for one Start. The stop argument
// requests a shutdown from inside the daemon, e.g. the stop-daemon
// operation.
type InitFunc func(stop func()) (Instance, error)

// Config holds the runner configuration.
type Config struct {
	// ServiceName is the Windows service name.
	ServiceName string

	// DisplayName is the Windows service display name.
	DisplayName string

	// ShutdownTimeout bounds how long Shutdown waits for the serve loop
	// to drain. Zero waits indefinitely.
	ShutdownTimeout time.Duration
}

// Runner supervises one instance at a time. Start assembles and serves
// it, blocking for its whole life; Shutdown stops it from another
// goroutine. The instance is closed before Start returns, so a caller
// waiting on Start observes a fully torn down daemon.
type Runner struct {
	config *Config
	init   InitFunc

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	served  chan struct{}
}

// New builds a runner around init. A nil config gets the default
// service identity and no shutdown timeout.
func New(config *Config, init InitFunc) *Runner {
	if config == nil {
		config = &Config{}
	}
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.DisplayName == "" {
		config.DisplayName = DefaultDisplayName
	}
	return &Runner{config: config, init: init}
}

// Config returns the runner's configuration.
func (r *Runner) Config() *Config {
	return r.config
}

// Start assembles the instance and serves it until ctx ends, the
// instance fails, or Shutdown is called. Returns ErrAlreadyRunning when
// an instance is already being served, or the init error when assembly
// fails.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	inst, err := r.init(cancel)
	if err != nil {
		r.mu.Unlock()
		cancel()
		return err
	}
	served := make(chan struct{})
	r.running = true
	r.cancel = cancel
	r.served = served
	r.mu.Unlock()

	err = inst.Serve(ctx)
	inst.Close()
	cancel()

	r.mu.Lock()
	r.running = false
	r.cancel = nil
	r.served = nil
	r.mu.Unlock()
	close(served)
	return err
}

// Shutdown requests a stop and waits for the serve loop to drain.
// Returns ErrNotRunning when no instance is being served, and
// ErrShutdownTimeout when draining exceeds the configured timeout.
func (r *Runner) Shutdown() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return ErrNotRunning
	}
	cancel := r.cancel
	served := r.served
	timeout := r.config.ShutdownTimeout
	r.mu.Unlock()

	cancel()
	if timeout <= 0 {
		<-served
		return nil
	}
	select {
	case <-served:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// IsRunning reports whether an instance is currently being served.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
