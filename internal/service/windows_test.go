//go:build windows

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/windows/svc"
)

// stubRunner follows the daemon runner contract: Start blocks until
// Shutdown releases it.
type stubRunner struct {
	startErr    error
	shutdownErr error
	release     chan struct{}
	shutdowns   int
}

func newStubRunner() *stubRunner {
	return &stubRunner{release: make(chan struct{})}
}

func (r *stubRunner) Start(ctx context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return nil
}

func (r *stubRunner) Shutdown() error {
	r.shutdowns++
	close(r.release)
	return r.shutdownErr
}

func (r *stubRunner) IsRunning() bool { return false }

// drainStates collects the states the handler reported, in order.
func drainStates(status chan svc.Status) []svc.State {
	var states []svc.State
	for {
		select {
		case s := <-status:
			states = append(states, s.State)
		default:
			return states
		}
	}
}

func TestHandlerRunsUntilStop(t *testing.T) {
	runner := newStubRunner()
	h := NewWindowsHandler(runner)

	status := make(chan svc.Status, 16)
	requests := make(chan svc.ChangeRequest, 1)
	requests <- svc.ChangeRequest{Cmd: svc.Stop}

	specific, code := h.Execute(nil, requests, status)
	if specific || code != 0 {
		t.Fatalf("Execute = (%v, %d), want clean exit", specific, code)
	}
	if runner.shutdowns != 1 {
		t.Fatalf("runner shut down %d times, want 1", runner.shutdowns)
	}

	states := drainStates(status)
	want := []svc.State{svc.StartPending, svc.Running, svc.StopPending, svc.Stopped}
	if len(states) != len(want) {
		t.Fatalf("reported states %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("state[%d] = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestHandlerStartFailure(t *testing.T) {
	runner := newStubRunner()
	runner.startErr = errors.New("journal locked")
	h := NewWindowsHandler(runner)

	status := make(chan svc.Status, 16)
	requests := make(chan svc.ChangeRequest)

	_, code := h.Execute(nil, requests, status)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if runner.shutdowns != 0 {
		t.Fatal("failed start should not reach Shutdown")
	}

	states := drainStates(status)
	if last := states[len(states)-1]; last != svc.Stopped {
		t.Fatalf("last state = %v, want Stopped", last)
	}
	for _, s := range states {
		if s == svc.Running {
			t.Fatal("handler claimed Running despite start failure")
		}
	}
}

func TestHandlerShutdownError(t *testing.T) {
	runner := newStubRunner()
	runner.shutdownErr = errors.New("teardown stalled")
	h := NewWindowsHandler(runner)

	status := make(chan svc.Status, 16)
	requests := make(chan svc.ChangeRequest, 1)
	requests <- svc.ChangeRequest{Cmd: svc.Shutdown}

	_, code := h.Execute(nil, requests, status)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1 on teardown error", code)
	}
	if last := drainStates(status); last[len(last)-1] != svc.Stopped {
		t.Fatal("handler must still report Stopped after a teardown error")
	}
}

func TestHandlerInterrogate(t *testing.T) {
	runner := newStubRunner()
	h := NewWindowsHandler(runner)

	status := make(chan svc.Status, 16)
	requests := make(chan svc.ChangeRequest, 2)
	requests <- svc.ChangeRequest{Cmd: svc.Interrogate}

	go func() {
		time.Sleep(20 * time.Millisecond)
		requests <- svc.ChangeRequest{Cmd: svc.Stop}
	}()

	if _, code := h.Execute(nil, requests, status); code != 0 {
		t.Fatalf("exit code = %d", code)
	}

	running := 0
	for _, s := range drainStates(status) {
		if s == svc.Running {
			running++
		}
	}
	// Once on startup, once answering the interrogate.
	if running != 2 {
		t.Fatalf("reported Running %d times, want 2", running)
	}
}

func TestHandlerAcceptedCommands(t *testing.T) {
	h := NewWindowsHandler(newStubRunner())
	got := h.AcceptedCommands()
	if got&svc.AcceptStop == 0 || got&svc.AcceptShutdown == 0 {
		t.Fatalf("accepted commands %v missing stop/shutdown", got)
	}
	if got&svc.AcceptPauseAndContinue != 0 {
		t.Fatal("gate daemon must not advertise pause support")
	}
}
