package gatelib

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig      = errors.New("gate config is invalid")
	ErrGateAlreadyStarted = errors.New("gate has already been started")
	ErrGateCanceled       = errors.New("gate run was canceled")
	ErrNilDocument        = errors.New("gate needs a document host")

	ErrTrackerAlreadyStarted = errors.New("tracker has already been started")
	ErrWatcherAlreadyStarted = errors.New("watcher has already been started")

	ErrRunNotFound    = errors.New("run you are looking for is not found")
	ErrRunNotActive   = errors.New("run you are looking for is not active")
	ErrFlushRunActive = errors.New("run you are trying to flush is still active")

	// ErrMutationsUnsupported is returned by document hosts that cannot
	// observe structural changes. Trackers degrade to the initial asset set.
	ErrMutationsUnsupported = errors.New("document host does not support mutation observation")

	// ErrEventsUnsupported is returned by document hosts that cannot deliver
	// element events. Watched elements then resolve only via their
	// already-loaded state or the timeout ceiling.
	ErrEventsUnsupported = errors.New("document host does not support element events")

	ErrFontsUnsupported = errors.New("document host does not expose a font facility")
)

func newPanicError(scope string, r interface{}) error {
	return fmt.Errorf("%s: recovered panic: %v", scope, r)
}
