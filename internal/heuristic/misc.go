package heuristic

import (
	"errors"
	"regexp"
	"time"
)

const (
	// READY_CALLBACK is the function every heuristic script must define.
	READY_CALLBACK = "isReady"

	// SCRIPT_EXT is the file extension of stored heuristic scripts.
	SCRIPT_EXT = ".js"

	// DEF_EVAL_TIMEOUT caps a single isReady call before the runtime is
	// interrupted.
	DEF_EVAL_TIMEOUT = 100 * time.Millisecond
)

var nameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

var (
	ErrInvalidName       = errors.New("invalid heuristic name")
	ErrScriptNotFound    = errors.New("heuristic not found")
	ErrReadyNotDefined   = errors.New("isReady function not defined")
	ErrInvalidReturnType = errors.New("invalid return type")
	ErrEvalTimeout       = errors.New("evaluation timed out")
)

func validName(name string) bool {
	return nameRe.MatchString(name)
}
