package server

// ErrorType represents the severity of a gate run error.
type ErrorType int

const (
	// ErrorTypeCritical indicates a fatal error that ends the run.
	ErrorTypeCritical ErrorType = iota
	// ErrorTypeWarning indicates a swallowed error; the run keeps going and
	// the ceiling still bounds it.
	ErrorTypeWarning
)

// Error is a gate run error with a severity and message. It implements the
// error interface.
type Error struct {
	Type    ErrorType `json:"error_type"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}
