package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition indicates an operation that is not allowed from the
	// controller's current state.
	ErrInvalidTransition = errors.New("sim: invalid state transition")

	// ErrTerminated indicates the controller was shut down.
	ErrTerminated = errors.New("sim: controller terminated")

	// ErrNotLive indicates a structural field passed where only live fields
	// are accepted.
	ErrNotLive = errors.New("sim: parameter requires a restart")

	// ErrNotStructural indicates a live field passed to SetStructuralParam.
	ErrNotStructural = errors.New("sim: parameter is live, set it directly")

	// ErrNotStarted indicates a frame was requested with no epoch running.
	ErrNotStarted = errors.New("sim: simulation not started")
)

// TransitionError wraps a failed transition with the state it started from.
type TransitionError struct {
	Op      string
	From    State
	Wrapped error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("sim: %s from %s: %v", e.Op, e.From, e.Wrapped)
}

func (e *TransitionError) Unwrap() error {
	return e.Wrapped
}
