package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates a precondition was violated before the
	// decode loop started. No partial work is performed.
	ErrInvalidConfig = errors.New("invalid generation config")

	// ErrCapacityExceeded indicates the engine attempted to write past the
	// sequence buffer capacity. This is an engine bug, not a user error.
	ErrCapacityExceeded = errors.New("sequence buffer capacity exceeded")
)

// ModelError wraps a fatal error from the model's forward pass. The
// generation aborts immediately: no retry, no partial result. The model's
// internal state is considered unreliable afterwards and its cache is reset
// before any further use.
type ModelError struct {
	Step     int // completed decode steps before the failure
	Position int // sequence position being scored
	Err      error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model forward failed at step %d (position %d): %v", e.Step, e.Position, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}
