package dynamo

import (
	"errors"
	"fmt"
)

// Error taxonomy of the control core.
var (
	// ErrConfiguration indicates missing or invalid construction input.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrStateBounds indicates a state component outside its signal bounds.
	ErrStateBounds = errors.New("dynamo: state out of bounds")

	// ErrDimensionMismatch indicates mismatched vector or matrix shapes.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrPrecondition indicates an operation invoked before its required prior step.
	ErrPrecondition = errors.New("dynamo: precondition not met")

	// ErrNumerical indicates a failed numerical procedure (Riccati solve,
	// integration producing NaN/Inf, singular matrices).
	ErrNumerical = errors.New("dynamo: numerical failure")
)

// SimulationError wraps an error with the cycle it aborted.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("cycle %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

func fmtDims(what string, want, got int) error {
	return fmt.Errorf("%w: %s has length %d, want %d", ErrDimensionMismatch, what, got, want)
}
