package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Shape and rank errors abort the call they occur in
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrSingularDesign    = errors.New("singular design matrix")
	ErrNestingViolation  = errors.New("null design is not nested in full design")
	ErrDegenerateBatch   = errors.New("degenerate batch")
	ErrInvalidInput      = errors.New("invalid input")

	// ErrNonConvergence is advisory: it is carried in result warnings,
	// never returned as a call error.
	ErrNonConvergence = errors.New("iteration cap reached before convergence")
)

// NewDimensionMismatchError reports a sample-axis (or other axis) mismatch
// between two named operands.
func NewDimensionMismatchError(what string, got, want int) error {
	return fmt.Errorf("%w: %s has %d, expected %d", ErrDimensionMismatch, what, got, want)
}

// NewSingularDesignError reports a rank-deficient design.
func NewSingularDesignError(design string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrSingularDesign, design, reason)
}

// NewNestingViolationError reports the first null column that falls outside
// the span of the full design.
func NewNestingViolationError(column int, residual float64) error {
	return fmt.Errorf("%w: null column %d has relative residual %.3g", ErrNestingViolation, column, residual)
}

// NewDegenerateBatchError reports a batch that is too small to estimate a variance.
func NewDegenerateBatchError(batch string, size int) error {
	return fmt.Errorf("%w: batch %q has %d sample(s), need at least 2", ErrDegenerateBatch, batch, size)
}

func NewInvalidInputError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}

// NewNonConvergenceWarning describes an estimator that returned its last iterate.
func NewNonConvergenceWarning(estimator string, iterations int, delta float64) error {
	return fmt.Errorf("%w: %s stopped after %d iterations (delta %.3g)", ErrNonConvergence, estimator, iterations, delta)
}

// Error checking helpers
func IsDimensionError(err error) bool {
	return errors.Is(err, ErrDimensionMismatch)
}

func IsRankError(err error) bool {
	return errors.Is(err, ErrSingularDesign) || errors.Is(err, ErrNestingViolation)
}

func IsBatchError(err error) bool {
	return errors.Is(err, ErrDegenerateBatch)
}

func IsNonConvergence(err error) bool {
	return errors.Is(err, ErrNonConvergence)
}
