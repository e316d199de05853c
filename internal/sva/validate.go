package sva

import (
	"errors"

	"gosva/domain/core"
	"gosva/domain/dataset"
	"gosva/internal/linalg"

	"gonum.org/v1/gonum/mat"
)

// validateInputs runs every shape and nesting check before any computation.
// A nil mod0 defaults to the intercept.
func validateInputs(x, mod, mod0 mat.Matrix) (mat.Matrix, error) {
	if err := linalg.CheckSampleAxis("full design", x, mod); err != nil {
		return nil, err
	}
	_, n := x.Dims()
	if mod0 == nil {
		mod0 = linalg.Ones(n)
	} else if d, ok := mod0.(*mat.Dense); ok && d == nil {
		mod0 = linalg.Ones(n)
	}
	if err := linalg.CheckSampleAxis("null design", x, mod0); err != nil {
		return nil, err
	}
	if err := dataset.CheckFinite("matrix", x); err != nil {
		return nil, err
	}
	if err := requireIntercept(mod); err != nil {
		return nil, err
	}
	if err := linalg.CheckNested(mod, mod0); err != nil {
		return nil, err
	}
	return mod0, nil
}

func requireIntercept(mod mat.Matrix) error {
	n, _ := mod.Dims()
	err := linalg.CheckNested(mod, linalg.Ones(n))
	if errors.Is(err, core.ErrNestingViolation) {
		return core.NewInvalidInputError("full design", "must include an intercept")
	}
	return err
}
