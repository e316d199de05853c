package linalg

import (
	"gosva/domain/core"

	"gonum.org/v1/gonum/mat"
)

// NestingTolerance is the largest relative residual of a null column against
// the full design that still counts as lying in its span.
const NestingTolerance = 1e-8

// CheckNested verifies span(null) ⊆ span(full): every null column must be
// reproduced by the full design up to NestingTolerance.
func CheckNested(full, null mat.Matrix) error {
	n, _ := full.Dims()
	n0, p0 := null.Dims()
	if n0 != n {
		return core.NewDimensionMismatchError("null design rows", n0, n)
	}

	proj, err := NewProjector(full)
	if err != nil {
		return err
	}

	// Columns of the null design become rows so the projector applies on the sample axis
	res, err := proj.Residuals(null.T())
	if err != nil {
		return err
	}
	for j := 0; j < p0; j++ {
		col := mat.Col(nil, j, null)
		norm := mat.Norm(mat.NewVecDense(n, col), 2)
		if norm == 0 {
			continue
		}
		rel := mat.Norm(res.RowView(j), 2) / norm
		if rel > NestingTolerance {
			return core.NewNestingViolationError(j, rel)
		}
	}
	return nil
}
