// Package linalg fits ordinary least squares models of a features × samples
// response against a samples × covariates design, and removes selected
// coefficient contributions from the response.
//
// Every function is pure: inputs are never modified and nothing is cached
// between calls.
package linalg

import (
	"fmt"
	"math"

	"gosva/domain/core"

	"gonum.org/v1/gonum/mat"
)

// MaxCondition is the largest condition number of DᵗD accepted as invertible.
const MaxCondition = 1e12

// Fit returns the coefficient matrix B (features × p) minimizing, per row of
// r, the squared residual ‖row − D·coefᵗ‖², computed from the normal
// equations B = ((DᵗD)⁻¹DᵗRᵗ)ᵗ.
func Fit(r, d mat.Matrix) (*mat.Dense, error) {
	if err := CheckSampleAxis("design", r, d); err != nil {
		return nil, err
	}
	chol, err := factorize(d, "design")
	if err != nil {
		return nil, err
	}

	var dtr mat.Dense
	dtr.Mul(d.T(), r.T())

	var coef mat.Dense
	if err := chol.SolveTo(&coef, &dtr); err != nil {
		return nil, core.NewSingularDesignError("design", err.Error())
	}

	var b mat.Dense
	b.CloneFrom(coef.T())
	return &b, nil
}

// Residuals returns r − B·Dᵗ where B = Fit(r, d).
func Residuals(r, d mat.Matrix) (*mat.Dense, error) {
	b, err := Fit(r, d)
	if err != nil {
		return nil, err
	}
	var fitted mat.Dense
	fitted.Mul(b, d.T())

	var resid mat.Dense
	resid.Sub(r, &fitted)
	return &resid, nil
}

// RemoveEffect subtracts from x the contribution of the selected design
// columns, X − B[:,cols]·D[:,cols]ᵗ, with B fitted on the whole design.
// Removing every column leaves the residuals, and removing again changes nothing.
func RemoveEffect(x, d mat.Matrix, cols []int) (*mat.Dense, error) {
	if err := CheckSampleAxis("design", x, d); err != nil {
		return nil, err
	}
	_, p := d.Dims()
	seen := make(map[int]bool, len(cols))
	for _, c := range cols {
		if c < 0 || c >= p {
			return nil, core.NewInvalidInputError("columns", fmt.Sprintf("column %d outside design with %d columns", c, p))
		}
		if seen[c] {
			return nil, core.NewInvalidInputError("columns", fmt.Sprintf("column %d listed twice", c))
		}
		seen[c] = true
	}

	b, err := Fit(x, d)
	if err != nil {
		return nil, err
	}

	var out mat.Dense
	out.CloneFrom(x)
	if len(cols) == 0 {
		return &out, nil
	}

	var contrib mat.Dense
	contrib.Mul(SelectColumns(b, cols), SelectColumns(d, cols).T())
	out.Sub(&out, &contrib)
	return &out, nil
}

// CheckSampleAxis fails fast when the design's rows do not match the
// response's columns (the sample axis).
func CheckSampleAxis(name string, r, d mat.Matrix) error {
	_, n := r.Dims()
	rows, _ := d.Dims()
	if rows != n {
		return core.NewDimensionMismatchError(name+" rows", rows, n)
	}
	return nil
}

func factorize(d mat.Matrix, name string) (*mat.Cholesky, error) {
	n, p := d.Dims()
	if p == 0 {
		return nil, core.NewSingularDesignError(name, "no columns")
	}
	if p > n {
		return nil, core.NewSingularDesignError(name, fmt.Sprintf("%d columns exceed %d samples", p, n))
	}

	var dtd mat.SymDense
	dtd.SymOuterK(1, d.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(&dtd); !ok {
		return nil, core.NewSingularDesignError(name, "DᵗD is not positive definite (collinear columns)")
	}
	if c := chol.Cond(); math.IsInf(c, 1) || math.IsNaN(c) || c > MaxCondition {
		return nil, core.NewSingularDesignError(name, fmt.Sprintf("DᵗD condition number %.3g exceeds %.0g", c, MaxCondition))
	}
	return &chol, nil
}
