// Package ftest compares nested full and null linear models feature by
// feature with an F-statistic.
package ftest

import (
	"fmt"
	"math"

	"gosva/domain/core"
	"gosva/internal/linalg"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Result holds one F-statistic and p-value per feature
type Result struct {
	FStatistics []float64 `json:"f_statistics"`
	PValues     []float64 `json:"p_values"`
	DF1         int       `json:"df1"` // numerator: full columns − null columns
	DF2         int       `json:"df2"` // denominator: samples − full columns
}

// FTest fits mod and mod0 to every row of x and tests whether the extra
// columns of mod explain significant variation. The null design must be
// nested in the full design; this is verified before any per-feature work.
// A nil mod0 means intercept only.
func FTest(x, mod, mod0 mat.Matrix) (*Result, error) {
	if err := linalg.CheckSampleAxis("full design", x, mod); err != nil {
		return nil, err
	}
	if d, ok := mod0.(*mat.Dense); ok && d == nil {
		mod0 = nil
	}
	if mod0 == nil {
		_, n := x.Dims()
		mod0 = linalg.Ones(n)
	}
	if err := linalg.CheckSampleAxis("null design", x, mod0); err != nil {
		return nil, err
	}
	if err := linalg.CheckNested(mod, mod0); err != nil {
		return nil, err
	}
	// nested but adds no columns, e.g. mod0 == mod
	_, p1 := mod.Dims()
	_, p0 := mod0.Dims()
	if p0 >= p1 {
		return nil, core.NewInvalidInputError("null design", fmt.Sprintf("has %d columns, full design has %d", p0, p1))
	}
	return compute(x, mod, mod0)
}

// PValues is FTest without the nesting check, for callers that build the
// null design from the full one.
func PValues(x, mod, mod0 mat.Matrix) ([]float64, error) {
	res, err := compute(x, mod, mod0)
	if err != nil {
		return nil, err
	}
	return res.PValues, nil
}

func compute(x, mod, mod0 mat.Matrix) (*Result, error) {
	proj1, err := linalg.NewProjector(mod)
	if err != nil {
		return nil, fmt.Errorf("full design: %w", err)
	}
	proj0, err := linalg.NewProjector(mod0)
	if err != nil {
		return nil, fmt.Errorf("null design: %w", err)
	}

	n := proj1.Samples()
	df1 := proj1.Rank() - proj0.Rank()
	df2 := n - proj1.Rank()
	if df1 < 1 {
		return nil, core.NewInvalidInputError("null design", "no columns to test")
	}
	if df2 < 1 {
		return nil, core.NewSingularDesignError("full design", "no residual degrees of freedom")
	}

	rss1, err := proj1.RowSumSquares(x)
	if err != nil {
		return nil, err
	}
	rss0, err := proj0.RowSumSquares(x)
	if err != nil {
		return nil, err
	}

	total := linalg.RowSumSquares(x)

	dist := distuv.F{D1: float64(df1), D2: float64(df2)}
	res := &Result{
		FStatistics: make([]float64, len(rss1)),
		PValues:     make([]float64, len(rss1)),
		DF1:         df1,
		DF2:         df2,
	}
	for i := range rss1 {
		f, p := statistic(rss0[i], rss1[i], total[i], df1, df2, dist)
		res.FStatistics[i] = f
		res.PValues[i] = p
	}
	return res, nil
}

// exactFitTolerance is the share of a row's total sum of squares below which
// a residual sum of squares is rounding noise.
const exactFitTolerance = 1e-20

func statistic(rss0, rss1, total float64, df1, df2 int, dist distuv.F) (float64, float64) {
	tol := exactFitTolerance * total
	num := rss0 - rss1
	if num <= tol {
		num = 0
	}
	num /= float64(df1)
	if rss1 <= tol {
		// Perfect fit under the full model
		if num > 0 {
			return math.Inf(1), 0
		}
		return 0, 1
	}
	f := num / (rss1 / float64(df2))
	p := 1 - dist.CDF(f)
	return f, math.Min(math.Max(p, 0), 1)
}
