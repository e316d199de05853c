package sva

import (
	"fmt"

	"gosva/internal/linalg"

	"gonum.org/v1/gonum/mat"
)

// PopulationResult is the output of PopulationAverageAdjust
type PopulationResult struct {
	Adjusted   *mat.Dense
	Surrogates *Result
}

// PopulationAverageAdjust removes batch effects while keeping the
// structure that surrogate variables explain.
//
// batchDesign is the intercept followed by batch indicator columns. k
// surrogate variables are estimated for X ~ batch against the intercept,
// X is fitted on [batchDesign, SV], and only the contribution of the
// indicator columns is subtracted.
func PopulationAverageAdjust(x, batchDesign mat.Matrix, k int, cfg EstimatorConfig) (*PopulationResult, error) {
	sv, err := Estimate(x, batchDesign, nil, k, cfg)
	if err != nil {
		return nil, fmt.Errorf("surrogate estimation: %w", err)
	}
	_, nmod := batchDesign.Dims()
	full := linalg.Augment(batchDesign, sv.Surrogates)
	adjusted, err := linalg.RemoveEffect(x, full, linalg.ColumnRange(1, nmod))
	if err != nil {
		return nil, err
	}
	return &PopulationResult{Adjusted: adjusted, Surrogates: sv}, nil
}
