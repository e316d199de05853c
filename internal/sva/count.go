package sva

import (
	"fmt"

	"gosva/domain/dataset"
	"gosva/internal/linalg"

	"gonum.org/v1/gonum/mat"
)

// Count methods
const (
	MethodPermutation = "permutation"
	MethodAsymptotic  = "asymptotic"
)

// CountResult is the estimated number of surrogate variables
type CountResult struct {
	Count  int
	Method string
	// Statistics are the observed variance shares of the leading ranks
	Statistics []float64
	// PValues are the monotone permutation p-values; nil for the asymptotic method
	PValues []float64
	// Threshold is the significance level (permutation) or the share
	// ratio edge (asymptotic) a rank had to clear
	Threshold float64
}

// residualSpectrum residualizes x against mod and returns the residuals,
// the projector, and the variance shares of the first ResidualDF squared
// singular values.
func residualSpectrum(x, mod mat.Matrix) (*mat.Dense, *linalg.Projector, []float64, error) {
	if err := linalg.CheckSampleAxis("full design", x, mod); err != nil {
		return nil, nil, nil, err
	}
	if err := dataset.CheckFinite("matrix", x); err != nil {
		return nil, nil, nil, err
	}
	proj, err := linalg.NewProjector(mod)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("full design: %w", err)
	}
	resid, err := proj.Residuals(x)
	if err != nil {
		return nil, nil, nil, err
	}
	sv, err := linalg.SingularValues(resid)
	if err != nil {
		return nil, nil, nil, err
	}
	return resid, proj, varianceShares(sv, proj.ResidualDF()), nil
}

// varianceShares returns d_i² / Σ d_j² over the first q singular values.
// All shares are zero when the spectrum is zero.
func varianceShares(sv []float64, q int) []float64 {
	q = min(q, len(sv))
	if q <= 0 {
		return nil
	}
	shares := make([]float64, q)
	var total float64
	for i := 0; i < q; i++ {
		shares[i] = sv[i] * sv[i]
		total += shares[i]
	}
	if total == 0 {
		return shares
	}
	for i := range shares {
		shares[i] /= total
	}
	return shares
}
