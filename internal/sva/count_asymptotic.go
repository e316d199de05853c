package sva

import (
	"fmt"
	"math"

	"gosva/domain/core"

	"gonum.org/v1/gonum/mat"
)

// AsymptoticCount estimates the number of surrogate variables without
// resampling. The residual variance shares are compared against the
// Marchenko–Pastur ratio (1 + √c)² with c = min(q, m)/max(q, m), where q is
// the residual degrees of freedom and m the feature count. Leading rank j
// is counted while its share exceeds EdgeMargin·(1 + √c)² times the mean
// share of ranks j and beyond.
func AsymptoticCount(x, mod mat.Matrix, cfg AsymptoticConfig) (*CountResult, error) {
	if cfg.EdgeMargin <= 0 || math.IsNaN(cfg.EdgeMargin) {
		return nil, core.NewInvalidInputError("edge margin", fmt.Sprintf("%g, must be positive", cfg.EdgeMargin))
	}
	_, _, shares, err := residualSpectrum(x, mod)
	if err != nil {
		return nil, err
	}
	m, _ := x.Dims()
	q := len(shares)
	res := &CountResult{Method: MethodAsymptotic, Statistics: shares}
	if q == 0 {
		return res, nil
	}

	c := float64(min(q, m)) / float64(max(q, m))
	edge := 1 + math.Sqrt(c)
	res.Threshold = cfg.EdgeMargin * edge * edge

	// the trailing rank has nothing to be compared against
	for j := 0; j < q-1; j++ {
		var tail float64
		for _, s := range shares[j:] {
			tail += s
		}
		tail /= float64(q - j)
		if tail <= 0 || shares[j]/tail <= res.Threshold {
			break
		}
		res.Count++
	}
	logger.Debug("asymptotic count %d (c=%.3g threshold=%.3g)", res.Count, c, res.Threshold)
	return res, nil
}
