package sva

import (
	"fmt"

	"gosva/internal/ftest"
	"gosva/internal/linalg"

	"gonum.org/v1/gonum/mat"
)

// Weights are the per-feature probabilities behind one reweighting round
type Weights struct {
	// Primary is the probability that a feature is associated with the
	// primary variable (Mod beyond Mod0) given the current factors
	Primary []float64
	// Factor is the probability that a feature is associated with the factors
	Factor []float64
	// Combined = Factor·(1 − Primary): high for features driven by the
	// factors and not by the primary variable
	Combined []float64
}

// FeatureWeights scores every feature of x against candidate factors.
// It is a pure function of its inputs.
func FeatureWeights(x, mod, mod0, factors mat.Matrix, cfg LFDRConfig) (*Weights, error) {
	pPrimary, err := ftest.PValues(x, linalg.Augment(mod, factors), linalg.Augment(mod0, factors))
	if err != nil {
		return nil, fmt.Errorf("primary association test: %w", err)
	}
	pFactor, err := ftest.PValues(x, linalg.Augment(mod0, factors), mod0)
	if err != nil {
		return nil, fmt.Errorf("factor association test: %w", err)
	}

	lfdrPrimary := EdgeLFDR(pPrimary, cfg)
	lfdrFactor := EdgeLFDR(pFactor, cfg)

	w := &Weights{
		Primary:  make([]float64, len(pPrimary)),
		Factor:   make([]float64, len(pFactor)),
		Combined: make([]float64, len(pFactor)),
	}
	for i := range w.Combined {
		w.Primary[i] = 1 - lfdrPrimary[i]
		w.Factor[i] = 1 - lfdrFactor[i]
		w.Combined[i] = w.Factor[i] * (1 - w.Primary[i])
	}
	return w, nil
}

// weightRows scales row i of x by w[i] and centers every row.
func weightRows(x mat.Matrix, w []float64) *mat.Dense {
	out := mat.DenseCopyOf(x)
	r, _ := out.Dims()
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		for j := range row {
			row[j] *= w[i]
		}
	}
	linalg.CenterRows(out)
	return out
}
