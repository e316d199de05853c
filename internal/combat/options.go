// Package combat removes known batch effects with location/scale
// empirical Bayes shrinkage. Each feature is standardized against a
// pooled model, per-batch mean and variance shifts are estimated, shrunk
// toward priors shared across features, and divided back out.
package combat

import (
	"fmt"

	"gosva/domain/core"
)

// Options controls one adjustment
type Options struct {
	// Parametric selects normal/inverse-gamma priors; false uses the
	// leave-one-feature-out empirical estimator
	Parametric bool
	// MeanOnly adjusts location only; every batch keeps its variance
	MeanOnly bool
	// RefBatch, when set, names a batch left untouched; the others are
	// moved onto it
	RefBatch      string
	Tolerance     float64 // relative change that ends the parametric iteration
	MaxIterations int
	Workers       int // batches fitted concurrently; < 1 means GOMAXPROCS
}

// DefaultOptions returns parametric adjustment with a 1e-4 tolerance
func DefaultOptions() Options {
	return Options{
		Parametric:    true,
		Tolerance:     1e-4,
		MaxIterations: 1000,
	}
}

func (o Options) validate() error {
	if !(o.Tolerance > 0) {
		return core.NewInvalidInputError("tolerance", fmt.Sprintf("%g, must be positive", o.Tolerance))
	}
	if o.MaxIterations < 1 {
		return core.NewInvalidInputError("max iterations", fmt.Sprintf("%d, need at least 1", o.MaxIterations))
	}
	return nil
}
