package sva

// EstimatorConfig controls the iteratively reweighted estimator
type EstimatorConfig struct {
	MaxIterations int     // rounds of reweighting before the last iterate is returned
	Tolerance     float64 // convergence when max_j (1 − |⟨u_old_j, u_new_j⟩|) drops below this
	// CollapseTolerance drops factors whose singular value is below this
	// fraction of the leading one
	CollapseTolerance float64
	LFDR              LFDRConfig
}

// DefaultEstimatorConfig returns the estimator defaults
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		MaxIterations:     10,
		Tolerance:         1e-4,
		CollapseTolerance: 1e-8,
		LFDR:              DefaultLFDRConfig(),
	}
}

// PermutationConfig controls the randomization count
type PermutationConfig struct {
	Permutations      int
	SignificanceLevel float64 // a rank counts when its permutation p-value is at most this
	Workers           int     // concurrent rounds; < 1 means GOMAXPROCS
}

// DefaultPermutationConfig returns the permutation defaults
func DefaultPermutationConfig() PermutationConfig {
	return PermutationConfig{
		Permutations:      50,
		SignificanceLevel: 0.10,
	}
}

// AsymptoticConfig controls the random-matrix threshold count
type AsymptoticConfig struct {
	// EdgeMargin scales the Marchenko–Pastur edge; > 1 is more conservative
	EdgeMargin float64
}

// DefaultAsymptoticConfig returns the asymptotic defaults
func DefaultAsymptoticConfig() AsymptoticConfig {
	return AsymptoticConfig{EdgeMargin: 1.0}
}

// LFDRConfig controls the local false discovery rate used for feature weights
type LFDRConfig struct {
	Lambda   float64 // p-values at or above lambda estimate the null proportion
	Adjust   float64 // kernel bandwidth multiplier
	Epsilon  float64 // p-values are clamped to [eps, 1 − eps] before the probit transform
	GridSize int     // density evaluation points
}

// DefaultLFDRConfig returns the lfdr defaults
func DefaultLFDRConfig() LFDRConfig {
	return LFDRConfig{
		Lambda:   0.8,
		Adjust:   1.5,
		Epsilon:  1e-8,
		GridSize: 512,
	}
}
