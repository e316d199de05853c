package sva

import (
	"fmt"
	"math"

	"gosva/domain/core"
	"gosva/internal"
	"gosva/internal/linalg"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var logger = internal.DefaultLogger.With("sva")

// Result is the output of Estimate
type Result struct {
	// Surrogates is samples × K; nil when K == 0
	Surrogates *mat.Dense
	K          int
	Requested  int
	// Weights from the final reweighting round; nil when no round ran
	Weights    *Weights
	Iterations int
	Delta      float64
	Converged  bool
	// Warning wraps core.ErrNonConvergence when the iteration cap was hit
	Warning error
}

// irwState is the explicit fixed-point state of the reweighting loop
type irwState struct {
	factors   *mat.Dense
	iteration int
	delta     float64
}

// advance replaces the factors and records how far they moved
func (s *irwState) advance(next *mat.Dense) {
	s.delta = FactorDelta(s.factors, next)
	s.factors = next
	s.iteration++
}

func (s *irwState) converged(tol float64) bool {
	return s.iteration > 0 && s.delta < tol
}

// FactorDelta is max_j (1 − |⟨a_j, b_j⟩|) over matching unit columns; zero
// when every column is unchanged up to sign.
func FactorDelta(a, b mat.Matrix) float64 {
	r, k := a.Dims()
	ac, bc := make([]float64, r), make([]float64, r)
	var worst float64
	for j := 0; j < k; j++ {
		mat.Col(ac, j, a)
		mat.Col(bc, j, b)
		worst = math.Max(worst, 1-math.Abs(floats.Dot(ac, bc)))
	}
	return worst
}

// Estimate extracts k surrogate variables from x.
//
// mod is the full design and must contain an intercept; mod0 (nil means
// intercept only) must be nested in mod. The loop alternates between
// scoring features against the current factors and recomputing the
// factors from the reweighted data. Hitting MaxIterations is not an
// error: the last iterate is returned with Converged false and Warning set.
func Estimate(x, mod, mod0 mat.Matrix, k int, cfg EstimatorConfig) (*Result, error) {
	mod0, err := validateInputs(x, mod, mod0)
	if err != nil {
		return nil, err
	}
	if k < 0 {
		return nil, core.NewInvalidInputError("surrogate count", fmt.Sprintf("%d is negative", k))
	}
	if k == 0 {
		return &Result{Converged: true}, nil
	}
	if cfg.MaxIterations < 1 {
		return nil, core.NewInvalidInputError("max iterations", "must be at least 1")
	}

	proj, err := linalg.NewProjector(mod)
	if err != nil {
		return nil, fmt.Errorf("full design: %w", err)
	}
	m, _ := x.Dims()
	// the augmented design must keep one residual degree of freedom
	if limit := min(proj.ResidualDF()-1, m); k > limit {
		return nil, core.NewSingularDesignError("augmented design",
			fmt.Sprintf("%d surrogate variables leave no residual degrees of freedom (at most %d allowed)", k, limit))
	}

	resid, err := proj.Residuals(x)
	if err != nil {
		return nil, err
	}
	initial, _, err := linalg.RightSingularVectors(resid, k)
	if err != nil {
		return nil, err
	}

	state := irwState{factors: initial, delta: math.Inf(1)}
	var weights *Weights
	var values []float64
	for state.iteration < cfg.MaxIterations {
		w, err := FeatureWeights(x, mod, mod0, state.factors, cfg.LFDR)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", state.iteration+1, err)
		}
		next, sv, err := linalg.RightSingularVectors(weightRows(x, w.Combined), k)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", state.iteration+1, err)
		}
		state.advance(next)
		weights, values = w, sv
		logger.Debug("iteration %d/%d delta=%.3g", state.iteration, cfg.MaxIterations, state.delta)

		if state.converged(cfg.Tolerance) {
			break
		}
	}

	kept := retainedFactors(values, k, cfg.CollapseTolerance)
	if kept < k {
		logger.Info("%d of %d surrogate variables collapsed to zero variance", k-kept, k)
	}

	res := &Result{
		K:          kept,
		Requested:  k,
		Weights:    weights,
		Iterations: state.iteration,
		Delta:      state.delta,
		Converged:  state.converged(cfg.Tolerance),
	}
	if kept > 0 {
		n, _ := state.factors.Dims()
		res.Surrogates = mat.DenseCopyOf(state.factors.Slice(0, n, 0, kept))
		centerColumns(res.Surrogates)
	}
	if !res.Converged {
		res.Warning = core.NewNonConvergenceWarning("iteratively reweighted surrogate estimator", state.iteration, state.delta)
		logger.Warn("%v", res.Warning)
	}
	return res, nil
}

// retainedFactors counts leading singular values that are not negligible
// relative to the first.
func retainedFactors(values []float64, k int, tol float64) int {
	if len(values) == 0 || values[0] <= 0 {
		return 0
	}
	kept := 0
	for j := 0; j < k && j < len(values); j++ {
		if values[j] <= tol*values[0] {
			break
		}
		kept++
	}
	return kept
}

func centerColumns(m *mat.Dense) {
	r, c := m.Dims()
	for j := 0; j < c; j++ {
		var mean float64
		for i := 0; i < r; i++ {
			mean += m.At(i, j)
		}
		mean /= float64(r)
		for i := 0; i < r; i++ {
			m.Set(i, j, m.At(i, j)-mean)
		}
	}
}
