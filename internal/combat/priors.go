package combat

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// priors are the hyperparameters of one batch, estimated across features
type priors struct {
	gammaBar float64 // location prior mean
	tau2     float64 // location prior variance
	a, b     float64 // inverse-gamma shape and scale for the variance
	// flatScale is set when every feature has the same variance estimate,
	// leaving the inverse-gamma moments undefined
	flatScale bool
}

func estimatePriors(gammaHat, deltaHat []float64) priors {
	var p priors
	p.gammaBar, p.tau2 = stat.MeanVariance(gammaHat, nil)
	if math.IsNaN(p.tau2) {
		p.tau2 = 0
	}
	m, s2 := stat.MeanVariance(deltaHat, nil)
	if !(s2 > 0) {
		p.flatScale = true
		return p
	}
	p.a = (2*s2 + m*m) / s2
	p.b = (m*s2 + m*m*m) / s2
	return p
}

func postMean(gHat, gBar, n, dStar, tau2 float64) float64 {
	return (tau2*n*gHat + dStar*gBar) / (tau2*n + dStar)
}

func postVar(sum2, n, a, b float64) float64 {
	return (0.5*sum2 + b) / (n/2 + a - 1)
}

// ebState is the fixed-point state of the parametric shrinkage
type ebState struct {
	gamma     []float64
	delta     []float64
	iteration int
	change    float64
}

func (s *ebState) converged(tol float64) bool {
	return s.iteration > 0 && s.change < tol
}

// step computes one postmean/postvar update over the batch columns of s
// and records the largest relative change.
func (s *ebState) step(data [][]float64, gammaHat []float64, p priors) {
	change := 0.0
	for i, row := range data {
		n := float64(len(row))
		g := postMean(gammaHat[i], p.gammaBar, n, s.delta[i], p.tau2)
		var sum2 float64
		for _, v := range row {
			sum2 += (v - g) * (v - g)
		}
		d := s.delta[i]
		if !p.flatScale {
			d = postVar(sum2, n, p.a, p.b)
		}
		change = math.Max(change, relativeChange(s.gamma[i], g))
		change = math.Max(change, relativeChange(s.delta[i], d))
		s.gamma[i], s.delta[i] = g, d
	}
	s.change = change
	s.iteration++
}

func relativeChange(old, next float64) float64 {
	if old == 0 {
		return math.Abs(next)
	}
	return math.Abs(next-old) / math.Abs(old)
}

// shrinkParametric iterates the normal/inverse-gamma posterior updates
// from the batch estimates until the relative change drops below tol.
func shrinkParametric(data [][]float64, gammaHat, deltaHat []float64, p priors, tol float64, maxIter int) *ebState {
	s := &ebState{
		gamma:  append([]float64(nil), gammaHat...),
		delta:  append([]float64(nil), deltaHat...),
		change: math.Inf(1),
	}
	for s.iteration < maxIter && !s.converged(tol) {
		s.step(data, gammaHat, p)
	}
	return s
}

// shrinkMeanOnly shrinks the locations once with unit variances.
func shrinkMeanOnly(gammaHat []float64, p priors) []float64 {
	out := make([]float64, len(gammaHat))
	for i, g := range gammaHat {
		out[i] = postMean(g, p.gammaBar, 1, 1, p.tau2)
	}
	return out
}
