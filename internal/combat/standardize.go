package combat

import (
	"fmt"
	"math"

	"gosva/internal/linalg"

	"gonum.org/v1/gonum/mat"
)

// standardized holds the pooled location/scale model of every feature
type standardized struct {
	s         *mat.Dense // (x − standMean)/√varPooled
	standMean *mat.Dense
	sd        []float64
}

// standardize fits x on [batch indicators, covariates] and removes the
// pooled mean and scale. The grand mean is the batch-size weighted mean of
// the batch coefficients, or the reference batch's coefficient.
func standardize(x mat.Matrix, groups []batchGroup, cov *mat.Dense, ref int) (*standardized, error) {
	m, n := x.Dims()
	nb := len(groups)
	design := linalg.Augment(batchDesign(n, groups, ref), cov)
	coef, err := linalg.Fit(x, design)
	if err != nil {
		return nil, fmt.Errorf("batch design with covariates: %w", err)
	}

	var fitted mat.Dense
	fitted.Mul(coef, design.T())

	poolSamples := make([]int, 0, n)
	if ref >= 0 {
		poolSamples = append(poolSamples, groups[ref].samples...)
	} else {
		for j := 0; j < n; j++ {
			poolSamples = append(poolSamples, j)
		}
	}

	out := &standardized{
		s:         mat.NewDense(m, n, nil),
		standMean: mat.NewDense(m, n, nil),
		sd:        make([]float64, m),
	}
	_, p := design.Dims()
	for i := 0; i < m; i++ {
		var pooled float64
		for _, j := range poolSamples {
			r := x.At(i, j) - fitted.At(i, j)
			pooled += r * r
		}
		out.sd[i] = math.Sqrt(pooled / float64(len(poolSamples)))

		grand := 0.0
		if ref >= 0 {
			grand = coef.At(i, ref)
		} else {
			for b, g := range groups {
				grand += float64(len(g.samples)) / float64(n) * coef.At(i, b)
			}
		}
		for j := 0; j < n; j++ {
			mean := grand
			for c := nb; c < p; c++ {
				mean += coef.At(i, c) * design.At(j, c)
			}
			out.standMean.Set(i, j, mean)
			if out.sd[i] > 0 {
				out.s.Set(i, j, (x.At(i, j)-mean)/out.sd[i])
			}
		}
	}
	return out, nil
}

// batchMoments returns the per-feature mean and sample variance of s
// over one batch's samples. Variances are 1 when meanOnly.
func batchMoments(s *mat.Dense, g batchGroup, meanOnly bool) (gamma, delta []float64) {
	m, _ := s.Dims()
	gamma = make([]float64, m)
	delta = make([]float64, m)
	k := float64(len(g.samples))
	for i := 0; i < m; i++ {
		var sum float64
		for _, j := range g.samples {
			sum += s.At(i, j)
		}
		mean := sum / k
		gamma[i] = mean
		if meanOnly {
			delta[i] = 1
			continue
		}
		var ss float64
		for _, j := range g.samples {
			d := s.At(i, j) - mean
			ss += d * d
		}
		delta[i] = ss / (k - 1)
	}
	return gamma, delta
}
