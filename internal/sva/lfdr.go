package sva

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// EdgeLFDR converts p-values into local false discovery rates: the
// posterior probability that each test is null. P-values are probit
// transformed, their density is estimated with a Gaussian kernel, and
// lfdr = π0·φ(z)/f(z), truncated at 1 and made monotone in p.
func EdgeLFDR(p []float64, cfg LFDRConfig) []float64 {
	n := len(p)
	out := make([]float64, n)
	if n < 2 {
		for i := range out {
			out[i] = 1
		}
		return out
	}

	pi0 := nullProportion(p, cfg.Lambda)

	z := make([]float64, n)
	for i, v := range p {
		v = math.Min(math.Max(v, cfg.Epsilon), 1-cfg.Epsilon)
		z[i] = distuv.UnitNormal.Quantile(v)
	}

	density := kernelDensity(z, cfg.Adjust*bandwidth(z), cfg.GridSize)
	for i, zi := range z {
		f := density(zi)
		if f <= 0 {
			out[i] = 1
			continue
		}
		out[i] = math.Min(pi0*distuv.UnitNormal.Prob(zi)/f, 1)
	}

	// Monotone: cumulative max along increasing p
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return p[order[a]] < p[order[b]] })
	running := 0.0
	for _, idx := range order {
		running = math.Max(running, out[idx])
		out[idx] = running
	}
	return out
}

func nullProportion(p []float64, lambda float64) float64 {
	above := 0
	for _, v := range p {
		if v >= lambda {
			above++
		}
	}
	return math.Min(float64(above)/(float64(len(p))*(1-lambda)), 1)
}

// bandwidth is Silverman's rule of thumb, 0.9·min(sd, IQR/1.34)·n^(-1/5)
func bandwidth(z []float64) float64 {
	data := stats.Float64Data(z)
	sd, _ := stats.StandardDeviationSample(data)
	iqr, err := stats.InterQuartileRange(data)
	lo := sd
	if err == nil && iqr > 0 {
		lo = math.Min(sd, iqr/1.34)
	}
	if lo <= 0 || math.IsNaN(lo) {
		lo = math.Abs(z[0])
	}
	if lo == 0 {
		lo = 1
	}
	return 0.9 * lo * math.Pow(float64(len(z)), -0.2)
}

// kernelDensity evaluates a Gaussian KDE on an even grid spanning the data
// ± 3 bandwidths and returns a linear interpolant of it.
func kernelDensity(z []float64, bw float64, gridSize int) func(float64) float64 {
	if gridSize < 2 {
		gridSize = 2
	}
	lo, hi := z[0], z[0]
	for _, v := range z {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	lo -= 3 * bw
	hi += 3 * bw
	step := (hi - lo) / float64(gridSize-1)

	kernel := distuv.Normal{Mu: 0, Sigma: bw}
	grid := make([]float64, gridSize)
	for g := range grid {
		x := lo + float64(g)*step
		var s float64
		for _, v := range z {
			s += kernel.Prob(x - v)
		}
		grid[g] = s / float64(len(z))
	}

	return func(x float64) float64 {
		if step == 0 {
			return grid[0]
		}
		pos := (x - lo) / step
		i := int(math.Floor(pos))
		if i < 0 {
			return grid[0]
		}
		if i >= gridSize-1 {
			return grid[gridSize-1]
		}
		frac := pos - float64(i)
		return grid[i]*(1-frac) + grid[i+1]*frac
	}
}
