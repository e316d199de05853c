package combat

import (
	"context"
	"fmt"
	"math"

	"gosva/domain/core"
	"gosva/domain/dataset"
	"gosva/internal"
	"gosva/internal/linalg"
	"gosva/internal/workers"

	"gonum.org/v1/gonum/mat"
)

var logger = internal.DefaultLogger.With("combat")

// Result is the output of Adjust
type Result struct {
	Adjusted  *mat.Dense
	Batches   []BatchFit
	Reference string
	// PassThrough lists features returned unchanged because they are
	// constant inside some batch
	PassThrough []int
	// Warnings wrap core.ErrNonConvergence for batches whose parametric
	// iteration hit the cap
	Warnings []error
}

// BatchFit summarizes the shrinkage of one batch
type BatchFit struct {
	Label      string
	Size       int
	GammaBar   float64
	Tau2       float64
	APrior     float64
	BPrior     float64
	Iterations int
	Change     float64 // last relative change of the parametric iteration
	Converged  bool
	// GammaStar and DeltaStar are the adjusted location and scale of each
	// adjusted feature; nil for a single batch
	GammaStar []float64
	DeltaStar []float64
}

// Adjust removes the batch effect described by labels from x. design holds
// biological covariates to preserve (nil for none); intercept columns in
// it are ignored. x is never modified.
func Adjust(ctx context.Context, x mat.Matrix, labels []string, design mat.Matrix, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	m, n := x.Dims()
	if len(labels) != n {
		return nil, core.NewDimensionMismatchError("batch labels", len(labels), n)
	}
	cov := covariates(design)
	if cov != nil {
		if err := linalg.CheckSampleAxis("covariate design", x, cov); err != nil {
			return nil, err
		}
	}
	if err := dataset.CheckFinite("matrix", x); err != nil {
		return nil, err
	}

	groups := groupBatches(labels)
	if err := checkBatchSizes(groups); err != nil {
		return nil, err
	}
	ref, err := referenceIndex(groups, opts.RefBatch)
	if err != nil {
		return nil, err
	}

	if len(groups) == 1 {
		logger.Info("single batch %q, nothing to adjust", groups[0].label)
		return &Result{
			Adjusted:  mat.DenseCopyOf(x),
			Batches:   []BatchFit{{Label: groups[0].label, Size: n, Converged: true}},
			Reference: opts.RefBatch,
		}, nil
	}

	std, err := standardize(x, groups, cov, ref)
	if err != nil {
		return nil, err
	}

	constant := constantWithinBatch(x, groups)
	var kept, passThrough []int
	for i := 0; i < m; i++ {
		if constant[i] || !(std.sd[i] > 0) {
			passThrough = append(passThrough, i)
			continue
		}
		kept = append(kept, i)
	}
	if len(passThrough) > 0 {
		logger.Info("%d of %d features are constant within a batch and pass through", len(passThrough), m)
	}

	res := &Result{
		Batches:     make([]BatchFit, len(groups)),
		Reference:   opts.RefBatch,
		PassThrough: passThrough,
	}
	err = workers.Run(ctx, opts.Workers, len(groups), func(ctx context.Context, b int) error {
		res.Batches[b] = fitBatch(std.s, groups[b], kept, b == ref, opts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, fit := range res.Batches {
		if !fit.Converged {
			w := core.NewNonConvergenceWarning(fmt.Sprintf("empirical Bayes batch %q", fit.Label), fit.Iterations, fit.Change)
			res.Warnings = append(res.Warnings, w)
			logger.Warn("%v", w)
		}
	}

	res.Adjusted = mat.DenseCopyOf(x)
	for b, g := range groups {
		if b == ref {
			continue
		}
		fit := res.Batches[b]
		for k, i := range kept {
			scale := math.Sqrt(fit.DeltaStar[k])
			for _, j := range g.samples {
				v := (std.s.At(i, j) - fit.GammaStar[k]) / scale
				res.Adjusted.Set(i, j, v*std.sd[i]+std.standMean.At(i, j))
			}
		}
	}
	logger.Debug("adjusted %d features across %d batches", len(kept), len(groups))
	return res, nil
}

// fitBatch estimates and shrinks the location/scale of one batch over the
// kept features.
func fitBatch(s *mat.Dense, g batchGroup, kept []int, isRef bool, opts Options) BatchFit {
	fit := BatchFit{Label: g.label, Size: len(g.samples), Converged: true}
	gammaAll, deltaAll := batchMoments(s, g, opts.MeanOnly)

	gammaHat := make([]float64, len(kept))
	deltaHat := make([]float64, len(kept))
	data := make([][]float64, len(kept))
	for k, i := range kept {
		gammaHat[k], deltaHat[k] = gammaAll[i], deltaAll[i]
		row := make([]float64, len(g.samples))
		for c, j := range g.samples {
			row[c] = s.At(i, j)
		}
		data[k] = row
	}

	p := estimatePriors(gammaHat, deltaHat)
	fit.GammaBar, fit.Tau2, fit.APrior, fit.BPrior = p.gammaBar, p.tau2, p.a, p.b

	if isRef {
		fit.GammaStar = make([]float64, len(kept))
		fit.DeltaStar = make([]float64, len(kept))
		for k := range fit.DeltaStar {
			fit.DeltaStar[k] = 1
		}
		return fit
	}

	switch {
	case opts.Parametric && opts.MeanOnly:
		fit.GammaStar = shrinkMeanOnly(gammaHat, p)
		fit.DeltaStar = deltaHat
	case opts.Parametric:
		state := shrinkParametric(data, gammaHat, deltaHat, p, opts.Tolerance, opts.MaxIterations)
		fit.GammaStar, fit.DeltaStar = state.gamma, state.delta
		fit.Iterations, fit.Change = state.iteration, state.change
		fit.Converged = state.converged(opts.Tolerance)
		logger.Debug("batch %q converged=%v after %d iterations", g.label, fit.Converged, fit.Iterations)
	default:
		fit.GammaStar, fit.DeltaStar = shrinkNonparametric(data, gammaHat, deltaHat)
		if opts.MeanOnly {
			for k := range fit.DeltaStar {
				fit.DeltaStar[k] = 1
			}
		}
	}
	return fit
}
