package app

import (
	"context"
	"fmt"
	"time"

	"gosva/domain/core"
	"gosva/domain/design"
	"gosva/domain/run"
	"gosva/internal"
	"gosva/internal/combat"
	"gosva/internal/config"
	"gosva/internal/ftest"
	"gosva/internal/linalg"
	"gosva/internal/sva"
	"gosva/internal/workers"
	"gosva/ports"

	"gonum.org/v1/gonum/mat"
)

var logger = internal.DefaultLogger.With("service")

// ConfounderService is the library entry point: surrogate counting and
// estimation, effect removal, batch adjustment and F-tests, with every
// call recorded as a run manifest when a ledger is attached.
type ConfounderService struct {
	config  *config.Config
	rngPort ports.RNGPort
	ledger  ports.LedgerWriterPort
	limiter *workers.Limiter
}

// CountRequest selects how surrogate variables are counted. Zero Method
// and B fall back to the configuration.
type CountRequest struct {
	Method string // sva.MethodPermutation or sva.MethodAsymptotic
	B      int    // permutation rounds
	Seed   int64
}

// NewConfounderService creates the service. ledger may be nil.
func NewConfounderService(cfg *config.Config, rngPort ports.RNGPort, ledger ports.LedgerWriterPort) *ConfounderService {
	if cfg == nil {
		cfg = config.Default()
	}
	return &ConfounderService{
		config:  cfg,
		rngPort: rngPort,
		ledger:  ledger,
		limiter: workers.NewLimiter(int64(cfg.Runtime.Workers)),
	}
}

// DefaultCountRequest returns the configured method, rounds and seed
func (s *ConfounderService) DefaultCountRequest() CountRequest {
	return CountRequest{
		Method: s.config.Surrogate.CountMethod,
		B:      s.config.Permutation.Permutations,
		Seed:   s.config.Runtime.Seed,
	}
}

// DefaultBatchOptions returns parametric adjustment with configured limits
func (s *ConfounderService) DefaultBatchOptions() combat.Options {
	opts := combat.DefaultOptions()
	opts.Tolerance = s.config.Batch.Tolerance
	opts.MaxIterations = s.config.Batch.MaxIterations
	opts.Workers = s.config.Runtime.Workers
	return opts
}

func (s *ConfounderService) estimatorConfig() sva.EstimatorConfig {
	cfg := sva.DefaultEstimatorConfig()
	cfg.MaxIterations = s.config.Surrogate.MaxIterations
	cfg.Tolerance = s.config.Surrogate.Tolerance
	return cfg
}

// CountSurrogates estimates the number of surrogate variables and returns
// the full count diagnostics. mod0 is only checked for nesting.
func (s *ConfounderService) CountSurrogates(ctx context.Context, x, mod, mod0 mat.Matrix, req CountRequest) (*sva.CountResult, error) {
	if err := checkDesigns(x, mod, mod0); err != nil {
		return nil, err
	}
	if req.Method == "" {
		req.Method = s.config.Surrogate.CountMethod
	}
	if req.B == 0 {
		req.B = s.config.Permutation.Permutations
	}

	var res *sva.CountResult
	err := s.limiter.Do(ctx, s.limiter.Capacity(), func() error {
		var err error
		switch req.Method {
		case sva.MethodPermutation:
			cfg := sva.PermutationConfig{
				Permutations:      req.B,
				SignificanceLevel: s.config.Permutation.SignificanceLevel,
				Workers:           s.config.Runtime.Workers,
			}
			res, err = sva.PermutationCount(ctx, x, mod, s.rngPort, req.Seed, cfg)
		case sva.MethodAsymptotic:
			res, err = sva.AsymptoticCount(x, mod, sva.AsymptoticConfig{EdgeMargin: s.config.Asymptotic.EdgeMargin})
		default:
			err = core.NewInvalidInputError("count method", fmt.Sprintf("unknown method %q", req.Method))
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("%s count: %d surrogate variable(s)", res.Method, res.Count)
	m := s.manifest(run.OpCount, res.Method, x, mod, nil, req.Seed)
	m.SetParameter("threshold", res.Threshold)
	if req.Method == sva.MethodPermutation {
		m.SetParameter("permutations", float64(req.B))
	}
	m.Outcome = run.Outcome{SurrogateCount: res.Count, Converged: true}
	s.record(ctx, m)
	return res, nil
}

// EstimateSurrogateCount returns only the number of surrogate variables
func (s *ConfounderService) EstimateSurrogateCount(ctx context.Context, x, mod, mod0 mat.Matrix, req CountRequest) (int, error) {
	res, err := s.CountSurrogates(ctx, x, mod, mod0, req)
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// EstimateSurrogates extracts k surrogate variables; k < 0 counts them
// first with the default request.
func (s *ConfounderService) EstimateSurrogates(ctx context.Context, x, mod, mod0 mat.Matrix, k int) (*sva.Result, error) {
	if k < 0 {
		count, err := s.EstimateSurrogateCount(ctx, x, mod, mod0, s.DefaultCountRequest())
		if err != nil {
			return nil, fmt.Errorf("counting surrogate variables: %w", err)
		}
		k = count
	}

	start := time.Now()
	var res *sva.Result
	err := s.limiter.Do(ctx, 1, func() error {
		var err error
		res, err = sva.Estimate(x, mod, mod0, k, s.estimatorConfig())
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("estimated %d surrogate variable(s) in %d iteration(s) (%.1fms)",
		res.K, res.Iterations, float64(time.Since(start).Microseconds())/1e3)

	m := s.manifest(run.OpSurrogates, "irw", x, mod, nil, 0)
	m.SetParameter("requested", float64(k)).
		SetParameter("tolerance", s.config.Surrogate.Tolerance).
		SetParameter("max_iterations", float64(s.config.Surrogate.MaxIterations))
	m.Outcome = outcomeOf(res)
	s.record(ctx, m)
	return res, nil
}

// RemoveEffect subtracts the contribution of the selected design columns
func (s *ConfounderService) RemoveEffect(x, d mat.Matrix, cols []int) (*mat.Dense, error) {
	out, err := linalg.RemoveEffect(x, d, cols)
	if err != nil {
		return nil, err
	}
	m := s.manifest(run.OpClean, "effect", x, d, nil, 0)
	m.SetParameter("columns", float64(len(cols)))
	m.Outcome = run.Outcome{Converged: true}
	s.record(context.Background(), m)
	return out, nil
}

// RemoveSurrogates fits x on [mod, sv] and removes only the surrogate
// contribution. A nil sv returns a copy of x.
func (s *ConfounderService) RemoveSurrogates(x, mod mat.Matrix, sv *mat.Dense) (*mat.Dense, error) {
	if err := linalg.CheckSampleAxis("full design", x, mod); err != nil {
		return nil, err
	}
	if sv == nil {
		return mat.DenseCopyOf(x), nil
	}
	if err := linalg.CheckSampleAxis("surrogate variables", x, sv); err != nil {
		return nil, err
	}
	_, p := mod.Dims()
	_, k := sv.Dims()
	return s.RemoveEffect(x, linalg.Augment(mod, sv), linalg.ColumnRange(p, p+k))
}

// BatchAdjust removes known batch effects; d holds covariates to preserve
// and may be nil.
func (s *ConfounderService) BatchAdjust(ctx context.Context, x mat.Matrix, labels []string, d mat.Matrix, opts combat.Options) (*combat.Result, error) {
	if opts.Workers == 0 {
		opts.Workers = s.config.Runtime.Workers
	}
	var res *combat.Result
	err := s.limiter.Do(ctx, int64(opts.Workers), func() error {
		var err error
		res, err = combat.Adjust(ctx, x, labels, d, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("batch adjustment over %d batch(es), %d feature(s) passed through", len(res.Batches), len(res.PassThrough))

	method := "parametric"
	if !opts.Parametric {
		method = "nonparametric"
	}
	m := s.manifest(run.OpCombat, method, x, d, labels, 0)
	m.SetParameter("tolerance", opts.Tolerance).SetParameter("max_iterations", float64(opts.MaxIterations))
	if opts.MeanOnly {
		m.SetParameter("mean_only", 1)
	}
	m.Outcome = run.Outcome{Converged: len(res.Warnings) == 0}
	if len(res.Warnings) > 0 {
		m.Outcome.Warning = res.Warnings[0].Error()
	}
	s.record(ctx, m)
	return res, nil
}

// PopulationAverageAdjust removes batch effects but keeps what surrogate
// variables estimated against batch explain.
func (s *ConfounderService) PopulationAverageAdjust(ctx context.Context, x mat.Matrix, labels []string, req CountRequest) (*mat.Dense, error) {
	_, n := x.Dims()
	if len(labels) != n {
		return nil, core.NewDimensionMismatchError("batch labels", len(labels), n)
	}
	batch, err := design.OneHot("batch", labels, "", true)
	if err != nil {
		return nil, err
	}
	count, err := s.EstimateSurrogateCount(ctx, x, batch.Matrix, nil, req)
	if err != nil {
		return nil, fmt.Errorf("counting surrogate variables: %w", err)
	}

	var res *sva.PopulationResult
	err = s.limiter.Do(ctx, 1, func() error {
		var err error
		res, err = sva.PopulationAverageAdjust(x, batch.Matrix, count, s.estimatorConfig())
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("population-average adjustment kept %d surrogate variable(s)", res.Surrogates.K)

	m := s.manifest(run.OpPopulation, "irw", x, batch.Matrix, labels, req.Seed)
	m.Outcome = outcomeOf(res.Surrogates)
	s.record(ctx, m)
	return res.Adjusted, nil
}

// FTest runs the nested-model F-test on every feature
func (s *ConfounderService) FTest(x, mod, mod0 mat.Matrix) (*ftest.Result, error) {
	res, err := ftest.FTest(x, mod, mod0)
	if err != nil {
		return nil, err
	}
	m := s.manifest(run.OpFTest, "f", x, mod, nil, 0)
	m.SetParameter("df1", float64(res.DF1)).SetParameter("df2", float64(res.DF2))
	m.Outcome = run.Outcome{Converged: true}
	s.record(context.Background(), m)
	return res, nil
}

func checkDesigns(x, mod, mod0 mat.Matrix) error {
	if err := linalg.CheckSampleAxis("full design", x, mod); err != nil {
		return err
	}
	if mod0 == nil {
		return nil
	}
	if d, ok := mod0.(*mat.Dense); ok && d == nil {
		return nil
	}
	if err := linalg.CheckSampleAxis("null design", x, mod0); err != nil {
		return err
	}
	return linalg.CheckNested(mod, mod0)
}

func outcomeOf(res *sva.Result) run.Outcome {
	out := run.Outcome{
		SurrogateCount: res.K,
		Iterations:     res.Iterations,
		Converged:      res.Converged,
	}
	if res.Iterations > 0 {
		out.Delta = res.Delta
	}
	if res.Warning != nil {
		out.Warning = res.Warning.Error()
	}
	return out
}

func (s *ConfounderService) manifest(op run.Operation, method string, x, d mat.Matrix, labels []string, seed int64) *run.Manifest {
	m, n := x.Dims()
	in := run.Inputs{Matrix: core.ComputeMatrixHash(x), Features: m, Samples: n}
	if d != nil {
		if dense, ok := d.(*mat.Dense); !ok || dense != nil {
			in.Design = core.ComputeMatrixHash(d)
		}
	}
	if labels != nil {
		in.Labels = core.ComputeLabelHash(labels)
	}
	return run.NewManifest(op, method, in, seed)
}

// record stores a manifest; failures are logged and never fail the call
func (s *ConfounderService) record(ctx context.Context, m *run.Manifest) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.StoreManifest(ctx, m); err != nil {
		logger.Warn("failed to store manifest %s: %v", m.RunID, err)
		return
	}
	logger.Debug("stored manifest %s (%s)", m.RunID, m.Operation)
}
