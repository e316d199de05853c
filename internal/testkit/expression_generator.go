package testkit

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ExpressionGeneratorConfig configures the synthetic expression generator
type ExpressionGeneratorConfig struct {
	FeatureCount int `json:"feature_count"`
	SampleCount  int `json:"sample_count"`

	// Primary variable alternates 0/1 across samples and shifts the first
	// SignalFeatures rows by SignalEffect
	SignalFeatures int     `json:"signal_features"`
	SignalEffect   float64 `json:"signal_effect"`

	// Latent factors are standard normal per sample; loadings are
	// N(0, FactorLoading²) per feature
	FactorCount   int     `json:"factor_count"`
	FactorLoading float64 `json:"factor_loading"`
	// FactorBatchShift moves the factor mean by b·FactorBatchShift in
	// batch b, confounding the latent structure with batch
	FactorBatchShift float64 `json:"factor_batch_shift"`

	// Samples are split into BatchCount contiguous blocks; block b adds
	// b·BatchShift to every feature and scales its noise by 1 + b·BatchScale
	BatchCount int     `json:"batch_count"`
	BatchShift float64 `json:"batch_shift"`
	BatchScale float64 `json:"batch_scale"`
	// BatchFeatures limits the shift to the first rows; 0 shifts every row
	BatchFeatures int `json:"batch_features"`

	Noise float64 `json:"noise"`
	Seed  int64   `json:"seed"`
}

// DefaultExpressionConfig is 100 features × 20 samples with two latent
// factors and a primary effect on the first 20 features
func DefaultExpressionConfig() ExpressionGeneratorConfig {
	return ExpressionGeneratorConfig{
		FeatureCount:   100,
		SampleCount:    20,
		SignalFeatures: 20,
		SignalEffect:   0.5,
		FactorCount:    2,
		FactorLoading:  1.0,
		BatchCount:     1,
		Noise:          0.1,
		Seed:           42,
	}
}

// DefaultBatchConfig is 100 features × 20 samples in two batches of ten,
// the second shifted by +2
func DefaultBatchConfig() ExpressionGeneratorConfig {
	return ExpressionGeneratorConfig{
		FeatureCount: 100,
		SampleCount:  20,
		BatchCount:   2,
		BatchShift:   2.0,
		Noise:        0.1,
		Seed:         42,
	}
}

// Expression is one generated data set with its ground truth
type Expression struct {
	X       *mat.Dense // features × samples
	Primary []float64
	Batches []string
	Factors *mat.Dense // samples × FactorCount; nil without factors
	Mod     *mat.Dense // intercept, primary
	Mod0    *mat.Dense // intercept
}

// ExpressionGenerator draws synthetic features × samples matrices
type ExpressionGenerator struct {
	config ExpressionGeneratorConfig
	rng    *rand.Rand
}

// NewExpressionGenerator creates a new generator
func NewExpressionGenerator(config ExpressionGeneratorConfig) *ExpressionGenerator {
	return &ExpressionGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate draws one data set
func (g *ExpressionGenerator) Generate() (*Expression, error) {
	cfg := g.config
	m, n := cfg.FeatureCount, cfg.SampleCount
	if m < 1 || n < 2 {
		return nil, fmt.Errorf("need at least 1 feature and 2 samples, got %d × %d", m, n)
	}
	batches := max(cfg.BatchCount, 1)
	if n%batches != 0 {
		return nil, fmt.Errorf("%d samples do not split into %d equal batches", n, batches)
	}
	perBatch := n / batches

	out := &Expression{
		X:       mat.NewDense(m, n, nil),
		Primary: make([]float64, n),
		Batches: make([]string, n),
		Mod:     mat.NewDense(n, 2, nil),
		Mod0:    mat.NewDense(n, 1, nil),
	}
	batchIndex := make([]int, n)
	for j := 0; j < n; j++ {
		out.Primary[j] = float64(j % 2)
		batchIndex[j] = j / perBatch
		out.Batches[j] = fmt.Sprintf("batch_%d", batchIndex[j]+1)
		out.Mod.Set(j, 0, 1)
		out.Mod.Set(j, 1, out.Primary[j])
		out.Mod0.Set(j, 0, 1)
	}

	if cfg.FactorCount > 0 {
		out.Factors = mat.NewDense(n, cfg.FactorCount, nil)
		for j := 0; j < n; j++ {
			for f := 0; f < cfg.FactorCount; f++ {
				out.Factors.Set(j, f, g.rng.NormFloat64()+float64(batchIndex[j])*cfg.FactorBatchShift)
			}
		}
	}

	loadings := make([]float64, cfg.FactorCount)
	for i := 0; i < m; i++ {
		baseline := 5 + g.rng.NormFloat64()
		for f := range loadings {
			loadings[f] = cfg.FactorLoading * g.rng.NormFloat64()
		}
		effect := 0.0
		if i < cfg.SignalFeatures {
			effect = cfg.SignalEffect
		}
		shift := cfg.BatchShift
		if cfg.BatchFeatures > 0 && i >= cfg.BatchFeatures {
			shift = 0
		}
		for j := 0; j < n; j++ {
			b := float64(batchIndex[j])
			v := baseline + effect*out.Primary[j] + b*shift
			for f, l := range loadings {
				v += l * out.Factors.At(j, f)
			}
			v += cfg.Noise * (1 + b*cfg.BatchScale) * g.rng.NormFloat64()
			out.X.Set(i, j, v)
		}
	}
	return out, nil
}
