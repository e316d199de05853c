package sva

import (
	"context"
	"testing"

	"gosva/adapters/rng"
	"gosva/domain/core"
	"gosva/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermutationCount_LatentScenario(t *testing.T) {
	data := latentFixture(t)
	res, err := PermutationCount(context.Background(), data.X, data.Mod, rng.NewSeededAdapter(), 42, DefaultPermutationConfig())
	require.NoError(t, err)

	assert.Equal(t, MethodPermutation, res.Method)
	assert.InDelta(t, 2, res.Count, 1)
	assert.Len(t, res.Statistics, 18)
	require.Len(t, res.PValues, 18)
	for i := 1; i < len(res.PValues); i++ {
		assert.GreaterOrEqual(t, res.PValues[i], res.PValues[i-1])
	}
	assert.Equal(t, 0.10, res.Threshold)
}

func TestPermutationCount_DeterministicAcrossWorkers(t *testing.T) {
	data := latentFixture(t)
	adapter := rng.NewSeededAdapter()

	cfg := DefaultPermutationConfig()
	cfg.Workers = 1
	serial, err := PermutationCount(context.Background(), data.X, data.Mod, adapter, 7, cfg)
	require.NoError(t, err)

	cfg.Workers = 4
	parallel, err := PermutationCount(context.Background(), data.X, data.Mod, adapter, 7, cfg)
	require.NoError(t, err)
	assert.Equal(t, serial, parallel)

	again, err := PermutationCount(context.Background(), data.X, data.Mod, adapter, 7, cfg)
	require.NoError(t, err)
	assert.Equal(t, serial, again)
}

func TestPermutationCount_PureNoise(t *testing.T) {
	cfg := testkit.DefaultExpressionConfig()
	cfg.FactorCount = 0
	cfg.SignalFeatures = 0
	cfg.Noise = 1
	data, err := testkit.NewExpressionGenerator(cfg).Generate()
	require.NoError(t, err)

	res, err := PermutationCount(context.Background(), data.X, data.Mod, rng.NewSeededAdapter(), 42, DefaultPermutationConfig())
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Count, 1)
}

func TestDefaultPermutationConfig(t *testing.T) {
	cfg := DefaultPermutationConfig()
	assert.GreaterOrEqual(t, cfg.Permutations, 50)
	assert.Equal(t, 0.10, cfg.SignificanceLevel)
}

func TestPermutationCount_Errors(t *testing.T) {
	data := latentFixture(t)
	adapter := rng.NewSeededAdapter()

	cfg := DefaultPermutationConfig()
	cfg.Permutations = 0
	_, err := PermutationCount(context.Background(), data.X, data.Mod, adapter, 1, cfg)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	cfg = DefaultPermutationConfig()
	cfg.SignificanceLevel = 0
	_, err = PermutationCount(context.Background(), data.X, data.Mod, adapter, 1, cfg)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = PermutationCount(ctx, data.X, data.Mod, adapter, 1, DefaultPermutationConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAsymptoticCount_LatentScenario(t *testing.T) {
	data := latentFixture(t)
	res, err := AsymptoticCount(data.X, data.Mod, DefaultAsymptoticConfig())
	require.NoError(t, err)

	assert.Equal(t, MethodAsymptotic, res.Method)
	assert.InDelta(t, 2, res.Count, 1)
	assert.Nil(t, res.PValues)
	// c = 18/100
	assert.InDelta(t, 2.0285, res.Threshold, 1e-3)
}

func TestAsymptoticCount_EdgeMarginIsConservative(t *testing.T) {
	data := latentFixture(t)
	loose, err := AsymptoticCount(data.X, data.Mod, DefaultAsymptoticConfig())
	require.NoError(t, err)
	strict, err := AsymptoticCount(data.X, data.Mod, AsymptoticConfig{EdgeMargin: 1000})
	require.NoError(t, err)
	assert.LessOrEqual(t, strict.Count, loose.Count)
	assert.Equal(t, 0, strict.Count)

	_, err = AsymptoticCount(data.X, data.Mod, AsymptoticConfig{})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestVarianceShares(t *testing.T) {
	assert.Equal(t, []float64{0.8, 0.2}, varianceShares([]float64{2, 1, 5}, 2))
	assert.Equal(t, []float64{0, 0}, varianceShares([]float64{0, 0}, 2))
	assert.Nil(t, varianceShares([]float64{1}, 0))
}
