package app

import (
	"context"
	"testing"

	"gosva/domain/core"
	"gosva/domain/run"
	"gosva/internal/linalg"
	"gosva/internal/sva"
	"gosva/internal/testkit"
	"gosva/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func newService(t *testing.T) (*ConfounderService, *testkit.TestKit) {
	t.Helper()
	kit := testkit.NewTestKit()
	return NewConfounderService(kit.Config(), kit.RNGAdapter(), kit.LedgerAdapter()), kit
}

func TestEstimateSurrogateCount_BothMethods(t *testing.T) {
	svc, kit := newService(t)
	data := kit.Expression(testkit.DefaultExpressionConfig())
	ctx := context.Background()

	for _, method := range []string{sva.MethodPermutation, sva.MethodAsymptotic} {
		t.Run(method, func(t *testing.T) {
			count, err := svc.EstimateSurrogateCount(ctx, data.X, data.Mod, data.Mod0, CountRequest{Method: method, Seed: 42})
			require.NoError(t, err)
			assert.InDelta(t, 2, count, 1)
		})
	}

	op := run.OpCount
	manifests, err := kit.LedgerAdapter().ListManifests(ctx, ports.ManifestFilters{Operation: &op})
	require.NoError(t, err)
	require.Len(t, manifests, 2)
	assert.Equal(t, sva.MethodPermutation, manifests[0].Method)
	assert.Equal(t, 20.0, manifests[0].Parameters["permutations"])
	assert.Equal(t, manifests[0].Fingerprint.InputHash, manifests[1].Fingerprint.InputHash)
}

func TestEstimateSurrogateCount_Errors(t *testing.T) {
	svc, kit := newService(t)
	data := kit.Expression(testkit.DefaultExpressionConfig())
	ctx := context.Background()

	_, err := svc.EstimateSurrogateCount(ctx, data.X, data.Mod, nil, CountRequest{Method: "guess"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	stray := mat.NewDense(20, 1, nil)
	for i := 0; i < 20; i++ {
		stray.Set(i, 0, float64(i*i))
	}
	_, err = svc.EstimateSurrogateCount(ctx, data.X, data.Mod, linalg.Augment(data.Mod0, stray), svc.DefaultCountRequest())
	assert.ErrorIs(t, err, core.ErrNestingViolation)

	_, err = svc.EstimateSurrogateCount(ctx, data.X, linalg.Ones(5), nil, svc.DefaultCountRequest())
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestEstimateSurrogates_AutomaticCount(t *testing.T) {
	svc, kit := newService(t)
	data := kit.Expression(testkit.DefaultExpressionConfig())

	res, err := svc.EstimateSurrogates(context.Background(), data.X, data.Mod, data.Mod0, -1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.K, 1)
	assert.LessOrEqual(t, res.K, 3)

	op := run.OpSurrogates
	manifests, err := kit.LedgerAdapter().ListManifests(context.Background(), ports.ManifestFilters{Operation: &op})
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, res.K, manifests[0].Outcome.SurrogateCount)
}

func TestRemoveSurrogates(t *testing.T) {
	svc, kit := newService(t)
	data := kit.Expression(testkit.DefaultExpressionConfig())

	res, err := svc.EstimateSurrogates(context.Background(), data.X, data.Mod, data.Mod0, 2)
	require.NoError(t, err)

	cleaned, err := svc.RemoveSurrogates(data.X, data.Mod, res.Surrogates)
	require.NoError(t, err)

	// nothing left for the surrogates to explain
	coef, err := linalg.Fit(cleaned, linalg.Augment(data.Mod, res.Surrogates))
	require.NoError(t, err)
	m, _ := coef.Dims()
	for i := 0; i < m; i++ {
		assert.InDelta(t, 0, coef.At(i, 2), 1e-8)
		assert.InDelta(t, 0, coef.At(i, 3), 1e-8)
	}

	// the primary effect survives
	after, err := linalg.Fit(cleaned, data.Mod)
	require.NoError(t, err)
	var moved float64
	for i := 0; i < 20; i++ {
		moved += after.At(i, 1) - 0.5
	}
	assert.InDelta(t, 0, moved/20, 0.1)

	copied, err := svc.RemoveSurrogates(data.X, data.Mod, nil)
	require.NoError(t, err)
	assert.True(t, mat.Equal(data.X, copied))
}

func TestRemoveEffect_Idempotent(t *testing.T) {
	svc, kit := newService(t)
	data := kit.Expression(testkit.DefaultExpressionConfig())

	once, err := svc.RemoveEffect(data.X, data.Mod, []int{0, 1})
	require.NoError(t, err)
	twice, err := svc.RemoveEffect(once, data.Mod, []int{0, 1})
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(once, twice, 1e-9))
}

func TestBatchAdjust_ShiftScenario(t *testing.T) {
	svc, kit := newService(t)
	data := kit.Expression(testkit.DefaultBatchConfig())

	res, err := svc.BatchAdjust(context.Background(), data.X, data.Batches, data.Mod, svc.DefaultBatchOptions())
	require.NoError(t, err)

	within := 0
	for i := 0; i < 100; i++ {
		var first, second float64
		for j, b := range data.Batches {
			if b == "batch_1" {
				first += res.Adjusted.At(i, j)
			} else {
				second += res.Adjusted.At(i, j)
			}
		}
		if gap := (second - first) / 10; gap < 0.1 && gap > -0.1 {
			within++
		}
	}
	assert.GreaterOrEqual(t, within, 95)

	op := run.OpCombat
	manifests, err := kit.LedgerAdapter().ListManifests(context.Background(), ports.ManifestFilters{Operation: &op})
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.NotEmpty(t, manifests[0].Fingerprint.LabelHash)
	assert.True(t, manifests[0].Outcome.Converged)
}

func TestPopulationAverageAdjust(t *testing.T) {
	svc, kit := newService(t)
	cfg := testkit.DefaultBatchConfig()
	cfg.BatchFeatures = 40
	cfg.FactorCount = 1
	cfg.FactorLoading = 1
	data := kit.Expression(cfg)

	req := CountRequest{Method: sva.MethodAsymptotic}
	adjusted, err := svc.PopulationAverageAdjust(context.Background(), data.X, data.Batches, req)
	require.NoError(t, err)
	r, c := adjusted.Dims()
	assert.Equal(t, 100, r)
	assert.Equal(t, 20, c)

	_, err = svc.PopulationAverageAdjust(context.Background(), data.X, data.Batches[:3], req)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestFTest_ThroughService(t *testing.T) {
	svc, kit := newService(t)
	data := kit.Expression(testkit.DefaultExpressionConfig())

	res, err := svc.FTest(data.X, data.Mod, data.Mod0)
	require.NoError(t, err)
	assert.Len(t, res.PValues, 100)
	assert.Equal(t, 1, res.DF1)
	assert.Equal(t, 18, res.DF2)

	_, err = svc.FTest(data.X, linalg.Ones(3), nil)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestNewConfounderService_NilLedger(t *testing.T) {
	kit := testkit.NewTestKit()
	svc := NewConfounderService(nil, kit.RNGAdapter(), nil)
	data := kit.Expression(testkit.DefaultExpressionConfig())
	_, err := svc.EstimateSurrogateCount(context.Background(), data.X, data.Mod, nil, CountRequest{Method: sva.MethodAsymptotic})
	assert.NoError(t, err)
}
