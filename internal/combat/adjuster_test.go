package combat

import (
	"context"
	"math"
	"testing"

	"gosva/domain/core"
	"gosva/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func shiftFixture(t *testing.T, mutate func(*testkit.ExpressionGeneratorConfig)) *testkit.Expression {
	t.Helper()
	cfg := testkit.DefaultBatchConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	data, err := testkit.NewExpressionGenerator(cfg).Generate()
	require.NoError(t, err)
	return data
}

// batchSummary returns, per feature, |mean(batch_2) − mean(batch_1)| and
// sd(batch_2)/sd(batch_1).
func batchSummary(x *mat.Dense, batches []string) (meanGap, sdRatio []float64) {
	m, _ := x.Dims()
	meanGap = make([]float64, m)
	sdRatio = make([]float64, m)
	for i := 0; i < m; i++ {
		var first, second []float64
		for j, b := range batches {
			if b == "batch_1" {
				first = append(first, x.At(i, j))
			} else {
				second = append(second, x.At(i, j))
			}
		}
		m1, v1 := stat.MeanVariance(first, nil)
		m2, v2 := stat.MeanVariance(second, nil)
		meanGap[i] = math.Abs(m2 - m1)
		sdRatio[i] = math.Sqrt(v2 / v1)
	}
	return meanGap, sdRatio
}

func countBelow(v []float64, limit float64) int {
	n := 0
	for _, x := range v {
		if x < limit {
			n++
		}
	}
	return n
}

func mean(v []float64) float64 {
	return stat.Mean(v, nil)
}

func TestAdjust_RemovesShift(t *testing.T) {
	data := shiftFixture(t, nil)
	before, _ := batchSummary(data.X, data.Batches)
	assert.Equal(t, 0, countBelow(before, 1), "fixture carries the shift")

	for name, opts := range map[string]Options{
		"parametric":    DefaultOptions(),
		"nonparametric": {Tolerance: 1e-4, MaxIterations: 1000},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := Adjust(context.Background(), data.X, data.Batches, data.Mod, opts)
			require.NoError(t, err)
			gap, _ := batchSummary(res.Adjusted, data.Batches)
			assert.GreaterOrEqual(t, countBelow(gap, 0.1), 95)
			assert.Empty(t, res.Warnings)
			require.Len(t, res.Batches, 2)
			assert.Equal(t, "batch_1", res.Batches[0].Label)
			assert.Equal(t, 10, res.Batches[1].Size)
		})
	}
}

func TestAdjust_DoesNotMutateInput(t *testing.T) {
	data := shiftFixture(t, nil)
	before := mat.DenseCopyOf(data.X)
	_, err := Adjust(context.Background(), data.X, data.Batches, nil, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, mat.Equal(before, data.X))
}

func TestAdjust_SingleBatchIsCopy(t *testing.T) {
	data := shiftFixture(t, func(c *testkit.ExpressionGeneratorConfig) { c.BatchCount = 1 })
	res, err := Adjust(context.Background(), data.X, data.Batches, nil, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, mat.Equal(data.X, res.Adjusted))
	assert.NotSame(t, data.X, res.Adjusted)
	require.Len(t, res.Batches, 1)
	assert.Equal(t, 20, res.Batches[0].Size)
}

func TestAdjust_ReferenceBatchUnchanged(t *testing.T) {
	data := shiftFixture(t, nil)
	opts := DefaultOptions()
	opts.RefBatch = "batch_1"

	res, err := Adjust(context.Background(), data.X, data.Batches, data.Mod, opts)
	require.NoError(t, err)
	assert.Equal(t, "batch_1", res.Reference)

	m, _ := data.X.Dims()
	for j, b := range data.Batches {
		if b != "batch_1" {
			continue
		}
		for i := 0; i < m; i++ {
			assert.Equal(t, data.X.At(i, j), res.Adjusted.At(i, j))
		}
	}
	gap, _ := batchSummary(res.Adjusted, data.Batches)
	assert.GreaterOrEqual(t, countBelow(gap, 0.1), 95)
}

func TestAdjust_MeanOnlyKeepsScale(t *testing.T) {
	data := shiftFixture(t, func(c *testkit.ExpressionGeneratorConfig) { c.BatchScale = 1 })

	full, err := Adjust(context.Background(), data.X, data.Batches, nil, DefaultOptions())
	require.NoError(t, err)
	_, fullRatio := batchSummary(full.Adjusted, data.Batches)

	opts := DefaultOptions()
	opts.MeanOnly = true
	meanOnly, err := Adjust(context.Background(), data.X, data.Batches, nil, opts)
	require.NoError(t, err)
	gap, ratio := batchSummary(meanOnly.Adjusted, data.Batches)

	assert.Greater(t, mean(ratio), 1.5)
	assert.Less(t, mean(fullRatio), 1.3)
	assert.GreaterOrEqual(t, countBelow(gap, 0.2), 95)
}

func TestAdjust_ConstantFeaturesPassThrough(t *testing.T) {
	data := shiftFixture(t, nil)
	x := mat.DenseCopyOf(data.X)
	for j, b := range data.Batches {
		if b == "batch_1" {
			x.Set(7, j, 3.5)
		}
	}

	res, err := Adjust(context.Background(), x, data.Batches, nil, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{7}, res.PassThrough)
	assert.Equal(t, mat.Row(nil, 7, x), mat.Row(nil, 7, res.Adjusted))
	assert.Len(t, res.Batches[0].GammaStar, 99)
}

func TestAdjust_Errors(t *testing.T) {
	data := shiftFixture(t, nil)
	ctx := context.Background()

	t.Run("degenerate batch", func(t *testing.T) {
		labels := append([]string(nil), data.Batches...)
		labels[0] = "lonely"
		_, err := Adjust(ctx, data.X, labels, nil, DefaultOptions())
		assert.ErrorIs(t, err, core.ErrDegenerateBatch)
		assert.True(t, core.IsBatchError(err))
	})
	t.Run("label count", func(t *testing.T) {
		_, err := Adjust(ctx, data.X, data.Batches[:19], nil, DefaultOptions())
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})
	t.Run("confounded design", func(t *testing.T) {
		design := mat.NewDense(20, 1, nil)
		for j, b := range data.Batches {
			if b == "batch_2" {
				design.Set(j, 0, 1)
			}
		}
		_, err := Adjust(ctx, data.X, data.Batches, design, DefaultOptions())
		assert.ErrorIs(t, err, core.ErrSingularDesign)
	})
	t.Run("unknown reference", func(t *testing.T) {
		opts := DefaultOptions()
		opts.RefBatch = "batch_9"
		_, err := Adjust(ctx, data.X, data.Batches, nil, opts)
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})
	t.Run("bad tolerance", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Tolerance = 0
		_, err := Adjust(ctx, data.X, data.Batches, nil, opts)
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})
}

func TestAdjust_IterationCapIsAWarning(t *testing.T) {
	data := shiftFixture(t, nil)
	opts := DefaultOptions()
	opts.MaxIterations = 1
	opts.Tolerance = 1e-300

	res, err := Adjust(context.Background(), data.X, data.Batches, nil, opts)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 2)
	assert.True(t, core.IsNonConvergence(res.Warnings[0]))
	assert.False(t, res.Batches[0].Converged)
}
