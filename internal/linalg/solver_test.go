package linalg

import (
	"math"
	"math/rand"
	"testing"

	"gosva/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func twoGroupDesign(n int) *mat.Dense {
	d := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		d.Set(i, 0, 1)
		if i >= n/2 {
			d.Set(i, 1, 1)
		}
	}
	return d
}

func randomMatrix(rng *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(rows, cols, data)
}

func TestFit_RecoversCoefficients(t *testing.T) {
	n := 12
	d := twoGroupDesign(n)
	// Row 0: intercept 3, group effect -1.5. Row 1: intercept 0, effect 2.
	x := mat.NewDense(2, n, nil)
	for j := 0; j < n; j++ {
		x.Set(0, j, 3-1.5*d.At(j, 1))
		x.Set(1, j, 2*d.At(j, 1))
	}

	b, err := Fit(x, d)
	require.NoError(t, err)

	rows, cols := b.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.InDelta(t, 3.0, b.At(0, 0), 1e-10)
	assert.InDelta(t, -1.5, b.At(0, 1), 1e-10)
	assert.InDelta(t, 0.0, b.At(1, 0), 1e-10)
	assert.InDelta(t, 2.0, b.At(1, 1), 1e-10)
}

func TestFit_SingularDesign(t *testing.T) {
	n := 8
	d := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		d.Set(i, 0, 1)
		d.Set(i, 1, float64(i))
		d.Set(i, 2, 2*float64(i)) // collinear with column 1
	}
	x := randomMatrix(rand.New(rand.NewSource(1)), 4, n)

	_, err := Fit(x, d)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSingularDesign)
}

func TestFit_MoreColumnsThanSamples(t *testing.T) {
	x := randomMatrix(rand.New(rand.NewSource(2)), 3, 2)
	d := randomMatrix(rand.New(rand.NewSource(3)), 2, 3)
	_, err := Fit(x, d)
	assert.ErrorIs(t, err, core.ErrSingularDesign)
}

func TestFit_DimensionMismatch(t *testing.T) {
	x := randomMatrix(rand.New(rand.NewSource(4)), 5, 10)
	d := twoGroupDesign(9)
	_, err := Fit(x, d)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "design rows")
}

func TestResiduals_OrthogonalToDesign(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	n := 20
	d := twoGroupDesign(n)
	x := randomMatrix(rng, 30, n)

	res, err := Residuals(x, d)
	require.NoError(t, err)

	var cross mat.Dense
	cross.Mul(res, d)
	r, c := cross.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			assert.InDelta(t, 0, cross.At(i, j), 1e-9)
		}
	}
}

func TestRemoveEffect_AllColumnsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	n := 16
	d := twoGroupDesign(n)
	x := randomMatrix(rng, 25, n)
	all := ColumnRange(0, 2)

	once, err := RemoveEffect(x, d, all)
	require.NoError(t, err)

	// Nothing left for the design to explain
	b, err := Fit(once, d)
	require.NoError(t, err)
	assert.InDelta(t, 0, mat.Norm(b, 2), 1e-9)

	twice, err := RemoveEffect(once, d, all)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(once, twice, 1e-10))
}

func TestRemoveEffect_SubsetKeepsOtherColumns(t *testing.T) {
	n := 10
	d := twoGroupDesign(n)
	x := mat.NewDense(1, n, nil)
	for j := 0; j < n; j++ {
		x.Set(0, j, 5+4*d.At(j, 1))
	}

	out, err := RemoveEffect(x, d, []int{1})
	require.NoError(t, err)
	for j := 0; j < n; j++ {
		assert.InDelta(t, 5.0, out.At(0, j), 1e-10)
	}

	unchanged, err := RemoveEffect(x, d, nil)
	require.NoError(t, err)
	assert.True(t, mat.Equal(x, unchanged))
}

func TestRemoveEffect_InvalidColumns(t *testing.T) {
	n := 6
	d := twoGroupDesign(n)
	x := randomMatrix(rand.New(rand.NewSource(7)), 2, n)

	_, err := RemoveEffect(x, d, []int{2})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = RemoveEffect(x, d, []int{1, 1})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestProjector_MatchesResiduals(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	n := 14
	d := twoGroupDesign(n)
	x := randomMatrix(rng, 9, n)

	proj, err := NewProjector(d)
	require.NoError(t, err)
	assert.Equal(t, 2, proj.Rank())
	assert.Equal(t, n-2, proj.ResidualDF())

	viaProj, err := proj.Residuals(x)
	require.NoError(t, err)
	viaFit, err := Residuals(x, d)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(viaProj, viaFit, 1e-10))

	rss, err := proj.RowSumSquares(x)
	require.NoError(t, err)
	for i, v := range RowSumSquares(viaFit) {
		assert.InDelta(t, v, rss[i], 1e-9)
	}

	_, err = proj.Residuals(randomMatrix(rng, 3, n+1))
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestCheckNested(t *testing.T) {
	n := 10
	full := twoGroupDesign(n)
	null := Ones(n)

	require.NoError(t, CheckNested(full, null))

	// A continuous covariate is not in span{1, group}
	other := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		other.Set(i, 0, 1)
		other.Set(i, 1, math.Sin(float64(i)))
	}
	err := CheckNested(full, other)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNestingViolation)

	assert.ErrorIs(t, CheckNested(full, Ones(n-1)), core.ErrDimensionMismatch)
}

func TestRightSingularVectors_Orthonormal(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	x := randomMatrix(rng, 40, 12)

	v, values, err := RightSingularVectors(x, 3)
	require.NoError(t, err)
	require.Len(t, values, 12)
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i-1], values[i])
	}

	var gram mat.Dense
	gram.Mul(v.T(), v)
	assert.True(t, mat.EqualApprox(&gram, eye(3), 1e-10))

	none, _, err := RightSingularVectors(x, 0)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, _, err = RightSingularVectors(x, 13)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestAugmentAndSelect(t *testing.T) {
	a := mat.NewDense(2, 1, []float64{1, 2})
	b := mat.NewDense(2, 2, []float64{3, 4, 5, 6})

	var empty *mat.Dense
	joined := Augment(a, nil, b, empty)
	r, c := joined.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 5.0, joined.At(1, 1))

	sel := SelectColumns(joined, []int{2, 0})
	assert.Equal(t, []float64{4, 1}, mat.Row(nil, 0, sel))
	assert.Nil(t, Augment())
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
