package dataset

import (
	"fmt"
	"math"

	"gosva/domain/core"

	"gonum.org/v1/gonum/mat"
)

// ExpressionSet is the canonical input of every correction: a dense
// features × samples matrix with its row and column keys.
type ExpressionSet struct {
	Data     *mat.Dense
	Features []core.FeatureKey
	Samples  []core.SampleKey

	// Fingerprint for replayability
	Fingerprint core.MatrixHash
}

// NewExpressionSet validates keys against the matrix shape and fingerprints the data.
// Missing values are not supported: NaN or Inf anywhere is rejected.
func NewExpressionSet(data *mat.Dense, features []core.FeatureKey, samples []core.SampleKey) (*ExpressionSet, error) {
	if data == nil {
		return nil, core.NewInvalidInputError("matrix", "nil data")
	}
	rows, cols := data.Dims()
	if features == nil {
		features = make([]core.FeatureKey, rows)
		for i := range features {
			features[i] = core.FeatureKey(fmt.Sprintf("feature_%d", i+1))
		}
	}
	if samples == nil {
		samples = make([]core.SampleKey, cols)
		for j := range samples {
			samples[j] = core.SampleKey(fmt.Sprintf("sample_%d", j+1))
		}
	}
	if len(features) != rows {
		return nil, core.NewDimensionMismatchError("feature keys", len(features), rows)
	}
	if len(samples) != cols {
		return nil, core.NewDimensionMismatchError("sample keys", len(samples), cols)
	}
	if err := CheckFinite("matrix", data); err != nil {
		return nil, err
	}

	return &ExpressionSet{
		Data:        data,
		Features:    features,
		Samples:     samples,
		Fingerprint: core.ComputeMatrixHash(data),
	}, nil
}

// FeatureCount returns the number of rows
func (e *ExpressionSet) FeatureCount() int {
	r, _ := e.Data.Dims()
	return r
}

// SampleCount returns the number of columns
func (e *ExpressionSet) SampleCount() int {
	_, c := e.Data.Dims()
	return c
}

// WithData returns a copy of the set that carries corrected data under the same keys.
func (e *ExpressionSet) WithData(data *mat.Dense) (*ExpressionSet, error) {
	return NewExpressionSet(data, e.Features, e.Samples)
}

// CheckFinite rejects NaN and ±Inf entries.
func CheckFinite(name string, m mat.Matrix) error {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return core.NewInvalidInputError(name, fmt.Sprintf("non-finite value at (%d, %d)", i, j))
			}
		}
	}
	return nil
}
