package linalg

import (
	"fmt"

	"gosva/domain/core"

	"gonum.org/v1/gonum/mat"
)

// SingularValues returns the singular values of x in descending order.
func SingularValues(x mat.Matrix) ([]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDNone); !ok {
		return nil, fmt.Errorf("singular value decomposition did not converge")
	}
	return svd.Values(nil), nil
}

// RightSingularVectors returns the k leading right singular vectors of x
// (the sample-axis factors of a features × samples matrix) as columns of a
// samples × k matrix, along with all singular values.
func RightSingularVectors(x mat.Matrix, k int) (*mat.Dense, []float64, error) {
	m, n := x.Dims()
	if k < 0 || k > min(m, n) {
		return nil, nil, core.NewInvalidInputError("factor count", fmt.Sprintf("%d outside [0, %d]", k, min(m, n)))
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThinV); !ok {
		return nil, nil, fmt.Errorf("singular value decomposition did not converge")
	}
	values := svd.Values(nil)
	if k == 0 {
		return nil, values, nil
	}

	var v mat.Dense
	svd.VTo(&v)
	out := mat.NewDense(n, k, nil)
	out.Copy(v.Slice(0, n, 0, k))
	return out, values, nil
}
