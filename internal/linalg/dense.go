package linalg

import (
	"gonum.org/v1/gonum/mat"
)

// SelectColumns copies the listed columns of m into a new matrix.
func SelectColumns(m mat.Matrix, cols []int) *mat.Dense {
	r, _ := m.Dims()
	out := mat.NewDense(r, len(cols), nil)
	for j, c := range cols {
		for i := 0; i < r; i++ {
			out.Set(i, j, m.At(i, c))
		}
	}
	return out
}

// ColumnRange returns the indices from..to-1.
func ColumnRange(from, to int) []int {
	if to <= from {
		return nil
	}
	cols := make([]int, 0, to-from)
	for c := from; c < to; c++ {
		cols = append(cols, c)
	}
	return cols
}

// Augment joins matrices side by side; nil parts (including typed nil
// *mat.Dense) are skipped.
func Augment(parts ...mat.Matrix) *mat.Dense {
	var out *mat.Dense
	for _, p := range parts {
		if p == nil {
			continue
		}
		if d, ok := p.(*mat.Dense); ok && d == nil {
			continue
		}
		if _, c := p.Dims(); c == 0 {
			continue
		}
		if out == nil {
			out = mat.DenseCopyOf(p)
			continue
		}
		var joined mat.Dense
		joined.Augment(out, p)
		out = &joined
	}
	return out
}

// Ones returns an n × 1 intercept column.
func Ones(n int) *mat.Dense {
	data := make([]float64, n)
	for i := range data {
		data[i] = 1
	}
	return mat.NewDense(n, 1, data)
}

// RowSumSquares returns Σ_j r[i,j]² for every row i.
func RowSumSquares(r mat.Matrix) []float64 {
	rows, cols := r.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		var s float64
		for j := 0; j < cols; j++ {
			v := r.At(i, j)
			s += v * v
		}
		out[i] = s
	}
	return out
}

// CenterRows subtracts each row's mean in place.
func CenterRows(m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		var mean float64
		for _, v := range row[:c] {
			mean += v
		}
		mean /= float64(c)
		for j := range row[:c] {
			row[j] -= mean
		}
	}
}
