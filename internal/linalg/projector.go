package linalg

import (
	"gosva/domain/core"

	"gonum.org/v1/gonum/mat"
)

// Projector holds the residual-maker I − D(DᵗD)⁻¹Dᵗ of one design so that
// repeated residualization against it costs a single multiply.
type Projector struct {
	resid *mat.Dense
	rank  int
}

// NewProjector factors the design once.
func NewProjector(d mat.Matrix) (*Projector, error) {
	n, p := d.Dims()
	chol, err := factorize(d, "design")
	if err != nil {
		return nil, err
	}

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, core.NewSingularDesignError("design", err.Error())
	}

	var dinv mat.Dense
	dinv.Mul(d, &inv)
	var hat mat.Dense
	hat.Mul(&dinv, d.T())

	resid := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := -hat.At(i, j)
			if i == j {
				v += 1
			}
			resid.Set(i, j, v)
		}
	}
	return &Projector{resid: resid, rank: p}, nil
}

// Samples returns the sample dimension the projector acts on.
func (p *Projector) Samples() int {
	n, _ := p.resid.Dims()
	return n
}

// Rank is the number of design columns projected out.
func (p *Projector) Rank() int {
	return p.rank
}

// ResidualDF is the residual degrees of freedom n − rank.
func (p *Projector) ResidualDF() int {
	return p.Samples() - p.rank
}

// Residuals returns r·(I − H), the part of each row not explained by the design.
func (p *Projector) Residuals(r mat.Matrix) (*mat.Dense, error) {
	var out mat.Dense
	if err := p.ResidualsTo(&out, r); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResidualsTo writes r·(I − H) into dst, which must be empty or correctly
// sized and must not alias r.
func (p *Projector) ResidualsTo(dst *mat.Dense, r mat.Matrix) error {
	_, n := r.Dims()
	if n != p.Samples() {
		return core.NewDimensionMismatchError("matrix columns", n, p.Samples())
	}
	dst.Mul(r, p.resid)
	return nil
}

// RowSumSquares returns the residual sum of squares of every row of r
// against the design.
func (p *Projector) RowSumSquares(r mat.Matrix) ([]float64, error) {
	res, err := p.Residuals(r)
	if err != nil {
		return nil, err
	}
	return RowSumSquares(res), nil
}
