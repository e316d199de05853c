// Package design turns sample metadata into model matrices.
package design

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gosva/domain/core"
	"gosva/domain/dataset"

	"gonum.org/v1/gonum/mat"
)

// InterceptColumn names the all-ones column
const InterceptColumn = "(Intercept)"

// Design is a samples × covariates model matrix with named columns
type Design struct {
	Matrix  *mat.Dense
	Columns []string
}

// Samples returns the number of rows
func (d *Design) Samples() int {
	r, _ := d.Matrix.Dims()
	return r
}

// ColumnIndex returns the position of a named column, or -1
func (d *Design) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// ColumnsWithPrefix returns the positions of every column generated from
// one metadata field, e.g. all indicator columns of a factor
func (d *Design) ColumnsWithPrefix(field string) []int {
	var out []int
	for i, c := range d.Columns {
		if c == field || strings.HasPrefix(c, field+"[") {
			out = append(out, i)
		}
	}
	return out
}

// Select builds a sub-design from the listed columns in order
func (d *Design) Select(names ...string) (*Design, error) {
	cols := make([]int, len(names))
	for k, name := range names {
		cols[k] = d.ColumnIndex(name)
		if cols[k] < 0 {
			return nil, core.NewInvalidInputError("design", fmt.Sprintf("no column %q", name))
		}
	}
	n := d.Samples()
	out := mat.NewDense(n, len(cols), nil)
	for k, c := range cols {
		for j := 0; j < n; j++ {
			out.Set(j, k, d.Matrix.At(j, c))
		}
	}
	return &Design{Matrix: out, Columns: append([]string(nil), names...)}, nil
}

// Levels returns the distinct values in sorted order
func Levels(values []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// OneHot encodes labels as indicator columns named field[level]. With an
// intercept the reference level (default: first sorted level) gets no
// column; without one every level does.
func OneHot(field string, labels []string, reference string, intercept bool) (*Design, error) {
	b := NewBuilder(len(labels))
	if !intercept {
		b.WithoutIntercept()
	}
	b.Categorical(field, labels, reference)
	return b.Build()
}

type termKind int

const (
	categorical termKind = iota
	numeric
)

type term struct {
	kind      termKind
	field     string
	labels    []string
	values    []float64
	reference string
}

// Builder assembles a design term by term. The intercept comes first,
// then terms in the order they were added.
type Builder struct {
	samples   int
	intercept bool
	terms     []term
	err       error
}

// NewBuilder starts a design over n samples with an intercept
func NewBuilder(n int) *Builder {
	return &Builder{samples: n, intercept: true}
}

// WithoutIntercept drops the leading all-ones column
func (b *Builder) WithoutIntercept() *Builder {
	b.intercept = false
	return b
}

// Categorical adds one indicator column per non-reference level
func (b *Builder) Categorical(field string, labels []string, reference string) *Builder {
	if b.err == nil && len(labels) != b.samples {
		b.err = core.NewDimensionMismatchError(fmt.Sprintf("factor %q", field), len(labels), b.samples)
	}
	b.terms = append(b.terms, term{kind: categorical, field: field, labels: labels, reference: reference})
	return b
}

// Numeric adds a single covariate column
func (b *Builder) Numeric(field string, values []float64) *Builder {
	if b.err == nil && len(values) != b.samples {
		b.err = core.NewDimensionMismatchError(fmt.Sprintf("covariate %q", field), len(values), b.samples)
	}
	b.terms = append(b.terms, term{kind: numeric, field: field, values: values})
	return b
}

// FromSheet adds the named sheet columns: those that parse as numbers
// become numeric covariates, everything else is treated as a factor with
// its first sorted level as reference.
func (b *Builder) FromSheet(sheet *dataset.SampleSheet, fields ...string) *Builder {
	for _, f := range fields {
		values, ok := sheet.Column(f)
		if !ok {
			if b.err == nil {
				b.err = core.NewInvalidInputError("sample sheet", fmt.Sprintf("no column %q", f))
			}
			continue
		}
		if nums, ok := parseNumeric(values); ok {
			b.Numeric(f, nums)
			continue
		}
		b.Categorical(f, values, "")
	}
	return b
}

// Build materializes the design
func (b *Builder) Build() (*Design, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.samples < 1 {
		return nil, core.NewInvalidInputError("design", "no samples")
	}

	var columns []string
	var data [][]float64
	if b.intercept {
		columns = append(columns, InterceptColumn)
		ones := make([]float64, b.samples)
		for j := range ones {
			ones[j] = 1
		}
		data = append(data, ones)
	}

	for _, t := range b.terms {
		switch t.kind {
		case numeric:
			columns = append(columns, t.field)
			data = append(data, t.values)
		case categorical:
			levels := Levels(t.labels)
			ref := t.reference
			if ref == "" {
				ref = levels[0]
			} else if !slices.Contains(levels, ref) {
				return nil, core.NewInvalidInputError(fmt.Sprintf("factor %q", t.field), fmt.Sprintf("reference level %q not present", ref))
			}
			for _, level := range levels {
				if b.intercept && level == ref {
					continue
				}
				col := make([]float64, b.samples)
				for j, l := range t.labels {
					if l == level {
						col[j] = 1
					}
				}
				columns = append(columns, fmt.Sprintf("%s[%s]", t.field, level))
				data = append(data, col)
			}
		}
	}
	if len(columns) == 0 {
		return nil, core.NewInvalidInputError("design", "no columns")
	}

	m := mat.NewDense(b.samples, len(columns), nil)
	for c, col := range data {
		m.SetCol(c, col)
	}
	return &Design{Matrix: m, Columns: columns}, nil
}

func parseNumeric(values []string) ([]float64, bool) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
