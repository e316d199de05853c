package dataset

import (
	"fmt"

	"gosva/domain/core"
)

// SampleSheet holds per-sample metadata columns (batch, condition, covariates)
// keyed by sample, in file order.
type SampleSheet struct {
	Samples []core.SampleKey
	Columns []string
	values  map[string][]string
}

// NewSampleSheet creates an empty sheet for the given samples.
func NewSampleSheet(samples []core.SampleKey) *SampleSheet {
	return &SampleSheet{
		Samples: samples,
		values:  make(map[string][]string),
	}
}

// AddColumn appends a metadata column; it must have one value per sample.
func (s *SampleSheet) AddColumn(name string, values []string) error {
	if len(values) != len(s.Samples) {
		return core.NewDimensionMismatchError(fmt.Sprintf("sample sheet column %q", name), len(values), len(s.Samples))
	}
	if _, exists := s.values[name]; exists {
		return core.NewInvalidInputError("sample sheet", fmt.Sprintf("duplicate column %q", name))
	}
	s.Columns = append(s.Columns, name)
	s.values[name] = values
	return nil
}

// Column returns the values of a metadata column.
func (s *SampleSheet) Column(name string) ([]string, bool) {
	v, ok := s.values[name]
	return v, ok
}

// AlignTo reorders the sheet to the given sample order. Every sample must be present.
func (s *SampleSheet) AlignTo(samples []core.SampleKey) (*SampleSheet, error) {
	index := make(map[core.SampleKey]int, len(s.Samples))
	for i, k := range s.Samples {
		index[k] = i
	}

	rows := make([]int, len(samples))
	for j, k := range samples {
		i, ok := index[k]
		if !ok {
			return nil, core.NewInvalidInputError("sample sheet", fmt.Sprintf("sample %q missing", k))
		}
		rows[j] = i
	}

	out := NewSampleSheet(samples)
	for _, col := range s.Columns {
		src := s.values[col]
		dst := make([]string, len(samples))
		for j, i := range rows {
			dst[j] = src[i]
		}
		if err := out.AddColumn(col, dst); err != nil {
			return nil, err
		}
	}
	return out, nil
}
