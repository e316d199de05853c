package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gosva/domain/core"
	"gosva/domain/dataset"
	"gosva/domain/design"
	"gosva/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// inputFlags name the files and sheet columns a command reads
type inputFlags struct {
	matrix     string
	samples    string
	primary    []string
	covariates []string
}

// inputs is a loaded matrix with its sample sheet aligned to the matrix columns
type inputs struct {
	set   *dataset.ExpressionSet
	sheet *dataset.SampleSheet
}

func (s *session) loadInputs(ctx context.Context, f inputFlags) (*inputs, error) {
	if f.matrix == "" {
		return nil, errors.InvalidInput("--matrix is required")
	}
	set, err := s.reader.ReadMatrix(ctx, f.matrix)
	if err != nil {
		return nil, errors.IOError("failed to read matrix", err)
	}
	in := &inputs{set: set}
	if f.samples == "" {
		return in, nil
	}

	sheet, err := s.reader.ReadSampleSheet(ctx, f.samples)
	if err != nil {
		return nil, errors.IOError("failed to read sample sheet", err)
	}
	if in.sheet, err = sheet.AlignTo(set.Samples); err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return in, nil
}

// designs builds the full design (intercept, covariates, primary) and the
// null design (intercept, covariates)
func (in *inputs) designs(f inputFlags) (*design.Design, *design.Design, error) {
	if len(f.primary) == 0 {
		return nil, nil, errors.InvalidInput("--primary names at least one sample sheet column")
	}
	if in.sheet == nil {
		return nil, nil, errors.InvalidInput("--samples is required to build a design")
	}
	n := in.set.SampleCount()

	fields := append(append([]string{}, f.covariates...), f.primary...)
	mod, err := design.NewBuilder(n).FromSheet(in.sheet, fields...).Build()
	if err != nil {
		return nil, nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	mod0, err := design.NewBuilder(n).FromSheet(in.sheet, f.covariates...).Build()
	if err != nil {
		return nil, nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return mod, mod0, nil
}

// covariateDesign builds intercept plus covariates, or returns nil when none are named
func (in *inputs) covariateDesign(covariates []string) (*design.Design, error) {
	if len(covariates) == 0 {
		return nil, nil
	}
	if in.sheet == nil {
		return nil, errors.InvalidInput("--samples is required for covariates")
	}
	d, err := design.NewBuilder(in.set.SampleCount()).FromSheet(in.sheet, covariates...).Build()
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return d, nil
}

func (in *inputs) labels(field string) ([]string, error) {
	if in.sheet == nil {
		return nil, errors.InvalidInput("--samples is required for batch labels")
	}
	values, ok := in.sheet.Column(field)
	if !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("sample sheet has no column %q", field))
	}
	return values, nil
}

// writeMatrix stores data under the input's feature and sample keys
func (s *session) writeMatrix(ctx context.Context, path string, in *inputs, data *mat.Dense) error {
	set, err := in.set.WithData(data)
	if err != nil {
		return errors.Computation("corrected matrix is invalid", err)
	}
	if err := s.writer.WriteMatrix(ctx, path, set); err != nil {
		return errors.IOError("failed to write matrix", err)
	}
	fmt.Printf("Wrote %d features × %d samples to %s\n", set.FeatureCount(), set.SampleCount(), path)
	return nil
}

// writeSurrogates stores surrogate variables one per row, sample keys as columns
func (s *session) writeSurrogates(ctx context.Context, path string, in *inputs, sv *mat.Dense) error {
	if sv == nil {
		fmt.Println("No surrogate variables to write")
		return nil
	}
	_, k := sv.Dims()
	names := make([]core.FeatureKey, k)
	for i := range names {
		names[i] = core.FeatureKey(fmt.Sprintf("sv_%d", i+1))
	}
	set, err := dataset.NewExpressionSet(mat.DenseCopyOf(sv.T()), names, in.set.Samples)
	if err != nil {
		return errors.Computation("surrogate variables are invalid", err)
	}
	if err := s.writer.WriteMatrix(ctx, path, set); err != nil {
		return errors.IOError("failed to write surrogate variables", err)
	}
	fmt.Printf("Wrote %d surrogate variable(s) to %s\n", k, path)
	return nil
}

// writeTable writes a csv table to path, or to stdout when path is empty
func writeTable(path string, header []string, rows [][]string) error {
	var out io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return errors.IOError("failed to create table", err)
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return errors.IOError("failed to write table", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return errors.IOError("failed to write table", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// splitList accepts repeated flags and comma separated values
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
