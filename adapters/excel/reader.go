package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gosva/domain/core"
	"gosva/domain/dataset"
	"gosva/internal"
	"gosva/ports"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
)

var logger = internal.DefaultLogger.With("excel")

// fileType maps an extension to xlsx, csv or tsv
func fileType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "csv"
	case ".tsv", ".txt":
		return "tsv"
	default:
		return "xlsx"
	}
}

// DataReader reads matrices and sample sheets from xlsx or delimited files
type DataReader struct {
	config ExcelConfig
}

var _ ports.MatrixReaderPort = (*DataReader)(nil)

// NewDataReader creates a reader
func NewDataReader(config ExcelConfig) *DataReader {
	if config.Sheet == "" {
		config.Sheet = "Sheet1"
	}
	if config.Comma == 0 {
		config.Comma = ','
	}
	return &DataReader{config: config}
}

// ReadTable reads the header row and every data row of a file
func (r *DataReader) ReadTable(ctx context.Context, path string) (*RawTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	start := time.Now()
	var rows [][]string
	var err error
	switch kind := fileType(path); kind {
	case "xlsx":
		rows, err = r.readWorkbook(path)
	default:
		comma := r.config.Comma
		if kind == "tsv" {
			comma = '\t'
		}
		rows, err = readDelimited(path, comma)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("%s read in %.2fms (%d rows)", path, float64(time.Since(start).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("%s must have a header row and at least one data row", path)
	}
	table := &RawTable{Headers: trimAll(rows[0])}
	for _, row := range rows[1:] {
		row = trimAll(row)
		if isBlank(row) {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func (r *DataReader) readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.config.Sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.config.Sheet, err)
	}
	return rows, nil
}

func readDelimited(path string, comma rune) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read delimited file: %w", err)
	}
	return rows, nil
}

// ReadMatrix reads a features × samples matrix. The header row holds the
// sample keys after a leading label cell; every data row starts with its
// feature key.
func (r *DataReader) ReadMatrix(ctx context.Context, path string) (*dataset.ExpressionSet, error) {
	table, err := r.ReadTable(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(table.Headers) < 2 {
		return nil, core.NewInvalidInputError(path, "header needs a label cell and at least one sample")
	}

	samples := make([]core.SampleKey, len(table.Headers)-1)
	seen := map[core.SampleKey]bool{}
	for j, h := range table.Headers[1:] {
		key, err := core.ParseSampleKey(h)
		if err != nil {
			return nil, core.NewInvalidInputError(path, fmt.Sprintf("sample header %d: %v", j+1, err))
		}
		if seen[key] {
			return nil, core.NewInvalidInputError(path, fmt.Sprintf("duplicate sample %q", key))
		}
		seen[key] = true
		samples[j] = key
	}

	n := len(samples)
	data := mat.NewDense(len(table.Rows), n, nil)
	features := make([]core.FeatureKey, len(table.Rows))
	for i, row := range table.Rows {
		key, err := core.ParseFeatureKey(row[0])
		if err != nil {
			return nil, core.NewInvalidInputError(path, fmt.Sprintf("row %d: %v", i+2, err))
		}
		features[i] = key
		if len(row)-1 != n {
			return nil, core.NewDimensionMismatchError(fmt.Sprintf("%s row %d (%s)", path, i+2, row[0]), len(row)-1, n)
		}
		for j, cell := range row[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, core.NewInvalidInputError(path, fmt.Sprintf("row %d column %d: %q is not numeric", i+2, j+2, cell))
			}
			data.Set(i, j, v)
		}
	}

	set, err := dataset.NewExpressionSet(data, features, samples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Info("loaded %s: %d features × %d samples", path, set.FeatureCount(), set.SampleCount())
	return set, nil
}

// ReadSampleSheet reads one row per sample; the first column is the
// sample key and every other column is kept as text.
func (r *DataReader) ReadSampleSheet(ctx context.Context, path string) (*dataset.SampleSheet, error) {
	table, err := r.ReadTable(ctx, path)
	if err != nil {
		return nil, err
	}

	samples := make([]core.SampleKey, len(table.Rows))
	for i, row := range table.Rows {
		key, err := core.ParseSampleKey(row[0])
		if err != nil {
			return nil, core.NewInvalidInputError(path, fmt.Sprintf("row %d: %v", i+2, err))
		}
		samples[i] = key
	}

	sheet := dataset.NewSampleSheet(samples)
	for c, name := range table.Headers[1:] {
		values := make([]string, len(table.Rows))
		for i, row := range table.Rows {
			if c+1 < len(row) {
				values[i] = row[c+1]
			}
		}
		if err := sheet.AddColumn(name, values); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return sheet, nil
}

func trimAll(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
