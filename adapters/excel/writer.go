package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"gosva/domain/dataset"
	"gosva/ports"

	"github.com/xuri/excelize/v2"
)

// DataWriter writes matrices in the layout DataReader.ReadMatrix accepts
type DataWriter struct {
	config ExcelConfig
}

var _ ports.MatrixWriterPort = (*DataWriter)(nil)

// NewDataWriter creates a writer
func NewDataWriter(config ExcelConfig) *DataWriter {
	if config.Sheet == "" {
		config.Sheet = "Sheet1"
	}
	if config.Comma == 0 {
		config.Comma = ','
	}
	return &DataWriter{config: config}
}

// WriteMatrix writes set to path; the extension picks xlsx or delimited output
func (w *DataWriter) WriteMatrix(ctx context.Context, path string, set *dataset.ExpressionSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := matrixRows(set)
	switch kind := fileType(path); kind {
	case "xlsx":
		return w.writeWorkbook(path, rows)
	default:
		comma := w.config.Comma
		if kind == "tsv" {
			comma = '\t'
		}
		return writeDelimited(path, comma, rows)
	}
}

func matrixRows(set *dataset.ExpressionSet) [][]string {
	rows := make([][]string, 0, set.FeatureCount()+1)
	header := make([]string, 0, set.SampleCount()+1)
	header = append(header, "feature")
	for _, s := range set.Samples {
		header = append(header, s.String())
	}
	rows = append(rows, header)
	for i, f := range set.Features {
		row := make([]string, 0, set.SampleCount()+1)
		row = append(row, f.String())
		for j := 0; j < set.SampleCount(); j++ {
			row = append(row, strconv.FormatFloat(set.Data.At(i, j), 'g', -1, 64))
		}
		rows = append(rows, row)
	}
	return rows
}

func (w *DataWriter) writeWorkbook(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if w.config.Sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", w.config.Sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}
	stream, err := f.NewStreamWriter(w.config.Sheet)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer: %w", err)
	}
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = c
			if i > 0 && j > 0 {
				if v, err := strconv.ParseFloat(c, 64); err == nil {
					cells[j] = v
				}
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := stream.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := stream.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	logger.Info("wrote %s (%d rows)", path, len(rows)-1)
	return nil
}

func writeDelimited(path string, comma rune, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = comma
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write delimited file: %w", err)
	}
	logger.Info("wrote %s (%d rows)", path, len(rows)-1)
	return file.Close()
}
