package excel

// ExcelConfig holds configuration for workbook and delimited sources
type ExcelConfig struct {
	Sheet string `json:"sheet"` // workbook sheet to read and write
	Comma rune   `json:"comma"` // field separator for .csv; .tsv always uses a tab
}

// DefaultExcelConfig returns sensible defaults for matrix files
func DefaultExcelConfig() ExcelConfig {
	return ExcelConfig{
		Sheet: "Sheet1",
		Comma: ',',
	}
}
