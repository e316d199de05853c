package excel

// RawTable is a sheet as read: the header row and the trimmed data rows
type RawTable struct {
	Headers []string
	Rows    [][]string
}
