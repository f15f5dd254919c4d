// Package tabular provides the parsed tabular data model consumed by the
// reconciliation engine, along with loaders that turn CSV and XLSX exports
// into that model.
//
// A Sheet is a raw grid of strings. Nothing at this layer knows which column
// means what; semantic column discovery happens in the schema package. The
// loaders deal with the messiness of real marketplace exports: unknown
// encodings, ragged rows, and workbooks whose first sheet is a disclaimer.
package tabular

import "strings"

// Sheet is a named grid of cells. Row 0 is the first physical row of the
// sheet, which may or may not be the real header row.
type Sheet struct {
	Name string
	Rows [][]string
}

// File is a parsed input file containing one or more sheets. CSV files always
// contain exactly one sheet.
type File struct {
	Path   string
	Sheets []Sheet
}

// RowCount returns the number of physical rows in the sheet.
func (s *Sheet) RowCount() int {
	return len(s.Rows)
}

// Header returns the row assumed to be the header under the given offset, or
// nil when the sheet is too short.
func (s *Sheet) Header(offset int) []string {
	if offset < 0 || offset >= len(s.Rows) {
		return nil
	}
	return s.Rows[offset]
}

// DataRows returns the rows below the assumed header row.
func (s *Sheet) DataRows(offset int) [][]string {
	start := offset + 1
	if start < 0 || start >= len(s.Rows) {
		return nil
	}
	return s.Rows[start:]
}

// Cell returns the value at the given column of a row, or "" when the row is
// shorter than the column index. Exports routinely omit trailing empty cells.
func Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// IsEmptyRow reports whether every cell of the row is empty or whitespace.
func IsEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
