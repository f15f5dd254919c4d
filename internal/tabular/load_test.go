package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"marketplace-profit-reconciler/pkg/errors"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "orders.csv", []byte("Sub Order No,SKU,Quantity\nS1,A1,2\nS2,B2,1\n"))

	file, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	if len(file.Sheets) != 1 {
		t.Fatalf("Sheets = %d, want 1", len(file.Sheets))
	}
	sheet := file.Sheets[0]
	if sheet.Name != "orders" {
		t.Errorf("sheet name = %q, want %q", sheet.Name, "orders")
	}
	if sheet.RowCount() != 3 {
		t.Errorf("RowCount = %d, want 3", sheet.RowCount())
	}
	if got := Cell(sheet.Rows[1], 1); got != "A1" {
		t.Errorf("cell (1,1) = %q, want A1", got)
	}
}

func TestLoadCSVRaggedRows(t *testing.T) {
	path := writeFile(t, "ragged.csv", []byte("a,b,c\n1,2\n3,4,5,6\n"))

	file, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	rows := file.Sheets[0].Rows
	if len(rows[1]) != 2 || len(rows[2]) != 4 {
		t.Errorf("ragged rows not preserved: %v", rows)
	}
	// Reading past the end of a short row is empty, not a panic.
	if got := Cell(rows[1], 2); got != "" {
		t.Errorf("cell past row end = %q, want empty", got)
	}
}

func TestLoadCSVLatin1Fallback(t *testing.T) {
	// 0xE9 is é in Latin-1 and invalid on its own in UTF-8.
	data := []byte("Sub Order No,Product\nS1,Caf")
	data = append(data, 0xE9)
	data = append(data, '\n')
	path := writeFile(t, "latin1.csv", data)

	file, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	if got := Cell(file.Sheets[0].Rows[1], 1); got != "Café" {
		t.Errorf("decoded cell = %q, want %q", got, "Café")
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.HasCode(err, errors.CodeFileNotFound) {
		t.Errorf("error code = %v, want CodeFileNotFound", err)
	}
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "orders.txt", []byte("S1\n"))

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if !errors.HasCode(err, errors.CodeUnopenableFile) {
		t.Errorf("error code = %v, want CodeUnopenableFile", err)
	}
}

func TestLoadXLSX(t *testing.T) {
	wb := excelize.NewFile()
	sheet := "Order Payments"
	idx, err := wb.NewSheet(sheet)
	if err != nil {
		t.Fatalf("NewSheet() error: %v", err)
	}
	wb.SetActiveSheet(idx)
	if err := wb.DeleteSheet("Sheet1"); err != nil {
		t.Fatalf("DeleteSheet() error: %v", err)
	}

	rows := [][]interface{}{
		{"Sub Order No", "Final Settlement Amount"},
		{"S1", "120.00"},
		{"S2", "80.00"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName() error: %v", err)
		}
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "payments.xlsx")
	if err := wb.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error: %v", err)
	}

	file, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	if len(file.Sheets) != 1 {
		t.Fatalf("Sheets = %d, want 1", len(file.Sheets))
	}
	got := file.Sheets[0]
	if got.Name != sheet {
		t.Errorf("sheet name = %q, want %q", got.Name, sheet)
	}
	if got.RowCount() != 3 {
		t.Errorf("RowCount = %d, want 3", got.RowCount())
	}
	if c := Cell(got.Rows[1], 1); c != "120.00" && c != "120" {
		t.Errorf("cell (1,1) = %q, want 120.00", c)
	}
}

func TestLoadXLSXCorrupt(t *testing.T) {
	path := writeFile(t, "broken.xlsx", []byte("this is not a zip archive"))

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected error for corrupt workbook")
	}
	if !errors.HasCode(err, errors.CodeUnopenableFile) {
		t.Errorf("error code = %v, want CodeUnopenableFile", err)
	}
}

func TestIsEmptyRow(t *testing.T) {
	tests := []struct {
		row      []string
		expected bool
	}{
		{nil, true},
		{[]string{}, true},
		{[]string{"", "  ", "\t"}, true},
		{[]string{"", "x"}, false},
	}

	for _, tt := range tests {
		if got := IsEmptyRow(tt.row); got != tt.expected {
			t.Errorf("IsEmptyRow(%v) = %v, want %v", tt.row, got, tt.expected)
		}
	}
}

func TestHeaderAndDataRows(t *testing.T) {
	sheet := &Sheet{Rows: [][]string{
		{"banner"},
		{"a", "b"},
		{"1", "2"},
		{"3", "4"},
	}}

	if got := sheet.Header(1); len(got) != 2 || got[0] != "a" {
		t.Errorf("Header(1) = %v, want [a b]", got)
	}
	if got := sheet.DataRows(1); len(got) != 2 {
		t.Errorf("DataRows(1) has %d rows, want 2", len(got))
	}
	if got := sheet.Header(10); got != nil {
		t.Errorf("Header past end = %v, want nil", got)
	}
	if got := sheet.DataRows(3); got != nil {
		t.Errorf("DataRows past end = %v, want nil", got)
	}
}
