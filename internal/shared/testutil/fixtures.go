package testutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"
)

// BuildXLSX writes header and rows to the first sheet of a new workbook
// and returns the encoded bytes. A nil row leaves that sheet row empty.
func BuildXLSX(t testing.TB, header []string, rows ...[]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		t.Fatalf("write header: %v", err)
	}

	for i, row := range rows {
		if row == nil {
			continue
		}
		axis := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, axis, &row); err != nil {
			t.Fatalf("write row %d: %v", i, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("encode workbook: %v", err)
	}
	return buf.Bytes()
}

// BuildCSV encodes header and rows as comma separated text
func BuildCSV(t testing.TB, header []string, rows ...[]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush csv: %v", err)
	}
	return buf.Bytes()
}

// SampleOISpurts is a small export shaped like the exchange's OI spurts sheet
func SampleOISpurts(t testing.TB) []byte {
	return BuildXLSX(t,
		[]string{"Symbol", "Latest OI", "Prev OI", "OI Change", "Volume", "Underlying Price"},
		[]interface{}{"RELIANCE-EQ", 120500, 100000, 20500, 3200, 2900.5},
		[]interface{}{"TCS", 80400, 90000, -9600, 1500, 3650},
		[]interface{}{"nan", 0, 0, 0, 0, 0},
		[]interface{}{"HDFCBANK", 50000, 45000, 5000, 2100, 1650.25},
	)
}
