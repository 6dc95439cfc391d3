// Package table decodes downloaded OI spurts exports into a typed,
// format-independent table: ordered column names plus row-major cells.
package table

import (
	"bytes"
	"fmt"
	"strings"

	apperrors "oispurts/internal/errors"
)

// MinDataSize is the smallest payload worth decoding
const MinDataSize = 100

// Format identifies the encoding a table was decoded from
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
)

// Table is a decoded sheet. Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]Cell
	Format  Format
}

// New builds a table from column names and rows, padding or truncating
// each row to the column count and mangling blank or repeated names.
func New(columns []string, rows [][]Cell) *Table {
	t := &Table{Columns: uniqueColumns(columns), Rows: make([][]Cell, 0, len(rows))}
	for _, row := range rows {
		t.Rows = append(t.Rows, fitRow(row, len(t.Columns)))
	}
	return t
}

// Cell returns the cell at row r, column c, or a blank cell when out of range
func (t *Table) Cell(r, c int) Cell {
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r]) {
		return Blank()
	}
	return t.Rows[r][c]
}

// ColumnIndex returns the position of the named column, or -1
func (t *Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Empty reports whether there is nothing to extract
func (t *Table) Empty() bool {
	return len(t.Columns) == 0 || len(t.Rows) == 0
}

// DetectFormat sniffs the payload. Zip containers are xlsx, OLE2
// containers are legacy xls, a leading brace or bracket is JSON and
// anything else is treated as delimited text.
func DetectFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX
	case bytes.HasPrefix(data, ole2Magic):
		return FormatXLS
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatCSV
}

// Decode turns a raw export into a Table. Failures are reported as
// DECODE_FAILURE application errors.
func Decode(data []byte) (*Table, error) {
	if len(data) < MinDataSize {
		return nil, apperrors.NewDecodeError(fmt.Sprintf("payload too small: %d bytes", len(data)), nil).
			WithContext("size", len(data))
	}

	var (
		t   *Table
		err error
	)
	format := DetectFormat(data)
	switch format {
	case FormatXLSX:
		t, err = DecodeXLSX(data)
	case FormatXLS:
		err = apperrors.NewDecodeError("legacy xls workbooks are not supported", nil)
	case FormatJSON:
		t, err = DecodeJSON(data)
	default:
		t, err = DecodeCSV(data)
	}
	if err != nil {
		return nil, err
	}

	if len(t.Columns) == 0 {
		return nil, apperrors.NewDecodeError("table has no columns", nil).WithContext("format", string(format))
	}
	t.Format = format
	return t, nil
}

func fitRow(row []Cell, width int) []Cell {
	if len(row) == width {
		return row
	}
	out := make([]Cell, width)
	copy(out, row)
	return out
}

// uniqueColumns names blank headers "Unnamed: i" and suffixes repeats
// with ".1", ".2", ... so every column can be addressed by name.
func uniqueColumns(columns []string) []string {
	out := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	for i, col := range columns {
		name := strings.TrimSpace(col)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[name]; ok {
			base := name
			for {
				n++
				name = fmt.Sprintf("%s.%d", base, n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[base] = n
		}
		seen[name] = 0
		out[i] = name
	}
	return out
}
