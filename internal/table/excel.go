package table

import (
	"bytes"

	"github.com/xuri/excelize/v2"

	apperrors "oispurts/internal/errors"
)

// DecodeXLSX reads the first worksheet. Row 0 is the header; blank rows
// between data rows are kept so row positions match the sheet.
func DecodeXLSX(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewDecodeError("failed to open workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewDecodeError("workbook has no sheets", nil)
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewDecodeError("failed to read rows", err).WithContext("sheet", sheet)
	}
	if len(rows) == 0 {
		return New(nil, nil), nil
	}

	header := rows[0]
	body := make([][]Cell, 0, len(rows)-1)
	for r, raw := range rows[1:] {
		row := make([]Cell, len(raw))
		for c, value := range raw {
			row[c] = xlsxCell(f, sheet, c+1, r+2, value)
		}
		body = append(body, row)
	}

	return New(header, body), nil
}

func xlsxCell(f *excelize.File, sheet string, col, row int, value string) Cell {
	if value == "" {
		return Blank()
	}

	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Str(value)
	}
	cellType, err := f.GetCellType(sheet, axis)
	if err != nil {
		return Str(value)
	}

	switch cellType {
	case excelize.CellTypeNumber, excelize.CellTypeUnset, excelize.CellTypeFormula:
		if cell, ok := ParseNumber(value); ok {
			return cell
		}
	}
	return Str(value)
}
