package table

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	apperrors "oispurts/internal/errors"
)

// legacyEncodings are tried in order when the payload is not valid UTF-8
var legacyEncodings = []encoding.Encoding{
	charmap.Windows1252,
	charmap.ISO8859_1,
}

// missingMarkers are text values read as blank cells
var missingMarkers = map[string]struct{}{
	"": {}, "#N/A": {}, "#NA": {}, "N/A": {}, "NA": {}, "n/a": {}, "<NA>": {},
	"NULL": {}, "null": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {}, "None": {},
}

// DecodeCSV reads comma separated text. Empty lines are skipped, short
// rows are padded with blanks and long rows are truncated.
func DecodeCSV(data []byte) (*Table, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewDecodeError("malformed csv", err)
		}
		if blankRecord(rec) {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return New(nil, nil), nil
	}

	body := make([][]Cell, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]Cell, len(rec))
		for i, value := range rec {
			row[i] = csvCell(value)
		}
		body = append(body, row)
	}
	return New(records[0], body), nil
}

func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}

	var lastErr error
	for _, enc := range legacyEncodings {
		out, err := enc.NewDecoder().Bytes(data)
		if err == nil {
			return string(out), nil
		}
		lastErr = err
	}
	return "", apperrors.NewDecodeError("unrecognised text encoding", lastErr)
}

func csvCell(value string) Cell {
	if _, missing := missingMarkers[strings.TrimSpace(value)]; missing {
		return Blank()
	}
	if cell, ok := ParseNumber(value); ok {
		return cell
	}
	return Str(value)
}

// blankRecord matches whitespace-only lines. Lines of bare delimiters
// are kept as rows of blank cells.
func blankRecord(rec []string) bool {
	return len(rec) == 1 && strings.TrimSpace(rec[0]) == ""
}
