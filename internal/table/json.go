package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	apperrors "oispurts/internal/errors"
)

// DecodeJSON converts an API payload into a table. Records are taken
// from records.data, then a top-level data array, then the document
// itself when it is an array; any other object becomes a single row.
// Columns appear in first-seen key order across records.
func DecodeJSON(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !json.Valid(data) {
		repaired, err := jsonrepair.JSONRepair(string(data))
		if err != nil {
			return nil, apperrors.NewDecodeError("malformed json", err)
		}
		data = []byte(repaired)
	}

	records, err := locateRecords(data)
	if err != nil {
		return nil, err
	}

	var (
		columns []string
		index   = make(map[string]int)
		parsed  = make([]map[string]Cell, 0, len(records))
	)
	for _, raw := range records {
		keys, values, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(columns)
				columns = append(columns, k)
			}
		}
		parsed = append(parsed, values)
	}

	rows := make([][]Cell, 0, len(parsed))
	for _, values := range parsed {
		row := make([]Cell, len(columns))
		for k, v := range values {
			row[index[k]] = v
		}
		rows = append(rows, row)
	}
	return New(columns, rows), nil
}

func locateRecords(data []byte) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var doc struct {
		Records *struct {
			Data []json.RawMessage `json:"data"`
		} `json:"records"`
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewDecodeError("unexpected json document", err)
	}
	switch {
	case doc.Records != nil && doc.Records.Data != nil:
		return doc.Records.Data, nil
	case doc.Data != nil:
		return doc.Data, nil
	default:
		return []json.RawMessage{data}, nil
	}
}

// decodeRecord reads one object keeping its key order
func decodeRecord(raw json.RawMessage) ([]string, map[string]Cell, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, apperrors.NewDecodeError("bad json record", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		// scalar or array records become a single "value" column
		cell, err := jsonCell(raw)
		if err != nil {
			return nil, nil, err
		}
		return []string{"value"}, map[string]Cell{"value": cell}, nil
	}

	var keys []string
	values := make(map[string]Cell)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, apperrors.NewDecodeError("bad json record", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, apperrors.NewDecodeError(fmt.Sprintf("unexpected token %v", tok), nil)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, apperrors.NewDecodeError("bad json value", err).WithContext("key", key)
		}
		cell, err := jsonCell(value)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = cell
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, nil, apperrors.NewDecodeError("bad json record", err)
	}
	return keys, values, nil
}

func jsonCell(raw json.RawMessage) (Cell, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Blank(), nil
	}
	switch trimmed[0] {
	case 'n':
		return Blank(), nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Cell{}, apperrors.NewDecodeError("bad json string", err)
		}
		if strings.TrimSpace(s) == "" {
			return Blank(), nil
		}
		return Str(s), nil
	case 't', 'f':
		return Str(string(trimmed)), nil
	case '{', '[':
		return Str(string(trimmed)), nil
	default:
		if cell, ok := ParseNumber(string(trimmed)); ok {
			return cell, nil
		}
		return Str(string(trimmed)), nil
	}
}
