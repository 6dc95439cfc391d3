package dataprocessing

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"oispurts/internal/table"
	"oispurts/pkg/contracts/domain"
)

var (
	// instrumentTokens mark the instrument name column
	instrumentTokens = []string{"SYMBOL", "STOCK", "SCRIP", "NAME"}

	// auxiliaryTokens mark numeric columns carried along with each row
	auxiliaryTokens = []string{"OI", "INTEREST", "VOLUME", "PRICE", "CHANGE"}

	sentinels = map[string]struct{}{"": {}, "NAN": {}, "NULL": {}, "NONE": {}}
)

// Result is the outcome of extracting one table
type Result struct {
	Rows             []domain.ExtractedRow
	InstrumentColumn string
	AuxiliaryColumns []string
	TotalRows        int
	Skipped          int
}

// Extractor pulls ranked instrument rows out of decoded tables
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an extractor that logs through logger
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With(slog.String("component", "extractor"))}
}

// InstrumentColumn returns the index of the first column whose name
// contains an instrument token. Without a match it falls back to column
// 0 and reports false; without columns it returns -1.
func InstrumentColumn(columns []string) (int, bool) {
	if len(columns) == 0 {
		return -1, false
	}
	for i, col := range columns {
		if containsAny(strings.ToUpper(col), instrumentTokens) {
			return i, true
		}
	}
	return 0, false
}

// AuxiliaryColumns returns every column other than skip whose name
// contains an auxiliary token, in table order
func AuxiliaryColumns(columns []string, skip int) []int {
	var idx []int
	for i, col := range columns {
		if i == skip {
			continue
		}
		if containsAny(strings.ToUpper(col), auxiliaryTokens) {
			idx = append(idx, i)
		}
	}
	return idx
}

// AuxiliaryKey is the map key an auxiliary column is stored under
func AuxiliaryKey(column string) string {
	return strings.ToLower(strings.Join(strings.Fields(column), "_"))
}

// Extract emits one row per valid instrument cell, in table order.
// Rank is the 1-based row position and is not renumbered after skips.
func (e *Extractor) Extract(t *table.Table, sourceID string) Result {
	var result Result
	if t == nil || len(t.Columns) == 0 {
		e.logger.Warn("table has no columns", slog.String("source_file", sourceID))
		return result
	}

	col, matched := InstrumentColumn(t.Columns)
	if !matched {
		e.logger.Warn("no instrument column found, using first column",
			slog.String("column", t.Columns[col]),
			slog.String("source_file", sourceID))
	}
	aux := AuxiliaryColumns(t.Columns, col)

	result.InstrumentColumn = t.Columns[col]
	result.TotalRows = len(t.Rows)
	for _, i := range aux {
		result.AuxiliaryColumns = append(result.AuxiliaryColumns, t.Columns[i])
	}

	result.Rows = make([]domain.ExtractedRow, 0, len(t.Rows))
	for i := range t.Rows {
		label := strings.ToUpper(strings.TrimSpace(t.Cell(i, col).String()))
		if skipLabel(label) {
			result.Skipped++
			continue
		}

		key := Normalize(label)
		if key == "" {
			e.logger.Debug("label normalized to empty key",
				slog.Int("row", i),
				slog.String("label", label))
			result.Skipped++
			continue
		}

		row := domain.ExtractedRow{
			InstrumentKey: key,
			Rank:          i + 1,
			SourceID:      sourceID,
		}
		for _, c := range aux {
			cell := t.Cell(i, c)
			if cell.IsBlank() {
				continue
			}
			if row.Auxiliary == nil {
				row.Auxiliary = make(map[string]string, len(aux))
			}
			row.Auxiliary[AuxiliaryKey(t.Columns[c])] = cell.String()
		}
		result.Rows = append(result.Rows, row)
	}

	e.logger.Info("extracted instrument rows",
		slog.String("source_file", sourceID),
		slog.String("instrument_column", result.InstrumentColumn),
		slog.Int("total_rows", result.TotalRows),
		slog.Int("extracted", len(result.Rows)),
		slog.Int("skipped", result.Skipped))

	return result
}

// skipLabel reports garbage instrument cells: blanks, sentinels, single
// characters and pure digit strings
func skipLabel(label string) bool {
	if _, ok := sentinels[label]; ok {
		return true
	}
	if utf8.RuneCountInString(label) < 2 {
		return true
	}
	for _, r := range label {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
