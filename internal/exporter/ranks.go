package exporter

import (
	"io"
	"sort"
	"time"

	"oispurts/pkg/contracts/domain"
)

var (
	rankHeaders    = []string{"instrument", "serial_number", "change", "timestamp"}
	historyHeaders = []string{"instrument", "timestamp", "serial_number", "change", "source_file"}
)

// WriteRanks writes the latest rank per instrument, sorted by key
func WriteRanks(w io.Writer, entries []domain.ListEntry, loc *time.Location, options WriteOptions) error {
	sorted := make([]domain.ListEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	sw, err := NewStreamWriter(w, rankHeaders, options)
	if err != nil {
		return err
	}
	for _, e := range sorted {
		if err := sw.WriteRecord([]string{
			e.Key,
			formatInt(e.Rank),
			formatDelta(e.RankDelta),
			formatTime(e.Timestamp, loc),
		}); err != nil {
			return err
		}
	}
	return sw.Close()
}

// WriteHistory writes observations in the order given
func WriteHistory(w io.Writer, hist []domain.Observation, loc *time.Location, options WriteOptions) error {
	sw, err := NewStreamWriter(w, historyHeaders, options)
	if err != nil {
		return err
	}
	for _, obs := range hist {
		if err := sw.WriteRecord(historyRecord(obs, loc)); err != nil {
			return err
		}
	}
	return sw.Close()
}

// WriteRows writes extracted rows in rank order. Every auxiliary field
// seen on any row becomes a column, sorted by name.
func WriteRows(w io.Writer, rows []domain.ExtractedRow, options WriteOptions) error {
	aux := auxiliaryFields(rows)
	headers := append([]string{"serial_number", "instrument"}, aux...)

	sw, err := NewStreamWriter(w, headers, options)
	if err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, 0, len(headers))
		record = append(record, formatInt(row.Rank), row.InstrumentKey)
		for _, field := range aux {
			record = append(record, row.Auxiliary[field])
		}
		if err := sw.WriteRecord(record); err != nil {
			return err
		}
	}
	return sw.Close()
}

func historyRecord(obs domain.Observation, loc *time.Location) []string {
	return []string{
		obs.InstrumentKey,
		formatTime(obs.Timestamp, loc),
		formatInt(obs.Rank),
		formatDelta(obs.RankDelta),
		obs.SourceFile,
	}
}

func auxiliaryFields(rows []domain.ExtractedRow) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for field := range row.Auxiliary {
			seen[field] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
