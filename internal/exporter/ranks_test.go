package exporter

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oispurts/pkg/contracts/domain"
)

var (
	ist = time.FixedZone("IST", 5*3600+1800)
	at  = time.Date(2024, 1, 2, 10, 20, 0, 0, ist)
)

func readCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(buf.Bytes(), utf8BOM))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteRanks(t *testing.T) {
	entries := []domain.ListEntry{
		{Key: "TCS", Rank: 2, RankDelta: -1, Timestamp: at.UTC()},
		{Key: "INFY", Rank: 1, RankDelta: 3, Timestamp: at},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRanks(&buf, entries, ist, WriteOptions{BOMPrefix: true}))

	assert.Equal(t, [][]string{
		{"instrument", "serial_number", "change", "timestamp"},
		{"INFY", "1", "+3", "2024-01-02 10:20:00"},
		{"TCS", "2", "-1", "2024-01-02 10:20:00"},
	}, readCSV(t, &buf))
	assert.Equal(t, "TCS", entries[0].Key, "input is not reordered")
}

func TestWriteHistory(t *testing.T) {
	hist := []domain.Observation{
		{InstrumentKey: "TCS", Rank: 4, Timestamp: at, SourceFile: "a.xlsx"},
		{InstrumentKey: "TCS", Rank: 6, RankDelta: 2, Timestamp: at.Add(20 * time.Minute), SourceFile: "b.xlsx"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHistory(&buf, hist, ist, WriteOptions{}))

	records := readCSV(t, &buf)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"TCS", "2024-01-02 10:20:00", "4", "0", "a.xlsx"}, records[1])
	assert.Equal(t, []string{"TCS", "2024-01-02 10:40:00", "6", "+2", "b.xlsx"}, records[2])
}

func TestWriteRows(t *testing.T) {
	rows := []domain.ExtractedRow{
		{InstrumentKey: "RELIANCE", Rank: 1, Auxiliary: map[string]string{"volume": "3200", "oi change": "20500"}},
		{InstrumentKey: "TCS", Rank: 2},
		{InstrumentKey: "HDFCBANK", Rank: 4, Auxiliary: map[string]string{"volume": "2100"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, rows, WriteOptions{}))

	assert.Equal(t, [][]string{
		{"serial_number", "instrument", "oi change", "volume"},
		{"1", "RELIANCE", "20500", "3200"},
		{"2", "TCS", "", ""},
		{"4", "HDFCBANK", "", "2100"},
	}, readCSV(t, &buf))
}

func TestWriteRanks_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRanks(&buf, nil, nil, WriteOptions{}))
	assert.Equal(t, "instrument,serial_number,change,timestamp\n", buf.String())
}
