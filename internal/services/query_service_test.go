package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oispurts/internal/config"
	"oispurts/internal/history"
	"oispurts/internal/scheduler"
	"oispurts/internal/shared/testutil"
	"oispurts/pkg/contracts/domain"
)

type fixedFiles int

func (f fixedFiles) CountForDate(time.Time) int { return int(f) }

func at(h, m int) time.Time {
	return time.Date(2024, 1, 2, h, m, 0, 0, time.UTC)
}

// recordBatch stores one batch of keys ranked in the given order
func recordBatch(t *testing.T, tracker *history.Tracker, ts time.Time, keys ...string) {
	t.Helper()
	rows := make([]domain.ExtractedRow, len(keys))
	for i, k := range keys {
		rows[i] = domain.ExtractedRow{InstrumentKey: k, Rank: i + 1, SourceID: "oi_spurts_test.xlsx"}
	}
	_, err := tracker.Record(context.Background(), rows, ts)
	require.NoError(t, err)
}

func newQueryFixture(t *testing.T, files FileCounter, started time.Time) (*QueryService, *history.Tracker) {
	t.Helper()
	store := history.NewStore("2024-01-02")
	tracker := history.NewTracker(store, nil, time.UTC, testutil.NewDiscardLogger())
	window, err := scheduler.NewWindow(config.Default().Schedule)
	require.NoError(t, err)
	return NewQueryService(store, window, files, time.UTC, started, testutil.NewDiscardLogger()), tracker
}

func TestSearch_PartialMatch(t *testing.T) {
	q, tracker := newQueryFixture(t, nil, at(9, 0))
	recordBatch(t, tracker, at(10, 0), "ICICIBANK", "HDFCLIFE", "HDFCBANK")

	obs, ok := q.Search("hdfc")
	require.True(t, ok)
	assert.Equal(t, "HDFCBANK", obs.InstrumentKey)
	assert.Equal(t, 3, obs.Rank)

	assert.Equal(t, []string{"HDFCBANK", "HDFCLIFE"}, q.Suggestions("hdfc"))
}

func TestSearch_ExactKeyWins(t *testing.T) {
	q, tracker := newQueryFixture(t, nil, at(9, 0))
	recordBatch(t, tracker, at(10, 0), "TATAMOTORS", "TATA")

	obs, ok := q.Search(" tata ")
	require.True(t, ok)
	assert.Equal(t, "TATA", obs.InstrumentKey)

	obs, ok = q.Search("reliance-eq")
	assert.False(t, ok)
	assert.Empty(t, obs.InstrumentKey)
}

func TestSearch_EmptyQuery(t *testing.T) {
	q, tracker := newQueryFixture(t, nil, at(9, 0))
	recordBatch(t, tracker, at(10, 0), "TCS")

	_, ok := q.Search("   ")
	assert.False(t, ok)
	assert.Equal(t, []string{}, q.Suggestions(""))
}

func TestSuggestions_Capped(t *testing.T) {
	q, tracker := newQueryFixture(t, nil, at(9, 0))
	keys := []string{"AB01", "AB02", "AB03", "AB04", "AB05", "AB06", "AB07", "AB08", "AB09", "AB10", "AB11", "AB12"}
	recordBatch(t, tracker, at(10, 0), keys...)

	got := q.Suggestions("ab")
	assert.Len(t, got, MaxSuggestions)
	assert.Equal(t, "AB01", got[0])
	assert.Equal(t, "AB10", got[9])
}

func TestHistory(t *testing.T) {
	q, tracker := newQueryFixture(t, nil, at(9, 0))
	recordBatch(t, tracker, at(10, 0), "TCS", "INFY")
	recordBatch(t, tracker, at(10, 20), "INFY", "TCS")

	h := q.History("tcs")
	require.Len(t, h, 2)
	assert.Equal(t, []int{1, 2}, []int{h[0].Rank, h[1].Rank})
	assert.Equal(t, []int{0, 1}, []int{h[0].RankDelta, h[1].RankDelta})

	assert.NotNil(t, q.History("UNKNOWN"))
	assert.Empty(t, q.History("UNKNOWN"))
	assert.Len(t, q.ListAll(), 2)
	assert.Len(t, q.Movers(1), 1)
}

func TestStatus_EmptyStore(t *testing.T) {
	q, _ := newQueryFixture(t, nil, at(9, 0))

	status := q.Status(at(9, 30))
	assert.Equal(t, 0, status.TotalInstruments)
	assert.Equal(t, 0, status.SuccessfulUpdates)
	assert.Equal(t, 0, status.FailedUpdates)
	assert.Nil(t, status.LatestTimestamp)
	assert.False(t, status.InWindow)
	assert.Equal(t, "2024-01-02", status.CurrentDate)
	assert.Equal(t, 0, status.FilesToday)
	assert.Equal(t, "30 minutes", status.Uptime)
	assert.Equal(t, domain.NextUpdateMarketClosed, status.NextUpdate)
}

func TestStatus_DuringSession(t *testing.T) {
	q, tracker := newQueryFixture(t, fixedFiles(2), at(8, 2))
	recordBatch(t, tracker, at(10, 0), "TCS", "INFY")
	tracker.RecordFailure(context.Background(), at(10, 20))

	status := q.Status(at(10, 25))
	assert.Equal(t, 2, status.TotalInstruments)
	assert.Equal(t, 1, status.SuccessfulUpdates)
	assert.Equal(t, 1, status.FailedUpdates)
	assert.True(t, status.InWindow)
	require.NotNil(t, status.LatestTimestamp)
	assert.True(t, at(10, 0).Equal(*status.LatestTimestamp))
	assert.Equal(t, 2, status.FilesToday)
	assert.Equal(t, "2 hours, 23 minutes", status.Uptime)
	assert.Equal(t, "10:40:00", status.NextUpdate)
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{59 * time.Second, "59 seconds"},
		{61 * time.Second, "1 minute"},
		{time.Hour, "1 hour"},
		{2*24*time.Hour + 3*time.Hour + time.Minute, "2 days, 3 hours, 1 minute"},
		{-time.Minute, "0 seconds"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUptime(tt.in), tt.in.String())
	}
}
