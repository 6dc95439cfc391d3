package bot

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"oispurts/pkg/contracts/domain"
)

var (
	ist       = time.FixedZone("IST", 5*3600+1800)
	renderNow = time.Date(2024, 1, 2, 10, 20, 0, 0, ist)
)

func TestEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HDFCBANK", "HDFCBANK"},
		{"M&M-EQ (x).", `M&M\-EQ \(x\)\.`},
		{"a_b*c", `a\_b\*c`},
		{`back\slash`, `back\\slash`},
		{"+1!", `\+1\!`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.in))
		})
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, "`10:20:00`", code("10:20:00"))
	assert.Equal(t, "`a\\`b`", code("a`b"))
}

func TestRenderObservation(t *testing.T) {
	obs := domain.Observation{
		InstrumentKey: "BAJAJ-AUTO",
		Rank:          5,
		RankDelta:     2,
		Timestamp:     renderNow.UTC(),
		Auxiliary:     map[string]string{"change in oi": "5000", "volume": "12"},
	}

	text := RenderObservation(obs, ist)

	assert.Contains(t, text, `*Stock Data for BAJAJ\-AUTO*`)
	assert.Contains(t, text, "`5` ⬆️")
	assert.Contains(t, text, `\(↗️ \+2\)`)
	assert.Contains(t, text, "`10:20:00`")
	assert.Contains(t, text, "`2024-01-02`")
	assert.Contains(t, text, "*Change In Oi:* `5000`")
	assert.Less(t, strings.Index(text, "Change In Oi"), strings.Index(text, "Volume"))
}

func TestRenderObservation_Indicators(t *testing.T) {
	down := RenderObservation(domain.Observation{InstrumentKey: "TCS", Rank: 1, RankDelta: -3, Timestamp: renderNow}, ist)
	assert.Contains(t, down, "⬇️")
	assert.Contains(t, down, `\(↘️ \-3\)`)
	assert.NotContains(t, down, "Additional Data")

	flat := RenderObservation(domain.Observation{InstrumentKey: "TCS", Rank: 1, Timestamp: renderNow}, ist)
	assert.Contains(t, flat, "➡️")
	assert.Contains(t, flat, `\(no change\)`)
}

func TestRenderHistory(t *testing.T) {
	hist := []domain.Observation{
		{InstrumentKey: "TCS", Rank: 4, Timestamp: renderNow},
		{InstrumentKey: "TCS", Rank: 6, RankDelta: 2, Timestamp: renderNow.Add(20 * time.Minute)},
	}

	text := RenderHistory("TCS", hist, ist)

	assert.Contains(t, text, "*Serial Number History for TCS*")
	assert.Contains(t, text, "` 1.` `10:20` Serial: `4`\n")
	assert.Contains(t, text, "` 2.` `10:40` Serial: `6` "+`\(↗️ \+2\)`)
	assert.Contains(t, text, `*Net Change:* \+2 ⬆️`)
	assert.Contains(t, text, "*Data Points:* 2")
}

func TestRenderHistory_SinglePoint(t *testing.T) {
	text := RenderHistory("TCS", []domain.Observation{{InstrumentKey: "TCS", Rank: 4, Timestamp: renderNow}}, ist)
	assert.NotContains(t, text, "Net Change")
	assert.Contains(t, text, "*Data Points:* 1")
}

func TestRenderList(t *testing.T) {
	entries := make([]domain.ListEntry, 25)
	for i := range entries {
		// reverse order so sorting is observable
		entries[i] = domain.ListEntry{Key: fmt.Sprintf("STOCK%02d", 25-i), Rank: i + 1}
	}
	entries[0].RankDelta = 1

	page1, pages := RenderList(entries, 1, 20, renderNow)
	assert.Equal(t, 2, pages)
	assert.Contains(t, page1, `\(Page 1/2\)`)
	assert.Contains(t, page1, "` 1.` *STOCK01* \\- Serial: `25`\n")
	assert.Contains(t, page1, "Use /list 2 for the next page")
	assert.NotContains(t, page1, "STOCK21")

	page2, _ := RenderList(entries, 9, 20, renderNow)
	assert.Contains(t, page2, `\(Page 2/2\)`)
	assert.Contains(t, page2, "`25.` *STOCK25* \\- Serial: `1` ⬆️")
	assert.Contains(t, page2, "*Total Stocks:* 25")
	assert.NotContains(t, page2, "next page")
}

func TestRenderList_Empty(t *testing.T) {
	text, pages := RenderList(nil, 1, 20, renderNow)
	assert.Equal(t, 0, pages)
	assert.Contains(t, text, "No stocks available")
}

func TestRenderStatus(t *testing.T) {
	last := renderNow
	text := RenderStatus(domain.Status{
		TotalInstruments:  180,
		SuccessfulUpdates: 2,
		FailedUpdates:     1,
		InWindow:          true,
		LatestTimestamp:   &last,
		CurrentDate:       "2024-01-02",
		FilesToday:        3,
		Uptime:            "2 hours, 1 minute",
		NextUpdate:        "10:40:00",
	}, ist)

	assert.Contains(t, text, "🟢 Open")
	assert.Contains(t, text, "*Stocks Tracked:* `180`")
	assert.Contains(t, text, "*Failed Updates:* `1`")
	assert.Contains(t, text, "*Last Update:* `10:20:00`")
	assert.Contains(t, text, "*Next Update:* `10:40:00`")

	closed := RenderStatus(domain.Status{NextUpdate: domain.NextUpdateMarketClosed}, ist)
	assert.Contains(t, closed, "🔴 Closed")
	assert.Contains(t, closed, "`No data yet`")
}

func TestRenderNotFound(t *testing.T) {
	text := RenderNotFound(" hdfx ", []string{"HDFCBANK", "HDFCLIFE"})
	assert.Contains(t, text, "*No data found for HDFX*")
	assert.Contains(t, text, "• `HDFCBANK`\n• `HDFCLIFE`")

	none := RenderNotFound("zzz", nil)
	assert.Contains(t, none, `Use /list to see all available stocks\.`)
}

func TestRenderError_TruncatesDetail(t *testing.T) {
	text := RenderError("Data refresh failed", strings.Repeat("x", 300), renderNow)
	assert.Contains(t, text, "`"+strings.Repeat("x", maxErrorDetail)+"...`")
	assert.NotContains(t, text, strings.Repeat("x", maxErrorDetail+1))
	assert.Contains(t, text, "*Timestamp:* `10:20:00`")
}

func TestRenderCollection(t *testing.T) {
	ok := RenderCollection(domain.CollectionResult{Outcome: domain.OutcomeSuccess, StocksProcessed: 42, SourceID: "oi_spurts_20240102_102000.xlsx"})
	assert.Contains(t, ok, "*Stocks Processed:* `42`")

	skipped := RenderCollection(domain.CollectionResult{Outcome: domain.OutcomeSkipped})
	assert.Contains(t, skipped, "Outside market hours")

	failed := RenderCollection(domain.CollectionResult{Outcome: domain.OutcomeFetchFailed, Error: "status 503", Timestamp: renderNow})
	assert.Contains(t, failed, "`fetch_failed: status 503`")
}

func TestStaticTexts(t *testing.T) {
	assert.Contains(t, welcomeText(), "Welcome to NSE OI Spurts Monitor Bot\\!")
	assert.Contains(t, helpText(), "`/refresh`")
}
