package exporter

import (
	"strconv"
	"time"
)

// timestampLayout is used for every time column
const timestampLayout = "2006-01-02 15:04:05"

func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatDelta signs positive changes so a spreadsheet keeps the "+"
func formatDelta(d int) string {
	if d > 0 {
		return "+" + strconv.Itoa(d)
	}
	return strconv.Itoa(d)
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(timestampLayout)
}
