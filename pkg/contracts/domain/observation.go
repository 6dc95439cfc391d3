package domain

import (
	"time"
)

// DateLayout is the calendar date format used for daily stores and snapshot files
const DateLayout = "2006-01-02"

// DateOf returns the calendar date of t in its own location
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// ExtractedRow is one instrument row pulled out of a downloaded table.
// Rank is the 1-based row position in the source table; gaps left by
// skipped rows are preserved.
type ExtractedRow struct {
	InstrumentKey string            `json:"instrument_key"`
	Rank          int               `json:"serial_number"`
	SourceID      string            `json:"source_file"`
	Auxiliary     map[string]string `json:"auxiliary,omitempty"`
}

// Observation is one timestamped rank data point for an instrument.
// Observations are never mutated once appended to a history.
type Observation struct {
	InstrumentKey string            `json:"instrument_key"`
	Rank          int               `json:"serial_number"`
	Timestamp     time.Time         `json:"timestamp"`
	RankDelta     int               `json:"change"`
	SourceFile    string            `json:"source_file"`
	Auxiliary     map[string]string `json:"auxiliary,omitempty"`
}

// Clone returns a copy that shares no mutable state with o
func (o Observation) Clone() Observation {
	if o.Auxiliary != nil {
		aux := make(map[string]string, len(o.Auxiliary))
		for k, v := range o.Auxiliary {
			aux[k] = v
		}
		o.Auxiliary = aux
	}
	return o
}

// InstrumentHistory is the ordered list of observations of one instrument for a day
type InstrumentHistory []Observation

// Latest returns the most recent observation
func (h InstrumentHistory) Latest() (Observation, bool) {
	if len(h) == 0 {
		return Observation{}, false
	}
	return h[len(h)-1], true
}

// Counters tracks collection outcomes for a day
type Counters struct {
	SuccessfulUpdates int `json:"successful_updates"`
	FailedUpdates     int `json:"failed_updates"`
	TotalObservations int `json:"total_stocks_processed"`
}

// ListEntry summarises the latest state of one instrument
type ListEntry struct {
	Key       string    `json:"name"`
	Rank      int       `json:"serial_number"`
	Timestamp time.Time `json:"timestamp"`
	RankDelta int       `json:"change"`
}
