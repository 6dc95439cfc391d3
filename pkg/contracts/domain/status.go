package domain

import (
	"time"
)

// Status reports the health of the daily collection
type Status struct {
	TotalInstruments  int        `json:"total_stocks"`
	SuccessfulUpdates int        `json:"successful_updates"`
	FailedUpdates     int        `json:"failed_updates"`
	InWindow          bool       `json:"in_market_hours"`
	LatestTimestamp   *time.Time `json:"last_update,omitempty"`
	CurrentDate       string     `json:"current_date"`
	FilesToday        int        `json:"files_today"`
	Uptime            string     `json:"uptime"`
	NextUpdate        string     `json:"next_update"`
}

// Next update labels outside of a collection slot
const (
	NextUpdateAfterHours   = "After market hours"
	NextUpdateMarketClosed = "Market closed"
)

// CollectionOutcome is the result class of one collection cycle
type CollectionOutcome string

const (
	OutcomeSuccess         CollectionOutcome = "success"
	OutcomeFetchFailed     CollectionOutcome = "fetch_failed"
	OutcomeDecodeFailed    CollectionOutcome = "decode_failed"
	OutcomeEmptyExtraction CollectionOutcome = "empty_extraction"
	OutcomeSkipped         CollectionOutcome = "skipped"
	OutcomeRejected        CollectionOutcome = "rejected"
)

// CollectionResult describes one finished collection cycle
type CollectionResult struct {
	CycleID         string            `json:"cycle_id"`
	Outcome         CollectionOutcome `json:"outcome"`
	SourceID        string            `json:"source_file,omitempty"`
	SourceURL       string            `json:"url,omitempty"`
	FileSize        int               `json:"file_size,omitempty"`
	TotalRows       int               `json:"total_rows"`
	StocksProcessed int               `json:"stocks_processed"`
	Timestamp       time.Time         `json:"timestamp"`
	Duration        time.Duration     `json:"duration"`
	Persisted       bool              `json:"persisted"`
	Error           string            `json:"error,omitempty"`
}
