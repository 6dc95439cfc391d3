package services

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"oispurts/internal/dataprocessing"
	"oispurts/internal/history"
	"oispurts/internal/scheduler"
	"oispurts/pkg/contracts/domain"
)

// MaxSuggestions caps the names offered for a partial query
const MaxSuggestions = 10

// FileCounter counts the raw exports saved on a day
type FileCounter interface {
	CountForDate(day time.Time) int
}

// QueryService answers read-only questions about today's rank history
type QueryService struct {
	store    *history.Store
	window   scheduler.Window
	files    FileCounter
	location *time.Location
	started  time.Time
	logger   *slog.Logger
}

// NewQueryService creates a query service. files may be nil, in which
// case files_today is always zero.
func NewQueryService(store *history.Store, window scheduler.Window, files FileCounter, location *time.Location, started time.Time, logger *slog.Logger) *QueryService {
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{
		store:    store,
		window:   window,
		files:    files,
		location: location,
		started:  started,
		logger:   logger.With(slog.String("component", "query_service")),
	}
}

// Search returns the latest observation of the instrument best matching
// query. An exact key wins; otherwise the alphabetically first key that
// contains the normalized query is used.
func (q *QueryService) Search(query string) (domain.Observation, bool) {
	key := dataprocessing.Normalize(query)
	if key == "" {
		return domain.Observation{}, false
	}

	if obs, ok := q.store.Latest(key); ok {
		return obs, true
	}

	keys := q.store.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, key) {
			if obs, ok := q.store.Latest(k); ok {
				q.logger.Debug("partial match",
					slog.String("query", key),
					slog.String("instrument_key", k))
				return obs, true
			}
		}
	}
	return domain.Observation{}, false
}

// Suggestions returns up to MaxSuggestions keys containing the
// normalized query, sorted ascending
func (q *QueryService) Suggestions(query string) []string {
	key := dataprocessing.Normalize(query)
	if key == "" {
		return []string{}
	}

	matches := []string{}
	for _, k := range q.store.Keys() {
		if strings.Contains(k, key) {
			matches = append(matches, k)
		}
	}
	sort.Strings(matches)
	if len(matches) > MaxSuggestions {
		matches = matches[:MaxSuggestions]
	}
	return matches
}

// History returns today's observations of the named instrument, oldest
// first. Unknown names give an empty, non-nil slice.
func (q *QueryService) History(name string) []domain.Observation {
	h := q.store.History(dataprocessing.Normalize(name))
	if h == nil {
		return []domain.Observation{}
	}
	return h
}

// ListAll returns the latest state of every instrument, unordered
func (q *QueryService) ListAll() []domain.ListEntry {
	return q.store.List()
}

// Movers returns the instruments whose rank moved most in their last update
func (q *QueryService) Movers(n int) []domain.ListEntry {
	return q.store.Movers(n)
}

// Status summarizes the day's collection as of now
func (q *QueryService) Status(now time.Time) domain.Status {
	now = now.In(q.location)
	counters := q.store.Counters()

	status := domain.Status{
		TotalInstruments:  q.store.Len(),
		SuccessfulUpdates: counters.SuccessfulUpdates,
		FailedUpdates:     counters.FailedUpdates,
		InWindow:          q.window.Contains(now),
		CurrentDate:       q.store.Date(),
		Uptime:            FormatUptime(now.Sub(q.started)),
		NextUpdate:        q.window.NextUpdate(now),
	}

	if ts, ok := q.store.LatestTimestamp(); ok {
		status.LatestTimestamp = &ts
	}
	if q.files != nil {
		status.FilesToday = q.files.CountForDate(now)
	}
	return status
}

// FormatUptime renders a duration as "2 days, 3 hours, 1 minute".
// Durations under a minute are shown in seconds.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if len(parts) == 0 {
		parts = append(parts, plural(seconds, "second"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
