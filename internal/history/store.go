// Package history keeps the per-day rank history of every instrument and
// persists it as one JSON snapshot per calendar date.
package history

import (
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "oispurts/internal/errors"
	"oispurts/pkg/contracts"
	"oispurts/pkg/contracts/domain"
)

// DailyStore is the full in-memory state for one calendar date
type DailyStore struct {
	Date      string
	Histories map[string]domain.InstrumentHistory
	Counters  domain.Counters
}

func newDailyStore(date string) *DailyStore {
	return &DailyStore{
		Date:      date,
		Histories: make(map[string]domain.InstrumentHistory),
	}
}

// Snapshot is the persisted form of a DailyStore
type Snapshot struct {
	Version   string                              `json:"version,omitempty"`
	Date      string                              `json:"date"`
	Counters  domain.Counters                     `json:"stats"`
	Histories map[string]domain.InstrumentHistory `json:"stocks"`
}

// Store owns the single live DailyStore. Each mutation holds the write
// lock for one row, so readers never see a partially appended history.
type Store struct {
	mu   sync.RWMutex
	live *DailyStore
}

// NewStore creates an empty store for date
func NewStore(date string) *Store {
	return &Store{live: newDailyStore(date)}
}

// Date returns the date of the live DailyStore
func (s *Store) Date() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live.Date
}

// Rollover swaps in an empty store when today is after the live date.
// Dates only move forward; an earlier today leaves the store alone. It
// returns the previous date and whether a swap happened.
func (s *Store) Rollover(today string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.live.Date
	if today <= prev {
		return prev, false
	}
	s.live = newDailyStore(today)
	return prev, true
}

// Append pushes obs onto its instrument's history. Timestamps older than
// the instrument's last observation are rejected as an invariant error.
func (s *Store) Append(obs domain.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.live.Histories[obs.InstrumentKey]
	if last, ok := h.Latest(); ok && obs.Timestamp.Before(last.Timestamp) {
		return apperrors.NewInvariantError(fmt.Sprintf("observation for %s at %s precedes %s",
			obs.InstrumentKey, obs.Timestamp.Format(time.RFC3339), last.Timestamp.Format(time.RFC3339))).
			WithContext("instrument_key", obs.InstrumentKey)
	}

	s.live.Histories[obs.InstrumentKey] = append(h, obs.Clone())
	s.live.Counters.TotalObservations++
	return nil
}

// AppendBatch appends every observation or none. Each one is checked
// against its instrument's last timestamp, including earlier entries of
// the same batch, before anything is written.
func (s *Store) AppendBatch(batch []domain.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := make(map[string]time.Time, len(batch))
	for _, obs := range batch {
		prev, seen := last[obs.InstrumentKey]
		if !seen {
			if l, ok := s.live.Histories[obs.InstrumentKey].Latest(); ok {
				prev, seen = l.Timestamp, true
			}
		}
		if seen && obs.Timestamp.Before(prev) {
			return apperrors.NewInvariantError(fmt.Sprintf("observation for %s at %s precedes %s",
				obs.InstrumentKey, obs.Timestamp.Format(time.RFC3339), prev.Format(time.RFC3339))).
				WithContext("instrument_key", obs.InstrumentKey)
		}
		last[obs.InstrumentKey] = obs.Timestamp
	}

	for _, obs := range batch {
		s.live.Histories[obs.InstrumentKey] = append(s.live.Histories[obs.InstrumentKey], obs.Clone())
	}
	s.live.Counters.TotalObservations += len(batch)
	return nil
}

// RecordSuccess counts a successful collection
func (s *Store) RecordSuccess() {
	s.mu.Lock()
	s.live.Counters.SuccessfulUpdates++
	s.mu.Unlock()
}

// RecordFailure counts a failed collection
func (s *Store) RecordFailure() {
	s.mu.Lock()
	s.live.Counters.FailedUpdates++
	s.mu.Unlock()
}

// Latest returns the most recent observation of key
func (s *Store) Latest(key string) (domain.Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obs, ok := s.live.Histories[key].Latest()
	if !ok {
		return domain.Observation{}, false
	}
	return obs.Clone(), true
}

// Contains reports whether key has at least one observation today
func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live.Histories[key]) > 0
}

// History returns a copy of key's observations, oldest first
func (s *Store) History(key string) domain.InstrumentHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneHistory(s.live.Histories[key])
}

func (s *Store) tail(key string) domain.InstrumentHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.live.Histories[key]
	if len(h) == 0 {
		return nil
	}
	return domain.InstrumentHistory{h[len(h)-1].Clone()}
}

// Keys returns every instrument key with observations, unordered
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.live.Histories))
	for k, h := range s.live.Histories {
		if len(h) > 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

// List returns the latest state of every instrument, unordered
func (s *Store) List() []domain.ListEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.ListEntry, 0, len(s.live.Histories))
	for k, h := range s.live.Histories {
		last, ok := h.Latest()
		if !ok {
			continue
		}
		entries = append(entries, domain.ListEntry{
			Key:       k,
			Rank:      last.Rank,
			Timestamp: last.Timestamp,
			RankDelta: last.RankDelta,
		})
	}
	return entries
}

// Counters returns the live collection counters
func (s *Store) Counters() domain.Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live.Counters
}

// Len returns the number of instruments with observations
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, h := range s.live.Histories {
		if len(h) > 0 {
			n++
		}
	}
	return n
}

// LatestTimestamp returns the newest timestamp across all observations
func (s *Store) LatestTimestamp() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		latest time.Time
		found  bool
	)
	for _, h := range s.live.Histories {
		for _, obs := range h {
			if !found || obs.Timestamp.After(latest) {
				latest, found = obs.Timestamp, true
			}
		}
	}
	return latest, found
}

// Movers returns up to n instruments whose latest delta moved furthest, largest first
func (s *Store) Movers(n int) []domain.ListEntry {
	entries := s.List()
	var moved []domain.ListEntry
	for _, e := range entries {
		if e.RankDelta != 0 {
			moved = append(moved, e)
		}
	}
	sort.Slice(moved, func(i, j int) bool {
		ai, aj := abs(moved[i].RankDelta), abs(moved[j].RankDelta)
		if ai != aj {
			return ai > aj
		}
		return moved[i].Key < moved[j].Key
	})
	if len(moved) > n {
		moved = moved[:n]
	}
	return moved
}

// Snapshot captures the live store as a deep copy
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	histories := make(map[string]domain.InstrumentHistory, len(s.live.Histories))
	for k, h := range s.live.Histories {
		histories[k] = cloneHistory(h)
	}
	return Snapshot{
		Version:   contracts.SnapshotFormatVersion,
		Date:      s.live.Date,
		Counters:  s.live.Counters,
		Histories: histories,
	}
}

// Restore replaces the live store with snap. A snapshot dated other than
// today is discarded and the store starts empty for today; the returned
// error is then STALE_SNAPSHOT so the caller can log the decision.
func (s *Store) Restore(snap Snapshot, today string) error {
	if snap.Date != today {
		s.mu.Lock()
		s.live = newDailyStore(today)
		s.mu.Unlock()
		return apperrors.NewStaleSnapshotError(snap.Date, today)
	}

	live := newDailyStore(today)
	live.Counters = snap.Counters
	for k, h := range snap.Histories {
		live.Histories[k] = cloneHistory(h)
	}

	s.mu.Lock()
	s.live = live
	s.mu.Unlock()
	return nil
}

func cloneHistory(h domain.InstrumentHistory) domain.InstrumentHistory {
	if h == nil {
		return nil
	}
	out := make(domain.InstrumentHistory, len(h))
	for i, obs := range h {
		out[i] = obs.Clone()
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
