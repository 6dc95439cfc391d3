package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "oispurts/internal/errors"
	"oispurts/pkg/contracts/domain"
)

// RankDelta is the signed change from the previous rank. The first
// observation of the day has no previous rank and a delta of 0.
func RankDelta(prev domain.InstrumentHistory, rank int) int {
	last, ok := prev.Latest()
	if !ok {
		return 0
	}
	return rank - last.Rank
}

// RolloverFunc is notified after the live store moves to a new date
type RolloverFunc func(ctx context.Context, previousDate, currentDate string)

// BatchResult summarizes one recorded batch
type BatchResult struct {
	Date       string
	Appended   int
	Persisted  bool
	RolledOver bool
}

// Tracker is the single writer in front of a Store. Rollover check,
// batch append and snapshot write run under one lock so two batches
// never interleave and no snapshot is written mid-batch.
type Tracker struct {
	writeMu    sync.Mutex
	store      *Store
	persister  Persister
	location   *time.Location
	logger     *slog.Logger
	onRollover []RolloverFunc
}

// NewTracker wires a tracker over store. persister may be nil for a
// purely in-memory tracker; location decides calendar dates.
func NewTracker(store *Store, persister Persister, location *time.Location, logger *slog.Logger) *Tracker {
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:     store,
		persister: persister,
		location:  location,
		logger:    logger.With(slog.String("component", "rank_tracker")),
	}
}

// Store returns the underlying store
func (t *Tracker) Store() *Store {
	return t.store
}

// Location returns the zone calendar dates are computed in
func (t *Tracker) Location() *time.Location {
	return t.location
}

// OnRollover registers fn to run after each date change
func (t *Tracker) OnRollover(fn RolloverFunc) {
	t.writeMu.Lock()
	t.onRollover = append(t.onRollover, fn)
	t.writeMu.Unlock()
}

// Today returns the calendar date of now in the tracker's location
func (t *Tracker) Today(now time.Time) string {
	return domain.DateOf(now.In(t.location))
}

// CheckRollover moves the store to now's date if needed. It is safe to
// call between batches, for example from a midnight tick.
func (t *Tracker) CheckRollover(ctx context.Context, now time.Time) bool {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.rollover(ctx, now)
}

// Record appends a batch observed at ts and persists the result. The
// batch is all or nothing: a row older than its instrument's last
// observation, or a ts dated before the live store, rejects the whole
// batch with an invariant error and leaves the store untouched. A failed
// snapshot write is logged and reported via Persisted.
func (t *Tracker) Record(ctx context.Context, rows []domain.ExtractedRow, ts time.Time) (BatchResult, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	result := BatchResult{RolledOver: t.rollover(ctx, ts)}
	result.Date = t.store.Date()

	if day := t.Today(ts); day < result.Date {
		err := apperrors.NewInvariantError(fmt.Sprintf("batch dated %s is older than the live store %s", day, result.Date))
		t.logger.ErrorContext(ctx, "batch rejected", slog.String("error", err.Error()))
		return result, err
	}

	batch := make([]domain.Observation, 0, len(rows))
	tails := make(map[string]domain.InstrumentHistory, len(rows))
	for _, row := range rows {
		prev, ok := tails[row.InstrumentKey]
		if !ok {
			prev = t.store.tail(row.InstrumentKey)
		}
		obs := domain.Observation{
			InstrumentKey: row.InstrumentKey,
			Rank:          row.Rank,
			Timestamp:     ts,
			RankDelta:     RankDelta(prev, row.Rank),
			SourceFile:    row.SourceID,
			Auxiliary:     row.Auxiliary,
		}
		tails[row.InstrumentKey] = domain.InstrumentHistory{obs}
		batch = append(batch, obs)
	}

	if err := t.store.AppendBatch(batch); err != nil {
		t.logger.ErrorContext(ctx, "batch rejected",
			slog.Int("rows", len(rows)),
			slog.String("error", err.Error()))
		return result, err
	}
	result.Appended = len(batch)
	t.store.RecordSuccess()

	t.logger.InfoContext(ctx, "stored batch",
		slog.String("date", result.Date),
		slog.Int("appended", result.Appended),
		slog.Int("instruments", t.store.Len()))

	result.Persisted = t.persist(ctx)
	return result, nil
}

// RecordFailure counts a failed collection against the live day, moving
// it forward first when now falls on a later date
func (t *Tracker) RecordFailure(ctx context.Context, now time.Time) BatchResult {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	result := BatchResult{RolledOver: t.rollover(ctx, now)}
	result.Date = t.store.Date()
	t.store.RecordFailure()
	result.Persisted = t.persist(ctx)
	return result
}

// Load restores today's snapshot. Missing, unreadable or stale snapshots
// leave an empty store for today; none of these is fatal.
func (t *Tracker) Load(ctx context.Context, now time.Time) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	today := t.Today(now)
	t.store.Rollover(today)
	if t.persister == nil {
		return
	}

	snap, err := t.persister.Load(ctx, today)
	if err != nil {
		if IsNotExist(err) {
			t.logger.InfoContext(ctx, "no snapshot for today, starting fresh", slog.String("date", today))
		} else {
			t.logger.ErrorContext(ctx, "failed to load snapshot, starting fresh",
				slog.String("date", today),
				slog.String("error", err.Error()))
		}
		return
	}

	if err := t.store.Restore(snap, today); err != nil {
		t.logger.InfoContext(ctx, "snapshot is from a different date, starting fresh",
			slog.String("snapshot_date", snap.Date),
			slog.String("date", today))
		return
	}

	t.logger.InfoContext(ctx, "restored snapshot",
		slog.String("date", today),
		slog.Int("instruments", t.store.Len()))
}

func (t *Tracker) rollover(ctx context.Context, now time.Time) bool {
	today := t.Today(now)
	prev, rolled := t.store.Rollover(today)
	if !rolled {
		return false
	}

	t.logger.InfoContext(ctx, "date changed, cleared daily store",
		slog.String("previous_date", prev),
		slog.String("current_date", today))
	for _, fn := range t.onRollover {
		fn(ctx, prev, today)
	}
	return true
}

func (t *Tracker) persist(ctx context.Context) bool {
	if t.persister == nil {
		return false
	}
	if err := t.persister.Save(ctx, t.store.Snapshot()); err != nil {
		t.logger.ErrorContext(ctx, "failed to persist snapshot", slog.String("error", err.Error()))
		return false
	}
	return true
}
