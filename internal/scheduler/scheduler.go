package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"oispurts/internal/config"
	apperrors "oispurts/internal/errors"
	"oispurts/internal/infrastructure"
	"oispurts/pkg/contracts/domain"
)

// maintenanceEvery is how often the status summary is logged
const maintenanceEvery = time.Hour

// Collector runs one collection cycle
type Collector interface {
	Collect(ctx context.Context, now time.Time) domain.CollectionResult
}

// Hooks are the daily housekeeping jobs. Any of them may be nil.
type Hooks struct {
	// Rollover swaps the live store when the date changed
	Rollover func(ctx context.Context, now time.Time) bool
	// Cleanup prunes raw exports and old snapshots
	Cleanup func(ctx context.Context, now time.Time)
	// Status feeds the hourly maintenance log
	Status func(now time.Time) domain.Status
}

// Info describes the schedule for status displays
type Info struct {
	Slots     []string   `json:"slots"`
	Interval  string     `json:"interval"`
	CleanupAt string     `json:"cleanup_at"`
	Location  string     `json:"location"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   time.Time  `json:"next_run"`
	Running   bool       `json:"running"`
}

// Scheduler triggers a collection at every slot of the window, never more
// than one at a time. Slots missed by more than one interval are not
// caught up.
type Scheduler struct {
	window    Window
	cleanupAt TimeOfDay
	location  *time.Location
	tick      time.Duration
	collector Collector
	hooks     Hooks
	logger    *slog.Logger
	now       func() time.Time

	// runMu is held for the duration of a collection
	runMu sync.Mutex

	mu              sync.Mutex
	running         bool
	lastRun         *time.Time
	lastSlot        string
	lastCleanup     string
	lastMaintenance time.Time
}

// New creates a scheduler from the schedule settings
func New(cfg config.ScheduleConfig, collector Collector, hooks Hooks, logger *slog.Logger) (*Scheduler, error) {
	window, err := NewWindow(cfg)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid schedule", err)
	}
	cleanupAt, err := ParseClock(cfg.CleanupAt)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid cleanup time", err)
	}
	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, apperrors.NewConfigError("invalid schedule location", err)
	}

	tick := cfg.Tick
	if tick <= 0 {
		tick = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		window:    window,
		cleanupAt: cleanupAt,
		location:  loc,
		tick:      tick,
		collector: collector,
		hooks:     hooks,
		logger:    logger.With(slog.String("component", "scheduler")),
		now:       time.Now,
	}, nil
}

// Window returns the collection window
func (s *Scheduler) Window() Window {
	return s.window
}

// Location returns the market time zone
func (s *Scheduler) Location() *time.Location {
	return s.location
}

// Run ticks until ctx is cancelled. The first tick happens immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	s.setRunning(true)
	defer s.setRunning(false)

	slots := s.window.Slots()
	s.logger.InfoContext(ctx, "Scheduler started",
		slog.String("start", s.window.Start.String()),
		slog.String("end", s.window.End.String()),
		slog.Duration("interval", s.window.Interval),
		slog.Int("slots", len(slots)),
		slog.String("cleanup_at", s.cleanupAt.String()),
		slog.String("location", s.location.String()))

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.Tick(ctx, s.now())
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick runs whatever is due at now: the date rollover check, the slot
// collection, the daily cleanup and the hourly maintenance log
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	ctx = infrastructure.EnsureTraceID(ctx)
	now = now.In(s.location)

	if s.hooks.Rollover != nil {
		s.hooks.Rollover(ctx, now)
	}

	if slot, ok := s.dueSlot(now); ok {
		if _, err := s.run(ctx, now); err != nil {
			s.logger.WarnContext(ctx, "Skipped scheduled collection",
				slog.String("slot", slot),
				slog.String("error", err.Error()))
		}
	}

	if s.cleanupDue(now) && s.hooks.Cleanup != nil {
		s.logger.InfoContext(ctx, "Starting daily cleanup")
		s.hooks.Cleanup(ctx, now)
	}

	s.maintenance(ctx, now)
}

// ForceRun starts a collection immediately. It fails with BUSY when a
// collection is already in flight.
func (s *Scheduler) ForceRun(ctx context.Context) (domain.CollectionResult, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	s.logger.InfoContext(ctx, "Forcing immediate data collection")
	return s.run(ctx, s.now().In(s.location))
}

// run guards a collection with TryLock so cycles never overlap. Outside
// the window the cycle is reported as skipped without touching the site.
func (s *Scheduler) run(ctx context.Context, now time.Time) (domain.CollectionResult, error) {
	if !s.runMu.TryLock() {
		return domain.CollectionResult{}, apperrors.NewBusyError()
	}
	defer s.runMu.Unlock()

	s.mu.Lock()
	last := now
	s.lastRun = &last
	s.mu.Unlock()

	if !s.window.Contains(now) {
		s.logger.InfoContext(ctx, "Outside market hours, skipping data collection",
			slog.String("time", now.Format("15:04:05")))
		return domain.CollectionResult{
			Outcome:   domain.OutcomeSkipped,
			Timestamp: now,
		}, nil
	}

	return s.collector.Collect(ctx, now), nil
}

// dueSlot claims the current slot if it has not run yet and is no older
// than one interval
func (s *Scheduler) dueSlot(now time.Time) (string, bool) {
	slot, ok := s.window.SlotAt(now)
	if !ok || now.Sub(slot.On(now)) >= s.window.Interval {
		return "", false
	}
	key := domain.DateOf(now) + " " + slot.String()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSlot == key {
		return "", false
	}
	s.lastSlot = key
	return key, true
}

func (s *Scheduler) cleanupDue(now time.Time) bool {
	if now.Before(s.cleanupAt.On(now)) {
		return false
	}
	day := domain.DateOf(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastCleanup == day {
		return false
	}
	s.lastCleanup = day
	return true
}

func (s *Scheduler) maintenance(ctx context.Context, now time.Time) {
	s.mu.Lock()
	if !s.lastMaintenance.IsZero() && now.Sub(s.lastMaintenance) < maintenanceEvery {
		s.mu.Unlock()
		return
	}
	s.lastMaintenance = now
	s.mu.Unlock()

	if s.hooks.Status == nil {
		return
	}
	status := s.hooks.Status(now)
	s.logger.InfoContext(ctx, "Current status",
		slog.Int("total_stocks", status.TotalInstruments),
		slog.Int("successful_updates", status.SuccessfulUpdates),
		slog.Int("failed_updates", status.FailedUpdates),
		slog.Bool("in_market_hours", status.InWindow),
		slog.String("next_run", s.window.NextRun(now).Format(time.RFC3339)))
}

func (s *Scheduler) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

// Info returns the schedule and its last and next runs
func (s *Scheduler) Info(now time.Time) Info {
	now = now.In(s.location)
	slots := s.window.Slots()
	names := make([]string, len(slots))
	for i, slot := range slots {
		names[i] = slot.String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var last *time.Time
	if s.lastRun != nil {
		t := *s.lastRun
		last = &t
	}

	return Info{
		Slots:     names,
		Interval:  s.window.Interval.String(),
		CleanupAt: s.cleanupAt.String(),
		Location:  s.location.String(),
		LastRun:   last,
		NextRun:   s.window.NextRun(now),
		Running:   s.running,
	}
}
