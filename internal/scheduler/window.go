package scheduler

import (
	"fmt"
	"time"

	"oispurts/internal/config"
	"oispurts/pkg/contracts/domain"
)

// TimeOfDay is a wall clock time without a date
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseClock parses an "HH:MM" setting
func ParseClock(s string) (TimeOfDay, error) {
	t, err := time.Parse(config.ClockLayout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String formats the time as HH:MM
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the minutes since midnight
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// On places the time on the calendar date of day, in day's location
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// sinceMidnight is the wall clock offset of now within its own day
func sinceMidnight(now time.Time) time.Duration {
	h, m, s := now.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(now.Nanosecond())
}

// IsWithinWindow reports whether start <= now <= end on the wall clock.
// Both bounds are inclusive; 14:30:00 is inside a window ending at 14:30
// but 14:30:01 is not.
func IsWithinWindow(now time.Time, start, end TimeOfDay) bool {
	offset := sinceMidnight(now)
	lo := time.Duration(start.Minutes()) * time.Minute
	hi := time.Duration(end.Minutes()) * time.Minute
	return offset >= lo && offset <= hi
}

// Window is the daily collection schedule
type Window struct {
	Start    TimeOfDay
	End      TimeOfDay
	Interval time.Duration
}

// NewWindow builds a window from the schedule settings
func NewWindow(cfg config.ScheduleConfig) (Window, error) {
	start, err := ParseClock(cfg.Start)
	if err != nil {
		return Window{}, err
	}
	end, err := ParseClock(cfg.End)
	if err != nil {
		return Window{}, err
	}
	if end.Minutes() < start.Minutes() {
		return Window{}, fmt.Errorf("window end %s is before start %s", end, start)
	}
	if cfg.Interval < time.Minute {
		return Window{}, fmt.Errorf("interval %s is shorter than a minute", cfg.Interval)
	}
	return Window{Start: start, End: end, Interval: cfg.Interval}, nil
}

// Contains reports whether now falls inside the window
func (w Window) Contains(now time.Time) bool {
	return IsWithinWindow(now, w.Start, w.End)
}

func (w Window) step() int {
	step := int(w.Interval / time.Minute)
	if step < 1 {
		step = 1
	}
	return step
}

// Slots lists the collection times of a day. The first slot is the window
// start; later slots sit on multiples of the interval, so a 10:05 start
// with a 20 minute interval gives 10:05, 10:20, 10:40 and so on.
func (w Window) Slots() []TimeOfDay {
	step := w.step()
	var slots []TimeOfDay
	for m := w.Start.Minutes(); m <= w.End.Minutes(); m = (m/step + 1) * step {
		slots = append(slots, TimeOfDay{Hour: m / 60, Minute: m % 60})
	}
	return slots
}

// SlotAt returns the most recent slot at or before now on now's date
func (w Window) SlotAt(now time.Time) (TimeOfDay, bool) {
	offset := sinceMidnight(now)
	var found TimeOfDay
	ok := false
	for _, s := range w.Slots() {
		if time.Duration(s.Minutes())*time.Minute > offset {
			break
		}
		found, ok = s, true
	}
	return found, ok
}

// NextRun returns the first slot strictly after now, rolling over to the
// first slot of the next day once today's slots are spent
func (w Window) NextRun(now time.Time) time.Time {
	slots := w.Slots()
	for _, s := range slots {
		if at := s.On(now); at.After(now) {
			return at
		}
	}
	return slots[0].On(now.AddDate(0, 0, 1))
}

// NextUpdate describes when the next collection happens: an HH:MM:SS
// clock time inside the window, "After market hours" when the next
// interval boundary falls past the window end and "Market closed" when
// now is outside the window
func (w Window) NextUpdate(now time.Time) string {
	if !w.Contains(now) {
		return domain.NextUpdateMarketClosed
	}

	step := w.step()
	minutes := now.Hour()*60 + now.Minute()
	next := (minutes/step + 1) * step
	if next > w.End.Minutes() {
		return domain.NextUpdateAfterHours
	}

	at := TimeOfDay{Hour: next / 60, Minute: next % 60}.On(now)
	return at.Format("15:04:05")
}
