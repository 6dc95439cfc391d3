package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"oispurts/internal/config"
	apperrors "oispurts/internal/errors"
	"oispurts/internal/shared/testutil"
	"oispurts/pkg/contracts/domain"
)

type MockCollector struct {
	mock.Mock
}

func (m *MockCollector) Collect(ctx context.Context, now time.Time) domain.CollectionResult {
	args := m.Called(ctx, now)
	return args.Get(0).(domain.CollectionResult)
}

func utcSchedule() config.ScheduleConfig {
	cfg := config.Default().Schedule
	cfg.Location = "UTC"
	return cfg
}

func newTestScheduler(t *testing.T, collector Collector, hooks Hooks) *Scheduler {
	t.Helper()
	s, err := New(utcSchedule(), collector, hooks, testutil.NewDiscardLogger())
	require.NoError(t, err)
	return s
}

func success(now time.Time) domain.CollectionResult {
	return domain.CollectionResult{Outcome: domain.OutcomeSuccess, Timestamp: now}
}

func TestNew_InvalidSchedule(t *testing.T) {
	cfg := utcSchedule()
	cfg.Location = "Mars/Olympus"
	_, err := New(cfg, new(MockCollector), Hooks{}, testutil.NewDiscardLogger())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestTick_RunsEachSlotOnce(t *testing.T) {
	collector := new(MockCollector)
	collector.On("Collect", mock.Anything, mock.Anything).Return(success(at(10, 0, 0)))

	s := newTestScheduler(t, collector, Hooks{})
	ctx := context.Background()

	s.Tick(ctx, at(9, 59, 30))
	s.Tick(ctx, at(10, 0, 10))
	s.Tick(ctx, at(10, 0, 40))
	s.Tick(ctx, at(10, 19, 59))
	s.Tick(ctx, at(10, 20, 5))

	collector.AssertNumberOfCalls(t, "Collect", 2)
}

func TestTick_DoesNotCatchUpStaleSlots(t *testing.T) {
	collector := new(MockCollector)
	s := newTestScheduler(t, collector, Hooks{})

	// 14:20 slot is older than one interval by 14:41
	s.Tick(context.Background(), at(14, 41, 0))
	collector.AssertNotCalled(t, "Collect", mock.Anything, mock.Anything)
}

func TestTick_OutsideWindowIsSkipped(t *testing.T) {
	collector := new(MockCollector)
	s := newTestScheduler(t, collector, Hooks{})

	// the 14:20 slot is still fresh at 14:35 but the window has closed
	s.Tick(context.Background(), at(14, 35, 0))
	collector.AssertNotCalled(t, "Collect", mock.Anything, mock.Anything)

	info := s.Info(at(14, 35, 0))
	require.NotNil(t, info.LastRun)
	assert.Equal(t, at(14, 35, 0), *info.LastRun)
}

func TestTick_DailyCleanup(t *testing.T) {
	var cleanups []string
	s := newTestScheduler(t, new(MockCollector), Hooks{
		Cleanup: func(_ context.Context, now time.Time) {
			cleanups = append(cleanups, domain.DateOf(now))
		},
	})
	ctx := context.Background()

	s.Tick(ctx, at(14, 59, 0))
	s.Tick(ctx, at(15, 0, 0))
	s.Tick(ctx, at(15, 30, 0))
	s.Tick(ctx, at(15, 0, 0).AddDate(0, 0, 1))

	assert.Equal(t, []string{"2024-01-02", "2024-01-03"}, cleanups)
}

func TestTick_RolloverCheckedEveryTick(t *testing.T) {
	var checks int
	s := newTestScheduler(t, new(MockCollector), Hooks{
		Rollover: func(_ context.Context, now time.Time) bool {
			checks++
			return false
		},
	})

	s.Tick(context.Background(), at(0, 0, 30))
	s.Tick(context.Background(), at(0, 1, 0))
	assert.Equal(t, 2, checks)
}

func TestTick_HourlyMaintenance(t *testing.T) {
	var calls int
	s := newTestScheduler(t, new(MockCollector), Hooks{
		Status: func(now time.Time) domain.Status {
			calls++
			return domain.Status{CurrentDate: domain.DateOf(now)}
		},
	})
	ctx := context.Background()

	s.Tick(ctx, at(7, 0, 0))
	s.Tick(ctx, at(7, 30, 0))
	s.Tick(ctx, at(8, 0, 0))
	assert.Equal(t, 2, calls)
}

func TestForceRun(t *testing.T) {
	collector := new(MockCollector)
	collector.On("Collect", mock.Anything, mock.Anything).Return(success(at(11, 5, 0)))

	s := newTestScheduler(t, collector, Hooks{})
	s.now = func() time.Time { return at(11, 5, 0) }

	res, err := s.ForceRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome)
	collector.AssertNumberOfCalls(t, "Collect", 1)
}

func TestForceRun_OutsideWindow(t *testing.T) {
	collector := new(MockCollector)
	s := newTestScheduler(t, collector, Hooks{})
	s.now = func() time.Time { return at(18, 0, 0) }

	res, err := s.ForceRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkipped, res.Outcome)
	collector.AssertNotCalled(t, "Collect", mock.Anything, mock.Anything)
}

func TestForceRun_Busy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	collector := new(MockCollector)
	collector.On("Collect", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(success(at(11, 0, 0)))

	s := newTestScheduler(t, collector, Hooks{})
	s.now = func() time.Time { return at(11, 0, 0) }

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.ForceRun(context.Background())
		assert.NoError(t, err)
	}()

	<-started
	_, err := s.ForceRun(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeBusy))

	close(release)
	wg.Wait()
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := utcSchedule()
	cfg.Tick = time.Second

	s, err := New(cfg, new(MockCollector), Hooks{}, testutil.NewDiscardLogger())
	require.NoError(t, err)
	s.now = func() time.Time { return at(20, 0, 0) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Info(at(20, 0, 0)).Running }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.False(t, s.Info(at(20, 0, 0)).Running)
}

func TestInfo(t *testing.T) {
	s := newTestScheduler(t, new(MockCollector), Hooks{})
	info := s.Info(at(10, 5, 0))

	assert.Len(t, info.Slots, 14)
	assert.Equal(t, "20m0s", info.Interval)
	assert.Equal(t, "15:00", info.CleanupAt)
	assert.Equal(t, "UTC", info.Location)
	assert.Nil(t, info.LastRun)
	assert.Equal(t, at(10, 20, 0), info.NextRun)
	assert.False(t, info.Running)
}
