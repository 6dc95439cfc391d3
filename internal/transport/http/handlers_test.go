package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"oispurts/internal/config"
	apierrors "oispurts/internal/errors"
	"oispurts/internal/history"
	"oispurts/internal/scheduler"
	"oispurts/internal/services"
	"oispurts/internal/shared/testutil"
	"oispurts/pkg/contracts/domain"
)

// MockRankQuerier is a mock implementation of RankQuerier
type MockRankQuerier struct {
	mock.Mock
}

func (m *MockRankQuerier) Search(query string) (domain.Observation, bool) {
	args := m.Called(query)
	return args.Get(0).(domain.Observation), args.Bool(1)
}

func (m *MockRankQuerier) Suggestions(query string) []string {
	args := m.Called(query)
	return args.Get(0).([]string)
}

func (m *MockRankQuerier) History(name string) []domain.Observation {
	args := m.Called(name)
	return args.Get(0).([]domain.Observation)
}

func (m *MockRankQuerier) ListAll() []domain.ListEntry {
	args := m.Called()
	return args.Get(0).([]domain.ListEntry)
}

func (m *MockRankQuerier) Movers(n int) []domain.ListEntry {
	args := m.Called(n)
	return args.Get(0).([]domain.ListEntry)
}

func (m *MockRankQuerier) Status(now time.Time) domain.Status {
	args := m.Called(now)
	return args.Get(0).(domain.Status)
}

// MockRunner is a mock implementation of CollectionRunner
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) ForceRun(ctx context.Context) (domain.CollectionResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.CollectionResult), args.Error(1)
}

func (m *MockRunner) Info(now time.Time) scheduler.Info {
	args := m.Called(now)
	return args.Get(0).(scheduler.Info)
}

type fixedClients int

func (c fixedClients) ClientCount() int { return int(c) }

var testNow = time.Date(2024, 1, 2, 10, 25, 0, 0, time.UTC)

func observation(key string, rank, delta int) domain.Observation {
	return domain.Observation{
		InstrumentKey: key,
		Rank:          rank,
		RankDelta:     delta,
		Timestamp:     testNow,
		SourceFile:    "oi_spurts_20240102_102000.xlsx",
	}
}

func newTestRouter(t *testing.T, querier RankQuerier, runner CollectionRunner) http.Handler {
	t.Helper()
	logger := testutil.NewDiscardLogger()
	errorHandler := apierrors.NewErrorHandler(logger, false)

	dir := t.TempDir()
	health := services.NewHealthService("1.0.0", "", config.PathsConfig{DataDir: dir, ExcelDir: dir, ProcessedDir: dir},
		history.NewStore("2024-01-02"), fixedClients(0), logger)

	instruments := NewInstrumentsHandler(querier, logger, errorHandler)
	instruments.now = func() time.Time { return testNow }
	collect := NewCollectHandler(runner, logger, errorHandler)
	collect.now = func() time.Time { return testNow }

	return NewRouter(RouterDeps{
		Security:     config.Default().Security,
		Health:       NewHealthHandler(health, logger),
		Instruments:  instruments,
		Collect:      collect,
		Metrics:      http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("# metrics")) }),
		ErrorHandler: errorHandler,
		Logger:       logger,
	})
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]interface{}
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestInstrumentsHandler_Get(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockRankQuerier)
		expectedStatus int
		expectedRank   float64
	}{
		{
			name:   "latest observation",
			target: "/api/instruments/HDFCBANK",
			setupMock: func(m *MockRankQuerier) {
				m.On("History", "HDFCBANK").Return([]domain.Observation{
					observation("HDFCBANK", 5, 0),
					observation("HDFCBANK", 3, -2),
				})
			},
			expectedStatus: http.StatusOK,
			expectedRank:   3,
		},
		{
			name:   "escaped key",
			target: "/api/instruments/M%26M",
			setupMock: func(m *MockRankQuerier) {
				m.On("History", "M&M").Return([]domain.Observation{observation("M&M", 7, 0)})
			},
			expectedStatus: http.StatusOK,
			expectedRank:   7,
		},
		{
			name:   "unknown instrument",
			target: "/api/instruments/XYZ",
			setupMock: func(m *MockRankQuerier) {
				m.On("History", "XYZ").Return([]domain.Observation{})
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			querier := new(MockRankQuerier)
			tt.setupMock(querier)

			rec, body := do(t, newTestRouter(t, querier, new(MockRunner)), http.MethodGet, tt.target)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.expectedRank, body["serial_number"])
			} else {
				assert.Equal(t, apierrors.TypeNotFound, body["type"])
			}
			querier.AssertExpectations(t)
		})
	}
}

func TestInstrumentsHandler_History(t *testing.T) {
	querier := new(MockRankQuerier)
	querier.On("History", "TCS").Return([]domain.Observation{
		observation("TCS", 4, 0),
		observation("TCS", 6, 2),
	})

	rec, body := do(t, newTestRouter(t, querier, new(MockRunner)), http.MethodGet, "/api/instruments/TCS/history")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TCS", body["instrument_key"])
	assert.Equal(t, float64(2), body["count"])
	querier.AssertExpectations(t)
}

func TestInstrumentsHandler_ListSortedByKey(t *testing.T) {
	querier := new(MockRankQuerier)
	querier.On("ListAll").Return([]domain.ListEntry{
		{Key: "WIPRO", Rank: 1},
		{Key: "INFY", Rank: 2},
	})

	rec, body := do(t, newTestRouter(t, querier, new(MockRunner)), http.MethodGet, "/api/instruments")

	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "INFY", data[0].(map[string]interface{})["name"])
	assert.Equal(t, "WIPRO", data[1].(map[string]interface{})["name"])
}

func TestInstrumentsHandler_CSV(t *testing.T) {
	querier := new(MockRankQuerier)
	querier.On("ListAll").Return([]domain.ListEntry{
		{Key: "WIPRO", Rank: 1, Timestamp: testNow},
		{Key: "INFY", Rank: 2, RankDelta: -1, Timestamp: testNow},
	})
	querier.On("History", "TCS").Return([]domain.Observation{observation("TCS", 4, 0)})
	router := newTestRouter(t, querier, new(MockRunner))

	rec, _ := do(t, router, http.MethodGet, "/api/instruments?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="ranks.csv"`)
	lines := strings.Split(strings.TrimPrefix(rec.Body.String(), "\xEF\xBB\xBF"), "\n")
	assert.Equal(t, "instrument,serial_number,change,timestamp", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "INFY,2,-1,"))
	assert.True(t, strings.HasPrefix(lines[2], "WIPRO,1,0,"))

	rec, _ = do(t, router, http.MethodGet, "/api/instruments/TCS/history?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="TCS_history.csv"`)
	assert.Contains(t, rec.Body.String(), ",4,0,oi_spurts_20240102_102000.xlsx")
}

func TestInstrumentsHandler_Search(t *testing.T) {
	t.Run("match", func(t *testing.T) {
		querier := new(MockRankQuerier)
		querier.On("Search", "hdfc").Return(observation("HDFCBANK", 3, 1), true)

		rec, body := do(t, newTestRouter(t, querier, new(MockRunner)), http.MethodGet, "/api/search?q=hdfc")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "HDFCBANK", body["instrument_key"])
		assert.Equal(t, float64(1), body["change"])
	})

	t.Run("miss carries suggestions", func(t *testing.T) {
		querier := new(MockRankQuerier)
		querier.On("Search", "zzz").Return(domain.Observation{}, false)
		querier.On("Suggestions", "zzz").Return([]string{})

		rec, body := do(t, newTestRouter(t, querier, new(MockRunner)), http.MethodGet, "/api/search?q=zzz")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, body, "details")
		querier.AssertExpectations(t)
	})

	t.Run("missing query", func(t *testing.T) {
		querier := new(MockRankQuerier)
		rec, body := do(t, newTestRouter(t, querier, new(MockRunner)), http.MethodGet, "/api/search")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apierrors.TypeValidation, body["type"])
		querier.AssertNotCalled(t, "Search", mock.Anything)
	})
}

func TestInstrumentsHandler_Suggestions(t *testing.T) {
	querier := new(MockRankQuerier)
	querier.On("Suggestions", "bank").Return([]string{"AXISBANK", "HDFCBANK"})

	rec, body := do(t, newTestRouter(t, querier, new(MockRunner)), http.MethodGet, "/api/suggestions?q=bank")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, []interface{}{"AXISBANK", "HDFCBANK"}, body["data"])
}

func TestInstrumentsHandler_Movers(t *testing.T) {
	querier := new(MockRankQuerier)
	querier.On("Movers", defaultMovers).Return([]domain.ListEntry{{Key: "TCS", RankDelta: -9}})
	querier.On("Movers", 3).Return([]domain.ListEntry{})
	router := newTestRouter(t, querier, new(MockRunner))

	rec, body := do(t, router, http.MethodGet, "/api/movers")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, _ = do(t, router, http.MethodGet, "/api/movers?n=3")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/movers?n=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	querier.AssertExpectations(t)
}

func TestInstrumentsHandler_Status(t *testing.T) {
	querier := new(MockRankQuerier)
	querier.On("Status", testNow).Return(domain.Status{
		TotalInstruments: 12,
		InWindow:         true,
		CurrentDate:      "2024-01-02",
		Uptime:           "1 hour",
		NextUpdate:       "10:40:00",
	})

	rec, body := do(t, newTestRouter(t, querier, new(MockRunner)), http.MethodGet, "/api/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(12), body["total_stocks"])
	assert.Equal(t, true, body["in_market_hours"])
	assert.Equal(t, "10:40:00", body["next_update"])
}

func TestCollectHandler_Collect(t *testing.T) {
	tests := []struct {
		name           string
		result         domain.CollectionResult
		err            error
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "success",
			result:         domain.CollectionResult{Outcome: domain.OutcomeSuccess, StocksProcessed: 42},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "outside market hours",
			result:         domain.CollectionResult{Outcome: domain.OutcomeSkipped},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "fetch failed",
			result:         domain.CollectionResult{Outcome: domain.OutcomeFetchFailed, Error: "status 503"},
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "already running",
			err:            apierrors.NewBusyError(),
			expectedStatus: http.StatusConflict,
			expectedType:   apierrors.TypeCollectionRunning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(MockRunner)
			runner.On("ForceRun", mock.Anything).Return(tt.result, tt.err)

			rec, body := do(t, newTestRouter(t, new(MockRankQuerier), runner), http.MethodPost, "/api/collect")

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedType != "" {
				assert.Equal(t, tt.expectedType, body["type"])
			} else {
				assert.Equal(t, string(tt.result.Outcome), body["outcome"])
			}
			runner.AssertExpectations(t)
		})
	}
}

func TestCollectHandler_Schedule(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Info", testNow).Return(scheduler.Info{
		Slots:    []string{"10:00", "10:20"},
		Interval: "20m0s",
		NextRun:  testNow.Add(15 * time.Minute),
	})

	rec, body := do(t, newTestRouter(t, new(MockRankQuerier), runner), http.MethodGet, "/api/schedule")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"10:00", "10:20"}, body["slots"])
	assert.Equal(t, "20m0s", body["interval"])
}

func TestRouter_HealthAndFallbacks(t *testing.T) {
	router := newTestRouter(t, new(MockRankQuerier), new(MockRunner))

	rec, body := do(t, router, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, body = do(t, router, http.MethodGet, "/api/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])

	rec, _ = do(t, router, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())

	rec, body = do(t, router, http.MethodGet, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apierrors.TypeNotFound, body["type"])

	rec, _ = do(t, router, http.MethodDelete, "/api/collect")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
