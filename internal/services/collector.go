package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"oispurts/internal/dataprocessing"
	apperrors "oispurts/internal/errors"
	"oispurts/internal/history"
	"oispurts/internal/infrastructure"
	"oispurts/internal/scraper"
	"oispurts/pkg/contracts/domain"
	"oispurts/pkg/contracts/events"
)

// moversInEvent is how many top movers ride along a collection event
const moversInEvent = 5

// Notifier pushes events to live subscribers
type Notifier interface {
	Publish(ctx context.Context, msgType events.MessageType, data interface{})
}

// Collector runs one fetch, extract and record cycle
type Collector struct {
	fetcher   scraper.Fetcher
	extractor *dataprocessing.Extractor
	tracker   *history.Tracker
	metrics   *infrastructure.CollectionMetrics
	tracer    trace.Tracer
	notifier  Notifier
	logger    *slog.Logger
	clock     func() time.Time

	mu        sync.Mutex
	lastStamp time.Time
}

// CollectorOption customizes a Collector
type CollectorOption func(*Collector)

// WithMetrics records cycle outcomes on m
func WithMetrics(m *infrastructure.CollectionMetrics) CollectorOption {
	return func(c *Collector) { c.metrics = m }
}

// WithTracer wraps each cycle in a span
func WithTracer(t trace.Tracer) CollectorOption {
	return func(c *Collector) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithNotifier publishes every finished cycle
func WithNotifier(n Notifier) CollectorOption {
	return func(c *Collector) { c.notifier = n }
}

// NewCollector creates a collector over fetcher and tracker
func NewCollector(fetcher scraper.Fetcher, tracker *history.Tracker, logger *slog.Logger, opts ...CollectorOption) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Collector{
		fetcher:   fetcher,
		extractor: dataprocessing.NewExtractor(logger),
		tracker:   tracker,
		tracer:    noop.NewTracerProvider().Tracer("oispurts"),
		logger:    logger.With(slog.String("component", "collector")),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect runs one cycle stamped at now. Every observation of the batch
// carries that timestamp; a cycle that waited behind a later one is
// stamped with the later cycle's time instead so per-instrument history
// stays ordered. Failures are counted against the day and reported in the
// result, never returned. That includes an invariant rejection from the
// tracker: the batch was discarded whole, the store is unchanged and the
// next cycle can proceed, so it surfaces as OutcomeRejected.
func (c *Collector) Collect(ctx context.Context, now time.Time) domain.CollectionResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Before(c.lastStamp) {
		now = c.lastStamp
	}
	c.lastStamp = now

	cycleID := uuid.New().String()
	ctx = infrastructure.WithTraceID(ctx, cycleID)
	ctx, span := c.tracer.Start(ctx, "collector.cycle",
		trace.WithAttributes(attribute.String("cycle.id", cycleID)))
	defer span.End()

	started := c.clock()
	result := domain.CollectionResult{CycleID: cycleID, Timestamp: now}

	c.logger.InfoContext(ctx, "Starting data collection",
		slog.String("time", now.Format("15:04:05")))

	fetched, err := c.fetcher.FetchLatestTable(ctx)
	fetchTime := c.clock().Sub(started)
	if err != nil {
		result.Outcome = outcomeOf(err)
		result.Error = err.Error()
		c.fail(ctx, span, now, err)
		return c.finish(ctx, span, result, started, fetchTime)
	}

	result.SourceID = fetched.SourceID
	result.SourceURL = fetched.URL
	result.FileSize = fetched.Size

	extracted := c.extractor.Extract(fetched.Table, fetched.SourceID)
	result.TotalRows = extracted.TotalRows

	if len(extracted.Rows) == 0 {
		err := apperrors.NewEmptyExtractionError(fetched.SourceID, extracted.TotalRows)
		result.Outcome = domain.OutcomeEmptyExtraction
		result.Error = err.Error()
		c.fail(ctx, span, now, err)
		return c.finish(ctx, span, result, started, fetchTime)
	}

	batch, err := c.tracker.Record(ctx, extracted.Rows, now)
	result.StocksProcessed = batch.Appended
	result.Persisted = batch.Persisted
	if err != nil {
		result.Outcome = outcomeOf(err)
		result.Error = err.Error()
		c.fail(ctx, span, now, err)
		return c.finish(ctx, span, result, started, fetchTime)
	}

	result.Outcome = domain.OutcomeSuccess
	c.logger.InfoContext(ctx, "Successfully processed data",
		slog.Int("stocks_processed", batch.Appended),
		slog.Int("total_rows", extracted.TotalRows),
		slog.Int("skipped_rows", extracted.Skipped),
		slog.String("instrument_column", extracted.InstrumentColumn),
		slog.String("source_file", fetched.SourceID),
		slog.Bool("persisted", batch.Persisted))

	return c.finish(ctx, span, result, started, fetchTime)
}

// fail counts the failed cycle against the day's store
func (c *Collector) fail(ctx context.Context, span trace.Span, now time.Time, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	c.logger.ErrorContext(ctx, "Data collection failed",
		slog.String("error_type", string(apperrors.TypeOf(err))),
		slog.String("error", err.Error()))

	c.tracker.RecordFailure(ctx, now)
}

func (c *Collector) finish(ctx context.Context, span trace.Span, result domain.CollectionResult, started time.Time, fetchTime time.Duration) domain.CollectionResult {
	result.Duration = c.clock().Sub(started)
	store := c.tracker.Store()

	span.SetAttributes(
		attribute.String("cycle.outcome", string(result.Outcome)),
		attribute.Int("cycle.rows", result.StocksProcessed),
		attribute.String("cycle.source", result.SourceID))

	c.metrics.RecordCycle(ctx, string(result.Outcome), result.StocksProcessed, store.Len(), fetchTime)

	if c.notifier != nil {
		c.notifier.Publish(ctx, events.MessageTypeCollectionComplete, events.CollectionEvent{
			Result: result,
			Movers: store.Movers(moversInEvent),
			Date:   store.Date(),
		})
	}
	return result
}

// outcomeOf maps a cycle error to its reported outcome
func outcomeOf(err error) domain.CollectionOutcome {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrTypeDecode:
		return domain.OutcomeDecodeFailed
	case apperrors.ErrTypeEmpty:
		return domain.OutcomeEmptyExtraction
	case apperrors.ErrTypeInvariant:
		return domain.OutcomeRejected
	default:
		return domain.OutcomeFetchFailed
	}
}
