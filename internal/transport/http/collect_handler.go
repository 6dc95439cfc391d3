package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	apierrors "oispurts/internal/errors"
	"oispurts/internal/scheduler"
	"oispurts/pkg/contracts/domain"
)

// CollectionRunner triggers collections on demand
type CollectionRunner interface {
	ForceRun(ctx context.Context) (domain.CollectionResult, error)
	Info(now time.Time) scheduler.Info
}

// CollectHandler exposes manual collection and the schedule
type CollectHandler struct {
	runner       CollectionRunner
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
	now          func() time.Time
}

// NewCollectHandler creates a new collect handler
func NewCollectHandler(runner CollectionRunner, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *CollectHandler {
	return &CollectHandler{
		runner:       runner,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "collect_handler")),
		now:          time.Now,
	}
}

// Collect handles POST /api/collect. It blocks until the cycle finishes.
// A cycle already in progress gives 409; outside market hours the result
// is returned with outcome "skipped".
func (h *CollectHandler) Collect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "manual collection requested",
		slog.String("remote_addr", r.RemoteAddr))

	result, err := h.runner.ForceRun(ctx)
	if err != nil {
		if apierrors.IsType(err, apierrors.ErrTypeBusy) {
			h.errorHandler.HandleError(w, r, apierrors.ErrCollectionRunning)
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	status := http.StatusOK
	switch result.Outcome {
	case domain.OutcomeSuccess, domain.OutcomeSkipped:
	default:
		// the cycle ran but produced nothing usable
		status = http.StatusBadGateway
	}
	render.Status(r, status)
	render.JSON(w, r, result)
}

// Schedule handles GET /api/schedule
func (h *CollectHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.runner.Info(h.now()))
}
