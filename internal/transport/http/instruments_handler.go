package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "oispurts/internal/errors"
	"oispurts/internal/exporter"
	"oispurts/internal/middleware"
	"oispurts/pkg/contracts/domain"
)

const (
	defaultMovers = 10
	maxMovers     = 100

	csvContentType = "text/csv; charset=utf-8"
)

// RankQuerier is the read side of the rank tracker
type RankQuerier interface {
	Search(query string) (domain.Observation, bool)
	Suggestions(query string) []string
	History(name string) []domain.Observation
	ListAll() []domain.ListEntry
	Movers(n int) []domain.ListEntry
	Status(now time.Time) domain.Status
}

// InstrumentsHandler serves rank lookups and the daily status
type InstrumentsHandler struct {
	service      RankQuerier
	validator    *middleware.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
	now          func() time.Time
}

// NewInstrumentsHandler creates a new instruments handler
func NewInstrumentsHandler(service RankQuerier, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *InstrumentsHandler {
	return &InstrumentsHandler{
		service:      service,
		validator:    middleware.NewQueryParamValidator(logger, errorHandler),
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "instruments_handler")),
		now:          time.Now,
	}
}

// Routes returns the instrument routes
func (h *InstrumentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.List)
	r.Route("/{key}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Get("/history", h.History)
	})
	return r
}

// List handles GET /api/instruments, sorted by key. ?format=csv returns
// the same rows as a spreadsheet download.
func (h *InstrumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.service.ListAll()
	if wantsCSV(r) {
		h.writeCSV(w, r, "ranks.csv", func(w http.ResponseWriter) error {
			return exporter.WriteRanks(w, entries, nil, exporter.WriteOptions{BOMPrefix: true})
		})
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	render.JSON(w, r, map[string]interface{}{
		"data":  entries,
		"count": len(entries),
	})
}

// Get handles GET /api/instruments/{key}. The key must match exactly
// after normalization; use search for partial names.
func (h *InstrumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keyParam(w, r)
	if !ok {
		return
	}

	hist := h.service.History(key)
	if len(hist) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("instrument "+key))
		return
	}
	render.JSON(w, r, hist[len(hist)-1])
}

// History handles GET /api/instruments/{key}/history
func (h *InstrumentsHandler) History(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keyParam(w, r)
	if !ok {
		return
	}

	hist := h.service.History(key)
	if len(hist) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("instrument "+key))
		return
	}
	if wantsCSV(r) {
		h.writeCSV(w, r, hist[0].InstrumentKey+"_history.csv", func(w http.ResponseWriter) error {
			return exporter.WriteHistory(w, hist, nil, exporter.WriteOptions{BOMPrefix: true})
		})
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"instrument_key": hist[0].InstrumentKey,
		"data":           hist,
		"count":          len(hist),
	})
}

func wantsCSV(r *http.Request) bool {
	return r.URL.Query().Get("format") == "csv"
}

// writeCSV streams a CSV attachment. Once the body has started a failure
// can only be logged.
func (h *InstrumentsHandler) writeCSV(w http.ResponseWriter, r *http.Request, filename string, write func(http.ResponseWriter) error) {
	w.Header().Set("Content-Type", csvContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+url.PathEscape(filename)+`"`)
	if err := write(w); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write CSV",
			slog.String("file", filename),
			slog.String("error", err.Error()))
	}
}

// keyParam returns the unescaped {key} path parameter. Keys such as M&M
// arrive percent-encoded.
func (h *InstrumentsHandler) keyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "key")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return h.validator.ValidateText(w, r, "key", raw, true)
}

// Search handles GET /api/search?q=. A miss is a 404 carrying the
// suggestions for the query.
func (h *InstrumentsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q, ok := h.validator.ValidateText(w, r, "q", r.URL.Query().Get("q"), true)
	if !ok {
		return
	}

	obs, found := h.service.Search(q)
	if !found {
		h.logger.DebugContext(r.Context(), "search miss", slog.String("query", q))
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusNotFound,
			"NOT_FOUND",
			"no instrument matches "+q,
			map[string]interface{}{"suggestions": h.service.Suggestions(q)},
		))
		return
	}
	render.JSON(w, r, obs)
}

// Suggestions handles GET /api/suggestions?q=
func (h *InstrumentsHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	q, ok := h.validator.ValidateText(w, r, "q", r.URL.Query().Get("q"), false)
	if !ok {
		return
	}

	suggestions := h.service.Suggestions(q)
	render.JSON(w, r, map[string]interface{}{
		"query": q,
		"data":  suggestions,
		"count": len(suggestions),
	})
}

// Movers handles GET /api/movers?n=
func (h *InstrumentsHandler) Movers(w http.ResponseWriter, r *http.Request) {
	n, ok := h.validator.ValidateInt(w, r, "n", 1, maxMovers, defaultMovers)
	if !ok {
		return
	}

	movers := h.service.Movers(n)
	render.JSON(w, r, map[string]interface{}{
		"data":  movers,
		"count": len(movers),
	})
}

// Status handles GET /api/status
func (h *InstrumentsHandler) Status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Status(h.now()))
}
