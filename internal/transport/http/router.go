package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"oispurts/internal/config"
	apierrors "oispurts/internal/errors"
	"oispurts/internal/middleware"
)

// RouterDeps holds everything the router mounts. Metrics, LiveFeed and
// OTel may be nil; their routes or middleware are then skipped.
type RouterDeps struct {
	Security     config.SecurityConfig
	Health       *HealthHandler
	Instruments  *InstrumentsHandler
	Collect      *CollectHandler
	LiveFeed     http.Handler
	Metrics      http.Handler
	OTel         *middleware.OTelMiddleware
	ErrorHandler *apierrors.ErrorHandler
	Logger       *slog.Logger
}

// NewRouter wires the middleware chain and every route
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	// RequestID must run first so every later log line carries it
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer(deps.Logger))
	r.Use(middleware.StructuredLogger(deps.Logger))
	if deps.OTel != nil {
		r.Use(deps.OTel.Handler)
	}
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.Security.AllowedOrigins,
		Logger:         deps.Logger,
	}))

	r.NotFound(deps.ErrorHandler.NotFound)
	r.MethodNotAllowed(deps.ErrorHandler.MethodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		if deps.Security.RateLimit.Enabled {
			limiter := middleware.NewRateLimiter(deps.Security.RateLimit.RPS, deps.Security.RateLimit.Burst, deps.Logger)
			r.Use(limiter.Handler)
		}
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Route("/health", func(r chi.Router) {
			r.Get("/", deps.Health.HealthCheck)
			r.Get("/ready", deps.Health.ReadinessCheck)
			r.Get("/live", deps.Health.LivenessCheck)
		})
		r.Get("/version", deps.Health.Version)
		r.Get("/system", deps.Health.SystemStats)

		r.Get("/status", deps.Instruments.Status)
		r.Mount("/instruments", deps.Instruments.Routes())
		r.Get("/search", deps.Instruments.Search)
		r.Get("/suggestions", deps.Instruments.Suggestions)
		r.Get("/movers", deps.Instruments.Movers)

		r.Post("/collect", deps.Collect.Collect)
		r.Get("/schedule", deps.Collect.Schedule)
	})

	if deps.LiveFeed != nil {
		r.Get("/ws", deps.LiveFeed.ServeHTTP)
	}
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	return r
}
