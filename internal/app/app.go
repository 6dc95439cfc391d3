package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"oispurts/internal/bot"
	"oispurts/internal/config"
	apierrors "oispurts/internal/errors"
	"oispurts/internal/exporter"
	"oispurts/internal/files"
	"oispurts/internal/history"
	"oispurts/internal/infrastructure"
	customMiddleware "oispurts/internal/middleware"
	"oispurts/internal/scheduler"
	"oispurts/internal/scraper"
	"oispurts/internal/services"
	handlers "oispurts/internal/transport/http"
	ws "oispurts/internal/websocket"
	"oispurts/pkg/contracts"
)

const AppName = "NSE OI Spurts Tracker"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	Store       *history.Store
	Tracker     *history.Tracker
	Files       *files.Manager
	Collector   *services.Collector
	Scheduler   *scheduler.Scheduler
	Query       *services.QueryService
	Health      *services.HealthService
	Maintenance *services.Maintenance
	Reports     *exporter.DailyExporter

	WebSocketHub *ws.Hub
	Router       chi.Router
	Server       *http.Server
	Bot          *bot.Bot

	metrics  *infrastructure.CollectionMetrics
	listener net.Listener
	started  chan struct{}
}

// Load reads the configuration, sets up the global logger and builds the
// application from them
func Load() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return NewApplication(cfg, logger)
}

// NewApplication creates a new application instance with dependency injection.
// Nothing is started until Run.
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, apierrors.NewConfigError("configuration is required", nil)
	}
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("build_time", contracts.BuildTime))

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	a := &Application{
		Config:  cfg,
		Paths:   paths,
		Logger:  logger,
		started: make(chan struct{}),
	}

	if err := a.initializeTelemetry(); err != nil {
		return nil, err
	}
	if err := a.initializeServices(); err != nil {
		return nil, err
	}
	a.setupRouter()
	a.createServer()
	if err := a.initializeBot(); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Application) initializeTelemetry() error {
	providers, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(a.Config.Telemetry), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = providers
	return nil
}

// initializeServices builds the collection pipeline bottom-up: storage,
// fetcher, tracker, collector, scheduler and the read side
func (a *Application) initializeServices() error {
	ctx := context.Background()
	cfg := a.Config

	location, err := cfg.Schedule.TimeLocation()
	if err != nil {
		return apierrors.NewConfigError("invalid schedule location", err)
	}

	a.metrics, err = infrastructure.CreateCollectionMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create collection metrics: %w", err)
	}

	hubMetrics, err := ws.NewOTelMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	a.WebSocketHub = ws.NewHub(a.Logger, hubMetrics)

	// History: restore today's snapshot before anything can write
	a.Store = history.NewStore("")
	persister := history.NewFilePersister(a.Paths.ProcessedDir, a.Logger)
	a.Tracker = history.NewTracker(a.Store, persister, location, a.Logger)
	a.Reports = exporter.NewDailyExporter(a.Paths.ProcessedDir, persister, location, a.Logger)
	a.Tracker.OnRollover(a.Reports.OnRollover)
	a.Tracker.OnRollover(a.WebSocketHub.BroadcastRollover)
	a.Tracker.Load(ctx, time.Now())

	// Fetching
	a.Files = files.NewManager(a.Paths.ExcelDir, a.Logger)
	client, err := scraper.NewClient(cfg.Scraper, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create scraper client: %w", err)
	}
	var locator scraper.PageLocator
	if cfg.Scraper.UseBrowser {
		locator = scraper.NewBrowserLocator(cfg.Scraper, a.Logger)
	}
	fetcher := scraper.NewHTTPFetcher(client, cfg.Scraper, a.Files, locator, a.Logger)

	a.Collector = services.NewCollector(fetcher, a.Tracker, a.Logger,
		services.WithMetrics(a.metrics),
		services.WithTracer(a.OTelProviders.Tracer),
		services.WithNotifier(a.WebSocketHub))

	window, err := scheduler.NewWindow(cfg.Schedule)
	if err != nil {
		return apierrors.NewConfigError("invalid schedule", err)
	}
	a.Query = services.NewQueryService(a.Store, window, a.Files, location, time.Now(), a.Logger)
	a.Maintenance = services.NewMaintenance(a.Files, persister, cfg.Retention, a.Logger)

	a.Scheduler, err = scheduler.New(cfg.Schedule, a.Collector, scheduler.Hooks{
		Rollover: a.Tracker.CheckRollover,
		Cleanup: a.cleanup,
		Status: a.Query.Status,
	}, a.Logger)
	if err != nil {
		return err
	}

	a.Health = services.NewHealthService(contracts.Version, contracts.BuildTime, config.PathsConfig{
		BaseDir:      a.Paths.BaseDir,
		DataDir:      a.Paths.DataDir,
		ExcelDir:     a.Paths.ExcelDir,
		ProcessedDir: a.Paths.ProcessedDir,
		LogsDir:      a.Paths.LogsDir,
	}, a.Store, a.WebSocketHub, a.Logger)

	a.Logger.Info("Services initialized",
		slog.String("date", a.Store.Date()),
		slog.Int("instruments", a.Store.Len()),
		slog.Int("slots", len(window.Slots())),
		slog.Bool("browser_fallback", locator != nil))
	return nil
}

// cleanup runs the daily disk housekeeping, old CSV reports included
func (a *Application) cleanup(ctx context.Context, now time.Time) {
	a.Maintenance.Cleanup(ctx, now)
	removed, err := a.Reports.Cleanup(ctx, now, a.Config.Retention.SnapshotDays)
	if err != nil {
		infrastructure.WithError(a.Logger, err).ErrorContext(ctx, "report cleanup failed")
		return
	}
	if len(removed) > 0 {
		a.Logger.InfoContext(ctx, "removed old reports", slog.Int("count", len(removed)))
	}
}

func (a *Application) setupRouter() {
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Level == "debug")

	deps := handlers.RouterDeps{
		Security:     a.Config.Security,
		Health:       handlers.NewHealthHandler(a.Health, a.Logger),
		Instruments:  handlers.NewInstrumentsHandler(a.Query, a.Logger, errorHandler),
		Collect:      handlers.NewCollectHandler(a.Scheduler, a.Logger, errorHandler),
		LiveFeed:     ws.Handler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger),
		OTel:         customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.metrics, a.Logger),
		ErrorHandler: errorHandler,
		Logger:       a.Logger,
	}
	if a.OTelProviders.PrometheusHTTP != nil {
		deps.Metrics = a.OTelProviders.PrometheusHTTP
	}

	a.Router = handlers.NewRouter(deps)
}

func (a *Application) createServer() {
	if !a.Config.Server.Enabled {
		a.Logger.Info("HTTP server disabled")
		return
	}
	a.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:           a.Router,
		ReadTimeout:       a.Config.Server.ReadTimeout,
		ReadHeaderTimeout: a.Config.Server.RequestTimeout,
		WriteTimeout:      a.Config.Server.WriteTimeout,
		IdleTimeout:       a.Config.Server.IdleTimeout,
	}
}

func (a *Application) initializeBot() error {
	cfg := a.Config.Bot
	if !cfg.Enabled {
		a.Logger.Info("Telegram bot disabled")
		return nil
	}

	commands := bot.NewCommands(a.Query, a.Scheduler, a.Scheduler.Location(), cfg.PageSize, a.Logger)
	client := &http.Client{Timeout: cfg.PollTimeout + 10*time.Second}
	b, err := bot.New(cfg, commands, client, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to start telegram bot: %w", err)
	}
	a.Bot = b
	return nil
}

// Started is closed once every component is running
func (a *Application) Started() <-chan struct{} {
	return a.started
}

// Addr returns the bound HTTP address, or "" before the server listens
func (a *Application) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Run starts the live feed, scheduler, HTTP server and bot and blocks
// until ctx is cancelled or one of them fails. Everything is shut down
// before Run returns.
func (a *Application) Run(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Bool("server", a.Server != nil),
		slog.Bool("bot", a.Bot != nil),
		slog.String("level", a.Config.Logging.Level))

	if a.Server != nil {
		ln, err := net.Listen("tcp", a.Server.Addr)
		if err != nil {
			return apierrors.NewNetworkError("listen on "+a.Server.Addr, err)
		}
		a.listener = ln
	}

	a.WebSocketHub.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Scheduler.Run(gctx)
	})

	if a.Server != nil {
		g.Go(func() error {
			a.Logger.InfoContext(gctx, "HTTP server listening", slog.String("address", a.Addr()))
			if err := a.Server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
			defer cancel()
			if err := a.Server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown error: %w", err)
			}
			return nil
		})
	}

	if a.Bot != nil {
		g.Go(func() error {
			return a.Bot.Run(gctx)
		})
	}

	close(a.started)
	a.Logger.InfoContext(ctx, "Application started successfully")

	runErr := g.Wait()
	if runErr != nil {
		a.Logger.ErrorContext(ctx, "Application component failed", slog.String("error", runErr.Error()))
	}

	if err := a.Stop(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Stop closes the live feed and flushes the telemetry providers. The
// scheduler, server and bot are stopped by cancelling Run's context.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	a.WebSocketHub.Stop()

	var errs []error
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete",
		slog.String("date", a.Store.Date()),
		slog.Int("instruments", a.Store.Len()))
	return errors.Join(errs...)
}
