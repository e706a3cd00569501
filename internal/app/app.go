// Package app wires configuration, logging, the dataset store, the
// websocket hub and the HTTP transport into a runnable server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"canceldash/internal/config"
	"canceldash/internal/dataprocessing"
	"canceldash/internal/dataset"
	apierrors "canceldash/internal/errors"
	"canceldash/internal/infrastructure"
	"canceldash/internal/middleware"
	"canceldash/internal/services"
	transporthttp "canceldash/internal/transport/http"
	"canceldash/internal/websocket"
	"canceldash/pkg/contracts"
)

// Application holds the wired components of the dashboard server.
type Application struct {
	cfg    *config.Config
	logger *slog.Logger

	store   *dataset.Store
	watcher *dataset.Watcher
	hub     *websocket.Hub

	dashboardService *services.DashboardService
	healthService    *services.HealthService

	server *http.Server
}

// New builds the application from configuration. The dataset is loaded
// eagerly; a missing or malformed source file is not fatal, the server
// starts degraded and the watcher picks the file up when it appears.
func New(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	store := dataset.NewStore(cfg.Data.SourcePath, logger)
	if _, err := store.Load(context.Background()); err != nil {
		logger.Warn("initial dataset load failed, starting degraded",
			slog.String("source_path", cfg.Data.SourcePath),
			slog.String("error", err.Error()))
	}

	var watcher *dataset.Watcher
	if cfg.Data.Watch {
		watcher, err = dataset.NewWatcher(store, logger)
		if err != nil {
			return nil, fmt.Errorf("creating dataset watcher: %w", err)
		}
	}

	hub := websocket.NewHub(logger)
	if watcher != nil {
		watcher.OnReload(func(snap *dataset.Snapshot) {
			hub.BroadcastDatasetReload(snap.Len(), snap.Hash())
		})
	}

	summarizer := dataprocessing.NewSummarizer(logger, dataprocessing.SummarizerConfig{
		TopItems: cfg.Data.TopItems,
	})

	app := &Application{
		cfg:              cfg,
		logger:           logger,
		store:            store,
		watcher:          watcher,
		hub:              hub,
		dashboardService: services.NewDashboardService(store, summarizer, logger),
		healthService:    services.NewHealthService(store, contracts.Version, logger),
	}

	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

func (a *Application) router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StructuredLogger(a.logger))
	r.Use(middleware.Recoverer(a.logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: a.cfg.Security.AllowedOrigins,
	}))
	r.Use(middleware.Compress(5))

	if a.cfg.Security.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(
			a.cfg.Security.RateLimit.RPS,
			a.cfg.Security.RateLimit.Burst,
			a.logger)
		r.Use(limiter.Handler)
	}

	errorHandler := apierrors.NewErrorHandler(a.logger, false)
	dashboardHandler := transporthttp.NewDashboardHandler(a.dashboardService, a.logger, errorHandler)
	healthHandler := transporthttp.NewHealthHandler(a.healthService, a.logger)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(30 * time.Second))
		api.Mount("/health", healthHandler.Routes())
		api.Get("/version", transporthttp.GetVersion)
		api.Mount("/", dashboardHandler.Routes())
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWS(a.hub, w, req)
	})

	return r
}

// Run starts the hub, the watcher and the HTTP server, then blocks
// until the context is cancelled or a termination signal arrives.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.hub.Run(ctx)

	if a.watcher != nil {
		go func() {
			if err := a.watcher.Watch(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("dataset watcher stopped",
					slog.String("error", err.Error()))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening",
			slog.String("addr", a.server.Addr),
			slog.String("version", contracts.GetFullVersionString()),
			slog.String("source_path", a.cfg.Data.SourcePath))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	a.logger.Info("server stopped")
	return nil
}
