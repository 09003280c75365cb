// Package app assembles the monitor: provider client, store, ingestor,
// scheduler, metrics and the HTTP API.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/monorkin/flow-index-monitor/internal/config"
	"github.com/monorkin/flow-index-monitor/internal/httpapi"
	"github.com/monorkin/flow-index-monitor/internal/ingest"
	"github.com/monorkin/flow-index-monitor/internal/metrics"
	"github.com/monorkin/flow-index-monitor/internal/store"
	"github.com/monorkin/flow-index-monitor/telemetry/api"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type App struct {
	config     *config.Config
	configPath string
	logger     *slog.Logger

	store     *store.Store
	metrics   *metrics.Metrics
	ingestor  *ingest.Ingestor
	scheduler *ingest.Scheduler
	server    *httpapi.Server
}

// NewApp wires every component from cfg. configPath is watched by Serve
// when non-empty.
func NewApp(cfg *config.Config, configPath string, db *gorm.DB, logger *slog.Logger) (*App, error) {
	if err := cfg.Provider.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}

	app := &App{
		config:     cfg,
		configPath: configPath,
		logger:     logger,
		store:      store.New(db),
		metrics:    metrics.New(),
	}

	ingestor, err := app.newIngestor(cfg)
	if err != nil {
		return nil, err
	}
	app.ingestor = ingestor

	app.scheduler = ingest.NewScheduler(ingestor, cfg.Ingestion.Interval, logger, app.metrics)
	app.server = httpapi.New(httpapi.Config{
		Store:        app.store,
		Logger:       logger,
		Metrics:      app.metrics.Handler(),
		HistoryHours: cfg.HTTP.HistoryHours,
	})

	return app, nil
}

func (app *App) newIngestor(cfg *config.Config) (*ingest.Ingestor, error) {
	client := api.NewClientWithLogger(api.Config{
		BaseURL:    cfg.Provider.BaseURL,
		Email:      cfg.Provider.Email,
		Password:   cfg.Provider.ResolvedPassword(),
		ClientType: cfg.Provider.ClientType,
		Timeout:    cfg.Provider.RequestTimeout,
	}, app.logger)

	return ingest.New(ingest.Config{
		Provider:      client,
		Store:         app.store,
		Logger:        app.logger,
		Recorder:      app.metrics,
		DeviceTimeout: cfg.Ingestion.DeviceTimeout,
		Concurrency:   cfg.Ingestion.Concurrency,
	})
}

// RunOnce performs a single ingestion cycle.
func (app *App) RunOnce(ctx context.Context) (ingest.Report, error) {
	return app.ingestor.RunCycle(ctx)
}

// Serve runs the scheduler and the HTTP API until ctx is cancelled.
func (app *App) Serve(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return app.scheduler.Run(ctx)
	})

	group.Go(func() error {
		return app.server.ListenAndServe(ctx, app.config.HTTP.ListenAddress)
	})

	if app.configPath != "" {
		group.Go(func() error {
			err := config.Watch(ctx, app.configPath, app.logger, app.reload)
			if err != nil {
				// A missing config directory only disables hot reload.
				app.logger.Warn("Config hot reload disabled", "path", app.configPath, "error", err)
			}
			return nil
		})
	}

	return group.Wait()
}

// reload swaps in an ingestor built from cfg. Listen address, history window
// and schedule interval changes need a restart.
func (app *App) reload(cfg *config.Config) {
	if err := cfg.Provider.Validate(); err != nil {
		app.logger.Error("Reloaded config is invalid, keeping previous ingestor", "error", err)
		return
	}

	ingestor, err := app.newIngestor(cfg)
	if err != nil {
		app.logger.Error("Failed to rebuild ingestor", "error", err)
		return
	}

	app.scheduler.SetRunner(ingestor)
	app.logger.Info("Ingestor reconfigured", "base_url", cfg.Provider.BaseURL)
}
