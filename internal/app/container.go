package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"borsapulse/internal/config"
	"borsapulse/internal/infrastructure"
	"borsapulse/internal/operations"
	"borsapulse/internal/services"
	"borsapulse/internal/storage"
	ws "borsapulse/internal/websocket"
)

// jobStopTimeout bounds how long Close waits for running jobs
const jobStopTimeout = 30 * time.Second

// Container holds the long-lived components built from a Config
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	OTel    *infrastructure.OTelProviders
	Metrics *infrastructure.DomainMetrics

	Store    storage.Store
	Locker   storage.Locker
	JobStore *operations.MemoryJobStore
	Jobs     *operations.JobQueue
	Hub      *ws.Hub

	Instruments *services.InstrumentService
	Ingestion   *services.IngestionService
	Analysis    *services.AnalysisService
	Health      *services.HealthService
}

// NewContainer builds every component. Nothing is started; call Start to
// run the job workers and the event hub.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	c.OTel = otelProviders

	metrics, err := infrastructure.NewDomainMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	c.Metrics = metrics

	if err := ensureSQLiteDir(cfg.Database); err != nil {
		return nil, err
	}
	store, err := storage.OpenGorm(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	c.Store = store

	locker, err := storage.NewLocker(ctx, cfg.Lock, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create locker: %w", err)
	}
	c.Locker = locker

	c.JobStore = operations.NewMemoryJobStore()
	c.Jobs = operations.NewJobQueue(operations.QueueOptions{
		Workers:    cfg.Analytics.Workers,
		QueueSize:  cfg.Analytics.QueueSize,
		JobTimeout: cfg.Analytics.JobTimeout,
	}, c.JobStore, metrics, logger)
	c.Hub = ws.NewHub(logger, metrics)

	c.Instruments = services.NewInstrumentService(store, locker, logger)
	c.Analysis = services.NewAnalysisService(store, locker, c.Jobs, c.Hub, metrics, cfg.Analytics.RecomputeConcurrency, logger)
	c.Ingestion = services.NewIngestionService(store, locker, c.Analysis, c.Hub, metrics, cfg.Ingestion, logger)
	c.Health = services.NewHealthService(store, c.Jobs, c.Hub, logger)

	return c, nil
}

// Start runs the job workers and the event hub until Close
func (c *Container) Start(ctx context.Context) {
	c.Jobs.Start(ctx)
	c.Hub.Start()
}

// Close stops the workers and releases the store, the locker and the
// telemetry providers.
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	if err := c.Jobs.Stop(jobStopTimeout); err != nil {
		errs = append(errs, fmt.Errorf("job queue: %w", err))
	}
	c.Hub.Stop()

	if closer, ok := c.Locker.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("locker: %w", err))
		}
	}
	if err := c.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := c.OTel.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ensureSQLiteDir creates the directory of a file-backed sqlite database
func ensureSQLiteDir(cfg config.DatabaseConfig) error {
	if cfg.Driver != "sqlite" || strings.HasPrefix(cfg.DSN, "file:") || strings.Contains(cfg.DSN, ":memory:") {
		return nil
	}
	path := cfg.DSN
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}
