package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"borsapulse/internal/config"
	"borsapulse/internal/infrastructure"
	"borsapulse/internal/scheduler"
	"borsapulse/pkg/contracts"
)

// Scheduled task names
const (
	TaskRecomputeAll = "recompute_all"
	TaskJobCleanup   = "job_cleanup"
)

// Application represents the main application container
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	Container *Container
	Scheduler *scheduler.Scheduler
	Router    *chi.Mux
	Server    *http.Server

	cancel context.CancelFunc
}

// NewApplication loads the configuration and builds the application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New builds the application from an explicit configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	version := contracts.GetVersionInfo()
	logger.InfoContext(ctx, "application starting",
		slog.String("version", version.Version),
		slog.String("commit", version.GitCommit),
		slog.String("database", cfg.Database.Driver),
		slog.String("lock_backend", cfg.Lock.Backend))

	container, err := NewContainer(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	a := &Application{
		Config:    cfg,
		Logger:    logger,
		Container: container,
		Scheduler: scheduler.New(ctx, logger),
		cancel:    cancel,
	}

	if err := a.setupSchedule(); err != nil {
		cancel()
		container.Close(context.Background())
		return nil, err
	}
	a.setupRouter()
	a.createServer()

	return a, nil
}

// setupSchedule registers the periodic tasks
func (a *Application) setupSchedule() error {
	cfg := a.Config

	if cfg.Scheduler.Enabled {
		err := a.Scheduler.Add(TaskRecomputeAll, cfg.Scheduler.Spec, func(ctx context.Context) error {
			_, err := a.Container.Analysis.RecomputeAll(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to schedule recompute: %w", err)
		}
	}

	return a.Scheduler.Add(TaskJobCleanup, "@hourly", func(ctx context.Context) error {
		removed, err := a.Container.JobStore.CleanupOldJobs(cfg.Analytics.JobRetention)
		if err != nil {
			return err
		}
		if removed > 0 {
			a.Logger.InfoContext(ctx, "finished jobs removed", slog.Int("count", removed))
		}
		return nil
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the background services and begins serving on ln. A nil
// ln listens on the configured port. Serve errors cancel ctx through
// cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc, ln net.Listener) error {
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.Server.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
		}
	}

	a.Container.Start(ctx)
	a.Scheduler.Start()

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", ln.Addr().String()),
		slog.Bool("scheduler_enabled", a.Config.Scheduler.Enabled))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.Scheduler.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	a.cancel()
	if err := a.Container.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(runCtx, cancel, nil); err != nil {
		return err
	}

	<-runCtx.Done()
	a.Logger.Info("received shutdown signal")

	err := a.Stop(context.Background())
	if cerr := infrastructure.CloseLogFile(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}
