// Package scheduler runs named maintenance tasks on cron specs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"borsapulse/internal/config"
	"borsapulse/internal/infrastructure"
)

// Task is one unit of scheduled work
type Task func(ctx context.Context) error

// EntryInfo describes a registered task
type EntryInfo struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev,omitempty"`
}

type entry struct {
	id   cron.EntryID
	spec string
	run  func()
}

// Scheduler manages the cron tasks
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]entry
}

// New creates a scheduler whose tasks run with ctx as parent. Specs take a
// leading seconds field.
func New(ctx context.Context, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger = logger.With(slog.String("component", "scheduler"))
	cl := cronLogger{logger}

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(cron.NewParser(config.CronFields)),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:     ctx,
		logger:  logger,
		entries: make(map[string]entry),
	}
}

// Add registers task under name
func (s *Scheduler) Add(name, spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("task %s already registered", name)
	}

	run := func() { s.run(name, task) }
	id, err := s.cron.AddFunc(spec, run)
	if err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}
	s.entries[name] = entry{id: id, spec: spec, run: run}
	return nil
}

func (s *Scheduler) run(name string, task Task) {
	ctx := infrastructure.WithTraceID(s.ctx, infrastructure.GenerateTraceID())
	start := time.Now()
	s.logger.InfoContext(ctx, "running scheduled task", slog.String("task", name))

	if err := task(ctx); err != nil {
		s.logger.ErrorContext(ctx, "scheduled task failed",
			slog.String("task", name),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return
	}
	s.logger.InfoContext(ctx, "scheduled task finished",
		slog.String("task", name),
		slog.Duration("elapsed", time.Since(start)))
}

// RunNow executes the named task synchronously, outside the cron schedule
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s not registered", name)
	}
	e.run()
	return nil
}

// Entries lists registered tasks sorted by name
func (s *Scheduler) Entries() []EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EntryInfo, 0, len(s.entries))
	for name, e := range s.entries {
		ce := s.cron.Entry(e.id)
		out = append(out, EntryInfo{Name: name, Spec: e.spec, Next: ce.Next, Prev: ce.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("tasks", len(s.entries)))
}

// Stop stops the scheduler and waits for running tasks until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scheduled tasks: %w", ctx.Err())
	}
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
