package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"borsapulse/internal/infrastructure"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobKind selects the handler that executes a job
type JobKind string

const (
	KindRecompute    JobKind = "recompute"
	KindRecomputeAll JobKind = "recompute_all"
)

// Job represents an async job
type Job struct {
	ID          string            `json:"id"`
	Kind        JobKind           `json:"kind"`
	Target      string            `json:"target,omitempty"`
	Status      JobStatus         `json:"status"`
	Message     string            `json:"message,omitempty"`
	Error       string            `json:"error,omitempty"`
	Result      any               `json:"result,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Handler executes one job and returns a JSON-serializable result
type Handler func(ctx context.Context, job *Job) (any, error)

// JobStore interface for job persistence
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter JobFilter) ([]*Job, error)
	DeleteJob(id string) error
}

// JobFilter for querying jobs
type JobFilter struct {
	Status JobStatus
	Kind   JobKind
	Target string
	Since  time.Time
	Limit  int
}

// QueueOptions sizes a JobQueue
type QueueOptions struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// JobQueue manages async job execution
type JobQueue struct {
	mu       sync.RWMutex
	jobs     chan *Job
	workers  int
	timeout  time.Duration
	wg       sync.WaitGroup
	store    JobStore
	handlers map[JobKind]Handler
	metrics  *infrastructure.DomainMetrics
	logger   *slog.Logger
	shutdown chan struct{}
	stopOnce sync.Once
	stopped  bool
	active   map[string]context.CancelFunc
}

// NewJobQueue creates a new job queue. metrics may be nil.
func NewJobQueue(opts QueueOptions, store JobStore, metrics *infrastructure.DomainMetrics, logger *slog.Logger) *JobQueue {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Workers * 2
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobQueue{
		jobs:     make(chan *Job, opts.QueueSize),
		workers:  opts.Workers,
		timeout:  opts.JobTimeout,
		store:    store,
		handlers: make(map[JobKind]Handler),
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "jobqueue")),
		shutdown: make(chan struct{}),
		active:   make(map[string]context.CancelFunc),
	}
}

// Register installs the handler for kind. It must be called before Start.
func (q *JobQueue) Register(kind JobKind, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Start begins processing jobs
func (q *JobQueue) Start(ctx context.Context) {
	q.logger.Info("starting job queue", slog.Int("workers", q.workers), slog.Int("capacity", cap(q.jobs)))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop stops accepting jobs and waits for running ones up to timeout
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.stopOnce.Do(func() {
		q.logger.Info("stopping job queue")
		q.mu.Lock()
		q.stopped = true
		q.mu.Unlock()
		close(q.shutdown)
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job queue stopped gracefully")
		return nil
	case <-time.After(timeout):
		q.mu.Lock()
		for _, cancel := range q.active {
			cancel()
		}
		q.mu.Unlock()
		q.logger.Warn("job queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Enqueue records job as pending and hands it to a worker. The trace ID of
// ctx travels with the job.
func (q *JobQueue) Enqueue(ctx context.Context, job *Job) error {
	q.mu.RLock()
	_, known := q.handlers[job.Kind]
	stopped := q.stopped
	q.mu.RUnlock()

	if stopped {
		return ErrQueueStopped
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownKind, job.Kind)
	}

	job.Status = JobStatusPending
	job.CreatedAt = time.Now().UTC()
	if traceID := infrastructure.GetTraceID(ctx); traceID != "" {
		if job.Metadata == nil {
			job.Metadata = make(map[string]string)
		}
		job.Metadata["trace_id"] = traceID
	}

	if err := q.store.CreateJob(job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	select {
	case q.jobs <- job:
		q.logger.InfoContext(ctx, "job enqueued",
			slog.String("job_id", job.ID),
			slog.String("kind", string(job.Kind)),
			slog.String("target", job.Target))
		return nil
	default:
		job.Status = JobStatusFailed
		job.Error = ErrQueueFull.Error()
		now := time.Now().UTC()
		job.CompletedAt = &now
		_ = q.store.UpdateJob(job)
		q.metrics.RecordJob(ctx, string(job.Kind), string(JobStatusFailed))
		return ErrQueueFull
	}
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	return q.store.GetJob(id)
}

// CancelJob cancels a pending or running job
func (q *JobQueue) CancelJob(id string) error {
	job, err := q.store.GetJob(id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrNotCancellable, id, job.Status)
	}

	q.mu.Lock()
	cancel, running := q.active[id]
	q.mu.Unlock()
	if running {
		// The worker records the cancelled status when the handler returns.
		cancel()
		return nil
	}

	job.Status = JobStatusCancelled
	now := time.Now().UTC()
	job.CompletedAt = &now
	return q.store.UpdateJob(job)
}

// ListJobs returns jobs matching the filter
func (q *JobQueue) ListJobs(filter JobFilter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case job := <-q.jobs:
			q.processJob(ctx, job, logger)
		}
	}
}

func (q *JobQueue) processJob(ctx context.Context, job *Job, logger *slog.Logger) {
	if traceID := job.Metadata["trace_id"]; traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, traceID)
	}
	logger = logger.With(
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.String("target", job.Target),
	)

	// A pending job may have been cancelled while it sat in the buffer.
	if current, err := q.store.GetJob(job.ID); err == nil && current.Status == JobStatusCancelled {
		logger.InfoContext(ctx, "skipping cancelled job")
		return
	}

	var jobCtx context.Context
	var cancel context.CancelFunc
	if q.timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, q.timeout)
	} else {
		jobCtx, cancel = context.WithCancel(ctx)
	}

	q.mu.Lock()
	q.active[job.ID] = cancel
	handler := q.handlers[job.Kind]
	q.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "job processing panicked", slog.Any("panic", r))
			q.finish(ctx, job, nil, fmt.Errorf("job processing panicked: %v", r), logger)
		}
		cancel()
		q.mu.Lock()
		delete(q.active, job.ID)
		q.mu.Unlock()
	}()

	job.Status = JobStatusRunning
	now := time.Now().UTC()
	job.StartedAt = &now
	job.Message = "Job started"
	if err := q.store.UpdateJob(job); err != nil {
		logger.ErrorContext(ctx, "failed to update job status", slog.String("error", err.Error()))
	}

	logger.InfoContext(ctx, "processing job started")
	result, err := handler(jobCtx, job)
	if err == nil && jobCtx.Err() != nil {
		err = jobCtx.Err()
	}
	q.finish(ctx, job, result, err, logger)
}

func (q *JobQueue) finish(ctx context.Context, job *Job, result any, err error, logger *slog.Logger) {
	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	switch {
	case err == nil:
		job.Status = JobStatusCompleted
		job.Result = result
		job.Message = "Job completed successfully"
		logger.InfoContext(ctx, "processing job completed")
	case errors.Is(err, context.Canceled):
		job.Status = JobStatusCancelled
		job.Error = err.Error()
		job.Message = "Job cancelled"
		logger.WarnContext(ctx, "job cancelled")
	default:
		job.Status = JobStatusFailed
		job.Error = err.Error()
		job.Message = "Job failed"
		logger.ErrorContext(ctx, "job failed", slog.String("error", err.Error()))
	}

	if err := q.store.UpdateJob(job); err != nil {
		logger.ErrorContext(ctx, "failed to update job completion", slog.String("error", err.Error()))
	}
	q.metrics.RecordJob(ctx, string(job.Kind), string(job.Status))
}

// GetQueueStats returns queue statistics
func (q *JobQueue) GetQueueStats() map[string]interface{} {
	q.mu.RLock()
	activeCount := len(q.active)
	q.mu.RUnlock()

	return map[string]interface{}{
		"workers":     q.workers,
		"queue_size":  len(q.jobs),
		"queue_cap":   cap(q.jobs),
		"active_jobs": activeCount,
	}
}
