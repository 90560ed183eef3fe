package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"borsapulse/internal/analytics"
	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/exporter"
	"borsapulse/internal/infrastructure"
	"borsapulse/internal/operations"
	"borsapulse/internal/storage"
	"borsapulse/pkg/contracts/domain"
	"borsapulse/pkg/contracts/events"
)

// RecomputeAllResult summarizes a recompute over every active instrument
type RecomputeAllResult struct {
	Instruments int               `json:"instruments"`
	Succeeded   int               `json:"succeeded"`
	Skipped     int               `json:"skipped"`
	Failed      int               `json:"failed"`
	Records     int               `json:"records"`
	Failures    map[string]string `json:"failures,omitempty"`
	Duration    time.Duration     `json:"duration"`
}

// AnalysisService recomputes and serves analysis records
type AnalysisService struct {
	store       storage.Store
	locker      storage.Locker
	aggregator  *analytics.Aggregator
	jobs        *operations.JobQueue
	publisher   EventPublisher
	concurrency int
	logger      *slog.Logger
}

// NewAnalysisService creates the service and registers its job handlers on
// jobs. jobs may be nil, which disables the async methods.
func NewAnalysisService(
	store storage.Store,
	locker storage.Locker,
	jobs *operations.JobQueue,
	publisher EventPublisher,
	metrics *infrastructure.DomainMetrics,
	concurrency int,
	logger *slog.Logger,
) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	s := &AnalysisService{
		store:       store,
		locker:      locker,
		aggregator:  analytics.NewAggregator(store, logger, metrics),
		jobs:        jobs,
		publisher:   publisherOrNoop(publisher),
		concurrency: concurrency,
		logger:      logger.With(slog.String("service", "analysis")),
	}

	if jobs != nil {
		jobs.Register(operations.KindRecompute, func(ctx context.Context, job *operations.Job) (any, error) {
			inst, err := lookupInstrument(ctx, s.store, job.Target)
			if err != nil {
				return nil, err
			}
			return s.recompute(ctx, inst, job.ID)
		})
		jobs.Register(operations.KindRecomputeAll, func(ctx context.Context, job *operations.Job) (any, error) {
			return s.RecomputeAll(ctx)
		})
	}
	return s
}

// Recompute rebuilds the instrument's analysis records synchronously
func (s *AnalysisService) Recompute(ctx context.Context, symbol string) (*analytics.Result, error) {
	inst, err := lookupInstrument(ctx, s.store, symbol)
	if err != nil {
		return nil, err
	}
	return s.recompute(ctx, inst, "")
}

func (s *AnalysisService) recompute(ctx context.Context, inst *domain.Instrument, jobID string) (*analytics.Result, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(inst.ID))
	if err != nil {
		return nil, err
	}
	result, err := s.aggregator.Run(ctx, inst.ID)
	unlock()

	if err != nil {
		s.publisher.Publish(ctx, events.TypeAnalysisFailed, events.AnalysisFailed{
			Symbol: inst.Symbol,
			JobID:  jobID,
			Code:   failureCode(err),
			Error:  err.Error(),
		})
		return nil, err
	}

	s.publisher.Publish(ctx, events.TypeAnalysisCompleted, events.AnalysisCompleted{
		Symbol:     inst.Symbol,
		JobID:      jobID,
		Records:    result.Records,
		From:       result.From,
		To:         result.To,
		DurationMs: result.Duration.Milliseconds(),
	})
	return result, nil
}

// RecomputeAsync enqueues a recompute job for the instrument
func (s *AnalysisService) RecomputeAsync(ctx context.Context, symbol string) (*operations.Job, error) {
	inst, err := lookupInstrument(ctx, s.store, symbol)
	if err != nil {
		return nil, err
	}
	return s.enqueue(ctx, &operations.Job{Kind: operations.KindRecompute, Target: inst.Symbol})
}

// RecomputeAllAsync enqueues a recompute of every active instrument
func (s *AnalysisService) RecomputeAllAsync(ctx context.Context) (*operations.Job, error) {
	return s.enqueue(ctx, &operations.Job{Kind: operations.KindRecomputeAll})
}

func (s *AnalysisService) enqueue(ctx context.Context, job *operations.Job) (*operations.Job, error) {
	if s.jobs == nil {
		return nil, ErrAsyncUnavailable
	}
	job.ID = uuid.NewString()
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		if errors.Is(err, operations.ErrQueueFull) || errors.Is(err, operations.ErrQueueStopped) {
			return nil, fmt.Errorf("%w: %v", ErrAsyncUnavailable, err)
		}
		return nil, err
	}
	return s.jobs.GetJob(job.ID)
}

// RecomputeAll recomputes every active instrument with bounded
// concurrency. Per-instrument failures are collected in the result; only
// cancellation of ctx is returned as an error.
func (s *AnalysisService) RecomputeAll(ctx context.Context) (*RecomputeAllResult, error) {
	start := time.Now()
	instruments, err := s.store.ListInstruments(ctx)
	if err != nil {
		return nil, err
	}

	result := &RecomputeAllResult{Failures: map[string]string{}}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i := range instruments {
		inst := instruments[i]
		if !inst.IsActive {
			continue
		}
		result.Instruments++

		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res, err := s.recompute(ctx, &inst, "")

			mu.Lock()
			defer mu.Unlock()
			var insufficient *apperrors.InsufficientDataError
			switch {
			case err == nil:
				result.Succeeded++
				result.Records += res.Records
			case errors.As(err, &insufficient):
				result.Skipped++
			default:
				result.Failed++
				result.Failures[inst.Symbol] = err.Error()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	s.logger.InfoContext(ctx, "recomputed all instruments",
		slog.Int("instruments", result.Instruments),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
		slog.Duration("elapsed", result.Duration))
	return result, nil
}

// ListAnalysis returns the instrument's records within q, ascending by date
func (s *AnalysisService) ListAnalysis(ctx context.Context, symbol string, q domain.AnalysisQuery) ([]domain.AnalysisRecord, error) {
	inst, err := lookupInstrument(ctx, s.store, symbol)
	if err != nil {
		return nil, err
	}
	return s.store.ListAnalysis(ctx, inst.ID, q)
}

// ExportCSV streams the instrument's records within q to w
func (s *AnalysisService) ExportCSV(ctx context.Context, symbol string, q domain.AnalysisQuery, w io.Writer) error {
	inst, err := lookupInstrument(ctx, s.store, symbol)
	if err != nil {
		return err
	}
	records, err := s.store.ListAnalysis(ctx, inst.ID, q)
	if err != nil {
		return err
	}
	return exporter.WriteAnalysis(ctx, w, inst.Symbol, records)
}

// GetJob returns a background job by ID
func (s *AnalysisService) GetJob(ctx context.Context, id string) (*operations.Job, error) {
	if s.jobs == nil {
		return nil, ErrAsyncUnavailable
	}
	job, err := s.jobs.GetJob(id)
	if errors.Is(err, operations.ErrJobNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, err
}

// ListJobs returns background jobs matching filter, newest first
func (s *AnalysisService) ListJobs(ctx context.Context, filter operations.JobFilter) ([]*operations.Job, error) {
	if s.jobs == nil {
		return nil, ErrAsyncUnavailable
	}
	return s.jobs.ListJobs(filter)
}

// CancelJob cancels a pending or running background job
func (s *AnalysisService) CancelJob(ctx context.Context, id string) error {
	if s.jobs == nil {
		return ErrAsyncUnavailable
	}
	err := s.jobs.CancelJob(id)
	switch {
	case errors.Is(err, operations.ErrJobNotFound):
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	case errors.Is(err, operations.ErrNotCancellable):
		return fmt.Errorf("%w: %s", ErrJobNotCancellable, id)
	}
	if err == nil {
		s.logger.InfoContext(ctx, "job cancelled", slog.String("job_id", id))
	}
	return err
}

func failureCode(err error) string {
	var insufficient *apperrors.InsufficientDataError
	var persistence *apperrors.PersistenceError
	switch {
	case errors.As(err, &insufficient):
		return "insufficient_data"
	case errors.As(err, &persistence):
		return "persistence_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
