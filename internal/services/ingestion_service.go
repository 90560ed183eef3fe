package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"borsapulse/internal/config"
	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/infrastructure"
	"borsapulse/internal/ingestion"
	"borsapulse/internal/operations"
	"borsapulse/internal/storage"
	"borsapulse/internal/validation"
	"borsapulse/pkg/contracts/domain"
	"borsapulse/pkg/contracts/events"
)

// IngestFileRequest describes one uploaded price file
type IngestFileRequest struct {
	Symbol     string
	Filename   string
	Reader     io.Reader
	Size       int64 // zero when unknown
	Note       string
	UploadedBy string

	// HeaderMode and DateLayout override the configured defaults when set.
	HeaderMode string
	DateLayout string

	// BatchID re-runs an existing batch. A processed batch is refused
	// unless Reprocess is set.
	BatchID   string
	Reprocess bool

	// Recompute overrides Ingestion.RecomputeOnIngest when non-nil.
	Recompute *bool
}

// IngestFileResult is returned for a processed file
type IngestFileResult struct {
	Batch   *domain.IngestionBatch   `json:"batch"`
	Summary *domain.IngestionSummary `json:"summary"`
	JobID   string                   `json:"job_id,omitempty"`

	// StoredBars is the instrument's price bar count after the file.
	StoredBars int `json:"stored_bars"`
}

// Recomputer schedules background analysis for an instrument
type Recomputer interface {
	RecomputeAsync(ctx context.Context, symbol string) (*operations.Job, error)
}

// IngestionService turns uploaded files into price bars
type IngestionService struct {
	store      storage.Store
	locker     storage.Locker
	normalizer *ingestion.Normalizer
	recomputer Recomputer
	publisher  EventPublisher
	metrics    *infrastructure.DomainMetrics
	cfg        config.IngestionConfig
	logger     *slog.Logger
}

// NewIngestionService creates an ingestion service. recomputer, publisher
// and metrics may be nil.
func NewIngestionService(
	store storage.Store,
	locker storage.Locker,
	recomputer Recomputer,
	publisher EventPublisher,
	metrics *infrastructure.DomainMetrics,
	cfg config.IngestionConfig,
	logger *slog.Logger,
) *IngestionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionService{
		store:      store,
		locker:     locker,
		normalizer: ingestion.NewNormalizer(store, logger, metrics),
		recomputer: recomputer,
		publisher:  publisherOrNoop(publisher),
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger.With(slog.String("service", "ingestion")),
	}
}

// IngestFile normalizes one file into the instrument's price bars and
// records the outcome as an ingestion batch.
//
// A SchemaError leaves the batch unprocessed with the reason in its error
// log and writes no bars. A cancelled ingest keeps the rows written so far
// and also leaves the batch unprocessed. Otherwise the batch is marked
// processed, even when every row failed, and its counters mirror the
// returned summary.
func (s *IngestionService) IngestFile(ctx context.Context, req IngestFileRequest) (*IngestFileResult, error) {
	ctx, span := infrastructure.StartSpan(ctx, "ingestion.IngestFile",
		attribute.String("symbol", req.Symbol),
		attribute.String("filename", req.Filename))
	defer span.End()

	start := time.Now()
	result, err := s.ingest(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.metrics.RecordIngestionBatch(ctx, batchResultLabel(err), elapsed)
		return result, err
	}

	s.metrics.RecordIngestionBatch(ctx, "processed", elapsed)
	span.SetAttributes(
		attribute.Int("success", result.Summary.SuccessCount),
		attribute.Int("errors", result.Summary.ErrorCount))
	return result, nil
}

func (s *IngestionService) ingest(ctx context.Context, req IngestFileRequest) (*IngestFileResult, error) {
	filename, err := validation.UploadName(req.Filename)
	if err != nil {
		return nil, err
	}
	if req.Reader == nil {
		return nil, apperrors.ErrValidation("file", "file is required")
	}
	if req.Size != 0 {
		if err := validation.UploadSize(req.Size, s.cfg.MaxUploadBytes); err != nil {
			return nil, err
		}
	}
	format, err := ingestion.FormatFromFilename(filename)
	if err != nil {
		return nil, err
	}
	opts, err := s.options(req)
	if err != nil {
		return nil, err
	}

	inst, err := lookupInstrument(ctx, s.store, req.Symbol)
	if err != nil {
		return nil, err
	}

	batch, err := s.openBatch(ctx, inst, filename, req)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(
		slog.String("batch_id", batch.ID),
		slog.String("symbol", inst.Symbol),
		slog.String("filename", filename))

	table, err := ingestion.Tabularize(req.Reader, format)
	if err != nil {
		logger.WarnContext(ctx, "file could not be read", slog.String("error", err.Error()))
		return s.failBatch(ctx, batch, err)
	}

	unlock, err := s.locker.Lock(ctx, lockKey(inst.ID))
	if err != nil {
		logger.WarnContext(ctx, "instrument lock unavailable", slog.String("error", err.Error()))
		return s.failBatch(ctx, batch, err)
	}
	summary, normErr := s.normalizer.Normalize(ctx, inst.ID, table, opts)
	unlock()

	if summary == nil {
		logger.WarnContext(ctx, "file rejected", slog.String("error", normErr.Error()))
		return s.failBatch(ctx, batch, normErr)
	}

	batch.SuccessCount = summary.SuccessCount
	batch.DuplicateCount = summary.DuplicateCount
	batch.ErrorCount = summary.ErrorCount
	batch.ErrorLog = strings.Join(summary.ErrorDetails, "\n")

	if normErr != nil {
		// Interrupted part-way: the rows written so far are counted but the
		// batch stays unprocessed so it can be re-run.
		logger.WarnContext(ctx, "ingestion interrupted",
			slog.Int("rows", summary.TotalRows),
			slog.String("error", normErr.Error()))
		if batch.ErrorLog != "" {
			batch.ErrorLog += "\n"
		}
		batch.ErrorLog += "interrupted: " + normErr.Error()
		batch.Processed = false
		batch.ProcessedAt = nil
		if err := s.store.UpdateBatch(context.WithoutCancel(ctx), batch); err != nil {
			return nil, err
		}
		return &IngestFileResult{Batch: batch, Summary: summary}, normErr
	}

	now := time.Now().UTC()
	batch.Processed = true
	batch.ProcessedAt = &now
	if err := s.store.UpdateBatch(ctx, batch); err != nil {
		return nil, err
	}

	result := &IngestFileResult{Batch: batch, Summary: summary}
	if stored, err := s.store.CountPriceBars(ctx, inst.ID); err == nil {
		result.StoredBars = stored
	} else {
		logger.WarnContext(ctx, "could not count stored bars", slog.String("error", err.Error()))
	}

	logger.InfoContext(ctx, "file ingested",
		slog.Int("success", summary.SuccessCount),
		slog.Int("duplicates", summary.DuplicateCount),
		slog.Int("errors", summary.ErrorCount),
		slog.Int("stored_bars", result.StoredBars))

	s.publisher.Publish(ctx, events.TypeIngestionCompleted, events.IngestionCompleted{
		BatchID: batch.ID,
		Symbol:  inst.Symbol,
		Summary: *summary,
	})

	if s.shouldRecompute(req) && summary.SuccessCount > 0 {
		job, err := s.recomputer.RecomputeAsync(ctx, inst.Symbol)
		if err != nil {
			// The bars are stored; analysis can be requested again later.
			logger.WarnContext(ctx, "could not schedule recompute", slog.String("error", err.Error()))
		} else {
			result.JobID = job.ID
		}
	}

	return result, nil
}

func (s *IngestionService) options(req IngestFileRequest) (ingestion.Options, error) {
	modeName := req.HeaderMode
	if modeName == "" {
		modeName = s.cfg.HeaderMode
	}
	mode, err := ingestion.ParseHeaderMode(modeName)
	if err != nil {
		return ingestion.Options{}, err
	}

	layout := req.DateLayout
	if layout == "" {
		layout = s.cfg.DateLayout
	}
	return ingestion.Options{HeaderMode: mode, DateLayout: layout}, nil
}

func (s *IngestionService) shouldRecompute(req IngestFileRequest) bool {
	if s.recomputer == nil {
		return false
	}
	if req.Recompute != nil {
		return *req.Recompute
	}
	return s.cfg.RecomputeOnIngest
}

// openBatch creates a new batch, or reopens req.BatchID for reprocessing
func (s *IngestionService) openBatch(ctx context.Context, inst *domain.Instrument, filename string, req IngestFileRequest) (*domain.IngestionBatch, error) {
	if req.BatchID != "" {
		batch, err := s.store.GetBatch(ctx, req.BatchID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, req.BatchID)
		}
		if err != nil {
			return nil, err
		}
		if batch.InstrumentID != inst.ID {
			return nil, fmt.Errorf("%w: %s belongs to another instrument", ErrBatchNotFound, req.BatchID)
		}
		if batch.Processed && !req.Reprocess {
			return nil, fmt.Errorf("%w: %s", ErrBatchAlreadyProcessed, batch.ID)
		}
		batch.Filename = filename
		return batch, nil
	}

	batch := &domain.IngestionBatch{
		ID:           uuid.NewString(),
		InstrumentID: inst.ID,
		Filename:     filename,
		Note:         req.Note,
		UploadedBy:   req.UploadedBy,
		UploadedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// failBatch records a whole-file failure on the batch and returns cause
func (s *IngestionService) failBatch(ctx context.Context, batch *domain.IngestionBatch, cause error) (*IngestFileResult, error) {
	batch.ErrorLog = cause.Error()
	batch.Processed = false
	batch.ProcessedAt = nil
	if err := s.store.UpdateBatch(context.WithoutCancel(ctx), batch); err != nil {
		s.logger.ErrorContext(ctx, "failed to record batch failure",
			slog.String("batch_id", batch.ID),
			slog.String("error", err.Error()))
	}
	return &IngestFileResult{Batch: batch}, cause
}

// GetBatch returns one batch by ID
func (s *IngestionService) GetBatch(ctx context.Context, id string) (*domain.IngestionBatch, error) {
	batch, err := s.store.GetBatch(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	return batch, err
}

// ListBatches returns the instrument's batches, newest first
func (s *IngestionService) ListBatches(ctx context.Context, symbol string) ([]domain.IngestionBatch, error) {
	inst, err := lookupInstrument(ctx, s.store, symbol)
	if err != nil {
		return nil, err
	}
	return s.store.ListBatches(ctx, inst.ID)
}

func batchResultLabel(err error) string {
	var schema *apperrors.SchemaError
	var persistence *apperrors.PersistenceError
	switch {
	case errors.As(err, &schema):
		return "schema_error"
	case errors.As(err, &persistence):
		return "persistence_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "rejected"
	}
}
