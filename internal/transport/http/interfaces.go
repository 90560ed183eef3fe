package http

import (
	"context"
	"io"

	"borsapulse/internal/analytics"
	"borsapulse/internal/operations"
	"borsapulse/internal/services"
	"borsapulse/pkg/contracts/domain"
)

// InstrumentService is the instrument registry used by the handlers
type InstrumentService interface {
	Create(ctx context.Context, req services.CreateInstrumentRequest) (*domain.Instrument, error)
	List(ctx context.Context) ([]domain.Instrument, error)
	Get(ctx context.Context, symbol string) (*domain.Instrument, error)
	Update(ctx context.Context, symbol string, req services.UpdateInstrumentRequest) (*domain.Instrument, error)
	Delete(ctx context.Context, symbol string) error
}

// IngestionService turns uploads into price bars
type IngestionService interface {
	IngestFile(ctx context.Context, req services.IngestFileRequest) (*services.IngestFileResult, error)
	GetBatch(ctx context.Context, id string) (*domain.IngestionBatch, error)
	ListBatches(ctx context.Context, symbol string) ([]domain.IngestionBatch, error)
}

// AnalysisService computes and serves analysis records and jobs
type AnalysisService interface {
	Recompute(ctx context.Context, symbol string) (*analytics.Result, error)
	RecomputeAsync(ctx context.Context, symbol string) (*operations.Job, error)
	RecomputeAll(ctx context.Context) (*services.RecomputeAllResult, error)
	RecomputeAllAsync(ctx context.Context) (*operations.Job, error)
	ListAnalysis(ctx context.Context, symbol string, q domain.AnalysisQuery) ([]domain.AnalysisRecord, error)
	ExportCSV(ctx context.Context, symbol string, q domain.AnalysisQuery, w io.Writer) error
	GetJob(ctx context.Context, id string) (*operations.Job, error)
	ListJobs(ctx context.Context, filter operations.JobFilter) ([]*operations.Job, error)
	CancelJob(ctx context.Context, id string) error
}

// HealthService reports process and dependency health
type HealthService interface {
	HealthCheck(ctx context.Context) services.HealthStatus
	ReadinessCheck(ctx context.Context) services.HealthStatus
	LivenessCheck(ctx context.Context) services.HealthStatus
}
