package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"borsapulse/internal/config"
	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/operations"
	"borsapulse/internal/shared/testutil"
	"borsapulse/internal/storage"
	"borsapulse/pkg/contracts/domain"
	"borsapulse/pkg/contracts/events"
)

func TestIngestFile(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()
	inst := env.createInstrument(t, "THYAO")

	result, err := env.ingestion.IngestFile(ctx, csvUpload("thyao", "thyao.csv", testutil.SampleEnglishCSV))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.TotalRows)
	assert.Equal(t, 2, result.Summary.SuccessCount)
	assert.Equal(t, 1.0, result.Summary.ProcessedRatio)
	assert.True(t, result.Batch.Processed)
	assert.NotNil(t, result.Batch.ProcessedAt)
	assert.Equal(t, 2, result.Batch.SuccessCount)
	assert.Empty(t, result.JobID)
	assert.Equal(t, 2, result.StoredBars)

	count, err := env.store.CountPriceBars(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	env.publisher.AssertCalled(t, "Publish", mock.Anything, events.TypeIngestionCompleted, mock.Anything)

	stored, err := env.ingestion.GetBatch(ctx, result.Batch.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)
}

func TestIngestFileTwiceCountsDuplicates(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()
	env.createInstrument(t, "THYAO")

	_, err := env.ingestion.IngestFile(ctx, csvUpload("THYAO", "a.csv", testutil.SampleEnglishCSV))
	require.NoError(t, err)

	second, err := env.ingestion.IngestFile(ctx, csvUpload("THYAO", "b.csv", testutil.SampleEnglishCSV))
	require.NoError(t, err)
	assert.Zero(t, second.Summary.SuccessCount)
	assert.Equal(t, 2, second.Summary.DuplicateCount)
	assert.Equal(t, 1.0, second.Summary.ProcessedRatio)
	assert.Equal(t, 2, second.StoredBars)

	// a batch with nothing new to store is still processed
	assert.True(t, second.Batch.Processed)
	require.NotNil(t, second.Batch.ProcessedAt)
	assert.False(t, second.Batch.ProcessedAt.IsZero())
	assert.Equal(t, 2, second.Batch.DuplicateCount)

	stored, err := env.ingestion.GetBatch(ctx, second.Batch.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)
	assert.NotNil(t, stored.ProcessedAt)

	batches, err := env.ingestion.ListBatches(ctx, "THYAO")
	require.NoError(t, err)
	assert.Len(t, batches, 2)
}

func TestIngestFileAllRowsFailingStillProcessesBatch(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()
	inst := env.createInstrument(t, "THYAO")

	content := "Date,Price,Open,High,Low,Vol.,Change %\n" +
		"not a date,1,1,1,1,1K,0%\n" +
		"06.01.2024,abc,1,1,1,1K,0%\n"
	result, err := env.ingestion.IngestFile(ctx, csvUpload("THYAO", "broken.csv", content))
	require.NoError(t, err)

	assert.Zero(t, result.Summary.SuccessCount)
	assert.Equal(t, 2, result.Summary.ErrorCount)
	assert.Zero(t, result.Summary.ProcessedRatio)
	assert.True(t, result.Batch.Processed)
	require.NotNil(t, result.Batch.ProcessedAt)
	assert.Equal(t, 2, result.Batch.ErrorCount)
	assert.Contains(t, result.Batch.ErrorLog, "Row 2:")
	assert.Contains(t, result.Batch.ErrorLog, "Row 3:")
	assert.Zero(t, result.StoredBars)

	stored, err := env.ingestion.GetBatch(ctx, result.Batch.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)
	assert.NotNil(t, stored.ProcessedAt)

	count, err := env.store.CountPriceBars(ctx, inst.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// cancellingStore cancels the ingest after the first bar is written
type cancellingStore struct {
	*storage.MemoryStore
	cancel context.CancelFunc
	writes int
}

func (s *cancellingStore) UpsertPriceBar(ctx context.Context, bar domain.PriceBar) error {
	err := s.MemoryStore.UpsertPriceBar(ctx, bar)
	s.writes++
	if s.writes == 1 {
		s.cancel()
	}
	return err
}

type failingLocker struct{ err error }

func (l failingLocker) Lock(context.Context, string) (func(), error) { return nil, l.err }

func TestIngestFileCancelledLeavesBatchUnprocessed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &cancellingStore{MemoryStore: storage.NewMemoryStore(), cancel: cancel}
	locker := storage.NewKeyedMutex()
	instruments := NewInstrumentService(store, locker, logger)
	svc := NewIngestionService(store, locker, nil, nil, nil, config.Default().Ingestion, logger)

	inst, err := instruments.Create(context.Background(), CreateInstrumentRequest{Symbol: "THYAO", Name: "THY"})
	require.NoError(t, err)

	result, err := svc.IngestFile(ctx, csvUpload("THYAO", "a.csv", testutil.SampleEnglishCSV))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Summary.SuccessCount)
	assert.False(t, result.Batch.Processed)
	assert.Nil(t, result.Batch.ProcessedAt)
	assert.Contains(t, result.Batch.ErrorLog, "interrupted")

	stored, err := store.GetBatch(context.Background(), result.Batch.ID)
	require.NoError(t, err)
	assert.False(t, stored.Processed)
	assert.Equal(t, 1, stored.SuccessCount)

	count, err := store.CountPriceBars(context.Background(), inst.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// the unprocessed batch can be re-run without the reprocess flag
	req := csvUpload("THYAO", "a.csv", testutil.SampleEnglishCSV)
	req.BatchID = result.Batch.ID
	again, err := svc.IngestFile(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, again.Batch.Processed)
	assert.Equal(t, 1, again.Summary.SuccessCount)
	assert.Equal(t, 1, again.Summary.DuplicateCount)
}

func TestIngestFileLockFailureRecordedOnBatch(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	store := storage.NewMemoryStore()
	instruments := NewInstrumentService(store, storage.NewKeyedMutex(), logger)
	svc := NewIngestionService(store, failingLocker{err: errors.New("lock backend down")}, nil, nil, nil, config.Default().Ingestion, logger)
	ctx := context.Background()

	_, err := instruments.Create(ctx, CreateInstrumentRequest{Symbol: "THYAO", Name: "THY"})
	require.NoError(t, err)

	result, err := svc.IngestFile(ctx, csvUpload("THYAO", "a.csv", testutil.SampleEnglishCSV))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock backend down")
	require.NotNil(t, result)
	require.NotNil(t, result.Batch)
	assert.False(t, result.Batch.Processed)

	batches, err := store.ListBatches(ctx, result.Batch.InstrumentID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.False(t, batches[0].Processed)
	assert.Equal(t, "lock backend down", batches[0].ErrorLog)
}

func TestIngestFileBatchReprocess(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()
	env.createInstrument(t, "THYAO")

	first, err := env.ingestion.IngestFile(ctx, csvUpload("THYAO", "a.csv", testutil.SampleEnglishCSV))
	require.NoError(t, err)

	req := csvUpload("THYAO", "a.csv", testutil.SampleEnglishCSV)
	req.BatchID = first.Batch.ID
	_, err = env.ingestion.IngestFile(ctx, req)
	assert.ErrorIs(t, err, ErrBatchAlreadyProcessed)

	req = csvUpload("THYAO", "a.csv", testutil.SampleEnglishCSV)
	req.BatchID = first.Batch.ID
	req.Reprocess = true
	again, err := env.ingestion.IngestFile(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.Batch.ID, again.Batch.ID)
	assert.Equal(t, 2, again.Batch.DuplicateCount)

	req = csvUpload("THYAO", "a.csv", testutil.SampleEnglishCSV)
	req.BatchID = "missing"
	_, err = env.ingestion.IngestFile(ctx, req)
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestIngestFileSchemaErrorLeavesBatchUnprocessed(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()
	inst := env.createInstrument(t, "THYAO")

	content := "Date,Open,High\n05.01.2024,1,2\n"
	result, err := env.ingestion.IngestFile(ctx, csvUpload("THYAO", "bad.csv", content))

	var schemaErr *apperrors.SchemaError
	require.True(t, errors.As(err, &schemaErr), "got %v", err)
	require.NotNil(t, result)
	assert.False(t, result.Batch.Processed)
	assert.NotEmpty(t, result.Batch.ErrorLog)
	assert.Nil(t, result.Summary)

	count, err := env.store.CountPriceBars(ctx, inst.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	env.publisher.AssertNotCalled(t, "Publish", mock.Anything, events.TypeIngestionCompleted, mock.Anything)
}

func TestIngestFileRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	env.createInstrument(t, "THYAO")

	tests := []struct {
		name    string
		req     IngestFileRequest
		wantErr error
	}{
		{name: "unknown instrument", req: csvUpload("NOPE", "a.csv", testutil.SampleEnglishCSV), wantErr: ErrInstrumentNotFound},
		{name: "unsupported extension", req: csvUpload("THYAO", "a.pdf", testutil.SampleEnglishCSV)},
		{name: "office lock file", req: csvUpload("THYAO", "~$a.xlsx", "x")},
		{name: "missing reader", req: IngestFileRequest{Symbol: "THYAO", Filename: "a.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ingestion.IngestFile(context.Background(), tt.req)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestIngestFileEnforcesUploadLimit(t *testing.T) {
	cfg := config.Default().Ingestion
	cfg.MaxUploadBytes = 16
	env := newTestEnv(t, cfg)
	env.createInstrument(t, "THYAO")

	_, err := env.ingestion.IngestFile(context.Background(), csvUpload("THYAO", "a.csv", testutil.SampleEnglishCSV))
	var apiErr *apperrors.APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, 413, apiErr.StatusCode)
}

func TestIngestFileSchedulesRecompute(t *testing.T) {
	cfg := config.Default().Ingestion
	cfg.RecomputeOnIngest = true
	env := newTestEnv(t, cfg)
	ctx := context.Background()
	inst := env.createInstrument(t, "THYAO")

	result, err := env.ingestion.IngestFile(ctx, csvUpload("THYAO", "a.csv", testutil.SampleEnglishCSV))
	require.NoError(t, err)
	require.NotEmpty(t, result.JobID)

	require.Eventually(t, func() bool {
		job, err := env.analysis.GetJob(ctx, result.JobID)
		return err == nil && job.Status == operations.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	records, err := env.store.ListAnalysis(ctx, inst.ID, domain.AnalysisQuery{})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// Opting out per request wins over the configured default.
	req := csvUpload("THYAO", "b.csv", testutil.SampleTurkishCSV)
	req.Recompute = boolPtr(false)
	result, err = env.ingestion.IngestFile(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, result.JobID)
}
