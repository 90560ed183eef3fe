package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"borsapulse/internal/config"
	"borsapulse/internal/operations"
	"borsapulse/internal/shared/testutil"
	"borsapulse/internal/storage"
	"borsapulse/pkg/contracts/domain"
	"borsapulse/pkg/contracts/events"
)

// MockPublisher is a mock for the EventPublisher interface
type MockPublisher struct {
	mock.Mock
	mu     sync.Mutex
	events []events.Type
}

func (m *MockPublisher) Publish(ctx context.Context, typ events.Type, data any) {
	m.mu.Lock()
	m.events = append(m.events, typ)
	m.mu.Unlock()
	m.Called(ctx, typ, data)
}

func (m *MockPublisher) Types() []events.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Type(nil), m.events...)
}

type testEnv struct {
	store      *storage.MemoryStore
	publisher  *MockPublisher
	jobs       *operations.JobQueue
	instrument *InstrumentService
	ingestion  *IngestionService
	analysis   *AnalysisService
}

func newTestEnv(t *testing.T, ingestCfg config.IngestionConfig) *testEnv {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	store := storage.NewMemoryStore()
	locker := storage.NewKeyedMutex()
	pub := &MockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return()

	jobs := operations.NewJobQueue(operations.QueueOptions{Workers: 2, QueueSize: 8}, operations.NewMemoryJobStore(), nil, logger)
	analysis := NewAnalysisService(store, locker, jobs, pub, nil, 2, logger)
	jobs.Start(context.Background())
	t.Cleanup(func() { jobs.Stop(time.Second) })

	if ingestCfg.MaxUploadBytes == 0 {
		ingestCfg = config.Default().Ingestion
	}

	return &testEnv{
		store:      store,
		publisher:  pub,
		jobs:       jobs,
		instrument: NewInstrumentService(store, locker, logger),
		ingestion:  NewIngestionService(store, locker, analysis, pub, nil, ingestCfg, logger),
		analysis:   analysis,
	}
}

func (e *testEnv) createInstrument(t *testing.T, symbol string) *domain.Instrument {
	t.Helper()
	inst, err := e.instrument.Create(context.Background(), CreateInstrumentRequest{Symbol: symbol, Name: symbol + " A.Ş."})
	require.NoError(t, err)
	return inst
}

func (e *testEnv) seedBars(t *testing.T, inst *domain.Instrument, closes ...float64) {
	t.Helper()
	for _, b := range testutil.BarsFromCloses(inst.ID, testutil.Day(2024, 1, 1), closes...) {
		require.NoError(t, e.store.UpsertPriceBar(context.Background(), b))
	}
}

func csvUpload(symbol, name, content string) IngestFileRequest {
	return IngestFileRequest{
		Symbol:   symbol,
		Filename: name,
		Reader:   strings.NewReader(content),
		Size:     int64(len(content)),
	}
}

func boolPtr(b bool) *bool { return &b }
