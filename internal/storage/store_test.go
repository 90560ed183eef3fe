package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"borsapulse/internal/config"
	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/shared/testutil"
	"borsapulse/pkg/contracts/domain"
)

func newGormTestStore(t *testing.T) Store {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	store, err := OpenGorm(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "borsa.db"),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"gorm":   newGormTestStore,
	}
}

func seedInstrument(t *testing.T, s Store, id, symbol string) {
	t.Helper()
	require.NoError(t, s.CreateInstrument(context.Background(), &domain.Instrument{
		ID: id, Symbol: symbol, Name: symbol + " Holding", IsActive: true,
		CreatedAt: time.Now().UTC(),
	}))
}

func TestStoreInstruments(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			seedInstrument(t, s, "i-2", "THYAO")
			seedInstrument(t, s, "i-1", "ASELS")

			err := s.CreateInstrument(ctx, &domain.Instrument{ID: "i-3", Symbol: "ASELS", Name: "dup"})
			assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

			got, err := s.GetInstrumentBySymbol(ctx, "THYAO")
			require.NoError(t, err)
			assert.Equal(t, "i-2", got.ID)
			assert.True(t, got.IsActive)

			_, err = s.GetInstrument(ctx, "missing")
			assert.True(t, errors.Is(err, ErrNotFound))

			list, err := s.ListInstruments(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "ASELS", list[0].Symbol)
		})
	}
}

func TestStoreUpdateInstrument(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			seedInstrument(t, s, "i-1", "THYAO")

			err := s.UpdateInstrument(ctx, &domain.Instrument{
				ID: "i-1", Symbol: "IGNORED", Name: "Turk Hava Yollari", Sector: "Airlines", IsActive: false,
			})
			require.NoError(t, err)

			got, err := s.GetInstrument(ctx, "i-1")
			require.NoError(t, err)
			assert.Equal(t, "THYAO", got.Symbol)
			assert.Equal(t, "Turk Hava Yollari", got.Name)
			assert.Equal(t, "Airlines", got.Sector)
			assert.False(t, got.IsActive)
			assert.False(t, got.CreatedAt.IsZero())

			err = s.UpdateInstrument(ctx, &domain.Instrument{ID: "missing", Name: "x"})
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
		})
	}
}

func TestStorePriceBarsUpsertAndOrder(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			seedInstrument(t, s, "i-1", "ASELS")

			bars := testutil.BarsFromCloses("i-1", testutil.Day(2024, 1, 2), 12.5, 13, 12.75)
			for i := len(bars) - 1; i >= 0; i-- {
				require.NoError(t, s.UpsertPriceBar(ctx, bars[i]))
			}

			exists, err := s.PriceBarExists(ctx, "i-1", testutil.Day(2024, 1, 3))
			require.NoError(t, err)
			assert.True(t, exists)

			exists, err = s.PriceBarExists(ctx, "i-1", testutil.Day(2024, 1, 9))
			require.NoError(t, err)
			assert.False(t, exists)

			updated := bars[0]
			updated.Close = decimal.RequireFromString("99.10")
			require.NoError(t, s.UpsertPriceBar(ctx, updated))

			count, err := s.CountPriceBars(ctx, "i-1")
			require.NoError(t, err)
			assert.Equal(t, 3, count)

			listed, err := s.ListPriceBars(ctx, "i-1")
			require.NoError(t, err)
			require.Len(t, listed, 3)
			for i := 1; i < len(listed); i++ {
				assert.True(t, listed[i-1].Date.Before(listed[i].Date))
			}
			assert.True(t, decimal.RequireFromString("99.10").Equal(listed[0].Close))
		})
	}
}

func analysisFixture(id string, days int) []domain.AnalysisRecord {
	records := make([]domain.AnalysisRecord, days)
	for i := range records {
		records[i] = domain.AnalysisRecord{
			InstrumentID: id,
			Date:         testutil.Day(2024, 1, 1).AddDate(0, 0, i),
			Close:        float64(10 + i),
			MA5:          float64(10 + i),
		}
	}
	records[days-1].WeeklyMA30 = null.FloatFrom(11.5)
	return records
}

func TestStoreReplaceAnalysis(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			seedInstrument(t, s, "i-1", "ASELS")

			require.NoError(t, s.ReplaceAnalysis(ctx, "i-1", analysisFixture("i-1", 5)))
			require.NoError(t, s.ReplaceAnalysis(ctx, "i-1", analysisFixture("i-1", 3)))

			all, err := s.ListAnalysis(ctx, "i-1", domain.AnalysisQuery{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.False(t, all[0].WeeklyMA30.Valid)
			assert.True(t, all[2].WeeklyMA30.Valid)
			assert.InDelta(t, 11.5, all[2].WeeklyMA30.Float64, 1e-9)

			ranged, err := s.ListAnalysis(ctx, "i-1", domain.AnalysisQuery{
				From: testutil.Day(2024, 1, 2),
				To:   testutil.Day(2024, 1, 2),
			})
			require.NoError(t, err)
			require.Len(t, ranged, 1)
			assert.Equal(t, testutil.Day(2024, 1, 2), ranged[0].Date)
		})
	}
}

func TestStoreBatches(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			seedInstrument(t, s, "i-1", "ASELS")

			older := &domain.IngestionBatch{ID: "b-1", InstrumentID: "i-1", Filename: "a.csv", UploadedAt: time.Now().UTC().Add(-time.Hour)}
			newer := &domain.IngestionBatch{ID: "b-2", InstrumentID: "i-1", Filename: "b.csv", UploadedAt: time.Now().UTC()}
			require.NoError(t, s.CreateBatch(ctx, older))
			require.NoError(t, s.CreateBatch(ctx, newer))

			processedAt := time.Now().UTC()
			older.Processed = true
			older.ProcessedAt = &processedAt
			older.SuccessCount = 7
			older.ErrorLog = "Row 3: cannot parse date \"x\""
			require.NoError(t, s.UpdateBatch(ctx, older))

			got, err := s.GetBatch(ctx, "b-1")
			require.NoError(t, err)
			assert.True(t, got.Processed)
			assert.Equal(t, 7, got.SuccessCount)
			require.NotNil(t, got.ProcessedAt)

			err = s.UpdateBatch(ctx, &domain.IngestionBatch{ID: "nope", InstrumentID: "i-1"})
			assert.True(t, errors.Is(err, ErrNotFound))

			list, err := s.ListBatches(ctx, "i-1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "b-2", list[0].ID)
		})
	}
}

func TestStoreDeleteInstrumentCascades(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			seedInstrument(t, s, "i-1", "ASELS")
			seedInstrument(t, s, "i-2", "THYAO")

			for _, id := range []string{"i-1", "i-2"} {
				for _, bar := range testutil.BarsFromCloses(id, testutil.Day(2024, 1, 2), 1, 2) {
					require.NoError(t, s.UpsertPriceBar(ctx, bar))
				}
				require.NoError(t, s.ReplaceAnalysis(ctx, id, analysisFixture(id, 2)))
				require.NoError(t, s.CreateBatch(ctx, &domain.IngestionBatch{ID: "b-" + id, InstrumentID: id, Filename: "f.csv", UploadedAt: time.Now().UTC()}))
			}

			require.NoError(t, s.DeleteInstrument(ctx, "i-1"))
			assert.True(t, errors.Is(s.DeleteInstrument(ctx, "i-1"), ErrNotFound))

			count, err := s.CountPriceBars(ctx, "i-1")
			require.NoError(t, err)
			assert.Zero(t, count)
			records, err := s.ListAnalysis(ctx, "i-1", domain.AnalysisQuery{})
			require.NoError(t, err)
			assert.Empty(t, records)
			_, err = s.GetBatch(ctx, "b-i-1")
			assert.True(t, errors.Is(err, ErrNotFound))

			count, err = s.CountPriceBars(ctx, "i-2")
			require.NoError(t, err)
			assert.Equal(t, 2, count)

			_, err = s.GetInstrumentBySymbol(ctx, "ASELS")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestGormStoreWrapsFailuresAsPersistenceError(t *testing.T) {
	s := newGormTestStore(t)
	require.NoError(t, s.Close())

	err := s.UpsertPriceBar(context.Background(), testutil.BarsFromCloses("i-1", testutil.Day(2024, 1, 2), 1)[0])
	require.Error(t, err)

	var pe *apperrors.PersistenceError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "upsert price bar", pe.Op)
}

func TestOpenGormRejectsUnknownDriver(t *testing.T) {
	_, err := OpenGorm(config.DatabaseConfig{Driver: "oracle", DSN: "x"}, nil)
	assert.Error(t, err)
}
