package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/infrastructure"
	"borsapulse/pkg/contracts/domain"
)

// Store is the persistence the aggregator reads bars from and writes
// records to.
type Store interface {
	ListPriceBars(ctx context.Context, instrumentID string) ([]domain.PriceBar, error)
	ReplaceAnalysis(ctx context.Context, instrumentID string, records []domain.AnalysisRecord) error
}

// Result describes one completed recomputation
type Result struct {
	InstrumentID string        `json:"instrument_id"`
	Records      int           `json:"records"`
	From         time.Time     `json:"from"`
	To           time.Time     `json:"to"`
	Duration     time.Duration `json:"duration"`
}

// Compute derives one analysis record per bar. bars may be in any order;
// records come back in ascending date order.
func Compute(bars []domain.PriceBar) []domain.AnalysisRecord {
	if len(bars) == 0 {
		return nil
	}

	sorted := make([]domain.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	dates := make([]time.Time, len(sorted))
	closes := make([]float64, len(sorted))
	for i, b := range sorted {
		dates[i] = domain.NormalizeDate(b.Date)
		closes[i] = b.Close.InexactFloat64()
	}

	records := make([]domain.AnalysisRecord, len(sorted))
	for i := range sorted {
		records[i] = domain.AnalysisRecord{
			InstrumentID: sorted[i].InstrumentID,
			Date:         dates[i],
			Close:        closes[i],
		}
	}

	for _, window := range domain.DailyWindows {
		for i, v := range NarrowingMA(closes, window) {
			records[i].SetDailyMA(window, v)
		}
	}

	weekly := ResampleWeekly(dates, closes)
	monthly := ResampleMonthly(dates, closes)
	weeklyMA := StrictMA(closesOf(weekly), domain.WeeklyWindow)
	monthlyMA := StrictMA(closesOf(monthly), domain.MonthlyWindow)
	yearlyMA := StrictMA(closesOf(monthly), domain.YearlyWindow)
	weekIdx := alignIndex(dates, weekly)
	monthIdx := alignIndex(dates, monthly)

	rsi := RSI(closes, domain.RSIPeriod)

	for i := range records {
		if w := weekIdx[i]; w >= 0 {
			records[i].WeeklyMA30 = weeklyMA[w]
		}
		if m := monthIdx[i]; m >= 0 {
			records[i].MonthlyMA12 = monthlyMA[m]
			records[i].YearlyMA36 = yearlyMA[m]
		}
		records[i].RSI14 = rsi[i]
	}

	return records
}

// Aggregator recomputes and persists analysis records for one instrument
// at a time. Callers are responsible for serializing runs per instrument.
type Aggregator struct {
	store   Store
	logger  *slog.Logger
	metrics *infrastructure.DomainMetrics
}

// NewAggregator creates an aggregator. metrics may be nil.
func NewAggregator(store Store, logger *slog.Logger, metrics *infrastructure.DomainMetrics) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		store:   store,
		logger:  logger.With(slog.String("component", "aggregator")),
		metrics: metrics,
	}
}

// Run loads every bar of the instrument, computes its records and replaces
// the stored set. With no bars it returns InsufficientDataError and writes
// nothing. A failed replace leaves the previous records in place.
func (a *Aggregator) Run(ctx context.Context, instrumentID string) (*Result, error) {
	ctx, span := infrastructure.StartSpan(ctx, "analytics.Run", attribute.String("instrument_id", instrumentID))
	defer span.End()

	start := time.Now()
	result, err := a.run(ctx, instrumentID)
	elapsed := time.Since(start)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		a.metrics.RecordAggregation(ctx, resultLabel(err), 0, elapsed)
		a.logger.WarnContext(ctx, "analysis recompute failed",
			slog.String("instrument_id", instrumentID),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
		return nil, err
	}

	result.Duration = elapsed
	span.SetAttributes(attribute.Int("records", result.Records))
	a.metrics.RecordAggregation(ctx, "success", result.Records, elapsed)
	a.logger.InfoContext(ctx, "analysis recomputed",
		slog.String("instrument_id", instrumentID),
		slog.Int("records", result.Records),
		slog.String("from", result.From.Format(domain.DateLayout)),
		slog.String("to", result.To.Format(domain.DateLayout)),
		slog.Duration("elapsed", elapsed))
	return result, nil
}

func (a *Aggregator) run(ctx context.Context, instrumentID string) (*Result, error) {
	bars, err := a.store.ListPriceBars(ctx, instrumentID)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, &apperrors.InsufficientDataError{InstrumentID: instrumentID, Have: 0, Need: 1}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := Compute(bars)
	if err := a.store.ReplaceAnalysis(ctx, instrumentID, records); err != nil {
		return nil, err
	}

	return &Result{
		InstrumentID: instrumentID,
		Records:      len(records),
		From:         records[0].Date,
		To:           records[len(records)-1].Date,
	}, nil
}

func resultLabel(err error) string {
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
