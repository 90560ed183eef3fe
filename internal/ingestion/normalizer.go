package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/infrastructure"
	"borsapulse/internal/numparse"
	"borsapulse/pkg/contracts/domain"
)

// BarStore is the persistence the normalizer needs for price bars
type BarStore interface {
	PriceBarExists(ctx context.Context, instrumentID string, date time.Time) (bool, error)
	UpsertPriceBar(ctx context.Context, bar domain.PriceBar) error
}

// Options controls how a table is interpreted
type Options struct {
	HeaderMode HeaderMode
	DateLayout string // empty tries numparse.DayFirstLayouts
}

// Normalizer converts tabular rows into canonical price bars
type Normalizer struct {
	store   BarStore
	logger  *slog.Logger
	metrics *infrastructure.DomainMetrics
}

// NewNormalizer creates a normalizer writing to store. metrics may be nil.
func NewNormalizer(store BarStore, logger *slog.Logger, metrics *infrastructure.DomainMetrics) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		store:   store,
		logger:  logger.With(slog.String("component", "normalizer")),
		metrics: metrics,
	}
}

// Normalize processes every data row of table for one instrument.
//
// A SchemaError is returned before any row is touched when required columns
// cannot be resolved. Per-row failures are recorded in the summary and never
// stop the loop. If ctx is cancelled between rows the partial summary is
// returned together with the context error; rows already upserted stay.
func (n *Normalizer) Normalize(ctx context.Context, instrumentID string, table *Table, opts Options) (*domain.IngestionSummary, error) {
	if opts.HeaderMode == "" {
		opts.HeaderMode = HeaderAuto
	}

	if len(table.Rows) == 0 {
		return nil, &apperrors.SchemaError{Missing: fieldNames(RequiredFields)}
	}

	cols, headerRows, err := resolveLayout(table.Rows[0], opts.HeaderMode, opts.DateLayout)
	if err != nil {
		n.logger.WarnContext(ctx, "column resolution failed",
			slog.String("instrument_id", instrumentID),
			slog.String("header_mode", string(opts.HeaderMode)),
			slog.String("error", err.Error()))
		return nil, err
	}

	n.logger.InfoContext(ctx, "normalizing rows",
		slog.String("instrument_id", instrumentID),
		slog.Int("rows", len(table.Rows)-headerRows),
		slog.Int("header_rows", headerRows),
		slog.Bool("has_change_column", cols.Has(FieldChange)))

	summary := &domain.IngestionSummary{ErrorDetails: []string{}}
	for i := headerRows; i < len(table.Rows); i++ {
		if err := ctx.Err(); err != nil {
			n.logger.WarnContext(ctx, "normalization interrupted",
				slog.String("instrument_id", instrumentID),
				slog.Int("processed", summary.TotalRows),
				slog.String("error", err.Error()))
			return summary, err
		}

		row := table.Rows[i]
		if isBlank(row) {
			continue
		}

		outcome := n.processRow(ctx, instrumentID, table, i, cols, opts)
		summary.Record(outcome)
		n.metrics.RecordIngestionRow(ctx, outcome.Status)

		if outcome.Status == domain.RowError {
			n.logger.DebugContext(ctx, "row rejected",
				slog.String("instrument_id", instrumentID),
				slog.Int("row", outcome.Row),
				slog.String("reason", outcome.Message))
		}
	}

	n.logger.InfoContext(ctx, "normalization complete",
		slog.String("instrument_id", instrumentID),
		slog.Int("success", summary.SuccessCount),
		slog.Int("duplicates", summary.DuplicateCount),
		slog.Int("errors", summary.ErrorCount),
		slog.Float64("processed_ratio", summary.ProcessedRatio))

	return summary, nil
}

// processRow parses and stores one row. Row numbers are 1-based over the
// whole file, so a file with a header reports its first data row as Row 2.
func (n *Normalizer) processRow(ctx context.Context, instrumentID string, table *Table, idx int, cols ColumnMap, opts Options) domain.RowOutcome {
	rowNum := idx + 1
	row := table.Rows[idx]
	fail := func(err error) domain.RowOutcome {
		return domain.RowOutcome{
			Row:     rowNum,
			Status:  domain.RowError,
			Message: fmt.Sprintf("Row %d: %s", rowNum, err.Error()),
		}
	}

	date, err := n.parseDate(cols.Cell(row, FieldDate), table.RawCell(idx, cols[FieldDate]), table.Format, opts.DateLayout)
	if err != nil {
		return fail(err)
	}

	exists, err := n.store.PriceBarExists(ctx, instrumentID, date)
	if err != nil {
		return fail(err)
	}
	if exists {
		return domain.RowOutcome{Row: rowNum, Status: domain.RowDuplicate}
	}

	prices := make(map[Field]float64, 4)
	for _, f := range []Field{FieldOpen, FieldHigh, FieldLow, FieldClose} {
		v, err := numparse.ParseDecimal(cols.Cell(row, f))
		if err != nil {
			return fail(withField(err, f))
		}
		prices[f] = v
	}

	volumeToken := cols.Cell(row, FieldVolume)
	volume, ok := numparse.ParseVolume(volumeToken)
	if !ok {
		return fail(apperrors.NewParseError(string(FieldVolume), volumeToken, nil))
	}

	var change float64
	if cols.Has(FieldChange) {
		change, err = numparse.ParsePercent(cols.Cell(row, FieldChange))
		if err != nil {
			return fail(withField(err, FieldChange))
		}
	} else if prices[FieldOpen] != 0 {
		change = (prices[FieldClose] - prices[FieldOpen]) / prices[FieldOpen] * 100
	}

	bar := domain.PriceBar{
		InstrumentID: instrumentID,
		Date:         date,
		Open:         roundPrice(prices[FieldOpen]),
		High:         roundPrice(prices[FieldHigh]),
		Low:          roundPrice(prices[FieldLow]),
		Close:        roundPrice(prices[FieldClose]),
		Volume:       int64(math.Round(volume)),
		Change:       roundPrice(change),
	}
	if err := n.store.UpsertPriceBar(ctx, bar); err != nil {
		return fail(err)
	}

	return domain.RowOutcome{Row: rowNum, Status: domain.RowSuccess}
}

// parseDate parses a day-first date; Excel date cells whose display format is
// not day-first fall back to the raw serial number.
func (n *Normalizer) parseDate(token, raw string, format Format, layout string) (time.Time, error) {
	date, err := numparse.ParseDate(token, layout)
	if err == nil || format != FormatExcel || raw == "" {
		return date, err
	}

	serial, convErr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if convErr != nil {
		return date, err
	}
	t, convErr := excelize.ExcelDateToTime(serial, false)
	if convErr != nil {
		return date, err
	}
	return domain.NormalizeDate(t), nil
}

func roundPrice(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(domain.PriceScale)
}

// withField relabels a generic numeric parse error with the column it came from
func withField(err error, f Field) error {
	if pe, ok := err.(*apperrors.ParseError); ok {
		return apperrors.NewParseError(string(f), pe.Value, pe.Cause)
	}
	return err
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func fieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return names
}
