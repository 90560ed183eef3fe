package exporter

import (
	"context"
	"io"

	"borsapulse/pkg/contracts/domain"
)

// AnalysisHeaders is the column layout of an analysis export
var AnalysisHeaders = []string{
	"symbol", "date", "close",
	"ma_5", "ma_10", "ma_20", "ma_50", "ma_100", "ma_200",
	"weekly_ma_30", "monthly_ma_12", "yearly_ma_36", "rsi_14",
}

// AnalysisRow renders one record in AnalysisHeaders order
func AnalysisRow(symbol string, r domain.AnalysisRecord) []string {
	return []string{
		symbol,
		r.Date.Format(domain.DateLayout),
		formatFloat(r.Close),
		formatFloat(r.MA5),
		formatFloat(r.MA10),
		formatFloat(r.MA20),
		formatFloat(r.MA50),
		formatFloat(r.MA100),
		formatFloat(r.MA200),
		formatNullFloat(r.WeeklyMA30),
		formatNullFloat(r.MonthlyMA12),
		formatNullFloat(r.YearlyMA36),
		formatNullFloat(r.RSI14),
	}
}

// WriteAnalysis streams records to w as CSV. It stops early when ctx is
// cancelled, which happens when an HTTP client disconnects mid-download.
func WriteAnalysis(ctx context.Context, w io.Writer, symbol string, records []domain.AnalysisRecord) error {
	s, err := NewStreamWriter(w, AnalysisHeaders)
	if err != nil {
		return err
	}

	for i, r := range records {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := s.WriteRecord(AnalysisRow(symbol, r)); err != nil {
			return err
		}
	}
	return s.Close()
}
