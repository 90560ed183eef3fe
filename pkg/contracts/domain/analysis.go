package domain

import (
	"time"

	"github.com/guregu/null/v6"
)

// DailyWindows are the trailing windows, in trading days, of the daily moving averages
var DailyWindows = []int{5, 10, 20, 50, 100, 200}

// Multi-resolution window sizes
const (
	WeeklyWindow  = 30 // weeks
	MonthlyWindow = 12 // months
	YearlyWindow  = 36 // months
	RSIPeriod     = 14 // close-to-close changes
)

// AnalysisRecord holds one day's derived statistics for an instrument.
// Daily averages are never null; the weekly, monthly and yearly aggregates
// stay null until enough resampled history exists.
type AnalysisRecord struct {
	InstrumentID string     `json:"instrument_id"`
	Date         time.Time  `json:"date"`
	Close        float64    `json:"close"`
	MA5          float64    `json:"ma_5"`
	MA10         float64    `json:"ma_10"`
	MA20         float64    `json:"ma_20"`
	MA50         float64    `json:"ma_50"`
	MA100        float64    `json:"ma_100"`
	MA200        float64    `json:"ma_200"`
	WeeklyMA30   null.Float `json:"weekly_ma_30"`
	MonthlyMA12  null.Float `json:"monthly_ma_12"`
	YearlyMA36   null.Float `json:"yearly_ma_36"`
	RSI14        null.Float `json:"rsi_14"`
}

// DailyMA returns the daily moving average for the given window
func (r AnalysisRecord) DailyMA(window int) (float64, bool) {
	switch window {
	case 5:
		return r.MA5, true
	case 10:
		return r.MA10, true
	case 20:
		return r.MA20, true
	case 50:
		return r.MA50, true
	case 100:
		return r.MA100, true
	case 200:
		return r.MA200, true
	}
	return 0, false
}

// SetDailyMA stores the daily moving average for the given window
func (r *AnalysisRecord) SetDailyMA(window int, v float64) {
	switch window {
	case 5:
		r.MA5 = v
	case 10:
		r.MA10 = v
	case 20:
		r.MA20 = v
	case 50:
		r.MA50 = v
	case 100:
		r.MA100 = v
	case 200:
		r.MA200 = v
	}
}

// AnalysisQuery filters analysis records by date range (inclusive, zero means open)
type AnalysisQuery struct {
	From time.Time
	To   time.Time
}

// Contains reports whether d falls inside the query range
func (q AnalysisQuery) Contains(d time.Time) bool {
	if !q.From.IsZero() && d.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && d.After(q.To) {
		return false
	}
	return true
}
