package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional digits stored for prices
const PriceScale = 2

// PriceBar is one calendar day of trading data for an instrument.
// At most one bar exists per (InstrumentID, Date).
type PriceBar struct {
	InstrumentID string          `json:"instrument_id"`
	Date         time.Time       `json:"date"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Close        decimal.Decimal `json:"close"`
	Volume       int64           `json:"volume"`
	Change       decimal.Decimal `json:"change"` // percent
}

// DateKey returns the bar date in ISO form, used for map keys and logs
func (b PriceBar) DateKey() string {
	return b.Date.Format(DateLayout)
}

// DateLayout is the canonical calendar date layout used across the API
const DateLayout = "2006-01-02"

// NormalizeDate truncates t to a UTC calendar date
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
