package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"borsapulse/pkg/contracts/domain"
)

// Day returns a UTC calendar date
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// BarsFromCloses builds consecutive daily bars starting at start, one per close.
// Open/high/low mirror the close; volume is fixed.
func BarsFromCloses(instrumentID string, start time.Time, closes ...float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, 0, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		bars = append(bars, domain.PriceBar{
			InstrumentID: instrumentID,
			Date:         start.AddDate(0, 0, i),
			Open:         price,
			High:         price,
			Low:          price,
			Close:        price,
			Volume:       1000,
		})
	}
	return bars
}

// TradingDayBars builds bars on weekdays only, starting at start, one per close
func TradingDayBars(instrumentID string, start time.Time, closes ...float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, 0, len(closes))
	d := start
	for _, c := range closes {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		price := decimal.NewFromFloat(c)
		bars = append(bars, domain.PriceBar{
			InstrumentID: instrumentID,
			Date:         d,
			Open:         price,
			High:         price,
			Low:          price,
			Close:        price,
			Volume:       1000,
		})
		d = d.AddDate(0, 0, 1)
	}
	return bars
}

// SampleTurkishCSV is a quoted, locale-formatted export with Turkish headers
const SampleTurkishCSV = "\ufeff\"Tarih\",\"Şimdi\",\"Açılış\",\"Yüksek\",\"Düşük\",\"Hac.\",\"Fark %\"\n" +
	"\"03.01.2024\",\"1.234,50\",\"1.220,00\",\"1.240,00\",\"1.215,25\",\"1,5M\",\"1,19%\"\n" +
	"\"02.01.2024\",\"1.220,00\",\"1.200,00\",\"1.225,00\",\"1.198,00\",\"850,2K\",\"-0,45%\"\n"

// SampleEnglishCSV is an English-header export with thousands commas
const SampleEnglishCSV = "Date,Price,Open,High,Low,Vol.,Change %\n" +
	"05.01.2024,\"1,250.00\",\"1,240.00\",\"1,255.00\",\"1,238.00\",2.1M,0.81%\n" +
	"04.01.2024,\"1,240.00\",\"1,234.50\",\"1,245.00\",\"1,230.00\",900K,0.45%\n"
