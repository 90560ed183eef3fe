package storage

import (
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"borsapulse/pkg/contracts/domain"
)

type instrumentModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	Symbol      string `gorm:"size:12;not null;uniqueIndex"`
	Name        string `gorm:"size:200;not null"`
	Sector      string `gorm:"size:100"`
	Description string `gorm:"type:text"`
	IsActive    bool   `gorm:"not null"`
	CreatedAt   time.Time
}

func (instrumentModel) TableName() string { return "instruments" }

type priceBarModel struct {
	ID           uint            `gorm:"primaryKey"`
	InstrumentID string          `gorm:"size:36;not null;uniqueIndex:idx_price_instrument_date,priority:1"`
	Date         time.Time       `gorm:"type:date;not null;uniqueIndex:idx_price_instrument_date,priority:2"`
	Open         decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	High         decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Low          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Close        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Volume       int64           `gorm:"not null"`
	Change       decimal.Decimal `gorm:"column:change_pct;type:decimal(10,2);not null"`
}

func (priceBarModel) TableName() string { return "price_bars" }

type analysisModel struct {
	ID           uint       `gorm:"primaryKey"`
	InstrumentID string     `gorm:"size:36;not null;uniqueIndex:idx_analysis_instrument_date,priority:1"`
	Date         time.Time  `gorm:"type:date;not null;uniqueIndex:idx_analysis_instrument_date,priority:2"`
	Close        float64    `gorm:"not null"`
	MA5          float64    `gorm:"column:ma_5"`
	MA10         float64    `gorm:"column:ma_10"`
	MA20         float64    `gorm:"column:ma_20"`
	MA50         float64    `gorm:"column:ma_50"`
	MA100        float64    `gorm:"column:ma_100"`
	MA200        float64    `gorm:"column:ma_200"`
	WeeklyMA30   null.Float `gorm:"column:weekly_ma_30"`
	MonthlyMA12  null.Float `gorm:"column:monthly_ma_12"`
	YearlyMA36   null.Float `gorm:"column:yearly_ma_36"`
	RSI14        null.Float `gorm:"column:rsi_14"`
}

func (analysisModel) TableName() string { return "analysis_records" }

type batchModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	InstrumentID   string `gorm:"size:36;not null;index"`
	Filename       string `gorm:"size:255;not null"`
	Note           string `gorm:"type:text"`
	UploadedBy     string `gorm:"size:100"`
	UploadedAt     time.Time
	SuccessCount   int
	DuplicateCount int
	ErrorCount     int
	ErrorLog       string `gorm:"type:text"`
	Processed      bool
	ProcessedAt    *time.Time
}

func (batchModel) TableName() string { return "ingestion_batches" }

func toInstrumentModel(i *domain.Instrument) instrumentModel {
	return instrumentModel{
		ID:          i.ID,
		Symbol:      i.Symbol,
		Name:        i.Name,
		Sector:      i.Sector,
		Description: i.Description,
		IsActive:    i.IsActive,
		CreatedAt:   i.CreatedAt,
	}
}

func (m instrumentModel) toDomain() domain.Instrument {
	return domain.Instrument{
		ID:          m.ID,
		Symbol:      m.Symbol,
		Name:        m.Name,
		Sector:      m.Sector,
		Description: m.Description,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
	}
}

func toPriceBarModel(b domain.PriceBar) priceBarModel {
	return priceBarModel{
		InstrumentID: b.InstrumentID,
		Date:         domain.NormalizeDate(b.Date),
		Open:         b.Open,
		High:         b.High,
		Low:          b.Low,
		Close:        b.Close,
		Volume:       b.Volume,
		Change:       b.Change,
	}
}

func (m priceBarModel) toDomain() domain.PriceBar {
	return domain.PriceBar{
		InstrumentID: m.InstrumentID,
		Date:         domain.NormalizeDate(m.Date),
		Open:         m.Open,
		High:         m.High,
		Low:          m.Low,
		Close:        m.Close,
		Volume:       m.Volume,
		Change:       m.Change,
	}
}

func toAnalysisModel(r domain.AnalysisRecord) analysisModel {
	return analysisModel{
		InstrumentID: r.InstrumentID,
		Date:         domain.NormalizeDate(r.Date),
		Close:        r.Close,
		MA5:          r.MA5,
		MA10:         r.MA10,
		MA20:         r.MA20,
		MA50:         r.MA50,
		MA100:        r.MA100,
		MA200:        r.MA200,
		WeeklyMA30:   r.WeeklyMA30,
		MonthlyMA12:  r.MonthlyMA12,
		YearlyMA36:   r.YearlyMA36,
		RSI14:        r.RSI14,
	}
}

func (m analysisModel) toDomain() domain.AnalysisRecord {
	return domain.AnalysisRecord{
		InstrumentID: m.InstrumentID,
		Date:         domain.NormalizeDate(m.Date),
		Close:        m.Close,
		MA5:          m.MA5,
		MA10:         m.MA10,
		MA20:         m.MA20,
		MA50:         m.MA50,
		MA100:        m.MA100,
		MA200:        m.MA200,
		WeeklyMA30:   m.WeeklyMA30,
		MonthlyMA12:  m.MonthlyMA12,
		YearlyMA36:   m.YearlyMA36,
		RSI14:        m.RSI14,
	}
}

func toBatchModel(b *domain.IngestionBatch) batchModel {
	return batchModel{
		ID:             b.ID,
		InstrumentID:   b.InstrumentID,
		Filename:       b.Filename,
		Note:           b.Note,
		UploadedBy:     b.UploadedBy,
		UploadedAt:     b.UploadedAt,
		SuccessCount:   b.SuccessCount,
		DuplicateCount: b.DuplicateCount,
		ErrorCount:     b.ErrorCount,
		ErrorLog:       b.ErrorLog,
		Processed:      b.Processed,
		ProcessedAt:    b.ProcessedAt,
	}
}

func (m batchModel) toDomain() domain.IngestionBatch {
	return domain.IngestionBatch{
		ID:             m.ID,
		InstrumentID:   m.InstrumentID,
		Filename:       m.Filename,
		Note:           m.Note,
		UploadedBy:     m.UploadedBy,
		UploadedAt:     m.UploadedAt,
		SuccessCount:   m.SuccessCount,
		DuplicateCount: m.DuplicateCount,
		ErrorCount:     m.ErrorCount,
		ErrorLog:       m.ErrorLog,
		Processed:      m.Processed,
		ProcessedAt:    m.ProcessedAt,
	}
}
