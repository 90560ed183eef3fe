package storage

import (
	"context"
	"errors"
	"time"

	"borsapulse/pkg/contracts/domain"
)

var (
	// ErrNotFound is returned when a looked-up entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key is already taken
	ErrDuplicate = errors.New("already exists")
)

// InstrumentStore persists tradable instruments
type InstrumentStore interface {
	CreateInstrument(ctx context.Context, inst *domain.Instrument) error
	GetInstrument(ctx context.Context, id string) (*domain.Instrument, error)
	GetInstrumentBySymbol(ctx context.Context, symbol string) (*domain.Instrument, error)
	ListInstruments(ctx context.Context) ([]domain.Instrument, error)
	// UpdateInstrument rewrites the mutable fields of an existing instrument.
	// ID, Symbol and CreatedAt are never changed.
	UpdateInstrument(ctx context.Context, inst *domain.Instrument) error
	// DeleteInstrument removes the instrument with its bars, analysis and batches.
	DeleteInstrument(ctx context.Context, id string) error
}

// PriceStore persists daily price bars, unique per (instrument, date)
type PriceStore interface {
	PriceBarExists(ctx context.Context, instrumentID string, date time.Time) (bool, error)
	UpsertPriceBar(ctx context.Context, bar domain.PriceBar) error
	// ListPriceBars returns the instrument's bars in ascending date order.
	ListPriceBars(ctx context.Context, instrumentID string) ([]domain.PriceBar, error)
	CountPriceBars(ctx context.Context, instrumentID string) (int, error)
}

// AnalysisStore persists derived analysis records
type AnalysisStore interface {
	// ReplaceAnalysis atomically swaps every record of the instrument for records.
	ReplaceAnalysis(ctx context.Context, instrumentID string, records []domain.AnalysisRecord) error
	ListAnalysis(ctx context.Context, instrumentID string, q domain.AnalysisQuery) ([]domain.AnalysisRecord, error)
}

// BatchStore persists ingestion batches
type BatchStore interface {
	CreateBatch(ctx context.Context, batch *domain.IngestionBatch) error
	UpdateBatch(ctx context.Context, batch *domain.IngestionBatch) error
	GetBatch(ctx context.Context, id string) (*domain.IngestionBatch, error)
	// ListBatches returns the instrument's batches, newest first.
	ListBatches(ctx context.Context, instrumentID string) ([]domain.IngestionBatch, error)
}

// Store is the complete persistence surface used by the services
type Store interface {
	InstrumentStore
	PriceStore
	AnalysisStore
	BatchStore
	Ping(ctx context.Context) error
	Close() error
}
