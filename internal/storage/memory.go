package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"borsapulse/pkg/contracts/domain"
)

// MemoryStore is an in-memory implementation of Store. Values are copied on
// the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	instruments map[string]domain.Instrument
	bySymbol    map[string]string
	bars        map[string]map[string]domain.PriceBar
	analysis    map[string][]domain.AnalysisRecord
	batches     map[string]domain.IngestionBatch
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		instruments: make(map[string]domain.Instrument),
		bySymbol:    make(map[string]string),
		bars:        make(map[string]map[string]domain.PriceBar),
		analysis:    make(map[string][]domain.AnalysisRecord),
		batches:     make(map[string]domain.IngestionBatch),
	}
}

func (s *MemoryStore) CreateInstrument(_ context.Context, inst *domain.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instruments[inst.ID]; exists {
		return fmt.Errorf("instrument %s: %w", inst.ID, ErrDuplicate)
	}
	if _, exists := s.bySymbol[inst.Symbol]; exists {
		return fmt.Errorf("instrument %s: %w", inst.Symbol, ErrDuplicate)
	}

	s.instruments[inst.ID] = *inst
	s.bySymbol[inst.Symbol] = inst.ID
	return nil
}

func (s *MemoryStore) GetInstrument(_ context.Context, id string) (*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, exists := s.instruments[id]
	if !exists {
		return nil, fmt.Errorf("instrument %s: %w", id, ErrNotFound)
	}
	return &inst, nil
}

func (s *MemoryStore) GetInstrumentBySymbol(_ context.Context, symbol string) (*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.bySymbol[symbol]
	if !exists {
		return nil, fmt.Errorf("instrument %s: %w", symbol, ErrNotFound)
	}
	inst := s.instruments[id]
	return &inst, nil
}

func (s *MemoryStore) ListInstruments(_ context.Context) ([]domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Instrument, 0, len(s.instruments))
	for _, inst := range s.instruments {
		result = append(result, inst)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result, nil
}

func (s *MemoryStore) UpdateInstrument(_ context.Context, inst *domain.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.instruments[inst.ID]
	if !exists {
		return fmt.Errorf("instrument %s: %w", inst.ID, ErrNotFound)
	}
	current.Name = inst.Name
	current.Sector = inst.Sector
	current.Description = inst.Description
	current.IsActive = inst.IsActive
	s.instruments[inst.ID] = current
	return nil
}

func (s *MemoryStore) DeleteInstrument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, exists := s.instruments[id]
	if !exists {
		return fmt.Errorf("instrument %s: %w", id, ErrNotFound)
	}

	delete(s.instruments, id)
	delete(s.bySymbol, inst.Symbol)
	delete(s.bars, id)
	delete(s.analysis, id)
	for batchID, b := range s.batches {
		if b.InstrumentID == id {
			delete(s.batches, batchID)
		}
	}
	return nil
}

func (s *MemoryStore) PriceBarExists(_ context.Context, instrumentID string, date time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.bars[instrumentID][domain.NormalizeDate(date).Format(domain.DateLayout)]
	return exists, nil
}

func (s *MemoryStore) UpsertPriceBar(_ context.Context, bar domain.PriceBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bar.Date = domain.NormalizeDate(bar.Date)
	byDate, ok := s.bars[bar.InstrumentID]
	if !ok {
		byDate = make(map[string]domain.PriceBar)
		s.bars[bar.InstrumentID] = byDate
	}
	byDate[bar.DateKey()] = bar
	return nil
}

func (s *MemoryStore) ListPriceBars(_ context.Context, instrumentID string) ([]domain.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDate := s.bars[instrumentID]
	result := make([]domain.PriceBar, 0, len(byDate))
	for _, bar := range byDate {
		result = append(result, bar)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (s *MemoryStore) CountPriceBars(_ context.Context, instrumentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars[instrumentID]), nil
}

func (s *MemoryStore) ReplaceAnalysis(_ context.Context, instrumentID string, records []domain.AnalysisRecord) error {
	replacement := make([]domain.AnalysisRecord, len(records))
	copy(replacement, records)
	sort.Slice(replacement, func(i, j int) bool { return replacement[i].Date.Before(replacement[j].Date) })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis[instrumentID] = replacement
	return nil
}

func (s *MemoryStore) ListAnalysis(_ context.Context, instrumentID string, q domain.AnalysisQuery) ([]domain.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AnalysisRecord, 0, len(s.analysis[instrumentID]))
	for _, r := range s.analysis[instrumentID] {
		if q.Contains(r.Date) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *MemoryStore) CreateBatch(_ context.Context, batch *domain.IngestionBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.ID]; exists {
		return fmt.Errorf("batch %s: %w", batch.ID, ErrDuplicate)
	}
	s.batches[batch.ID] = *batch
	return nil
}

func (s *MemoryStore) UpdateBatch(_ context.Context, batch *domain.IngestionBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.ID]; !exists {
		return fmt.Errorf("batch %s: %w", batch.ID, ErrNotFound)
	}
	s.batches[batch.ID] = *batch
	return nil
}

func (s *MemoryStore) GetBatch(_ context.Context, id string) (*domain.IngestionBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, exists := s.batches[id]
	if !exists {
		return nil, fmt.Errorf("batch %s: %w", id, ErrNotFound)
	}
	return &batch, nil
}

func (s *MemoryStore) ListBatches(_ context.Context, instrumentID string) ([]domain.IngestionBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []domain.IngestionBatch{}
	for _, b := range s.batches {
		if b.InstrumentID == instrumentID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UploadedAt.After(result[j].UploadedAt) })
	return result, nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
