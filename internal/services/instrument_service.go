package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/storage"
	"borsapulse/internal/validation"
	"borsapulse/pkg/contracts/domain"
)

// CreateInstrumentRequest is the input of InstrumentService.Create
type CreateInstrumentRequest struct {
	Symbol      string `json:"symbol" validate:"required,symbol"`
	Name        string `json:"name" validate:"required,max=200"`
	Sector      string `json:"sector,omitempty" validate:"max=100"`
	Description string `json:"description,omitempty" validate:"max=2000"`
}

// UpdateInstrumentRequest is the input of InstrumentService.Update. Nil
// fields are left unchanged; the symbol cannot be changed.
type UpdateInstrumentRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Sector      *string `json:"sector,omitempty" validate:"omitempty,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// InstrumentService manages the instrument catalogue
type InstrumentService struct {
	store     storage.Store
	locker    storage.Locker
	validator *validation.Validator
	logger    *slog.Logger
}

// NewInstrumentService creates an instrument service
func NewInstrumentService(store storage.Store, locker storage.Locker, logger *slog.Logger) *InstrumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InstrumentService{
		store:     store,
		locker:    locker,
		validator: validation.New(),
		logger:    logger.With(slog.String("service", "instrument")),
	}
}

// NormalizeSymbol trims and upper-cases a user-supplied symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Create registers a new active instrument
func (s *InstrumentService) Create(ctx context.Context, req CreateInstrumentRequest) (*domain.Instrument, error) {
	req.Symbol = NormalizeSymbol(req.Symbol)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	inst := &domain.Instrument{
		ID:          uuid.NewString(),
		Symbol:      req.Symbol,
		Name:        req.Name,
		Sector:      strings.TrimSpace(req.Sector),
		Description: req.Description,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.CreateInstrument(ctx, inst); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", ErrInstrumentExists, inst.Symbol)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "instrument created",
		slog.String("instrument_id", inst.ID),
		slog.String("symbol", inst.Symbol))
	return inst, nil
}

// List returns every instrument ordered by symbol
func (s *InstrumentService) List(ctx context.Context) ([]domain.Instrument, error) {
	return s.store.ListInstruments(ctx)
}

// Get looks an instrument up by symbol
func (s *InstrumentService) Get(ctx context.Context, symbol string) (*domain.Instrument, error) {
	return lookupInstrument(ctx, s.store, symbol)
}

// Update edits the name, sector, description or active flag of an
// instrument. Inactive instruments are skipped by RecomputeAll.
func (s *InstrumentService) Update(ctx context.Context, symbol string, req UpdateInstrumentRequest) (*domain.Instrument, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	inst, err := lookupInstrument(ctx, s.store, symbol)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.ErrValidation("name", "name must not be empty")
		}
		inst.Name = name
	}
	if req.Sector != nil {
		inst.Sector = strings.TrimSpace(*req.Sector)
	}
	if req.Description != nil {
		inst.Description = *req.Description
	}
	if req.IsActive != nil {
		inst.IsActive = *req.IsActive
	}

	if err := s.store.UpdateInstrument(ctx, inst); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, inst.Symbol)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "instrument updated",
		slog.String("instrument_id", inst.ID),
		slog.String("symbol", inst.Symbol),
		slog.Bool("active", inst.IsActive))
	return inst, nil
}

// SetActive switches an instrument on or off for scheduled recomputes
func (s *InstrumentService) SetActive(ctx context.Context, symbol string, active bool) (*domain.Instrument, error) {
	return s.Update(ctx, symbol, UpdateInstrumentRequest{IsActive: &active})
}

// Delete removes the instrument together with its bars, analysis records
// and batches. It waits for any running ingestion or recompute of the
// instrument to finish first.
func (s *InstrumentService) Delete(ctx context.Context, symbol string) error {
	inst, err := lookupInstrument(ctx, s.store, symbol)
	if err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, lockKey(inst.ID))
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.DeleteInstrument(ctx, inst.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrInstrumentNotFound, inst.Symbol)
		}
		return err
	}

	s.logger.InfoContext(ctx, "instrument deleted",
		slog.String("instrument_id", inst.ID),
		slog.String("symbol", inst.Symbol))
	return nil
}

func lookupInstrument(ctx context.Context, store storage.InstrumentStore, symbol string) (*domain.Instrument, error) {
	symbol = NormalizeSymbol(symbol)
	if !validation.ValidSymbol(symbol) {
		return nil, fmt.Errorf("%w: %q", ErrInstrumentNotFound, symbol)
	}

	inst, err := store.GetInstrumentBySymbol(ctx, symbol)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, symbol)
	}
	return inst, err
}

// lockKey is the Locker key guarding one instrument's bars and records
func lockKey(instrumentID string) string {
	return "instrument:" + instrumentID
}
