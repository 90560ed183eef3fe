package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"borsapulse/internal/config"
	apperrors "borsapulse/internal/errors"
	"borsapulse/pkg/contracts/domain"
)

func TestInstrumentServiceCreate(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()

	tests := []struct {
		name    string
		req     CreateInstrumentRequest
		want    string
		wantErr error
		invalid bool
	}{
		{name: "normalizes symbol", req: CreateInstrumentRequest{Symbol: "  thyao ", Name: "Türk Hava Yolları"}, want: "THYAO"},
		{name: "duplicate symbol", req: CreateInstrumentRequest{Symbol: "THYAO", Name: "Again"}, wantErr: ErrInstrumentExists},
		{name: "missing name", req: CreateInstrumentRequest{Symbol: "GARAN"}, invalid: true},
		{name: "bad symbol", req: CreateInstrumentRequest{Symbol: "GAR AN", Name: "Garanti"}, invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := env.instrument.Create(ctx, tt.req)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.invalid:
				var apiErr *apperrors.APIError
				require.True(t, errors.As(err, &apiErr), "got %v", err)
				assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, inst.Symbol)
				assert.True(t, inst.IsActive)
				assert.NotEmpty(t, inst.ID)
			}
		})
	}
}

func TestInstrumentServiceGetAndList(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()
	env.createInstrument(t, "GARAN")
	env.createInstrument(t, "AKBNK")

	got, err := env.instrument.Get(ctx, "garan")
	require.NoError(t, err)
	assert.Equal(t, "GARAN", got.Symbol)

	_, err = env.instrument.Get(ctx, "YOK")
	assert.ErrorIs(t, err, ErrInstrumentNotFound)

	list, err := env.instrument.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "AKBNK", list[0].Symbol)
}

func TestInstrumentServiceUpdate(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()
	created := env.createInstrument(t, "THYAO")

	name := "  Türk Hava Yolları A.O. "
	sector := "Ulaştırma"
	inst, err := env.instrument.Update(ctx, "thyao", UpdateInstrumentRequest{Name: &name, Sector: &sector})
	require.NoError(t, err)
	assert.Equal(t, created.ID, inst.ID)
	assert.Equal(t, "THYAO", inst.Symbol)
	assert.Equal(t, "Türk Hava Yolları A.O.", inst.Name)
	assert.Equal(t, "Ulaştırma", inst.Sector)
	assert.True(t, inst.IsActive)

	inst, err = env.instrument.SetActive(ctx, "THYAO", false)
	require.NoError(t, err)
	assert.False(t, inst.IsActive)

	stored, err := env.instrument.Get(ctx, "THYAO")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, "Türk Hava Yolları A.O.", stored.Name, "nil fields are left unchanged")

	blank := "   "
	_, err = env.instrument.Update(ctx, "THYAO", UpdateInstrumentRequest{Name: &blank})
	var apiErr *apperrors.APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)

	_, err = env.instrument.SetActive(ctx, "YOK", true)
	assert.ErrorIs(t, err, ErrInstrumentNotFound)
}

func TestInstrumentServiceDeleteCascades(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()
	inst := env.createInstrument(t, "THYAO")
	env.seedBars(t, inst, 10, 11, 12)

	_, err := env.analysis.Recompute(ctx, "THYAO")
	require.NoError(t, err)

	require.NoError(t, env.instrument.Delete(ctx, "thyao"))

	_, err = env.instrument.Get(ctx, "THYAO")
	assert.ErrorIs(t, err, ErrInstrumentNotFound)

	count, err := env.store.CountPriceBars(ctx, inst.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	records, err := env.store.ListAnalysis(ctx, inst.ID, domain.AnalysisQuery{})
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.ErrorIs(t, env.instrument.Delete(ctx, "THYAO"), ErrInstrumentNotFound)
}
