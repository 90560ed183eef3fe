package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"borsapulse/internal/config"
	apperrors "borsapulse/internal/errors"
	"borsapulse/internal/operations"
	"borsapulse/pkg/contracts/domain"
	"borsapulse/pkg/contracts/events"
)

func TestRecomputePublishesCompletion(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()
	inst := env.createInstrument(t, "GARAN")
	env.seedBars(t, inst, 10, 20, 30, 40, 50)

	result, err := env.analysis.Recompute(ctx, "garan")
	require.NoError(t, err)
	assert.Equal(t, 5, result.Records)

	records, err := env.analysis.ListAnalysis(ctx, "GARAN", domain.AnalysisQuery{})
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.InDelta(t, 30.0, records[4].MA5, 1e-9)

	env.publisher.AssertCalled(t, "Publish", mock.Anything, events.TypeAnalysisCompleted,
		mock.MatchedBy(func(p events.AnalysisCompleted) bool {
			return p.Symbol == "GARAN" && p.Records == 5
		}))
}

func TestRecomputeWithoutBarsFails(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	env.createInstrument(t, "EMPTY")

	_, err := env.analysis.Recompute(context.Background(), "EMPTY")
	var insufficient *apperrors.InsufficientDataError
	require.True(t, errors.As(err, &insufficient), "got %v", err)

	env.publisher.AssertCalled(t, "Publish", mock.Anything, events.TypeAnalysisFailed,
		mock.MatchedBy(func(p events.AnalysisFailed) bool {
			return p.Symbol == "EMPTY" && p.Code == "insufficient_data"
		}))
}

func TestListAnalysisDateRange(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()
	inst := env.createInstrument(t, "AKBNK")
	env.seedBars(t, inst, 1, 2, 3, 4, 5, 6)

	_, err := env.analysis.Recompute(ctx, "AKBNK")
	require.NoError(t, err)

	all, err := env.analysis.ListAnalysis(ctx, "AKBNK", domain.AnalysisQuery{})
	require.NoError(t, err)
	require.Len(t, all, 6)

	q := domain.AnalysisQuery{From: all[1].Date, To: all[3].Date}
	ranged, err := env.analysis.ListAnalysis(ctx, "AKBNK", q)
	require.NoError(t, err)
	require.Len(t, ranged, 3)
	assert.Equal(t, all[1].Date, ranged[0].Date)

	_, err = env.analysis.ListAnalysis(ctx, "NOPE", domain.AnalysisQuery{})
	assert.ErrorIs(t, err, ErrInstrumentNotFound)
}

func TestRecomputeAll(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()

	a := env.createInstrument(t, "AKBNK")
	env.seedBars(t, a, 1, 2, 3)
	g := env.createInstrument(t, "GARAN")
	env.seedBars(t, g, 4, 5)
	env.createInstrument(t, "EMPTY")

	result, err := env.analysis.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Instruments)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 5, result.Records)
}

func TestRecomputeAllSkipsInactiveInstruments(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()

	a := env.createInstrument(t, "AKBNK")
	env.seedBars(t, a, 1, 2, 3)
	g := env.createInstrument(t, "GARAN")
	env.seedBars(t, g, 4, 5)

	_, err := env.instrument.SetActive(ctx, "GARAN", false)
	require.NoError(t, err)

	result, err := env.analysis.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Instruments)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 3, result.Records)

	records, err := env.analysis.ListAnalysis(ctx, "GARAN", domain.AnalysisQuery{})
	require.NoError(t, err)
	assert.Empty(t, records)

	// an explicit recompute still works for a deactivated instrument
	single, err := env.analysis.Recompute(ctx, "GARAN")
	require.NoError(t, err)
	assert.Equal(t, 2, single.Records)
}

func TestRecomputeAllCancelled(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	a := env.createInstrument(t, "AKBNK")
	env.seedBars(t, a, 1, 2, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.analysis.RecomputeAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecomputeAsync(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()
	inst := env.createInstrument(t, "THYAO")
	env.seedBars(t, inst, 5, 6, 7)

	job, err := env.analysis.RecomputeAsync(ctx, "THYAO")
	require.NoError(t, err)
	assert.Equal(t, operations.KindRecompute, job.Kind)
	assert.Equal(t, "THYAO", job.Target)

	require.Eventually(t, func() bool {
		got, err := env.analysis.GetJob(ctx, job.ID)
		return err == nil && got.Status == operations.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	env.publisher.AssertCalled(t, "Publish", mock.Anything, events.TypeAnalysisCompleted,
		mock.MatchedBy(func(p events.AnalysisCompleted) bool { return p.JobID == job.ID }))

	_, err = env.analysis.RecomputeAsync(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrInstrumentNotFound)
}

func TestRecomputeAllAsync(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()
	inst := env.createInstrument(t, "THYAO")
	env.seedBars(t, inst, 5, 6, 7)

	job, err := env.analysis.RecomputeAllAsync(ctx)
	require.NoError(t, err)

	var done *operations.Job
	require.Eventually(t, func() bool {
		done, err = env.analysis.GetJob(ctx, job.ID)
		return err == nil && done.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, operations.JobStatusCompleted, done.Status)
	summary, ok := done.Result.(*RecomputeAllResult)
	require.True(t, ok)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestJobLookupErrors(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()

	_, err := env.analysis.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, env.analysis.CancelJob(ctx, "missing"), ErrJobNotFound)
}

func TestAsyncDisabledWithoutQueue(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	svc := NewAnalysisService(env.store, nil, nil, nil, nil, 1, nil)

	_, err := svc.RecomputeAllAsync(context.Background())
	assert.ErrorIs(t, err, ErrAsyncUnavailable)
	_, err = svc.GetJob(context.Background(), "x")
	assert.ErrorIs(t, err, ErrAsyncUnavailable)
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t, config.IngestionConfig{})
	ctx := context.Background()
	inst := env.createInstrument(t, "THYAO")
	env.seedBars(t, inst, 10, 11)

	_, err := env.analysis.Recompute(ctx, "THYAO")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, env.analysis.ExportCSV(ctx, "THYAO", domain.AnalysisQuery{}, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ma_5")
	assert.True(t, strings.HasPrefix(lines[1], "THYAO,"))
}
