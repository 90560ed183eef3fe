package infrastructure

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeOTelMetricsExposesPrometheus(t *testing.T) {
	var buf bytes.Buffer
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    "borsapulse-test",
		ServiceVersion: "test",
		Environment:    "test",
		EnableMetrics:  true,
	}, NewLogger(&buf, "error", false))
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown(context.Background()) })

	m, err := NewDomainMetrics(providers.Meter)
	require.NoError(t, err)
	m.RecordAggregation(context.Background(), "success", 10, 0)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aggregation_runs_total")
}

func TestInitializeOTelTwiceDoesNotCollide(t *testing.T) {
	cfg := &OTelConfig{ServiceName: "a", ServiceVersion: "v", Environment: "test", EnableMetrics: true}
	for i := 0; i < 2; i++ {
		providers, err := InitializeOTel(cfg, NewLogger(&bytes.Buffer{}, "error", false))
		require.NoError(t, err)
		require.NoError(t, providers.Shutdown(context.Background()))
	}
}

func TestInitializeOTelDisabledUsesNoop(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{ServiceName: "a", Environment: "test"},
		NewLogger(&bytes.Buffer{}, "error", false))
	require.NoError(t, err)

	assert.Nil(t, providers.PrometheusHTTP)
	assert.Nil(t, providers.MeterProvider)
	require.NotNil(t, providers.Meter)
	_, err = NewDomainMetrics(providers.Meter)
	assert.NoError(t, err)
}

func TestStartSpanWithoutProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.NotNil(t, ctx)
	RecordError(ctx, assert.AnError)
}
