package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"borsapulse/pkg/contracts/domain"
)

// DomainMetrics holds the ingestion, aggregation, job and HTTP instruments.
// A nil *DomainMetrics is valid and records nothing.
type DomainMetrics struct {
	IngestionRows     metric.Int64Counter
	IngestionBatches  metric.Int64Counter
	IngestionDuration metric.Float64Histogram

	AggregationRuns     metric.Int64Counter
	AggregationRecords  metric.Int64Counter
	AggregationDuration metric.Float64Histogram

	Jobs metric.Int64Counter

	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	WSClients       metric.Int64UpDownCounter
	EventsPublished metric.Int64Counter
}

// NewDomainMetrics creates every instrument on meter.
func NewDomainMetrics(meter metric.Meter) (*DomainMetrics, error) {
	m := &DomainMetrics{}
	var err error

	if m.IngestionRows, err = meter.Int64Counter(
		"ingestion_rows_total",
		metric.WithDescription("Rows processed by the ingestion normalizer, by outcome"),
	); err != nil {
		return nil, err
	}
	if m.IngestionBatches, err = meter.Int64Counter(
		"ingestion_batches_total",
		metric.WithDescription("Uploaded files processed, by result"),
	); err != nil {
		return nil, err
	}
	if m.IngestionDuration, err = meter.Float64Histogram(
		"ingestion_duration_seconds",
		metric.WithDescription("Time spent normalizing one uploaded file"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.AggregationRuns, err = meter.Int64Counter(
		"aggregation_runs_total",
		metric.WithDescription("Analysis recomputations, by result"),
	); err != nil {
		return nil, err
	}
	if m.AggregationRecords, err = meter.Int64Counter(
		"aggregation_records_total",
		metric.WithDescription("Analysis records written by recomputations"),
	); err != nil {
		return nil, err
	}
	if m.AggregationDuration, err = meter.Float64Histogram(
		"aggregation_duration_seconds",
		metric.WithDescription("Time spent recomputing one instrument"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.Jobs, err = meter.Int64Counter(
		"jobs_total",
		metric.WithDescription("Background jobs by kind and terminal status"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.WSClients, err = meter.Int64UpDownCounter(
		"websocket_clients",
		metric.WithDescription("Connected event stream clients"),
	); err != nil {
		return nil, err
	}
	if m.EventsPublished, err = meter.Int64Counter(
		"events_published_total",
		metric.WithDescription("Events broadcast to stream clients, by type"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *DomainMetrics) RecordIngestionRow(ctx context.Context, status domain.RowStatus) {
	if m == nil {
		return
	}
	m.IngestionRows.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(status))))
}

// RecordIngestionBatch records one processed file. result is "processed" or
// the error class that rejected it.
func (m *DomainMetrics) RecordIngestionBatch(ctx context.Context, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	m.IngestionBatches.Add(ctx, 1, attrs)
	m.IngestionDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *DomainMetrics) RecordAggregation(ctx context.Context, result string, records int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("result", result))
	m.AggregationRuns.Add(ctx, 1, attrs)
	m.AggregationDuration.Record(ctx, elapsed.Seconds(), attrs)
	if records > 0 {
		m.AggregationRecords.Add(ctx, int64(records))
	}
}

func (m *DomainMetrics) RecordJob(ctx context.Context, kind, status string) {
	if m == nil {
		return
	}
	m.Jobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

func (m *DomainMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *DomainMetrics) HTTPActive(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.HTTPActiveRequests.Add(ctx, delta)
}

func (m *DomainMetrics) WSClientDelta(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.WSClients.Add(ctx, delta)
}

func (m *DomainMetrics) RecordEvent(ctx context.Context, eventType string, delivered int) {
	if m == nil {
		return
	}
	m.EventsPublished.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", eventType),
		attribute.Bool("delivered", delivered > 0),
	))
}
