package service

import (
	"context"
	"time"

	"ejournal/internal/services/gradesync/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// metrics holds the grade sync instruments
type metrics struct {
	sends   metric.Int64Counter
	latency metric.Float64Histogram
	jobs    metric.Int64Counter
}

func newMetrics(meter metric.Meter) *metrics {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("gradesync")
	}
	m := &metrics{}
	m.sends, _ = meter.Int64Counter("ejournal_gradesync_sends",
		metric.WithDescription("Grade snapshots sent to an LMS by outcome"),
		metric.WithUnit("{snapshot}"))
	m.latency, _ = meter.Float64Histogram("ejournal_gradesync_send_latency",
		metric.WithDescription("Time to deliver one grade snapshot"),
		metric.WithUnit("ms"))
	m.jobs, _ = meter.Int64Counter("ejournal_gradesync_jobs",
		metric.WithDescription("Queued grade sync jobs by outcome"),
		metric.WithUnit("{job}"))
	return m
}

func (m *metrics) send(ctx context.Context, r domain.Result, took time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("protocol", string(r.Protocol)),
		attribute.String("role", string(r.Role)),
		attribute.String("outcome", r.Outcome()))
	if m.sends != nil {
		m.sends.Add(ctx, 1, attrs)
	}
	if m.latency != nil {
		m.latency.Record(ctx, float64(took.Microseconds())/1000, attrs)
	}
}

func (m *metrics) job(ctx context.Context, outcome string) {
	if m.jobs != nil {
		m.jobs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}
