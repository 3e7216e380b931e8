// Package metrics records OpenTelemetry metrics and spans for lifecycle
// operations. Use New for OTel instruments or Noop when disabled.
package metrics

import (
	"context"
	"time"

	"github.com/alfredjeanlab/eventdesk/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/alfredjeanlab/eventdesk"

// Recorder records lifecycle metrics.
type Recorder interface {
	// RecordOperation records one engine operation with its latency and
	// outcome. Failed operations are tagged with their error kind.
	RecordOperation(ctx context.Context, op string, duration time.Duration, err error)

	// RecordTransition records a status change of a stored event.
	RecordTransition(ctx context.Context, from, to model.Status)

	// RecordPublish records a bus publish attempt.
	RecordPublish(ctx context.Context, topic string, err error)
}

// otelRecorder implements Recorder using OpenTelemetry.
type otelRecorder struct {
	operations  metric.Int64Counter
	latency     metric.Float64Histogram
	errors      metric.Int64Counter
	transitions metric.Int64Counter
	publishes   metric.Int64Counter
}

// New returns a Recorder backed by mp. A nil mp uses the global meter
// provider.
func New(mp metric.MeterProvider) (Recorder, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	operations, err := meter.Int64Counter("eventdesk.operations",
		metric.WithDescription("Number of lifecycle operations"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("eventdesk.operation.latency_ms",
		metric.WithDescription("Lifecycle operation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter("eventdesk.operation.errors",
		metric.WithDescription("Number of failed lifecycle operations"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter("eventdesk.transitions",
		metric.WithDescription("Number of event status transitions"),
	)
	if err != nil {
		return nil, err
	}

	publishes, err := meter.Int64Counter("eventdesk.bus.publishes",
		metric.WithDescription("Number of bus publish attempts"),
	)
	if err != nil {
		return nil, err
	}

	return &otelRecorder{
		operations:  operations,
		latency:     latency,
		errors:      errs,
		transitions: transitions,
		publishes:   publishes,
	}, nil
}

func (m *otelRecorder) RecordOperation(ctx context.Context, op string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("operation", op))
	m.operations.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("kind", string(model.KindOf(err))),
		))
	}
}

func (m *otelRecorder) RecordTransition(ctx context.Context, from, to model.Status) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

func (m *otelRecorder) RecordPublish(ctx context.Context, topic string, err error) {
	m.publishes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.Bool("success", err == nil),
	))
}

// Noop is a Recorder that discards everything.
type Noop struct{}

func (Noop) RecordOperation(context.Context, string, time.Duration, error) {}
func (Noop) RecordTransition(context.Context, model.Status, model.Status) {}
func (Noop) RecordPublish(context.Context, string, error)                  {}
