package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans around lifecycle operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer backed by tp. A nil tp uses the global tracer
// provider.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer(instrumentationName)}
}

// Start starts a span named "eventdesk.<op>". eventID may be empty.
func (t *Tracer) Start(ctx context.Context, op, eventID string) (context.Context, trace.Span) {
	var attrs []attribute.KeyValue
	if eventID != "" {
		attrs = append(attrs, attribute.String("event.id", eventID))
	}
	return t.tracer.Start(ctx, "eventdesk."+op,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// End completes span, recording err when set.
func End(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
