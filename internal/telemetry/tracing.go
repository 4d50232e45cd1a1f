package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/BaSui01/assetflow"

// StartSpan starts a span on the global tracer. component becomes the span name prefix.
func StartSpan(ctx context.Context, component, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, component+"."+name, trace.WithAttributes(attrs...))
}

// EndSpan records err (if any) and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// PlanInstruments are OTel counters exported alongside the Prometheus collector,
// so OTLP backends see plan outcomes without scraping.
type PlanInstruments struct {
	items    metric.Int64Counter
	failures metric.Int64Counter
}

// NewPlanInstruments creates counters on the global meter provider.
func NewPlanInstruments() (*PlanInstruments, error) {
	m := otel.Meter(instrumentationName)
	items, err := m.Int64Counter("assetflow.plan.items",
		metric.WithDescription("Plan items produced, including failures"))
	if err != nil {
		return nil, err
	}
	failures, err := m.Int64Counter("assetflow.plan.failures",
		metric.WithDescription("Plan items that ended as a Failure"))
	if err != nil {
		return nil, err
	}
	return &PlanInstruments{items: items, failures: failures}, nil
}

// RecordItem counts one plan item for slot.
func (p *PlanInstruments) RecordItem(ctx context.Context, slot string, failed bool) {
	if p == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("slot", slot))
	p.items.Add(ctx, 1, attrs)
	if failed {
		p.failures.Add(ctx, 1, attrs)
	}
}
