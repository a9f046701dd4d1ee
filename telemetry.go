package weave

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "impractical.co/weave"

var tracer = otel.Tracer(instrumentationName)

type instruments struct {
	renders  metric.Int64Counter
	failures metric.Int64Counter
	warnings metric.Int64Counter
}

// meters creates the package's instruments from the global MeterProvider the
// first time they're needed, so a provider installed during program startup
// is picked up.
var meters = sync.OnceValue(func() instruments {
	meter := otel.Meter(instrumentationName)
	return instruments{
		renders:  counter(meter, "weave.renders", "Pages rendered, successfully or not."),
		failures: counter(meter, "weave.render.failures", "Pages that failed to render."),
		warnings: counter(meter, "weave.warnings", "Problems worked around while rendering."),
	}
})

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
		return noop.Int64Counter{}
	}
	return c
}

// recordWarning adds w to the active span and the warnings counter.
func recordWarning(ctx context.Context, w Warning) {
	attrs := []attribute.KeyValue{
		attribute.String("weave.warning.kind", string(w.Kind)),
		attribute.String("weave.warning.name", w.Name),
		attribute.String("weave.warning.scope", w.Scope),
	}
	trace.SpanFromContext(ctx).AddEvent("weave.warning", trace.WithAttributes(attrs...))
	meters().warnings.Add(ctx, 1, metric.WithAttributes(attrs[0]))
}
