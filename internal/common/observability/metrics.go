// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"

	"homewise/internal/common/logger"
)

// Observability owns the OpenTelemetry meter provider. Its instruments are exported
// through Prometheus and it records model calls for the llm package.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	tracer        trace.Tracer
	modelCalls    otelmetric.Int64Counter
	modelDuration otelmetric.Float64Histogram
	tasksCreated  otelmetric.Int64Counter
}

// New registers the exporter with the default Prometheus registry.
func New(serviceName string, log logger.Logger) *Observability {
	return NewWithRegisterer(serviceName, promclient.DefaultRegisterer, log)
}

// NewWithRegisterer is New with an explicit registry. A failed exporter yields a
// no-op Observability rather than an error.
func NewWithRegisterer(serviceName string, reg promclient.Registerer, log logger.Logger) *Observability {
	o := &Observability{tracer: otel.Tracer(serviceName)}

	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	modelCalls, _ := meter.Int64Counter(
		"model.calls",
		otelmetric.WithDescription("Number of model generations by flow and outcome"),
	)

	modelDuration, _ := meter.Float64Histogram(
		"model.duration",
		otelmetric.WithDescription("Model generation latency"),
		otelmetric.WithUnit("ms"),
	)

	tasksCreated, _ := meter.Int64Counter(
		"tasks.created",
		otelmetric.WithDescription("Maintenance tasks created from predictions and reminders"),
	)

	o.meterProvider = provider
	o.meter = meter
	o.modelCalls = modelCalls
	o.modelDuration = modelDuration
	o.tasksCreated = tasksCreated
	return o
}

// Tracer returns the service tracer.
func (o *Observability) Tracer() trace.Tracer {
	return o.tracer
}

// RecordModelCall implements llm.Recorder.
func (o *Observability) RecordModelCall(ctx context.Context, flow, provider, outcome string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	)
	if o.modelCalls != nil {
		o.modelCalls.Add(ctx, 1, attrs)
	}
	if o.modelDuration != nil {
		o.modelDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

// RecordTaskCreated counts a stored maintenance task by its source.
func (o *Observability) RecordTaskCreated(ctx context.Context, source string) {
	if o.tasksCreated != nil {
		o.tasksCreated.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("source", source),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
