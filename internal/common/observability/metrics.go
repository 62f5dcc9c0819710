package observability

import (
	"context"
	"time"

	"circ-exchange/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Observability owns the OpenTelemetry meter and tracer providers. Instruments
// are exported through the Prometheus registry served on /metrics. A zero
// value is usable and records nothing.
type Observability struct {
	meterProvider   *metric.MeterProvider
	jobCounter      otelmetric.Int64Counter
	jobDuration     otelmetric.Float64Histogram
	rankingDuration otelmetric.Float64Histogram
	poolSize        otelmetric.Int64Histogram

	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
}

func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Error("failed to create prometheus exporter", map[string]interface{}{"error": err})
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	rankingDuration, _ := meter.Float64Histogram(
		"matching.rank.duration",
		otelmetric.WithDescription("Time spent scoring and sorting candidates"),
		otelmetric.WithUnit("ms"),
	)
	poolSize, _ := meter.Int64Histogram(
		"matching.pool.size",
		otelmetric.WithDescription("Listings in the pool considered by a ranking"),
	)

	return &Observability{
		meterProvider:   provider,
		jobCounter:      jobCounter,
		jobDuration:     jobDuration,
		rankingDuration: rankingDuration,
		poolSize:        poolSize,
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o == nil || o.jobCounter == nil {
		return
	}
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	if o == nil || o.jobDuration == nil {
		return
	}
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	))
}

// RecordRanking records one ranking call over a pool of poolSize listings.
func (o *Observability) RecordRanking(ctx context.Context, role string, poolSize int, duration time.Duration) {
	if o == nil || o.rankingDuration == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("role", role))
	o.rankingDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if o.poolSize != nil {
		o.poolSize.Record(ctx, int64(poolSize), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
