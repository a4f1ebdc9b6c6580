package dsqlengine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// This file wires structured logging, tracing, and metrics around each
// pipeline stage (spec §4.6), grounded on the teacher's
// ObservabilityConfig/Metrics/spanWrapper shape. Nothing here is load-bearing
// for correctness — every hook is nil-safe so an Engine built with zero
// EngineOptions runs silently.

const (
	tracerName = "github.com/arllen133/dsqlengine"
	meterName  = "github.com/arllen133/dsqlengine"
)

// Metrics holds the OpenTelemetry instruments the Engine records against.
type Metrics struct {
	QueryCount    metric.Int64Counter
	QueryDuration metric.Float64Histogram
	QueryErrors   metric.Int64Counter
	CacheHits     metric.Int64Counter
	CacheMisses   metric.Int64Counter
}

// ObservabilityConfig holds the Engine's logging/tracing/metrics
// configuration. The zero value disables all three.
type ObservabilityConfig struct {
	Logger             *slog.Logger
	Tracer             trace.Tracer
	Meter              metric.Meter
	Metrics            *Metrics
	SlowQueryThreshold time.Duration
	LogQueries         bool
}

func defaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{
		SlowQueryThreshold: 200 * time.Millisecond,
	}
}

func initMetrics(meter metric.Meter) *Metrics {
	queryCount, _ := meter.Int64Counter("dsqlengine.query.count",
		metric.WithDescription("Total number of DSQL queries executed"),
		metric.WithUnit("{query}"),
	)
	queryDuration, _ := meter.Float64Histogram("dsqlengine.query.duration",
		metric.WithDescription("DSQL pipeline execution duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	queryErrors, _ := meter.Int64Counter("dsqlengine.query.errors",
		metric.WithDescription("Total number of failed DSQL queries"),
		metric.WithUnit("{error}"),
	)
	cacheHits, _ := meter.Int64Counter("dsqlengine.cache.hits",
		metric.WithDescription("Plan and result cache hits"),
		metric.WithUnit("{hit}"),
	)
	cacheMisses, _ := meter.Int64Counter("dsqlengine.cache.misses",
		metric.WithDescription("Plan and result cache misses"),
		metric.WithUnit("{miss}"),
	)
	return &Metrics{
		QueryCount:    queryCount,
		QueryDuration: queryDuration,
		QueryErrors:   queryErrors,
		CacheHits:     cacheHits,
		CacheMisses:   cacheMisses,
	}
}

// spanWrapper wraps trace.Span, tolerating a nil span (tracing disabled) so
// call sites never need a nil check.
type spanWrapper struct {
	span trace.Span
}

func (w spanWrapper) End() {
	if w.span != nil {
		w.span.End()
	}
}

func (w spanWrapper) RecordError(err error) {
	if w.span != nil {
		w.span.RecordError(err)
	}
}

func (w spanWrapper) SetStatus(code codes.Code, description string) {
	if w.span != nil {
		w.span.SetStatus(code, description)
	}
}

func (w spanWrapper) SetAttributes(kv ...attribute.KeyValue) {
	if w.span != nil {
		w.span.SetAttributes(kv...)
	}
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, spanWrapper) {
	if e.obs.Tracer == nil {
		return ctx, spanWrapper{nil}
	}
	ctx, span := e.obs.Tracer.Start(ctx, name)
	return ctx, spanWrapper{span}
}

// instrument wraps one pipeline stage (parse, rls, optimize, generate,
// execute) with a span, a log line, and a metric recording, following the
// teacher's Session.instrument. spanName is the OpenTelemetry span name
// ("dsqlengine.Parse", ...); operation is the short tag used in logs and
// metric attributes ("parse", "rls", "optimize", "generate", "execute").
func (e *Engine) instrument(ctx context.Context, spanName, operation string, fn func() error) error {
	ctx, span := e.startSpan(ctx, spanName)
	defer span.End()

	start := time.Now()
	err := fn()
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	e.logStage(ctx, operation, duration, err)
	e.recordMetrics(ctx, operation, duration, err)

	return err
}

func (e *Engine) recordMetrics(ctx context.Context, operation string, duration time.Duration, err error) {
	if e.obs.Metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("db.operation", operation),
		attribute.String("db.system", e.dialect.Name()),
	)
	e.obs.Metrics.QueryCount.Add(ctx, 1, attrs)
	e.obs.Metrics.QueryDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		e.obs.Metrics.QueryErrors.Add(ctx, 1, attrs)
	}
}

func (e *Engine) recordCacheOutcome(ctx context.Context, cacheName string, hit bool) {
	if e.obs.Metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("cache", cacheName))
	if hit {
		e.obs.Metrics.CacheHits.Add(ctx, 1, attrs)
	} else {
		e.obs.Metrics.CacheMisses.Add(ctx, 1, attrs)
	}
}

func (e *Engine) logStage(ctx context.Context, operation string, duration time.Duration, err error) {
	if e.obs.Logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("stage", operation),
		slog.Duration("duration", duration),
	}

	if err != nil {
		e.obs.Logger.LogAttrs(ctx, slog.LevelError, "dsql stage failed",
			append(attrs, slog.String("error", err.Error()))...)
		return
	}

	if duration > e.obs.SlowQueryThreshold {
		e.obs.Logger.LogAttrs(ctx, slog.LevelWarn, "slow dsql stage", attrs...)
		return
	}

	if e.obs.LogQueries {
		e.obs.Logger.LogAttrs(ctx, slog.LevelDebug, "dsql stage completed", attrs...)
	}
}

// WithDefaultTracer creates a tracer from the global TracerProvider.
func WithDefaultTracer() EngineOption {
	return func(e *Engine) {
		e.obs.Tracer = otel.Tracer(tracerName)
	}
}

// WithTracer sets an explicit tracer.
func WithTracer(tracer trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.obs.Tracer = tracer
	}
}

// WithDefaultMeter creates a meter (and its instruments) from the global
// MeterProvider.
func WithDefaultMeter() EngineOption {
	return func(e *Engine) {
		meter := otel.Meter(meterName)
		e.obs.Meter = meter
		e.obs.Metrics = initMetrics(meter)
	}
}

// WithMeter sets an explicit meter, initializing its instruments.
func WithMeter(meter metric.Meter) EngineOption {
	return func(e *Engine) {
		e.obs.Meter = meter
		e.obs.Metrics = initMetrics(meter)
	}
}

// WithLogger sets the structured logger used for stage logging.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.obs.Logger = logger
	}
}

// WithQueryLogging enables Debug-level logging of every pipeline stage, not
// just slow or failed ones.
func WithQueryLogging(enabled bool) EngineOption {
	return func(e *Engine) {
		e.obs.LogQueries = enabled
	}
}

// WithSlowQueryThreshold overrides the duration above which a stage is
// logged at Warn level regardless of WithQueryLogging.
func WithSlowQueryThreshold(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.obs.SlowQueryThreshold = d
	}
}
