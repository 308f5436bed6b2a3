// Package observability wires OpenTelemetry tracing and Prometheus
// metrics for the audit service.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// How long Shutdown waits for exporters to flush.
const shutdownTimeout = 10 * time.Second

// Config selects which telemetry backends to enable and where they
// export to. The zero value disables everything.
type Config struct {
	Enabled        bool
	ServiceName    string
	Environment    string
	OTLPEndpoint   string
	OTLPHeaders    map[string]string
	OTLPInsecure   bool
	MetricsAddress string
}

// Providers bundles the live telemetry handles produced by Init.
// MetricsHandler serves the Prometheus scrape endpoint and Shutdown
// flushes both providers.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Propagator     propagation.TextMapPropagator
	MetricsHandler http.Handler
	Shutdown       func(ctx context.Context) error
	Config         Config
}

var (
	initOnce    sync.Once
	auditTracer trace.Tracer

	auditDuration     metric.Float64Histogram
	auditTotal        metric.Int64Counter
	auditScore        metric.Int64Histogram
	pagespeedDuration metric.Float64Histogram
)

// Init configures tracing and metrics exporters. When cfg.Enabled is
// false the function is a no-op and every recording helper stays
// inert.
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "siteaudit"
	}

	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tracerProvider := newTracerProvider(ctx, cfg, res)
	otel.SetTracerProvider(tracerProvider)

	prop := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(prop)

	registry := newMetricsRegistry()
	promExporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(meterProvider)

	initOnce.Do(func() {
		auditTracer = tracerProvider.Tracer("siteaudit/audit")
		_ = initAuditInstruments(meterProvider)
	})

	return &Providers{
		Config:         cfg,
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Propagator:     prop,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Shutdown:       newShutdownFunc(tracerProvider, meterProvider),
	}, nil
}

// newTracerProvider builds the tracer provider, attaching an OTLP
// batcher when an endpoint is configured. Exporter failures disable
// tracing but never block startup.
func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) *sdktrace.TracerProvider {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if cfg.OTLPEndpoint != "" {
		clientOpts := []otlptracehttp.Option{otlpEndpointOption(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		if len(cfg.OTLPHeaders) > 0 {
			clientOpts = append(clientOpts, otlptracehttp.WithHeaders(cfg.OTLPHeaders))
		}

		exp, err := otlptracehttp.New(ctx, clientOpts...)
		if err != nil {
			log.Warn().Err(err).Str("endpoint", cfg.OTLPEndpoint).
				Msg("OTLP trace exporter failed, traces disabled")
		} else {
			opts = append(opts, sdktrace.WithBatcher(exp))
			log.Info().Str("endpoint", cfg.OTLPEndpoint).Msg("OTLP trace exporter initialised")
		}
	}

	return sdktrace.NewTracerProvider(opts...)
}

// newMetricsRegistry builds a private Prometheus registry seeded with
// the standard process and Go runtime collectors.
func newMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return registry
}

func newShutdownFunc(tp *sdktrace.TracerProvider, mp *sdkmetric.MeterProvider) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		var allErr error
		if err := mp.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("shut down meter provider: %w", err))
		}
		if err := tp.Shutdown(ctx); err != nil {
			allErr = errors.Join(allErr, fmt.Errorf("shut down tracer provider: %w", err))
		}
		return allErr
	}
}

func otlpEndpointOption(endpoint string) otlptracehttp.Option {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return otlptracehttp.WithEndpointURL(endpoint)
	}
	return otlptracehttp.WithEndpoint(endpoint)
}

// WrapHandler adds request tracing around an http.Handler. With nil
// providers the handler is returned untouched, so callers never need
// to branch on whether telemetry is up.
func WrapHandler(handler http.Handler, prov *Providers) http.Handler {
	if prov == nil || prov.TracerProvider == nil {
		return handler
	}

	options := []otelhttp.Option{
		otelhttp.WithTracerProvider(prov.TracerProvider),
		otelhttp.WithPropagators(prov.Propagator),
		otelhttp.WithMeterProvider(prov.MeterProvider),
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}),
		// Health checks are too chatty to trace
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health"
		}),
	}

	return otelhttp.NewHandler(handler, "http.server", options...)
}

func initAuditInstruments(meterProvider *sdkmetric.MeterProvider) error {
	if meterProvider == nil {
		return nil
	}

	meter := meterProvider.Meter("siteaudit/audit")

	var err error
	auditDuration, err = meter.Float64Histogram(
		"siteaudit.audit.duration_ms",
		metric.WithUnit("ms"),
		metric.WithDescription("Time taken to run a full website audit"),
	)
	if err != nil {
		return err
	}

	auditTotal, err = meter.Int64Counter(
		"siteaudit.audit.total",
		metric.WithDescription("Counts audit outcomes by status"),
	)
	if err != nil {
		return err
	}

	auditScore, err = meter.Int64Histogram(
		"siteaudit.audit.score",
		metric.WithUnit("1"),
		metric.WithDescription("Distribution of overall audit scores"),
	)
	if err != nil {
		return err
	}

	pagespeedDuration, err = meter.Float64Histogram(
		"siteaudit.pagespeed.request.duration_ms",
		metric.WithUnit("ms"),
		metric.WithDescription("Time taken by PageSpeed Insights requests"),
	)
	return err
}

// AuditMetrics describes a completed audit for metric recording.
type AuditMetrics struct {
	Status   string
	Score    int
	Duration time.Duration
}

// StartAuditSpan starts a span covering a single audit request.
func StartAuditSpan(ctx context.Context, url string) (context.Context, trace.Span) {
	t := auditTracer
	if t == nil {
		t = otel.Tracer("siteaudit/audit")
	}

	return t.Start(ctx, "audit.run", trace.WithAttributes(
		attribute.String("audit.url", url),
	))
}

// RecordAudit emits audit metrics when instrumentation is initialised.
func RecordAudit(ctx context.Context, metrics AuditMetrics) {
	statusAttr := metric.WithAttributes(attribute.String("audit.status", metrics.Status))

	if auditDuration != nil {
		auditDuration.Record(ctx, float64(metrics.Duration.Milliseconds()), statusAttr)
	}

	if auditTotal != nil {
		auditTotal.Add(ctx, 1, statusAttr)
	}

	if auditScore != nil && metrics.Status == "ok" {
		auditScore.Record(ctx, int64(metrics.Score))
	}
}

// RecordPageSpeedRequest emits the upstream request duration when
// instrumentation is initialised.
func RecordPageSpeedRequest(ctx context.Context, duration time.Duration, status string) {
	if pagespeedDuration != nil {
		pagespeedDuration.Record(ctx, float64(duration.Milliseconds()),
			metric.WithAttributes(attribute.String("request.status", status)))
	}
}
