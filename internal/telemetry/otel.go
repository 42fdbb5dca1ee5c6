// Package telemetry wires OpenTelemetry into the API client: spans for
// every outbound request and counters fed from the client's round-trip
// log. It is off unless enabled in config.
package telemetry

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/nixlim/fa-top/internal/api"
	"github.com/nixlim/fa-top/internal/config"
)

const instrumentationName = "fa-top.client"

// Runtime holds the configured providers. The zero value and a nil
// *Runtime are valid and do nothing.
type Runtime struct {
	enabled bool

	requestCounter metric.Int64Counter
	failureCounter metric.Int64Counter
	latencyHist    metric.Float64Histogram

	shutdownFns []func(context.Context) error
}

// Setup builds the trace and metric providers described by cfg and
// installs them globally.
func Setup(ctx context.Context, cfg config.TelemetryConfig, serviceVersion string) (*Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	runtime := &Runtime{}
	if !cfg.Enabled {
		return runtime, nil
	}

	endpoint, inferredInsecure, err := normalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	insecure := cfg.Insecure
	if strings.Contains(strings.TrimSpace(cfg.Endpoint), "://") {
		insecure = inferredInsecure
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", strings.TrimSpace(cfg.ServiceName)),
		attribute.String("service.version", strings.TrimSpace(serviceVersion)),
	)

	traceExporter, err := newTraceExporter(ctx, cfg, endpoint, insecure, serviceVersion)
	if err != nil {
		return nil, fmt.Errorf("initialize otel trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	runtime.shutdownFns = append(runtime.shutdownFns, tracerProvider.Shutdown)

	// Metrics only have an HTTP exporter; with gRPC traces they stay
	// in-process.
	if cfg.Protocol == config.ProtocolHTTP {
		metricOptions := []otlpmetrichttp.Option{
			otlpmetrichttp.WithTimeout(cfg.ExportTimeout()),
		}
		if endpoint != "" {
			metricOptions = append(metricOptions, otlpmetrichttp.WithEndpoint(endpoint))
		}
		if insecure {
			metricOptions = append(metricOptions, otlpmetrichttp.WithInsecure())
		}
		metricExporter, err := otlpmetrichttp.New(ctx, metricOptions...)
		if err != nil {
			_ = runtime.Shutdown(context.Background())
			return nil, fmt.Errorf("initialize otel metric exporter: %w", err)
		}
		meterProvider := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
				metricExporter,
				sdkmetric.WithTimeout(cfg.ExportTimeout()),
			)),
		)
		otel.SetMeterProvider(meterProvider)
		runtime.shutdownFns = append(runtime.shutdownFns, meterProvider.Shutdown)
	} else {
		log.Printf("telemetry: metrics export requires protocol %q, only traces are exported", config.ProtocolHTTP)
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})

	runtime.initInstruments(otel.GetMeterProvider())
	runtime.enabled = true
	log.Printf("telemetry enabled (protocol=%s endpoint=%q)", cfg.Protocol, endpoint)

	return runtime, nil
}

func newTraceExporter(ctx context.Context, cfg config.TelemetryConfig, endpoint string, insecure bool, version string) (sdktrace.SpanExporter, error) {
	if cfg.Protocol == config.ProtocolGRPC {
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithTimeout(cfg.ExportTimeout()),
			otlptracegrpc.WithDialOption(grpc.WithUserAgent("fa-top/" + version)),
		}
		if endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
		}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
		}
		return otlptracegrpc.New(ctx, opts...)
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithTimeout(cfg.ExportTimeout()),
	}
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

func (r *Runtime) initInstruments(mp metric.MeterProvider) {
	meter := mp.Meter(instrumentationName)

	var err error
	r.requestCounter, err = meter.Int64Counter(
		"fa_top.api.requests_total",
		metric.WithDescription("Count of backend API requests by operation and status."),
	)
	if err != nil {
		log.Printf("WARNING: failed to create counter fa_top.api.requests_total: %v", err)
	}
	r.failureCounter, err = meter.Int64Counter(
		"fa_top.api.failures_total",
		metric.WithDescription("Count of backend API requests that failed with a network error or non-2xx status."),
	)
	if err != nil {
		log.Printf("WARNING: failed to create counter fa_top.api.failures_total: %v", err)
	}
	r.latencyHist, err = meter.Float64Histogram(
		"fa_top.api.duration_ms",
		metric.WithDescription("Backend API round-trip time."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		log.Printf("WARNING: failed to create histogram fa_top.api.duration_ms: %v", err)
	}
}

// Enabled reports whether instrumentation is active.
func (r *Runtime) Enabled() bool {
	return r != nil && r.enabled
}

// WrapTransport adds a client span around every request sent through base.
func (r *Runtime) WrapTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if !r.Enabled() {
		return base
	}
	return otelhttp.NewTransport(
		base,
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return spanName(req.Method, req.URL.Path)
		}),
	)
}

// LogRoundTrip records the request metrics. It makes Runtime an
// api.Logger so it can sit next to the debug log.
func (r *Runtime) LogRoundTrip(rt api.RoundTrip) {
	if !r.Enabled() {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("operation", rt.Op),
		attribute.String("route", routePattern(rt.Path)),
		attribute.Int("status_code", rt.Status),
	)
	if r.requestCounter != nil {
		r.requestCounter.Add(ctx, 1, attrs)
	}
	failed := rt.Err != nil || rt.Status < 200 || rt.Status > 299
	if failed && r.failureCounter != nil {
		r.failureCounter.Add(ctx, 1, attrs)
	}
	if r.latencyHist != nil {
		r.latencyHist.Record(ctx, float64(rt.Duration.Microseconds())/1000, attrs)
	}
}

// Shutdown flushes and stops the providers in reverse order.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil || len(r.shutdownFns) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for i := len(r.shutdownFns) - 1; i >= 0; i-- {
		if err := r.shutdownFns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// normalizeEndpoint accepts host:port or an http(s) URL. The second
// result is the transport security implied by a URL scheme. An empty
// endpoint leaves the exporter default in place.
func normalizeEndpoint(raw string) (string, bool, error) {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" || !strings.Contains(endpoint, "://") {
		return endpoint, false, nil
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse telemetry endpoint: %w", err)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", false, fmt.Errorf("telemetry endpoint must include host (got %q)", raw)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http":
		return parsed.Host, true, nil
	case "https":
		return parsed.Host, false, nil
	default:
		return "", false, fmt.Errorf("telemetry endpoint scheme must be http or https when provided (got %q)", parsed.Scheme)
	}
}

var (
	rateRoute     = regexp.MustCompile(`^/admin/traces/[^/]+/rate$`)
	benchRunRoute = regexp.MustCompile(`^/admin/bench/runs/[^/]+$`)
)

// routePattern collapses ids out of request paths to keep metric
// cardinality bounded.
func routePattern(path string) string {
	path = strings.TrimSuffix(path, "/")
	switch {
	case rateRoute.MatchString(path):
		return "/admin/traces/{id}/rate"
	case benchRunRoute.MatchString(path):
		return "/admin/bench/runs/{id}"
	case path == "":
		return "/"
	default:
		return path
	}
}

func spanName(method, path string) string {
	if method == "" {
		method = "UNKNOWN"
	}
	return "fa-top " + method + " " + routePattern(path)
}
