package telemetry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	checkout "github.com/aprskavec/stripe-framer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans created by this package
const TracerName = "github.com/aprskavec/stripe-framer/telemetry"

// TracingSink records telemetry on OpenTelemetry spans. Breadcrumbs become
// span events; exceptions are recorded as errors and mark the span failed.
// When ctx carries no recording span a short-lived one is started.
type TracingSink struct {
	tracer trace.Tracer
}

// NewTracingSink creates a sink. A nil provider uses the global one.
func NewTracingSink(provider trace.TracerProvider) *TracingSink {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &TracingSink{tracer: provider.Tracer(TracerName)}
}

func (s *TracingSink) span(ctx context.Context, name string) (trace.Span, func()) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		return span, func() {}
	}
	_, span := s.tracer.Start(ctx, name)
	return span, func() { span.End() }
}

func (s *TracingSink) CaptureException(ctx context.Context, err error, report checkout.ExceptionReport) {
	if err == nil {
		return
	}
	name := "checkout.exception"
	if action := report.Tags["action"]; action != "" {
		name = "checkout." + action
	}
	span, end := s.span(ctx, name)
	defer end()

	attrs := make([]attribute.KeyValue, 0, len(report.Tags)+len(report.Extra)+1)
	if kind := checkout.KindOf(err); kind != "" {
		attrs = append(attrs, attribute.String("checkout.error_kind", string(kind)))
	}
	tags := make(map[string]interface{}, len(report.Tags))
	for k, v := range report.Tags {
		tags[k] = v
	}
	attrs = append(attrs, attributes("checkout.", tags)...)
	attrs = append(attrs, attributes("checkout.extra.", report.Extra)...)

	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

func (s *TracingSink) AddBreadcrumb(ctx context.Context, crumb checkout.Breadcrumb) {
	span, end := s.span(ctx, "checkout."+crumb.Category)
	defer end()

	attrs := []attribute.KeyValue{
		attribute.String("checkout.category", crumb.Category),
		attribute.String("checkout.level", string(crumb.Level)),
	}
	attrs = append(attrs, attributes("checkout.", crumb.Data)...)
	span.AddEvent(crumb.Message, trace.WithAttributes(attrs...))
}

// attributes converts a map to span attributes with sorted, prefixed keys
func attributes(prefix string, values map[string]interface{}) []attribute.KeyValue {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		key := prefix + k
		switch v := values[k].(type) {
		case string:
			out = append(out, attribute.String(key, v))
		case bool:
			out = append(out, attribute.Bool(key, v))
		case int:
			out = append(out, attribute.Int(key, v))
		case int64:
			out = append(out, attribute.Int64(key, v))
		case uint64:
			out = append(out, attribute.Int64(key, int64(v)))
		case float64:
			out = append(out, attribute.Float64(key, v))
		case nil:
		default:
			out = append(out, attribute.String(key, fmt.Sprint(v)))
		}
	}
	return out
}

// TracingConfig configures SetupTracing
type TracingConfig struct {
	ServiceName string
	// Endpoint is the OTLP/HTTP collector URL. Empty disables tracing.
	Endpoint string
	Enabled  bool
}

// SetupTracing installs a global tracer provider exporting over OTLP/HTTP.
//
// Tracing is opt-in: when the endpoint is empty or tracing is disabled it
// returns a no-op shutdown function and registers nothing. The returned
// shutdown flushes pending spans and should be deferred by the caller.
func SetupTracing(ctx context.Context, cfg TracingConfig) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if !cfg.Enabled || strings.TrimSpace(cfg.Endpoint) == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
	)
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "checkout"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
