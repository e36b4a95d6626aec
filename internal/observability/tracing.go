package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/alvesdmateus/codebuild-run-build"

// TracingConfig selects where run-build sends its spans
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// Environment is reported as deployment.environment, e.g. ci or local
	Environment  string
	OTLPEndpoint string
	// SampleRate is the fraction of runs traced, 0.0 to 1.0
	SampleRate float64
	Insecure   bool
}

// Tracer starts spans for one run-build invocation
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer creates a tracer. When tracing is disabled the tracer is a no-op
// and nothing is exported.
func NewTracer(ctx context.Context, config TracingConfig) (*Tracer, error) {
	if !config.Enabled {
		return &Tracer{tracer: otel.Tracer(instrumentationName)}, nil
	}

	exporter, err := newExporter(ctx, config)
	if err != nil {
		return nil, err
	}
	res, err := newResource(ctx, config)
	if err != nil {
		return nil, err
	}

	// the process exits right after the build settles, so export as spans end
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler(config.SampleRate))),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{provider: provider, tracer: provider.Tracer(instrumentationName)}, nil
}

func newExporter(ctx context.Context, config TracingConfig) (*otlptrace.Exporter, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// newResource uses resource.New rather than merging with resource.Default,
// which fails on schema URL mismatches
func newResource(ctx context.Context, config TracingConfig) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes pending spans
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// StartSpan starts a new span with the given name
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// AddEvent adds an event to the span in ctx
func (t *Tracer) AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// IsEnabled reports whether spans are exported
func (t *Tracer) IsEnabled() bool {
	return t.provider != nil
}

// Span attribute keys
const (
	AttrBuildID      = attribute.Key("build.id")
	AttrBuildProject = attribute.Key("build.project")
	AttrBuildStatus  = attribute.Key("build.status")
	AttrBuildSource  = attribute.Key("build.source_version")

	AttrPollAttempt = attribute.Key("poll.attempt")
	AttrPollState   = attribute.Key("poll.state")
	AttrLogEvents   = attribute.Key("poll.log_events")
	AttrBackOff     = attribute.Key("poll.backoff_ms")

	AttrRepoOwner = attribute.Key("repo.owner")
	AttrRepoName  = attribute.Key("repo.name")
	AttrRepoRef   = attribute.Key("repo.ref")
)

// BuildSpanAttributes describes a started build
func BuildSpanAttributes(buildID, project, sourceVersion string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrBuildID.String(buildID),
		AttrBuildProject.String(project),
		AttrBuildSource.String(sourceVersion),
	}
}

// RepoSpanAttributes describes a repository revision
func RepoSpanAttributes(owner, repo, ref string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRepoOwner.String(owner),
		AttrRepoName.String(repo),
		AttrRepoRef.String(ref),
	}
}

var globalTracer *Tracer

// InitGlobalTracer creates the process-wide tracer
func InitGlobalTracer(ctx context.Context, config TracingConfig) error {
	tracer, err := NewTracer(ctx, config)
	if err != nil {
		return err
	}
	globalTracer = tracer
	return nil
}

// GetGlobalTracer returns the process-wide tracer, or a no-op tracer before InitGlobalTracer
func GetGlobalTracer() *Tracer {
	if globalTracer == nil {
		return &Tracer{tracer: otel.Tracer(instrumentationName)}
	}
	return globalTracer
}

// ShutdownGlobalTracer flushes the process-wide tracer
func ShutdownGlobalTracer(ctx context.Context) error {
	if globalTracer == nil {
		return nil
	}
	return globalTracer.Shutdown(ctx)
}
