package observability

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceHTTPClient wraps an HTTP client transport with tracing.
// A nil client yields a new client on the default transport.
func TraceHTTPClient(client *http.Client, tracer *Tracer) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	client.Transport = &tracingTransport{
		base:   transport,
		tracer: tracer,
	}
	return client
}

// tracingTransport starts a client span per outgoing API call
type tracingTransport struct {
	base   http.RoundTripper
	tracer *Tracer
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	spanName := fmt.Sprintf("HTTP %s %s", req.Method, req.URL.Host)

	ctx, span := t.tracer.StartSpan(req.Context(), spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLScheme(req.URL.Scheme),
			semconv.URLFull(req.URL.Redacted()),
			semconv.ServerAddress(req.URL.Hostname()),
		),
	)
	defer span.End()

	// RoundTrippers must not modify the caller's request
	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, resp.Status)
	}
	return resp, nil
}
