package codebuild

import (
	"github.com/rs/zerolog"

	"github.com/alvesdmateus/codebuild-run-build/internal/observability"
)

type options struct {
	logger  zerolog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// Option configures a Waiter or Runner
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records poll and build metrics
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer overrides the global tracer
func WithTracer(t *observability.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

func newOptions(component string, opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = observability.GetGlobalTracer()
	}
	o.logger = o.logger.With().Str("component", component).Logger()
	return o
}
