package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Poll results
const (
	PollResultOK        = "ok"
	PollResultThrottled = "throttled"
	PollResultError     = "error"
)

// Metrics holds the Prometheus metrics of one run-build invocation.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Build metrics
	BuildsTotal   *prometheus.CounterVec
	BuildDuration *prometheus.HistogramVec

	// Synchronizer metrics
	PollsTotal     *prometheus.CounterVec
	BackOffSeconds prometheus.Histogram
	LogEventsTotal prometheus.Counter

	// Task list metrics
	TaskStatusesTotal *prometheus.CounterVec
}

// NewMetrics creates all metrics on a private registry
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "run_build"
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		BuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_total",
				Help:      "Total number of builds waited for, by final status",
			},
			[]string{"project", "status"},
		),
		BuildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Wall-clock time from build start until the build settled",
				Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
			},
			[]string{"project", "status"},
		),
		PollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Total number of status/log poll cycles, by result",
			},
			[]string{"result"},
		),
		BackOffSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backoff_seconds",
				Help:      "Delays applied after throttling errors",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		LogEventsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_events_total",
				Help:      "Total number of build log events retrieved",
			},
		),
		TaskStatusesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_statuses_total",
				Help:      "Total number of task list commit statuses created, by state",
			},
			[]string{"state"},
		),
	}
}

// Registry returns the registry all metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordBuild records a settled build
func (m *Metrics) RecordBuild(project, status string, seconds float64) {
	if m == nil {
		return
	}
	m.BuildsTotal.WithLabelValues(project, status).Inc()
	m.BuildDuration.WithLabelValues(project, status).Observe(seconds)
}

// RecordPoll records the outcome of one poll cycle
func (m *Metrics) RecordPoll(result string) {
	if m == nil {
		return
	}
	m.PollsTotal.WithLabelValues(result).Inc()
}

// RecordBackOff records a throttling delay
func (m *Metrics) RecordBackOff(seconds float64) {
	if m == nil {
		return
	}
	m.BackOffSeconds.Observe(seconds)
}

// RecordLogEvents records retrieved log events
func (m *Metrics) RecordLogEvents(count int) {
	if m == nil || count == 0 {
		return
	}
	m.LogEventsTotal.Add(float64(count))
}

// RecordTaskStatus records a created commit status
func (m *Metrics) RecordTaskStatus(state string) {
	if m == nil {
		return
	}
	m.TaskStatusesTotal.WithLabelValues(state).Inc()
}

// Push sends the collected metrics to a Prometheus Pushgateway
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
