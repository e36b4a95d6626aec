package codebuild

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alvesdmateus/codebuild-run-build/internal/observability"
)

// Waiter polls a started build until it has finished and its log stream is drained
type Waiter struct {
	options

	builds    BuildAPI
	logs      LogsAPI
	presenter *Presenter
	config    PollConfig

	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
}

// NewWaiter creates a waiter. A nil presenter discards log output.
func NewWaiter(builds BuildAPI, logs LogsAPI, presenter *Presenter, config PollConfig, opts ...Option) *Waiter {
	if presenter == nil {
		presenter = NewPresenter(nil, true)
	}
	return &Waiter{
		options:   newOptions("codebuild-waiter", opts),
		builds:    builds,
		logs:      logs,
		presenter: presenter,
		config:    config,
		sleep:     sleepContext,
		rand:      rand.Float64,
	}
}

// logCursor is the read position in a build's log stream
type logCursor struct {
	stream LogStream
	token  *string
}

// pollResult is the outcome of a single successful poll cycle
type pollResult struct {
	record *BuildRecord
	events []LogEvent
	cursor logCursor
}

// Wait blocks until the build has an end time and a log poll came back empty.
//
// Throttling errors are retried after an exponentially growing delay. Any other
// error ends the wait and is returned as is. Cancelling ctx ends the wait too.
func (w *Waiter) Wait(ctx context.Context, handle BuildHandle) (*BuildRecord, error) {
	ctx, span := w.tracer.StartSpan(ctx, "codebuild.wait",
		trace.WithAttributes(observability.AttrBuildID.String(handle.ID)))
	defer span.End()

	logger := w.logger.With().Str("build_id", handle.ID).Logger()

	var (
		cursor  = logCursor{stream: handle.Logs}
		retry   int
		drained int
		attempt int
	)

	for {
		attempt++
		result, err := w.poll(ctx, handle.ID, cursor, attempt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, w.fail(span, fmt.Errorf("failed to wait for build %s: %w", handle.ID, ctxErr))
			}
			if !IsThrottling(err) {
				w.metrics.RecordPoll(observability.PollResultError)
				logger.Error().Err(err).Str("state", StateFailed.String()).Msg("Polling build failed")
				return nil, w.fail(span, err)
			}

			delay := backOffDelay(w.config.BackOff, retry, w.config.MaxBackOff, w.config.Jitter, w.rand)
			retry++

			w.metrics.RecordPoll(observability.PollResultThrottled)
			w.metrics.RecordBackOff(delay.Seconds())
			w.tracer.AddEvent(ctx, "throttled",
				observability.AttrPollAttempt.Int(attempt),
				observability.AttrBackOff.Int64(delay.Milliseconds()))
			logger.Warn().
				Err(err).
				Str("state", StateBackingOff.String()).
				Int("retry", retry).
				Dur("backoff_delay", delay).
				Msg("Request throttled, backing off")

			if err := w.sleep(ctx, delay); err != nil {
				return nil, w.fail(span, fmt.Errorf("failed to wait for build %s: %w", handle.ID, err))
			}
			continue
		}

		retry = 0
		cursor = result.cursor
		record := result.record

		w.metrics.RecordPoll(observability.PollResultOK)
		w.metrics.RecordLogEvents(len(result.events))
		w.presenter.Present(result.events)

		if record.Finished() {
			if len(result.events) == 0 {
				return w.settle(span, logger, record), nil
			}
			drained++
			if w.config.MaxDrainPolls > 0 && drained >= w.config.MaxDrainPolls {
				logger.Warn().
					Int("drain_polls", drained).
					Msg("Log stream still producing events after build end, giving up on draining")
				return w.settle(span, logger, record), nil
			}
		}

		logger.Debug().
			Str("state", StatePolling.String()).
			Str("status", record.Status).
			Str("phase", record.CurrentPhase).
			Int("log_events", len(result.events)).
			Msg("Build in progress")

		if err := w.sleep(ctx, w.config.Interval); err != nil {
			return nil, w.fail(span, fmt.Errorf("failed to wait for build %s: %w", handle.ID, err))
		}
	}
}

// poll fetches the build record and the next batch of log events
func (w *Waiter) poll(ctx context.Context, id string, cursor logCursor, attempt int) (*pollResult, error) {
	ctx, span := w.tracer.StartSpan(ctx, "codebuild.poll",
		trace.WithAttributes(
			observability.AttrBuildID.String(id),
			observability.AttrPollAttempt.Int(attempt),
		))
	defer span.End()

	out, err := w.builds.BatchGetBuilds(ctx, &codebuild.BatchGetBuildsInput{Ids: []string{id}})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if out == nil || len(out.Builds) == 0 {
		span.RecordError(ErrBuildNotFound)
		return nil, fmt.Errorf("%w: %s", ErrBuildNotFound, id)
	}

	record := recordFromBuild(&out.Builds[0])
	span.SetAttributes(observability.AttrBuildStatus.String(record.Status))

	if !record.HasLogs {
		return &pollResult{record: record}, nil
	}

	// a new stream is read from the start
	next := cursor
	if next.stream != record.Logs {
		next = logCursor{stream: record.Logs}
	}

	logsOut, err := w.logs.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(record.Logs.GroupName),
		LogStreamName: aws.String(record.Logs.StreamName),
		StartFromHead: aws.Bool(true),
		NextToken:     next.token,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if logsOut == nil {
		return &pollResult{record: record, cursor: next}, nil
	}

	events := make([]LogEvent, 0, len(logsOut.Events))
	for _, e := range logsOut.Events {
		events = append(events, LogEvent{
			Timestamp: time.UnixMilli(aws.ToInt64(e.Timestamp)),
			Message:   aws.ToString(e.Message),
		})
	}
	if logsOut.NextForwardToken != nil {
		next.token = logsOut.NextForwardToken
	}
	span.SetAttributes(observability.AttrLogEvents.Int(len(events)))

	return &pollResult{record: record, events: events, cursor: next}, nil
}

func (w *Waiter) settle(span trace.Span, logger zerolog.Logger, record *BuildRecord) *BuildRecord {
	span.SetAttributes(
		observability.AttrPollState.String(StateSettled.String()),
		observability.AttrBuildStatus.String(record.Status),
	)
	logger.Info().
		Str("state", StateSettled.String()).
		Str("status", record.Status).
		Msg("Build finished")
	return record
}

func (w *Waiter) fail(span trace.Span, err error) error {
	span.SetAttributes(observability.AttrPollState.String(StateFailed.String()))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
