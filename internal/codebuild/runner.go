package codebuild

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alvesdmateus/codebuild-run-build/internal/observability"
)

// Runner starts builds and waits for them to settle
type Runner struct {
	options

	builds BuildAPI
	waiter *Waiter
	now    func() time.Time
}

// NewRunner creates a runner that hands started builds to waiter
func NewRunner(builds BuildAPI, waiter *Waiter, opts ...Option) *Runner {
	return &Runner{
		options: newOptions("codebuild-runner", opts),
		builds:  builds,
		waiter:  waiter,
		now:     time.Now,
	}
}

// Start submits the build and returns its handle without waiting
func (r *Runner) Start(ctx context.Context, req *BuildRequest) (BuildHandle, error) {
	out, err := r.builds.StartBuild(ctx, req.StartBuildInput())
	if err != nil {
		return BuildHandle{}, fmt.Errorf("failed to start build for project %s: %w", req.ProjectName, err)
	}
	if out == nil || out.Build == nil || aws.ToString(out.Build.Id) == "" {
		return BuildHandle{}, errors.New("failed to start build: response did not include a build")
	}

	record := recordFromBuild(out.Build)

	r.logger.Info().
		Str("build_id", record.ID).
		Str("project", req.ProjectName).
		Str("source_version", req.SourceVersion).
		Msg("Build started")

	return record.Handle(), nil
}

// Run starts the build described by req and waits until it has settled
func (r *Runner) Run(ctx context.Context, req *BuildRequest) (*BuildRecord, error) {
	ctx, span := r.tracer.StartSpan(ctx, "codebuild.run",
		trace.WithAttributes(observability.AttrBuildProject.String(req.ProjectName)))
	defer span.End()

	startedAt := r.now()

	handle, err := r.Start(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(observability.BuildSpanAttributes(handle.ID, req.ProjectName, req.SourceVersion)...)

	record, err := r.waiter.Wait(ctx, handle)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r.metrics.RecordBuild(req.ProjectName, record.Status, r.now().Sub(startedAt).Seconds())
	span.SetAttributes(observability.AttrBuildStatus.String(record.Status))

	return record, nil
}
