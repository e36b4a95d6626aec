package commands

import (
	"context"

	"github.com/alvesdmateus/codebuild-run-build/internal/codebuild"
)

// pollConfig derives the waiter settings from configuration
func (a *app) pollConfig() codebuild.PollConfig {
	return codebuild.PollConfig{
		Interval:      a.cfg.Build.UpdateInterval,
		BackOff:       a.cfg.Build.UpdateBackOff,
		MaxBackOff:    a.cfg.Build.MaxBackOff,
		Jitter:        a.cfg.Build.BackOffJitter,
		MaxDrainPolls: a.cfg.Build.MaxDrainPolls,
	}
}

func (a *app) awsOptions() codebuild.AWSOptions {
	return codebuild.AWSOptions{Region: a.cfg.AWS.Region, Profile: a.cfg.AWS.Profile}
}

// withTimeout bounds ctx by build.timeout when one is configured
func (a *app) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Build.Timeout > 0 {
		return context.WithTimeout(ctx, a.cfg.Build.Timeout)
	}
	return context.WithCancel(ctx)
}

// runBuild starts req, follows it to completion and renders the settled record.
// A build that did not succeed is reported as a BuildFailedError alongside its record.
func (a *app) runBuild(ctx context.Context, clients *codebuild.Clients, req *codebuild.BuildRequest) (*codebuild.BuildRecord, error) {
	opts := []codebuild.Option{
		codebuild.WithLogger(a.logger),
		codebuild.WithMetrics(a.metrics),
		codebuild.WithTracer(a.tracer),
	}

	presenter := codebuild.NewPresenter(a.deps.Stdout, req.HideLogs)
	waiter := codebuild.NewWaiter(clients.Builds, clients.Logs, presenter, a.pollConfig(), opts...)
	runner := codebuild.NewRunner(clients.Builds, waiter, opts...)

	record, err := runner.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	a.logger.Info().
		Str("build_id", record.ID).
		Str("status", record.Status).
		Msg("Build settled")

	if err := renderBuild(a.deps.Stdout, a.cfg.Output.Format, record); err != nil {
		return record, err
	}
	if !record.Succeeded() {
		return record, &BuildFailedError{Status: record.Status}
	}
	return record, nil
}
