package codebuild

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvesdmateus/codebuild-run-build/internal/ci"
	"github.com/alvesdmateus/codebuild-run-build/internal/observability"
)

func TestRunner_Run(t *testing.T) {
	builds := &mockBuilds{
		startOut: &codebuild.StartBuildOutput{Build: build(cbtypes.StatusTypeInProgress, false)},
		batches:  []batchResponse{running(), finished(cbtypes.StatusTypeSucceeded)},
	}
	logs := &mockLogs{responses: []logResponse{logBatch("f/1", "hello\n"), logBatch("f/1")}}
	out := &bytes.Buffer{}
	metrics := observability.NewMetrics("test_runner")

	waiter, _ := newTestWaiter(builds, logs, out, DefaultPollConfig())
	runner := NewRunner(builds, waiter, WithMetrics(metrics))

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{start, start.Add(90 * time.Second)}
	runner.now = func() time.Time {
		now := ticks[0]
		ticks = ticks[1:]
		return now
	}

	req, err := BuildParameters(pushContext(ci.MapEnv{}), Inputs{ProjectName: "my-project"})
	require.NoError(t, err)

	record, err := runner.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, testBuildID, record.ID)
	assert.True(t, record.Succeeded())
	assert.Equal(t, "hello\n", out.String())
	assert.Equal(t, "my-project", aws.ToString(builds.startInput.ProjectName))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BuildsTotal.WithLabelValues("my-project", "SUCCEEDED")))
}

func TestRunner_StartError(t *testing.T) {
	builds := &mockBuilds{startErr: errSomeAWS}
	runner := NewRunner(builds, NewWaiter(builds, &mockLogs{}, nil, DefaultPollConfig()))

	req := &BuildRequest{ProjectName: "my-project"}
	_, err := runner.Run(context.Background(), req)

	assert.ErrorIs(t, err, errSomeAWS)
	assert.Contains(t, err.Error(), "Some AWS error")
	assert.Equal(t, 0, builds.calls)
}

func TestRunner_StartWithoutBuild(t *testing.T) {
	builds := &mockBuilds{startOut: &codebuild.StartBuildOutput{}}
	runner := NewRunner(builds, NewWaiter(builds, &mockLogs{}, nil, DefaultPollConfig()))

	_, err := runner.Start(context.Background(), &BuildRequest{ProjectName: "my-project"})

	assert.Error(t, err)
}

func TestRunner_WaitErrorIsReturned(t *testing.T) {
	builds := &mockBuilds{
		startOut: &codebuild.StartBuildOutput{Build: build(cbtypes.StatusTypeInProgress, false)},
		batches:  []batchResponse{{err: errSomeAWS}},
	}
	waiter, _ := newTestWaiter(builds, &mockLogs{}, &bytes.Buffer{}, DefaultPollConfig())
	runner := NewRunner(builds, waiter)

	_, err := runner.Run(context.Background(), &BuildRequest{ProjectName: "my-project"})

	assert.True(t, errors.Is(err, errSomeAWS))
	assert.Equal(t, "Some AWS error", err.Error())
}
