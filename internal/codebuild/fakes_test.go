package codebuild

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
)

const (
	testBuildID   = "my-project:a1b2c3"
	testLogsARN   = "arn:aws:logs:us-west-2:111122223333:log-group:/aws/codebuild/my-project:log-stream:a1b2c3"
	testLogGroup  = "/aws/codebuild/my-project"
	testLogStream = "a1b2c3"
)

var errSomeAWS = errors.New("Some AWS error")

// batchResponse is one scripted BatchGetBuilds result
type batchResponse struct {
	out *codebuild.BatchGetBuildsOutput
	err error
}

// mockBuilds replays scripted responses, repeating the last one when exhausted
type mockBuilds struct {
	batches []batchResponse
	calls   int

	startOut   *codebuild.StartBuildOutput
	startErr   error
	startInput *codebuild.StartBuildInput
}

func (m *mockBuilds) StartBuild(ctx context.Context, params *codebuild.StartBuildInput, _ ...func(*codebuild.Options)) (*codebuild.StartBuildOutput, error) {
	m.startInput = params
	return m.startOut, m.startErr
}

func (m *mockBuilds) BatchGetBuilds(ctx context.Context, params *codebuild.BatchGetBuildsInput, _ ...func(*codebuild.Options)) (*codebuild.BatchGetBuildsOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := m.calls
	if i >= len(m.batches) {
		i = len(m.batches) - 1
	}
	m.calls++
	r := m.batches[i]
	return r.out, r.err
}

// logResponse is one scripted GetLogEvents result
type logResponse struct {
	out *cloudwatchlogs.GetLogEventsOutput
	err error
}

// mockLogs replays scripted responses and records every request
type mockLogs struct {
	responses []logResponse
	inputs    []*cloudwatchlogs.GetLogEventsInput
}

func (m *mockLogs) GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error) {
	i := len(m.inputs)
	m.inputs = append(m.inputs, params)
	if len(m.responses) == 0 {
		return &cloudwatchlogs.GetLogEventsOutput{}, nil
	}
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	r := m.responses[i]
	return r.out, r.err
}

// recordingSleeper captures requested delays without waiting
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func build(status cbtypes.StatusType, finished bool) *cbtypes.Build {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := &cbtypes.Build{
		Id:           aws.String(testBuildID),
		BuildStatus:  status,
		CurrentPhase: aws.String("BUILD"),
		StartTime:    aws.Time(start),
		Logs: &cbtypes.LogsLocation{
			CloudWatchLogsArn: aws.String(testLogsARN),
		},
	}
	if finished {
		b.EndTime = aws.Time(start.Add(3 * time.Minute))
		b.CurrentPhase = aws.String("COMPLETED")
	}
	return b
}

func batchOf(b *cbtypes.Build) batchResponse {
	return batchResponse{out: &codebuild.BatchGetBuildsOutput{Builds: []cbtypes.Build{*b}}}
}

func running() batchResponse {
	return batchOf(build(cbtypes.StatusTypeInProgress, false))
}

func finished(status cbtypes.StatusType) batchResponse {
	return batchOf(build(status, true))
}

func throttled() batchResponse {
	return batchResponse{err: errors.New("ThrottlingException: Rate exceeded")}
}

func logBatch(token string, messages ...string) logResponse {
	out := &cloudwatchlogs.GetLogEventsOutput{NextForwardToken: aws.String(token)}
	for i, msg := range messages {
		out.Events = append(out.Events, cwtypes.OutputLogEvent{
			Timestamp: aws.Int64(int64(1714564800000 + i)),
			Message:   aws.String(msg),
		})
	}
	return logResponse{out: out}
}
