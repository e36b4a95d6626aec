package codebuild

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	cbtypes "github.com/aws/aws-sdk-go-v2/service/codebuild/types"
)

// nullComponent is how CodeBuild renders a log group or stream that does not exist yet
const nullComponent = "null"

// ParseLogStream extracts the log group and stream from a CloudWatch Logs ARN such as
// arn:aws:logs:us-west-2:111122223333:log-group:/aws/codebuild/Project:log-stream:1234.
// The second return value is false when the ARN does not name a usable stream.
func ParseLogStream(arn string) (LogStream, bool) {
	if arn == "" {
		return LogStream{}, false
	}

	_, rest, found := strings.Cut(arn, ":log-group:")
	if !found {
		return LogStream{}, false
	}
	group, stream, found := strings.Cut(rest, ":log-stream:")
	if !found {
		return LogStream{}, false
	}

	if group == "" || stream == "" || group == nullComponent || stream == nullComponent {
		return LogStream{}, false
	}
	return LogStream{GroupName: group, StreamName: stream}, true
}

// logStreamFromLocation prefers the ARN and falls back to the explicit group and stream names
func logStreamFromLocation(loc *cbtypes.LogsLocation) (LogStream, bool) {
	if loc == nil {
		return LogStream{}, false
	}
	if ls, ok := ParseLogStream(aws.ToString(loc.CloudWatchLogsArn)); ok {
		return ls, true
	}

	group, stream := aws.ToString(loc.GroupName), aws.ToString(loc.StreamName)
	if group == "" || stream == "" || group == nullComponent || stream == nullComponent {
		return LogStream{}, false
	}
	return LogStream{GroupName: group, StreamName: stream}, true
}

func recordFromBuild(b *cbtypes.Build) *BuildRecord {
	logs, hasLogs := logStreamFromLocation(b.Logs)
	return &BuildRecord{
		ID:           aws.ToString(b.Id),
		Status:       string(b.BuildStatus),
		CurrentPhase: aws.ToString(b.CurrentPhase),
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		Logs:         logs,
		HasLogs:      hasLogs,
	}
}
