package codebuild

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"
)

// BuildAPI is the subset of the CodeBuild client used to start and observe builds
type BuildAPI interface {
	StartBuild(ctx context.Context, params *codebuild.StartBuildInput, optFns ...func(*codebuild.Options)) (*codebuild.StartBuildOutput, error)
	BatchGetBuilds(ctx context.Context, params *codebuild.BatchGetBuildsInput, optFns ...func(*codebuild.Options)) (*codebuild.BatchGetBuildsOutput, error)
}

// LogsAPI is the subset of the CloudWatch Logs client used to read build output
type LogsAPI interface {
	GetLogEvents(ctx context.Context, params *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

// Environment variable types accepted by CodeBuild. Only plaintext is ever produced here.
const (
	EnvVarTypePlaintext = "PLAINTEXT"
)

// Source type used when overriding the project's source
const SourceTypeGitHub = "GITHUB"

// StatusSucceeded is the terminal build status for a passing build
const StatusSucceeded = "SUCCEEDED"

// EnvironmentVariable is a single variable injected into the build container
type EnvironmentVariable struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
	Type  string `json:"type" yaml:"type"`
}

// BuildRequest is the validated descriptor used to start a build
type BuildRequest struct {
	ProjectName                      string
	SourceVersion                    string
	SourceTypeOverride               string
	SourceLocationOverride           string
	BuildspecOverride                string
	ComputeTypeOverride              string
	EnvironmentTypeOverride          string
	ImageOverride                    string
	ImagePullCredentialsTypeOverride string
	EnvironmentVariables             []EnvironmentVariable

	HideLogs              bool
	DisableSourceOverride bool
	DisableGithubEnvVars  bool
}

// LogStream locates the CloudWatch stream a build writes to
type LogStream struct {
	GroupName  string
	StreamName string
}

// BuildHandle identifies a started build
type BuildHandle struct {
	ID      string
	Logs    LogStream
	HasLogs bool
}

// BuildRecord is the remote system's current view of a build
type BuildRecord struct {
	ID           string     `json:"id" yaml:"id"`
	Status       string     `json:"status" yaml:"status"`
	CurrentPhase string     `json:"currentPhase,omitempty" yaml:"currentPhase,omitempty"`
	StartTime    *time.Time `json:"startTime,omitempty" yaml:"startTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	Logs         LogStream  `json:"-" yaml:"-"`
	HasLogs      bool       `json:"-" yaml:"-"`
}

// Finished reports whether the remote system has recorded an end time
func (r *BuildRecord) Finished() bool {
	return r.EndTime != nil
}

// Succeeded reports whether the build finished with a passing status
func (r *BuildRecord) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Handle returns the handle for the build this record describes
func (r *BuildRecord) Handle() BuildHandle {
	return BuildHandle{ID: r.ID, Logs: r.Logs, HasLogs: r.HasLogs}
}

// LogEvent is a single line of build output
type LogEvent struct {
	Timestamp time.Time
	Message   string
}

// PollConfig controls the cadence of the synchronizer
type PollConfig struct {
	// Interval is the steady-state delay between polls
	Interval time.Duration
	// BackOff is the base delay applied after a throttling error
	BackOff time.Duration
	// MaxBackOff caps the throttling delay. Zero means no ceiling.
	MaxBackOff time.Duration
	// Jitter randomizes the throttling delay by +/- this fraction. Zero means exact.
	Jitter float64
	// MaxDrainPolls bounds the non-empty log polls accepted after the end time
	// has been observed. Zero means unlimited.
	MaxDrainPolls int
}

// DefaultPollConfig returns the cadence used when nothing is configured
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval: 30 * time.Second,
		BackOff:  15 * time.Second,
	}
}

// State is a synchronizer state
type State int

const (
	StatePolling State = iota
	StateBackingOff
	StateSettled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateBackingOff:
		return "backing_off"
	case StateSettled:
		return "settled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
