package codebuild

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/codebuild"

	"github.com/alvesdmateus/codebuild-run-build/internal/ci"
	"github.com/alvesdmateus/codebuild-run-build/internal/observability"
)

// Clients bundles the remote services a build needs
type Clients struct {
	Builds BuildAPI
	Logs   LogsAPI
	// InBuildContainer is set when running inside a CodeBuild container
	InBuildContainer bool
}

// AWSOptions select the AWS region and shared config profile.
// Empty values defer to the SDK's default resolution chain.
type AWSOptions struct {
	Region  string
	Profile string
}

// InBuildContainer reports whether container credentials are exposed to the process
func InBuildContainer(env ci.Env) bool {
	return ci.Getenv(env, "AWS_CONTAINER_CREDENTIALS_FULL_URI") != "" ||
		ci.Getenv(env, "AWS_CONTAINER_CREDENTIALS_RELATIVE_URI") != ""
}

// NewClients loads the shared AWS configuration and creates the service clients
func NewClients(ctx context.Context, opts AWSOptions, env ci.Env) (*Clients, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if tracer := observability.GetGlobalTracer(); tracer.IsEnabled() {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(observability.TraceHTTPClient(nil, tracer)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Clients{
		Builds:           codebuild.NewFromConfig(cfg),
		Logs:             cloudwatchlogs.NewFromConfig(cfg),
		InBuildContainer: InBuildContainer(env),
	}, nil
}
