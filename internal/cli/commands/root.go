package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/alvesdmateus/codebuild-run-build/internal/ci"
	"github.com/alvesdmateus/codebuild-run-build/internal/codebuild"
	"github.com/alvesdmateus/codebuild-run-build/internal/gitbranch"
	"github.com/alvesdmateus/codebuild-run-build/internal/observability"
	"github.com/alvesdmateus/codebuild-run-build/internal/tasklists"
	"github.com/alvesdmateus/codebuild-run-build/pkg/config"
)

// Dependencies are the process-level collaborators of the commands.
// Tests replace them with fakes.
type Dependencies struct {
	Env    ci.Env
	Stdout io.Writer
	Stderr io.Writer

	NewClients      func(ctx context.Context, opts codebuild.AWSOptions, env ci.Env) (*codebuild.Clients, error)
	OpenRepository  func(path string) (*git.Repository, error)
	NewPublisher    func(repo *git.Repository, remote, token string, logger zerolog.Logger) (BranchPublisher, error)
	NewStatusClient func(token string) tasklists.StatusClient
}

// BranchPublisher pushes the throwaway branch that local builds run against
type BranchPublisher interface {
	GitHubInfo() (owner, repo string, err error)
	Push(ctx context.Context, branch string) error
	Delete(ctx context.Context, branch string) error
}

func newGitPublisher(repo *git.Repository, remote, token string, logger zerolog.Logger) (BranchPublisher, error) {
	p, err := gitbranch.NewPublisher(repo, remote, token, logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultDependencies wires the real AWS, git and GitHub implementations
func DefaultDependencies() *Dependencies {
	return &Dependencies{
		Env:            ci.OSEnv{},
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		NewClients:     codebuild.NewClients,
		OpenRepository: gitbranch.Open,
		NewPublisher:   newGitPublisher,
		NewStatusClient: func(token string) tasklists.StatusClient {
			return tasklists.NewGitHubStatuses(tasklists.NewGitHubClient(token))
		},
	}
}

// app is the state shared by all subcommands of one invocation
type app struct {
	deps       *Dependencies
	configFile string

	cfg     *config.Config
	logger  zerolog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewRootCommand creates the run-build command tree
func NewRootCommand(deps *Dependencies) *cobra.Command {
	return newRootCommand(newApp(deps))
}

func newApp(deps *Dependencies) *app {
	return &app{deps: deps, logger: zerolog.Nop()}
}

func newRootCommand(a *app) *cobra.Command {
	deps := a.deps
	rootCmd := &cobra.Command{
		Use:   "run-build",
		Short: "run-build - Run an AWS CodeBuild build and follow it to completion",
		Long: `run-build starts an AWS CodeBuild build for a GitHub revision, streams its
CloudWatch log output and exits once the build has finished.

Modes:
  local      push HEAD to a throwaway branch and build it
  action     GitHub Actions entry point, reads INPUT_* and GITHUB_* variables
  tasklists  mirror the pull request task list as commit statuses`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	rootCmd.SetOut(deps.Stdout)
	rootCmd.SetErr(deps.Stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default ./run-build.yaml or ./config/run-build.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.StringP("output", "o", "text", "output format for the final result (text, json, yaml)")
	flags.String("region", "", "AWS region")
	flags.String("profile", "", "AWS shared config profile")
	flags.Duration("timeout", 0, "give up waiting after this long (0 waits forever)")

	rootCmd.AddCommand(newLocalCommand(a))
	rootCmd.AddCommand(newActionCommand(a))
	rootCmd.AddCommand(newTasklistsCommand(a))

	return rootCmd
}

// Execute runs the command line and returns the process exit code
func Execute(ctx context.Context, deps *Dependencies, args []string) int {
	a := newApp(deps)
	rootCmd := newRootCommand(a)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	a.shutdown(ctx)

	if err != nil {
		printError(deps.Stderr, deps.Env, wrapError(err))
		return 1
	}
	return 0
}

// setup loads configuration and initializes logging, tracing and metrics
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	// build output owns stdout, so logs go to stderr
	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, a.deps.Stderr)
	if err != nil {
		return err
	}
	a.logger = logger

	tracingCfg := observability.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Insecure:       cfg.Tracing.Insecure,
	}
	if err := observability.InitGlobalTracer(cmd.Context(), tracingCfg); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracer = observability.GetGlobalTracer()

	a.metrics = observability.NewMetrics("run_build")

	a.logger.Debug().
		Str("command", cmd.Name()).
		Bool("tracing", a.tracer.IsEnabled()).
		Msg("Configuration loaded")
	return nil
}

// shutdown flushes traces and pushes metrics. Failures are only logged.
func (a *app) shutdown(ctx context.Context) {
	if a.cfg == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := a.metrics.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to push metrics")
	}
	if err := observability.ShutdownGlobalTracer(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to shut down tracer")
	}
}
