package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/alvesdmateus/codebuild-run-build/internal/ci"
	"github.com/alvesdmateus/codebuild-run-build/internal/codebuild"
)

// BuildIDOutput is the step output carrying the CodeBuild build id
const BuildIDOutput = "aws-build-id"

func newActionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "action",
		Short: "Run a build as a GitHub Actions step",
		Long: `Start a CodeBuild build for the revision that triggered the workflow.
Inputs are read from INPUT_* variables, the workflow context from GITHUB_*.
The build id is written to the aws-build-id step output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAction(cmd.Context())
		},
	}
}

// actionInputs reads the step's with: block
func actionInputs(env ci.Env) codebuild.Inputs {
	return codebuild.Inputs{
		ProjectName:                      ci.Input(env, "project-name"),
		BuildspecOverride:                ci.Input(env, "buildspec-override"),
		ComputeTypeOverride:              ci.Input(env, "compute-type-override"),
		EnvironmentTypeOverride:          ci.Input(env, "environment-type-override"),
		ImageOverride:                    ci.Input(env, "image-override"),
		ImagePullCredentialsTypeOverride: ci.Input(env, "image-pull-credentials-type-override"),
		EnvPassthrough:                   codebuild.ParseEnvPassthrough(ci.Input(env, "env-vars-for-codebuild")),
		HideLogs:                         ci.InputBool(env, "hide-cloudwatch-logs"),
		DisableSourceOverride:            ci.InputBool(env, "disable-source-override"),
		DisableGithubEnvVars:             ci.InputBool(env, "disable-github-env-vars"),
	}
}

// secondsInput parses an optional whole-seconds input
func secondsInput(env ci.Env, name string) (time.Duration, bool, error) {
	raw := ci.Input(env, name)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, &codebuild.ValidationError{
			Field:   name,
			Message: fmt.Sprintf("invalid %s %q: expected a whole number of seconds", name, raw),
		}
	}
	return time.Duration(n) * time.Second, true, nil
}

func (a *app) runAction(ctx context.Context) error {
	env := a.deps.Env

	if d, ok, err := secondsInput(env, "update-interval"); err != nil {
		return err
	} else if ok {
		a.cfg.Build.UpdateInterval = d
	}
	if d, ok, err := secondsInput(env, "update-back-off"); err != nil {
		return err
	} else if ok {
		a.cfg.Build.UpdateBackOff = d
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	ghContext, err := ci.FromGitHubActions(env)
	if err != nil {
		return err
	}
	req, err := codebuild.BuildParameters(ghContext, actionInputs(env))
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	clients, err := a.deps.NewClients(ctx, a.awsOptions(), env)
	if err != nil {
		return err
	}
	if ci.Input(env, "hide-cloudwatch-logs") == "" {
		req.HideLogs = clients.InBuildContainer
	}

	record, err := a.runBuild(ctx, clients, req)
	if record != nil {
		if _, outErr := ci.SetOutput(env, BuildIDOutput, record.ID); outErr != nil {
			a.logger.Warn().Err(outErr).Msg("Failed to set step output")
		}
	}
	return err
}
