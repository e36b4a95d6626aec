package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/alvesdmateus/codebuild-run-build/internal/ci"
	"github.com/alvesdmateus/codebuild-run-build/internal/codebuild"
	"github.com/alvesdmateus/codebuild-run-build/internal/gitbranch"
)

type localFlags struct {
	inputs         codebuild.Inputs
	envVars        []string
	updateInterval int
	updateBackOff  int
	hideLogs       bool
}

func newLocalCommand(a *app) *cobra.Command {
	f := &localFlags{}

	cmd := &cobra.Command{
		Use:   "local",
		Short: "Build the current HEAD in CodeBuild",
		Long: `Push HEAD to a throwaway branch on the remote, build that branch in
CodeBuild, stream its logs and delete the branch again.`,
		Example: `  run-build local -p my-project
  run-build local -p my-project -e AWS_REGION,STAGE --remote upstream`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("update-interval") {
				a.cfg.Build.UpdateInterval = time.Duration(f.updateInterval) * time.Second
			}
			if cmd.Flags().Changed("update-backoff") {
				a.cfg.Build.UpdateBackOff = time.Duration(f.updateBackOff) * time.Second
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.runLocal(cmd.Context(), f, cmd.Flags().Changed("hide-logs"))
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.inputs.ProjectName, "project-name", "p", "", "AWS CodeBuild project name")
	flags.StringVarP(&f.inputs.BuildspecOverride, "buildspec-override", "b", "", "path to a buildspec file or an inline buildspec")
	flags.StringVarP(&f.inputs.ComputeTypeOverride, "compute-type-override", "c", "", "compute type for this build")
	flags.StringVar(&f.inputs.EnvironmentTypeOverride, "environment-type-override", "", "build container type for this build")
	flags.StringVarP(&f.inputs.ImageOverride, "image-override", "i", "", "image for this build")
	flags.StringVar(&f.inputs.ImagePullCredentialsTypeOverride, "image-pull-credentials-type-override", "", "CODEBUILD or SERVICE_ROLE")
	flags.StringArrayVarP(&f.envVars, "env-vars-for-codebuild", "e", nil, "environment variables to forward to the build (repeatable, comma separated)")
	flags.StringP("remote", "r", "origin", "remote name to publish to")
	flags.IntVar(&f.updateInterval, "update-interval", 30, "seconds between build status polls")
	flags.IntVar(&f.updateBackOff, "update-backoff", 15, "base seconds of back-off after a rate limit")
	flags.BoolVar(&f.hideLogs, "hide-logs", false, "do not stream CloudWatch logs (default true inside a CodeBuild container)")
	_ = cmd.MarkFlagRequired("project-name")

	return cmd
}

func (a *app) runLocal(ctx context.Context, f *localFlags, hideLogsSet bool) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	repo, err := a.deps.OpenRepository(".")
	if err != nil {
		return err
	}
	publisher, err := a.deps.NewPublisher(repo, a.cfg.Git.Remote, a.cfg.Git.Token, a.logger)
	if err != nil {
		return err
	}
	owner, name, err := publisher.GitHubInfo()
	if err != nil {
		return err
	}

	branch := gitbranch.NewBranchName()
	inputs := f.inputs
	inputs.EnvPassthrough = codebuild.ParseEnvPassthrough(f.envVars...)

	req, err := codebuild.BuildParameters(ci.NewLocal(a.deps.Env, owner, name, branch), inputs)
	if err != nil {
		return err
	}

	clients, err := a.deps.NewClients(ctx, a.awsOptions(), a.deps.Env)
	if err != nil {
		return err
	}
	req.HideLogs = f.hideLogs
	if !hideLogsSet {
		req.HideLogs = clients.InBuildContainer
	}

	if err := publisher.Push(ctx, branch); err != nil {
		return err
	}
	defer func() {
		// the build context may already be cancelled, the branch still has to go
		if err := publisher.Delete(context.WithoutCancel(ctx), branch); err != nil {
			a.logger.Error().Err(err).Str("branch", branch).Msg("Failed to delete remote branch")
		}
	}()

	_, err = a.runBuild(ctx, clients, req)
	return err
}
