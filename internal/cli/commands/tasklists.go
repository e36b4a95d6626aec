package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alvesdmateus/codebuild-run-build/internal/ci"
	"github.com/alvesdmateus/codebuild-run-build/internal/tasklists"
)

func newTasklistsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tasklists",
		Short: "Report pull request task list progress as commit statuses",
		Long: `Read the pull request description from the workflow event and publish a
"Tasklists: Completed" commit status summarizing its checkboxes. With the
report_tasks input set, every task also gets its own status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.runTasklists(cmd.Context()); err != nil {
				return fmt.Errorf("Run failed: %w", err)
			}
			return nil
		},
	}
}

func (a *app) runTasklists(ctx context.Context) error {
	env := a.deps.Env

	token, err := ci.RequireInput(env, "github_token")
	if err != nil {
		return err
	}
	reportTasks := ci.InputBool(env, "report_tasks")

	path, err := ci.RequireEnv(env, "GITHUB_EVENT_PATH")
	if err != nil {
		return err
	}
	payload, err := ci.ReadEventPayload(path)
	if err != nil {
		return err
	}

	target, body, ok := tasklists.FromEvent(payload)
	if !ok {
		a.logger.Info().Msg("Not a pull_request event. Skipping")
		return nil
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	reporter := tasklists.NewReporter(a.deps.NewStatusClient(token), a.metrics, a.logger)
	statuses, err := reporter.Report(ctx, target, body, reportTasks)
	if err != nil {
		return err
	}
	return renderStatuses(a.deps.Stdout, a.cfg.Output.Format, statuses)
}
