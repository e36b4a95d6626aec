package tasklists

import (
	"context"
	"fmt"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/alvesdmateus/codebuild-run-build/internal/ci"
	"github.com/alvesdmateus/codebuild-run-build/internal/observability"
)

// StatusClient reads and writes commit statuses
type StatusClient interface {
	ListStatusContexts(ctx context.Context, owner, repo, ref string) ([]string, error)
	CreateStatus(ctx context.Context, owner, repo, ref string, status Status) error
}

// Target is the pull request head commit statuses are attached to
type Target struct {
	Owner string
	Repo  string
	SHA   string
}

// FromEvent extracts the target and description of a pull request event.
// It reports false for payloads without a pull request.
func FromEvent(payload *ci.EventPayload) (Target, string, bool) {
	if payload == nil || payload.PullRequest == nil {
		return Target{}, "", false
	}

	t := Target{SHA: payload.PullRequest.Head.SHA}
	if payload.Repository != nil {
		t.Owner = payload.Repository.Owner.Login
		t.Repo = payload.Repository.Name
	}
	return t, payload.PullRequest.Body, true
}

// Reporter publishes task list statuses
type Reporter struct {
	client  StatusClient
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewReporter creates a reporter. metrics may be nil.
func NewReporter(client StatusClient, metrics *observability.Metrics, logger zerolog.Logger) *Reporter {
	return &Reporter{
		client:  client,
		metrics: metrics,
		logger:  logger.With().Str("component", "tasklists").Logger(),
	}
}

// Report parses body and creates the resulting statuses on target
func (r *Reporter) Report(ctx context.Context, target Target, body string, reportTasks bool) (_ []Status, err error) {
	ctx, span := observability.GetGlobalTracer().StartSpan(ctx, "tasklists.report",
		trace.WithAttributes(observability.RepoSpanAttributes(target.Owner, target.Repo, target.SHA)...))
	defer func() { observability.EndSpan(span, err) }()

	var existing []string
	if reportTasks {
		contexts, err := r.client.ListStatusContexts(ctx, target.Owner, target.Repo, target.SHA)
		if err != nil {
			return nil, fmt.Errorf("failed to list statuses: %w", err)
		}
		existing = contexts
	}

	tasks := Parse(body)
	statuses := Reconcile(existing, tasks, reportTasks)

	r.logger.Info().
		Str("owner", target.Owner).
		Str("repo", target.Repo).
		Str("sha", target.SHA).
		Int("tasks", len(tasks)).
		Int("statuses", len(statuses)).
		Msg("Reporting task list")

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range statuses {
		g.Go(func() error {
			if err := r.client.CreateStatus(gctx, target.Owner, target.Repo, target.SHA, s); err != nil {
				return fmt.Errorf("failed to create status %q: %w", s.Context, err)
			}
			r.metrics.RecordTaskStatus(s.State)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return statuses, nil
}

// GitHubStatuses implements StatusClient on the GitHub REST API
type GitHubStatuses struct {
	client *github.Client
}

// NewGitHubStatuses wraps client
func NewGitHubStatuses(client *github.Client) *GitHubStatuses {
	return &GitHubStatuses{client: client}
}

// NewGitHubClient creates an authenticated GitHub client whose calls are traced
func NewGitHubClient(token string) *github.Client {
	httpClient := observability.TraceHTTPClient(nil, observability.GetGlobalTracer())
	return github.NewClient(httpClient).WithAuthToken(token)
}

// ListStatusContexts returns the contexts of all statuses on ref, following pagination
func (g *GitHubStatuses) ListStatusContexts(ctx context.Context, owner, repo, ref string) ([]string, error) {
	opts := &github.ListOptions{PerPage: 100}
	var contexts []string
	for {
		statuses, resp, err := g.client.Repositories.ListStatuses(ctx, owner, repo, ref, opts)
		if err != nil {
			return nil, err
		}
		for _, s := range statuses {
			contexts = append(contexts, s.GetContext())
		}
		if resp.NextPage == 0 {
			return contexts, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateStatus creates a single commit status
func (g *GitHubStatuses) CreateStatus(ctx context.Context, owner, repo, ref string, status Status) error {
	rs := &github.RepoStatus{
		Context: github.String(status.Context),
		State:   github.String(status.State),
	}
	if status.Description != "" {
		rs.Description = github.String(status.Description)
	}
	_, _, err := g.client.Repositories.CreateStatus(ctx, owner, repo, ref, rs)
	return err
}
