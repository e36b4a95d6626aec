package ci

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// Context describes the CI run a build is triggered from
type Context interface {
	// EventName is the name of the triggering event, e.g. "push" or "pull_request"
	EventName() string
	// Repository returns the repository owner and name
	Repository() (owner, repo string)
	// SHA is the revision that triggered the run
	SHA() string
	// PullRequestHeadSHA is the head revision of the pull request, or "" when absent
	PullRequestHeadSHA() string
	// LookupEnv resolves variables from the run's environment
	LookupEnv(name string) (string, bool)
}

// IsPullRequest reports whether eventName carries a pull request payload
func IsPullRequest(eventName string) bool {
	return eventName == "pull_request" || eventName == "pull_request_target"
}

// EventPayload is the subset of the webhook payload the tools read
type EventPayload struct {
	PullRequest *PullRequest `json:"pull_request,omitempty"`
	Repository  *Repository  `json:"repository,omitempty"`
}

// PullRequest is the pull request section of an event payload
type PullRequest struct {
	Body string `json:"body"`
	Head struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

// Repository is the repository section of an event payload
type Repository struct {
	Name  string `json:"name"`
	Owner struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// ReadEventPayload decodes the webhook payload stored at path
func ReadEventPayload(path string) (*EventPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event payload: %w", err)
	}

	var payload EventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse event payload: %w", err)
	}
	return &payload, nil
}

// GitHubActions is the context of a GitHub Actions workflow run
type GitHubActions struct {
	env       Env
	eventName string
	owner     string
	repo      string
	sha       string
	payload   *EventPayload
}

// FromGitHubActions loads the workflow context from the runner's environment.
// A missing event payload file is tolerated; a malformed one is an error.
func FromGitHubActions(env Env) (*GitHubActions, error) {
	g := &GitHubActions{
		env:       env,
		eventName: Getenv(env, "GITHUB_EVENT_NAME"),
		sha:       Getenv(env, "GITHUB_SHA"),
		payload:   &EventPayload{},
	}

	if full := Getenv(env, "GITHUB_REPOSITORY"); full != "" {
		owner, repo, ok := strings.Cut(full, "/")
		if !ok {
			return nil, fmt.Errorf("invalid GITHUB_REPOSITORY %q: expected owner/repo", full)
		}
		g.owner, g.repo = owner, repo
	}

	if path := Getenv(env, "GITHUB_EVENT_PATH"); path != "" {
		payload, err := ReadEventPayload(path)
		switch {
		case err == nil:
			g.payload = payload
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}
	return g, nil
}

// NewGitHubActions builds a context from already-resolved values
func NewGitHubActions(env Env, eventName, owner, repo, sha string, payload *EventPayload) *GitHubActions {
	if payload == nil {
		payload = &EventPayload{}
	}
	return &GitHubActions{env: env, eventName: eventName, owner: owner, repo: repo, sha: sha, payload: payload}
}

func (g *GitHubActions) EventName() string { return g.eventName }

func (g *GitHubActions) Repository() (string, string) { return g.owner, g.repo }

func (g *GitHubActions) SHA() string { return g.sha }

func (g *GitHubActions) PullRequestHeadSHA() string {
	if g.payload == nil || g.payload.PullRequest == nil {
		return ""
	}
	return g.payload.PullRequest.Head.SHA
}

func (g *GitHubActions) LookupEnv(name string) (string, bool) { return g.env.LookupEnv(name) }

// Payload returns the decoded event payload
func (g *GitHubActions) Payload() *EventPayload { return g.payload }

// Local is the context of a developer-driven run against a throwaway branch
type Local struct {
	env    Env
	owner  string
	repo   string
	branch string
}

// NewLocal creates a context that builds branch of owner/repo
func NewLocal(env Env, owner, repo, branch string) *Local {
	return &Local{env: env, owner: owner, repo: repo, branch: branch}
}

func (l *Local) EventName() string { return "" }

func (l *Local) Repository() (string, string) { return l.owner, l.repo }

func (l *Local) SHA() string { return l.branch }

func (l *Local) PullRequestHeadSHA() string { return "" }

func (l *Local) LookupEnv(name string) (string, bool) { return l.env.LookupEnv(name) }
