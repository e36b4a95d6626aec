package gitbranch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Publisher pushes HEAD to temporary branches on a remote
type Publisher struct {
	repo   *git.Repository
	remote string
	url    string
	auth   transport.AuthMethod
	logger zerolog.Logger
}

// NewPublisher creates a publisher for the named remote. The token is only
// used for https remotes; ssh remotes authenticate through the ssh agent.
func NewPublisher(repo *git.Repository, remote, token string, logger zerolog.Logger) (*Publisher, error) {
	url, err := RemoteURL(repo, remote)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		repo:   repo,
		remote: remote,
		url:    url,
		logger: logger.With().Str("component", "gitbranch").Str("remote", remote).Logger(),
	}
	if token != "" && strings.HasPrefix(url, "https://") {
		p.auth = &http.BasicAuth{Username: "x-access-token", Password: token}
	}
	return p, nil
}

// NewBranchName returns a unique throwaway branch name
func NewBranchName() string {
	return uuid.New().String()
}

// GitHubInfo resolves the owner and repository the remote points at
func (p *Publisher) GitHubInfo() (owner, repo string, err error) {
	return ParseRemoteURL(p.url)
}

// Push publishes the current HEAD commit as branch on the remote
func (p *Publisher) Push(ctx context.Context, branch string) error {
	head, err := p.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	// a scratch local ref lets a detached HEAD be pushed too
	ref := plumbing.NewBranchReferenceName(branch)
	if err := p.repo.Storer.SetReference(plumbing.NewHashReference(ref, head.Hash())); err != nil {
		return fmt.Errorf("failed to create local branch %s: %w", branch, err)
	}
	defer func() {
		if err := p.repo.Storer.RemoveReference(ref); err != nil {
			p.logger.Warn().Err(err).Str("branch", branch).Msg("Failed to remove local branch")
		}
	}()

	p.logger.Info().
		Str("branch", branch).
		Str("commit", head.Hash().String()).
		Msg("Pushing HEAD")

	err = p.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: p.remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(fmt.Sprintf("%s:%s", ref, ref))},
		Auth:       p.auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push branch %s to %s: %w", branch, p.remote, err)
	}
	return nil
}

// Delete removes branch from the remote
func (p *Publisher) Delete(ctx context.Context, branch string) error {
	ref := plumbing.NewBranchReferenceName(branch)

	p.logger.Info().Str("branch", branch).Msg("Deleting remote branch")

	err := p.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: p.remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(":" + ref.String())},
		Auth:       p.auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to delete branch %s from %s: %w", branch, p.remote, err)
	}
	return nil
}
