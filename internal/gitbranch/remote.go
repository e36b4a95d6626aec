// Package gitbranch publishes the local HEAD to a throwaway branch on a GitHub
// remote so a build can run against uncommitted-to-main work.
package gitbranch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
)

const (
	gitHubHTTPS = "https://github.com/"
	gitHubSSH   = "git@github.com:"
)

// UnsupportedRemoteError reports a remote URL that does not point at GitHub
type UnsupportedRemoteError struct {
	URL string
}

func (e *UnsupportedRemoteError) Error() string {
	return "Unsupported format: " + e.URL
}

// ParseRemoteURL extracts the owner and repository name from a GitHub remote URL.
// Both https://github.com/owner/repo.git and git@github.com:owner/repo.git are accepted.
func ParseRemoteURL(url string) (owner, repo string, err error) {
	var path string
	switch {
	case strings.HasPrefix(url, gitHubHTTPS):
		path = strings.TrimPrefix(url, gitHubHTTPS)
	case strings.HasPrefix(url, gitHubSSH):
		path = strings.TrimPrefix(url, gitHubSSH)
	default:
		return "", "", &UnsupportedRemoteError{URL: url}
	}

	path = strings.TrimSuffix(strings.TrimSuffix(path, "/"), ".git")
	owner, repo, ok := strings.Cut(path, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", &UnsupportedRemoteError{URL: url}
	}
	return owner, repo, nil
}

// Open opens the repository containing path, searching parent directories
func Open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}
	return repo, nil
}

// RemoteURL returns the first URL configured for the named remote
func RemoteURL(repo *git.Repository, name string) (string, error) {
	remote, err := repo.Remote(name)
	if errors.Is(err, git.ErrRemoteNotFound) {
		return "", fmt.Errorf("No remote found named %s", name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read remote %s: %w", name, err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("No remote found named %s", name)
	}
	return urls[0], nil
}

// GitHubInfo resolves the owner and repository of the named remote
func GitHubInfo(repo *git.Repository, remote string) (owner, name string, err error) {
	url, err := RemoteURL(repo, remote)
	if err != nil {
		return "", "", err
	}
	return ParseRemoteURL(url)
}
