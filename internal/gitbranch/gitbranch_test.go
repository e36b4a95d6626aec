package gitbranch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{url: "https://github.com/seebees/aws-codebuild-run-build.git", wantOwner: "seebees", wantRepo: "aws-codebuild-run-build"},
		{url: "git@github.com:seebees/aws-codebuild-run-build.git", wantOwner: "seebees", wantRepo: "aws-codebuild-run-build"},
		{url: "https://github.com/owner/repo", wantOwner: "owner", wantRepo: "repo"},
		{url: "git@github.com:owner/repo", wantOwner: "owner", wantRepo: "repo"},
		{url: "https://gitlab.com/owner/repo.git", wantErr: true},
		{url: "https://github.com/owner", wantErr: true},
		{url: "https://github.com/owner/repo/extra.git", wantErr: true},
		{url: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			owner, repo, err := ParseRemoteURL(tt.url)
			if tt.wantErr {
				var uerr *UnsupportedRemoteError
				require.ErrorAs(t, err, &uerr)
				assert.Equal(t, "Unsupported format: "+tt.url, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}

// initRepo creates a repository with a single commit
func initRepo(t *testing.T) (*git.Repository, string, plumbing.Hash) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "buildspec.yml"), []byte("version: 0.2\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("buildspec.yml")
	require.NoError(t, err)

	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	return repo, dir, hash
}

func addRemote(t *testing.T, repo *git.Repository, name, url string) {
	t.Helper()
	_, err := repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{url}})
	require.NoError(t, err)
}

func TestGitHubInfo(t *testing.T) {
	repo, _, _ := initRepo(t)
	addRemote(t, repo, "origin", "git@github.com:owner/repo.git")
	addRemote(t, repo, "mirror", "https://example.com/owner/repo.git")

	owner, name, err := GitHubInfo(repo, "origin")
	require.NoError(t, err)
	assert.Equal(t, "owner", owner)
	assert.Equal(t, "repo", name)

	_, _, err = GitHubInfo(repo, "fork")
	assert.EqualError(t, err, "No remote found named fork")

	_, _, err = GitHubInfo(repo, "mirror")
	assert.EqualError(t, err, "Unsupported format: https://example.com/owner/repo.git")
}

func TestOpen_DetectsParentRepository(t *testing.T) {
	_, dir, hash := initRepo(t)
	sub := filepath.Join(dir, "nested", "dir")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	repo, err := Open(sub)
	require.NoError(t, err)

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, hash, head.Hash())
}

func TestOpen_NotARepository(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorContains(t, err, "failed to open git repository")
}

func TestNewPublisher_Auth(t *testing.T) {
	repo, _, _ := initRepo(t)
	addRemote(t, repo, "origin", "https://github.com/owner/repo.git")
	addRemote(t, repo, "ssh", "git@github.com:owner/repo.git")

	p, err := NewPublisher(repo, "origin", "ghs_token", zerolog.Nop())
	require.NoError(t, err)
	auth, ok := p.auth.(*http.BasicAuth)
	require.True(t, ok)
	assert.Equal(t, "x-access-token", auth.Username)
	assert.Equal(t, "ghs_token", auth.Password)

	owner, name, err := p.GitHubInfo()
	require.NoError(t, err)
	assert.Equal(t, "owner", owner)
	assert.Equal(t, "repo", name)

	p, err = NewPublisher(repo, "ssh", "ghs_token", zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, p.auth)

	_, err = NewPublisher(repo, "missing", "", zerolog.Nop())
	assert.EqualError(t, err, "No remote found named missing")
}

func TestNewBranchName(t *testing.T) {
	a, b := NewBranchName(), NewBranchName()

	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestPublisher_PushAndDelete(t *testing.T) {
	// local pushes go through git-receive-pack
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	bareDir := t.TempDir()
	bare, err := git.PlainInit(bareDir, true)
	require.NoError(t, err)

	repo, _, hash := initRepo(t)
	addRemote(t, repo, "origin", bareDir)

	p, err := NewPublisher(repo, "origin", "", zerolog.Nop())
	require.NoError(t, err)

	branch := NewBranchName()
	ref := plumbing.NewBranchReferenceName(branch)
	ctx := context.Background()

	require.NoError(t, p.Push(ctx, branch))

	remoteRef, err := bare.Reference(ref, true)
	require.NoError(t, err)
	assert.Equal(t, hash, remoteRef.Hash())

	// the scratch local ref does not outlive the push
	_, err = repo.Reference(ref, true)
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)

	require.NoError(t, p.Delete(ctx, branch))

	_, err = bare.Reference(ref, true)
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
}
