package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// GitSyncer implements Syncer with go-git
type GitSyncer struct {
	logger *slog.Logger
}

// NewGitSyncer creates a git backed syncer
func NewGitSyncer(logger *slog.Logger) *GitSyncer {
	return &GitSyncer{logger: logger}
}

// Clone checks out a single branch of url into dir
func (g *GitSyncer) Clone(ctx context.Context, url, branch, dir string) error {
	if url == "" {
		return fmt.Errorf("clone of %s: no clone URL", dir)
	}

	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	if err != nil {
		return fmt.Errorf("clone %s (%s): %w", url, branch, err)
	}

	g.logger.Debug("repository cloned", "url", url, "branch", branch, "path", dir)
	return nil
}

// Pull fast-forwards the working copy in dir from origin
func (g *GitSyncer) Pull(ctx context.Context, dir, branch string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}

	w, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree %s: %w", dir, err)
	}

	err = w.PullContext(ctx, &git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		g.logger.Debug("repository already up to date", "path", dir, "branch", branch)
		return nil
	}
	if err != nil {
		return fmt.Errorf("pull %s (%s): %w", dir, branch, err)
	}

	g.logger.Debug("repository pulled", "path", dir, "branch", branch)
	return nil
}
