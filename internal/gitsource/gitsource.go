// Package gitsource keeps local checkouts of git-hosted deck
// repositories up to date.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Sync clones the repository at url into localPath, or pulls the latest
// changes if a checkout already exists there.
func Sync(ctx context.Context, url, localPath string) error {
	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		slog.Info("cloning deck repository", "url", url, "path", localPath)
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{URL: url})
		if err != nil {
			return fmt.Errorf("clone %s: %w", url, err)
		}
		return nil

	case err != nil:
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return fmt.Errorf("open checkout %s: %w", localPath, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree %s: %w", localPath, err)
	}

	slog.Info("pulling deck repository", "path", localPath)
	err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pull %s: %w", localPath, err)
	}
	return nil
}

// LocalPath maps a git URL to a deterministic checkout location under
// baseDir, e.g. git@github.com:user/decks.git -> baseDir/github.com/user/decks.
func LocalPath(baseDir, repoURL string) (string, error) {
	if parsed, err := url.Parse(repoURL); err == nil && (parsed.Scheme == "https" || parsed.Scheme == "http") {
		return filepath.Join(baseDir, parsed.Host, strings.TrimSuffix(parsed.Path, ".git")), nil
	}

	// scp-like syntax: user@host:path.git
	if at := strings.Index(repoURL, "@"); at >= 0 {
		if host, path, ok := strings.Cut(repoURL[at+1:], ":"); ok {
			return filepath.Join(baseDir, host, strings.TrimSuffix(path, ".git")), nil
		}
	}
	return "", fmt.Errorf("unsupported git URL: %s", repoURL)
}
