// Package gitfetch materializes the documented source tree from a remote git
// repository. Builds that run against a local checkout never touch this.
package gitfetch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/llnl/doxysite/internal/config"
	"github.com/llnl/doxysite/internal/logfields"
)

// Client handles git operations inside a workspace directory.
type Client struct {
	workspaceDir string
}

// NewClient creates a git client rooted at the given workspace directory.
// Callers own workspace creation; see the workspace package.
func NewClient(workspaceDir string) *Client { return &Client{workspaceDir: workspaceDir} }

// CloneOrUpdate fetches the configured source: clone when the checkout is
// missing, pull when it already exists. Returns the local checkout path.
func (c *Client) CloneOrUpdate(src *config.SourceConfig) (string, error) {
	repoPath := filepath.Join(c.workspaceDir, checkoutName(src.URL))
	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err != nil {
		return c.clone(src, repoPath)
	}
	return c.update(src, repoPath)
}

func (c *Client) clone(src *config.SourceConfig, repoPath string) (string, error) {
	slog.Debug("Cloning source repository", logfields.URL(src.URL), slog.String("branch", src.Branch), logfields.Path(repoPath))
	if err := os.RemoveAll(repoPath); err != nil {
		return "", fmt.Errorf("remove stale checkout: %w", err)
	}

	opts := &git.CloneOptions{URL: src.URL}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.ReferenceName("refs/heads/" + src.Branch)
		opts.SingleBranch = true
	}
	if src.ShallowDepth > 0 {
		opts.Depth = src.ShallowDepth
	}
	repo, err := git.PlainClone(repoPath, false, opts)
	if err != nil {
		return "", classifyError("clone", src.URL, err)
	}
	if ref, herr := repo.Head(); herr == nil {
		slog.Info("Source repository cloned", logfields.URL(src.URL), slog.String("commit", shortHash(ref)), logfields.Path(repoPath))
	} else {
		slog.Info("Source repository cloned", logfields.URL(src.URL), logfields.Path(repoPath))
	}
	return repoPath, nil
}

func (c *Client) update(src *config.SourceConfig, repoPath string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("open checkout: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("worktree: %w", err)
	}

	pullOpts := &git.PullOptions{RemoteName: "origin"}
	if src.Branch != "" {
		pullOpts.ReferenceName = plumbing.ReferenceName("refs/heads/" + src.Branch)
		pullOpts.SingleBranch = true
	}
	err = wt.Pull(pullOpts)
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return "", classifyError("pull", src.URL, err)
	}

	if err == git.NoErrAlreadyUpToDate {
		slog.Info("Source repository already up to date", logfields.URL(src.URL))
	} else if ref, herr := repo.Head(); herr == nil {
		slog.Info("Source repository updated", logfields.URL(src.URL), slog.String("commit", shortHash(ref)))
	}
	return repoPath, nil
}

// HeadCommit returns the abbreviated HEAD hash of a checkout, or "" when it
// cannot be resolved. Used to stamp build reports.
func HeadCommit(repoPath string) string {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return ""
	}
	ref, err := repo.Head()
	if err != nil {
		return ""
	}
	return shortHash(ref)
}

func shortHash(ref *plumbing.Reference) string {
	h := ref.Hash().String()
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

// checkoutName derives a directory name from a repository URL.
func checkoutName(url string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	if idx := strings.LastIndexAny(trimmed, "/:"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if trimmed == "" {
		return "source"
	}
	return trimmed
}
