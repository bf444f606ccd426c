// internal/vcs/git.go
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GitComparator diffs a snapshot file against its committed version via the
// local git binary. Transient failures (index locks, concurrent fetches) are
// retried with a fixed interval.
type GitComparator struct {
	repoDir       string
	maxRetries    int
	retryInterval time.Duration
	log           *zap.Logger
}

func NewGitComparator(repoDir string, maxRetries int, retryInterval time.Duration, log *zap.Logger) *GitComparator {
	return &GitComparator{
		repoDir:       repoDir,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
		log:           log.Named("vcs"),
	}
}

// Diff returns the unified diff of the working-tree file against HEAD, or ""
// when the file is unchanged or untracked.
func (g *GitComparator) Diff(ctx context.Context, path string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			g.log.Warn("Retrying git diff",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", g.maxRetries+1),
				zap.Duration("retry_interval", g.retryInterval),
				zap.Error(lastErr))
			timer := time.NewTimer(g.retryInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", fmt.Errorf("context cancelled waiting to retry git diff for %s: %w; last error: %v", path, ctx.Err(), lastErr)
			case <-timer.C:
			}
		}

		out, err := g.runDiff(ctx, path)
		if err == nil {
			if attempt > 0 {
				g.log.Info("git diff succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return out, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("context cancelled during git diff for %s: %w", path, ctx.Err())
		}
		lastErr = err
	}
	return "", fmt.Errorf("git diff for %s failed after %d retries: %w", path, g.maxRetries, lastErr)
}

func (g *GitComparator) runDiff(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--no-color", "--", path)
	cmd.Dir = g.repoDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git diff: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
