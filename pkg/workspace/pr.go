package workspace

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DetectBaseBranch guesses the branch a task branch should target,
// preferring main, then master, then develop — the first that exists in the
// repo. Whether it shares history with the current branch is not checked.
func DetectBaseBranch(ctx context.Context, repoPath string) (string, error) {
	for _, candidate := range []string{"main", "master", "develop"} {
		verify := exec.CommandContext(ctx, "git", "rev-parse", "--verify", candidate)
		verify.Dir = repoPath
		if err := verify.Run(); err != nil {
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("could not detect a base branch (tried main, master, develop)")
}

// CreatePR pushes the task branch and opens a PR via the gh CLI, returning
// the PR URL gh prints on success. A push failure because the branch
// already exists on origin is tolerated, since that just means a prior
// attempt already pushed it.
func CreatePR(ctx context.Context, repoPath, title, body, base, head string) (string, error) {
	push := exec.CommandContext(ctx, "git", "push", "-u", "origin", head)
	push.Dir = repoPath
	var pushErr bytes.Buffer
	push.Stderr = &pushErr
	if err := push.Run(); err != nil && !strings.Contains(pushErr.String(), "already exists") {
		return "", fmt.Errorf("pushing %s: %w\nstderr: %s", head, err, pushErr.String())
	}

	pr := exec.CommandContext(ctx, "gh", "pr", "create",
		"--title", title,
		"--body", body,
		"--base", base,
		"--head", head,
	)
	pr.Dir = repoPath
	var out, stderr bytes.Buffer
	pr.Stdout = &out
	pr.Stderr = &stderr
	if err := pr.Run(); err != nil {
		return "", fmt.Errorf("gh pr create: %w\nstderr: %s", err, stderr.String())
	}

	return strings.TrimSpace(out.String()), nil
}
