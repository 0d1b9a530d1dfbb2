// Package apply implements C7: turning an Implementer or Debugger result's
// FileChange list into actual writes against a task's worktree.
package apply

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/glitchlab/glitchlab/pkg/types"
)

const patchTimeout = 10 * time.Second

// Result records what happened to a single file as an applied change was
// written, in the order changes were applied.
type Result struct {
	Path string
	// Action is a short human-readable verb: CREATE, DELETE, MODIFY, PATCH,
	// SURGICAL, TEST (from ApplyTests), or a failure/fallback description.
	Action string
}

// Apply writes each FileChange to disk under workingDir, in order. A
// ModifyPatchOp that fails `git apply` does not fail the whole batch: when it
// carries FallbackContent the file is overwritten with that content and the
// Result is marked PATCH_FALLBACK; otherwise it is recorded as a FAIL Result
// so the caller (the fix loop) can see it and retry.
func Apply(ctx context.Context, workingDir string, changes []types.FileChange) ([]Result, error) {
	results := make([]Result, 0, len(changes))
	for _, change := range changes {
		result, err := applyOne(ctx, workingDir, change)
		if err != nil {
			return results, fmt.Errorf("applying %s: %w", change.Path, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// ApplyTests writes each TestChange to disk, creating parent directories as
// needed. Tests are always full-content writes — there is no patch or
// surgical mode for newly generated test files.
func ApplyTests(workingDir string, tests []types.TestChange) ([]Result, error) {
	results := make([]Result, 0, len(tests))
	for _, test := range tests {
		full, err := confinePath(workingDir, test.Path)
		if err != nil {
			return results, fmt.Errorf("rejecting test %s: %w", test.Path, err)
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return results, fmt.Errorf("creating parent dir for %s: %w", test.Path, err)
		}
		if err := os.WriteFile(full, []byte(test.Content), 0o644); err != nil {
			return results, fmt.Errorf("writing test %s: %w", test.Path, err)
		}
		results = append(results, Result{Path: test.Path, Action: "TEST"})
	}
	return results, nil
}

func applyOne(ctx context.Context, workingDir string, change types.FileChange) (Result, error) {
	full, err := confinePath(workingDir, change.Path)
	if err != nil {
		return Result{}, fmt.Errorf("rejecting change to %s: %w", change.Path, err)
	}

	switch op := change.Op.(type) {
	case types.CreateOp:
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return Result{}, err
		}
		if err := os.WriteFile(full, []byte(op.Content), 0o644); err != nil {
			return Result{}, err
		}
		return Result{Path: change.Path, Action: "CREATE"}, nil

	case types.DeleteOp:
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return Result{}, err
		}
		return Result{Path: change.Path, Action: "DELETE"}, nil

	case types.ModifyContentOp:
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return Result{}, err
		}
		if err := os.WriteFile(full, []byte(op.Content), 0o644); err != nil {
			return Result{}, err
		}
		return Result{Path: change.Path, Action: "MODIFY"}, nil

	case types.ModifyPatchOp:
		if err := applyPatch(ctx, workingDir, op.Diff); err != nil {
			if op.FallbackContent == "" {
				return Result{Path: change.Path, Action: fmt.Sprintf("FAIL (patch: %s)", err)}, nil
			}
			if mkErr := os.MkdirAll(filepath.Dir(full), 0o755); mkErr != nil {
				return Result{}, mkErr
			}
			if wErr := os.WriteFile(full, []byte(op.FallbackContent), 0o644); wErr != nil {
				return Result{}, wErr
			}
			return Result{Path: change.Path, Action: fmt.Sprintf("PATCH_FALLBACK (patch failed: %s; wrote content)", err)}, nil
		}
		return Result{Path: change.Path, Action: "PATCH"}, nil

	case types.ModifySurgicalOp:
		if err := applySurgical(full, op.Edits); err != nil {
			return Result{Path: change.Path, Action: fmt.Sprintf("FAIL (surgical: %s)", err)}, nil
		}
		return Result{Path: change.Path, Action: "SURGICAL"}, nil

	default:
		return Result{}, fmt.Errorf("unknown change op %T", op)
	}
}

// applyPatch writes diff to a temp file inside workingDir and applies it via
// `git apply`, checking first with --check so a bad patch never leaves the
// tree half-modified.
func applyPatch(ctx context.Context, workingDir, diff string) error {
	tmp, err := os.CreateTemp(workingDir, "*.patch")
	if err != nil {
		return fmt.Errorf("creating patch file: %w", err)
	}
	patchPath := tmp.Name()
	defer os.Remove(patchPath)

	if _, err := tmp.WriteString(diff); err != nil {
		tmp.Close()
		return fmt.Errorf("writing patch file: %w", err)
	}
	tmp.Close()

	if err := gitApply(ctx, workingDir, "--check", patchPath); err != nil {
		return err
	}
	return gitApply(ctx, workingDir, patchPath)
}

func gitApply(ctx context.Context, workingDir string, args ...string) error {
	execCtx, cancel := context.WithTimeout(ctx, patchTimeout)
	defer cancel()

	cmdArgs := append([]string{"apply"}, args...)
	cmd := exec.CommandContext(execCtx, "git", cmdArgs...)
	cmd.Dir = workingDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git apply failed: %s", strings.TrimSpace(stderr.String()))
	}
	return nil
}

// applySurgical applies each SearchReplace in order, replacing only the
// first occurrence of Search in the file as it stands after prior edits in
// this same op. Unlike a uniqueness-enforcing editor, a non-unique match is
// not an error here — agent-authored edits routinely target a block that
// happens to recur (e.g. a repeated import line), and failing the whole
// change over that is worse than editing the first match.
func applySurgical(path string, edits []types.SearchReplace) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	text := string(content)

	for i, edit := range edits {
		if !strings.Contains(text, edit.Search) {
			return fmt.Errorf("edit %d: search text not found", i+1)
		}
		text = strings.Replace(text, edit.Search, edit.Replace, 1)
	}

	return os.WriteFile(path, []byte(text), 0o644)
}
