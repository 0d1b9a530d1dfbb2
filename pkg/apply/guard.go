package apply

import (
	"fmt"
	"path/filepath"
	"strings"
)

// confinePath resolves relPath against workingDir and rejects anything that
// would land outside it — an absolute path, or a relative one that
// traverses out via "..". Grounded on
// pkg/security/workspace/guard.go's Guard.ValidatePath/ResolvePath (clean,
// join against the root, reject escape), simplified to what an
// already-worktree-scoped Apply needs: unlike the teacher's Guard, there's
// no tilde expansion or symlink evaluation here, since every caller already
// operates inside a disposable git worktree rather than a long-lived
// project directory with pre-existing symlinks to honor.
func confinePath(workingDir, relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("path %q must be relative to the worktree", relPath)
	}

	full := filepath.Join(workingDir, filepath.Clean(relPath))

	rel, err := filepath.Rel(workingDir, full)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", relPath, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the worktree", relPath)
	}

	return full, nil
}
