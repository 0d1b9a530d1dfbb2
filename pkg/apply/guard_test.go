package apply

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glitchlab/glitchlab/pkg/types"
)

func TestApply_RejectsPathEscapingWorktree(t *testing.T) {
	dir := gitRepo(t)

	_, err := Apply(context.Background(), dir, []types.FileChange{
		{Path: "../../etc/passwd", Op: types.CreateOp{Content: "pwned"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "escapes the worktree")
}

func TestApply_RejectsAbsolutePath(t *testing.T) {
	dir := gitRepo(t)

	_, err := Apply(context.Background(), dir, []types.FileChange{
		{Path: "/etc/passwd", Op: types.CreateOp{Content: "pwned"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be relative")
}

func TestConfinePath_AllowsNestedRelativePath(t *testing.T) {
	dir := gitRepo(t)

	full, err := confinePath(dir, "pkg/widget/widget.go")
	require.NoError(t, err)
	require.Contains(t, full, "pkg/widget/widget.go")
}
