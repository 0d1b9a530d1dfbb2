package apply

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glitchlab/glitchlab/pkg/types"
)

func gitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run(), "git %v", args)
	}
	run("init", "-q")
	run("config", "user.email", "bot@example.com")
	run("config", "user.name", "bot")
	return dir
}

func writeAndCommit(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		require.NoError(t, cmd.Run())
	}
	run("add", "-A")
	run("commit", "-q", "-m", "seed")
}

func TestApply_CreateModifyDelete(t *testing.T) {
	dir := gitRepo(t)
	writeAndCommit(t, dir, "keep.txt", "hello\n")
	writeAndCommit(t, dir, "gone.txt", "bye\n")

	changes := []types.FileChange{
		{Path: "new.txt", Op: types.CreateOp{Content: "fresh\n"}},
		{Path: "keep.txt", Op: types.ModifyContentOp{Content: "updated\n"}},
		{Path: "gone.txt", Op: types.DeleteOp{}},
	}

	results, err := Apply(context.Background(), dir, changes)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "CREATE", results[0].Action)
	assert.Equal(t, "MODIFY", results[1].Action)
	assert.Equal(t, "DELETE", results[2].Action)

	data, err := os.ReadFile(filepath.Join(dir, "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "fresh\n", string(data))

	data, err = os.ReadFile(filepath.Join(dir, "keep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "updated\n", string(data))

	_, err = os.Stat(filepath.Join(dir, "gone.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestApply_DeleteMissingFileIsNotAnError(t *testing.T) {
	dir := gitRepo(t)
	changes := []types.FileChange{
		{Path: "never-existed.txt", Op: types.DeleteOp{}},
	}
	results, err := Apply(context.Background(), dir, changes)
	require.NoError(t, err)
	assert.Equal(t, "DELETE", results[0].Action)
}

func TestApply_SurgicalReplacesFirstOccurrenceOnly(t *testing.T) {
	dir := gitRepo(t)
	writeAndCommit(t, dir, "main.go", "foo\nfoo\nbar\n")

	changes := []types.FileChange{
		{Path: "main.go", Op: types.ModifySurgicalOp{Edits: []types.SearchReplace{
			{Search: "foo", Replace: "baz"},
		}}},
	}
	results, err := Apply(context.Background(), dir, changes)
	require.NoError(t, err)
	assert.Equal(t, "SURGICAL", results[0].Action)

	data, err := os.ReadFile(filepath.Join(dir, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "baz\nfoo\nbar\n", string(data))
}

func TestApply_SurgicalMissingSearchTextFails(t *testing.T) {
	dir := gitRepo(t)
	writeAndCommit(t, dir, "main.go", "hello\n")

	changes := []types.FileChange{
		{Path: "main.go", Op: types.ModifySurgicalOp{Edits: []types.SearchReplace{
			{Search: "nope", Replace: "x"},
		}}},
	}
	results, err := Apply(context.Background(), dir, changes)
	require.NoError(t, err)
	assert.Contains(t, results[0].Action, "FAIL")
}

func TestApply_PatchAppliesUnifiedDiff(t *testing.T) {
	dir := gitRepo(t)
	writeAndCommit(t, dir, "file.txt", "line1\nline2\nline3\n")

	diff := "--- a/file.txt\n" +
		"+++ b/file.txt\n" +
		"@@ -1,3 +1,3 @@\n" +
		" line1\n" +
		"-line2\n" +
		"+line2-changed\n" +
		" line3\n"

	changes := []types.FileChange{
		{Path: "file.txt", Op: types.ModifyPatchOp{Diff: diff}},
	}
	results, err := Apply(context.Background(), dir, changes)
	require.NoError(t, err)
	assert.Equal(t, "PATCH", results[0].Action)

	data, err := os.ReadFile(filepath.Join(dir, "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2-changed\nline3\n", string(data))
}

func TestApply_BadPatchRecordsFailureNotError(t *testing.T) {
	dir := gitRepo(t)
	writeAndCommit(t, dir, "file.txt", "line1\n")

	changes := []types.FileChange{
		{Path: "file.txt", Op: types.ModifyPatchOp{Diff: "not a valid patch at all"}},
	}
	results, err := Apply(context.Background(), dir, changes)
	require.NoError(t, err)
	assert.Contains(t, results[0].Action, "FAIL")
}

func TestApply_BadPatchFallsBackToContent(t *testing.T) {
	dir := gitRepo(t)
	writeAndCommit(t, dir, "file.txt", "line1\n")

	changes := []types.FileChange{
		{Path: "file.txt", Op: types.ModifyPatchOp{
			Diff:            "not a valid patch at all",
			FallbackContent: "replaced entirely\n",
		}},
	}
	results, err := Apply(context.Background(), dir, changes)
	require.NoError(t, err)
	assert.Contains(t, results[0].Action, "PATCH_FALLBACK")

	data, err := os.ReadFile(filepath.Join(dir, "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "replaced entirely\n", string(data))
}

func TestApplyTests_WritesFiles(t *testing.T) {
	dir := gitRepo(t)
	tests := []types.TestChange{
		{Path: "pkg/foo_test.go", Content: "package pkg\n"},
	}
	results, err := ApplyTests(dir, tests)
	require.NoError(t, err)
	assert.Equal(t, "TEST", results[0].Action)

	data, err := os.ReadFile(filepath.Join(dir, "pkg/foo_test.go"))
	require.NoError(t, err)
	assert.Equal(t, "package pkg\n", string(data))
}
