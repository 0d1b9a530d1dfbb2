package indexer

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
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

	files := map[string]string{
		"go.mod":                "module example\n",
		"main.go":                "package main\n",
		"main_test.go":           "package main\n",
		"internal/util/util.go":  "package util\n",
		"node_modules/x/index.js": "skip me\n",
		"README.md":              "# hi\n",
	}
	for rel, content := range files {
		full := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	run("add", "-A")
	run("commit", "-q", "-m", "init")
	return dir
}

func TestBuild_SkipsNoiseAndTracksKeyAndTestFiles(t *testing.T) {
	dir := initRepo(t)

	idx, err := Build(dir, 8)
	require.NoError(t, err)

	var paths []string
	for _, f := range idx.Files {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "main.go")
	assert.Contains(t, paths, "internal/util/util.go")
	assert.Contains(t, paths, "go.mod")
	assert.NotContains(t, paths, "node_modules/x/index.js")

	assert.Contains(t, idx.KeyFiles, "go.mod")
	assert.Contains(t, idx.TestFiles, "main_test.go")
	assert.Equal(t, 3, idx.Languages[".go"])
}

func TestToAgentContext_ListsFilesAndKeyMarkers(t *testing.T) {
	dir := initRepo(t)
	idx, err := Build(dir, 8)
	require.NoError(t, err)

	ctx := idx.ToAgentContext(0, 0)
	assert.Contains(t, ctx, "REPO INDEX")
	assert.Contains(t, ctx, "go.mod")
	assert.Contains(t, ctx, "[key]")
	assert.Contains(t, ctx, "[test]")
}

func TestToAgentContext_TruncatesToTokenBudget(t *testing.T) {
	dir := initRepo(t)
	idx, err := Build(dir, 8)
	require.NoError(t, err)

	full := idx.ToAgentContext(0, 0)
	truncated := idx.ToAgentContext(0, 5)
	assert.Less(t, len(truncated), len(full))
	assert.Contains(t, truncated, "truncated to fit context budget")
}

func TestRankFiles_ReturnsBestMatchFirst(t *testing.T) {
	dir := initRepo(t)
	idx, err := Build(dir, 8)
	require.NoError(t, err)

	ranked := idx.RankFiles("util", 3)
	require.NotEmpty(t, ranked)
	assert.Equal(t, "internal/util/util.go", ranked[0])
}

func TestBuild_FallsBackToWalkWithoutGit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	idx, err := Build(dir, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.TotalFiles)
	assert.Equal(t, "main.go", idx.Files[0].Path)
}
