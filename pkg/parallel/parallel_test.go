package parallel

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeGlitchlabBinary writes a shell script that stands in for the real
// glitchlab binary: it echoes a canned JSON result keyed off the task file
// name baked into its own args, without needing a real Controller run.
func fakeGlitchlabBinary(t *testing.T, jsonByTaskFile map[string]string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binary script is POSIX shell only")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "fake-glitchlab")

	script := "#!/bin/sh\n" +
		"task=\"\"\n" +
		"while [ \"$#\" -gt 0 ]; do\n" +
		"  if [ \"$1\" = \"--task\" ]; then task=\"$2\"; fi\n" +
		"  shift\n" +
		"done\n" +
		"case \"$task\" in\n"
	for taskFile, payload := range jsonByTaskFile {
		script += fmt.Sprintf("  \"%s\") echo '%s' ;;\n", taskFile, payload)
	}
	script += "  *) echo '{}' ;;\n" +
		"esac\n"

	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestRun_CollectsResultsFromEachTaskFile(t *testing.T) {
	dir := t.TempDir()
	taskA := filepath.Join(dir, "task-a.yaml")
	taskB := filepath.Join(dir, "task-b.yaml")
	require.NoError(t, os.WriteFile(taskA, []byte("objective: a\n"), 0o644))
	require.NoError(t, os.WriteFile(taskB, []byte("objective: b\n"), 0o644))

	bin := fakeGlitchlabBinary(t, map[string]string{
		taskA: `{"task_id":"a","status":"pr_created","pr_url":"https://example/pr/1","budget":{"estimated_cost":0.01}}`,
		taskB: `{"task_id":"b","status":"committed","branch":"glitchlab/b","budget":{"estimated_cost":0.02}}`,
	})

	outcomes, err := Run(context.Background(), RunOptions{
		RepoPath:   dir,
		TaskFiles:  []string{taskA, taskB},
		MaxWorkers: 2,
		BinaryPath: bin,
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	sorted := ByTaskFile(outcomes)
	require.Equal(t, taskA, sorted[0].TaskFile)
	require.Equal(t, "pr_created", string(sorted[0].Result.Status))
	require.Equal(t, taskB, sorted[1].TaskFile)
	require.Equal(t, "committed", string(sorted[1].Result.Status))

	var buf bytes.Buffer
	PrintSummary(&buf, sorted)
	require.Contains(t, buf.String(), "Parallel Run Results")
	require.Contains(t, buf.String(), "1/2 succeeded")
}

func TestRun_UnparsableChildOutputBecomesErrorResult(t *testing.T) {
	dir := t.TempDir()
	taskFile := filepath.Join(dir, "task-bad.yaml")
	require.NoError(t, os.WriteFile(taskFile, []byte("objective: bad\n"), 0o644))

	bin := fakeGlitchlabBinary(t, map[string]string{
		taskFile: "not json at all",
	})

	outcomes, err := Run(context.Background(), RunOptions{
		RepoPath:   dir,
		TaskFiles:  []string{taskFile},
		BinaryPath: bin,
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, "error", string(outcomes[0].Result.Status))
	require.NotEmpty(t, outcomes[0].Result.TaskID)
}

func TestResolveMaxWorkers_HonorsExplicitValue(t *testing.T) {
	require.Equal(t, 5, resolveMaxWorkers(RunOptions{MaxWorkers: 5}))
}
