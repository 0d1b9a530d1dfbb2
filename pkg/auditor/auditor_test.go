package auditor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestScan_FindsMissingDocMissingTestAndTODO(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/app\n\ngo 1.21\n")
	writeFile(t, dir, "pkg/widget/widget.go", "package widget\n\nfunc Do() {\n\t// TODO: handle the error case\n}\n")

	scanner := New(ScanOptions{})
	result, err := scanner.Scan(dir)
	require.NoError(t, err)

	var kinds []string
	for _, f := range result.Findings {
		kinds = append(kinds, f.Kind)
	}
	require.Contains(t, kinds, KindMissingDoc)
	require.Contains(t, kinds, KindMissingTest)
	require.Contains(t, kinds, KindTODO)
}

func TestScan_SkipsFileWithDocCommentAndTest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/app\n\ngo 1.21\n")
	writeFile(t, dir, "pkg/widget/widget.go", "// Package widget does widget things.\npackage widget\n\nfunc Do() {}\n")
	writeFile(t, dir, "pkg/widget/widget_test.go", "package widget\n\nfunc TestDo(t *testing.T) {}\n")

	scanner := New(ScanOptions{Kinds: []string{KindMissingDoc, KindMissingTest}})
	result, err := scanner.Scan(dir)
	require.NoError(t, err)
	require.Empty(t, result.Findings)
}

func TestGroupFindingsIntoTasks_BatchesByKind(t *testing.T) {
	findings := []Finding{
		{Kind: KindTODO, Path: "a.go", Line: 1, Description: "TODO: a"},
		{Kind: KindTODO, Path: "b.go", Line: 2, Description: "TODO: b"},
		{Kind: KindTODO, Path: "c.go", Line: 3, Description: "TODO: c"},
		{Kind: KindMissingDoc, Path: "a.go"},
	}

	tasks, err := GroupFindingsIntoTasks(findings, 2)
	require.NoError(t, err)
	require.Len(t, tasks, 3) // two TODO batches (2+1) + one missing_doc batch

	for _, task := range tasks {
		require.Equal(t, "audit", task.Source)
		require.NotEmpty(t, task.TaskID)
	}
}

func TestWriteTasks_WritesOneFilePerTask(t *testing.T) {
	findings := []Finding{{Kind: KindTODO, Path: "a.go", Line: 1, Description: "TODO: a"}}
	tasks, err := GroupFindingsIntoTasks(findings, 5)
	require.NoError(t, err)

	outDir := t.TempDir()
	paths, err := WriteTasks(tasks, outDir)
	require.NoError(t, err)
	require.Len(t, paths, len(tasks))

	for _, p := range paths {
		_, err := os.Stat(p)
		require.NoError(t, err)
	}
}
