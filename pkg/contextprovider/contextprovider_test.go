package contextprovider

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_UnavailableWithoutContextDirOrCLI(t *testing.T) {
	dir := t.TempDir()
	p := New(dir)
	if p.CLIAvailable() {
		t.Skip("prelude CLI present on PATH, skipping no-CLI assumption")
	}
	assert.False(t, p.Available())
	assert.Equal(t, "", p.Export(context.Background()))
	assert.Equal(t, "", p.BuildAgentPrefix(context.Background(), 8000))
}

func TestProvider_ExportReadsContextFilesInPriorityOrder(t *testing.T) {
	dir := t.TempDir()
	ctxDir := filepath.Join(dir, ".context")
	require.NoError(t, os.MkdirAll(ctxDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ctxDir, "stack.json"), []byte(`{"lang":"go"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ctxDir, "project.json"), []byte(`{"name":"demo","language":"go"}`), 0o644))

	p := New(dir)
	assert.True(t, p.ContextExists())
	assert.True(t, p.Available())

	exported := p.Export(context.Background())
	projIdx := indexOf(exported, "## project.json")
	stackIdx := indexOf(exported, "## stack.json")
	require.GreaterOrEqual(t, projIdx, 0)
	require.GreaterOrEqual(t, stackIdx, 0)
	assert.Less(t, projIdx, stackIdx)
}

func TestProvider_SummaryExtractsProjectMetadata(t *testing.T) {
	dir := t.TempDir()
	ctxDir := filepath.Join(dir, ".context")
	require.NoError(t, os.MkdirAll(filepath.Join(ctxDir, "decisions"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ctxDir, "project.json"), []byte(`{"name":"demo","language":"go","framework":"none"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ctxDir, "decisions", "001-foo.md"), []byte("# ADR"), 0o644))

	p := New(dir)
	summary := p.Summary()
	assert.Equal(t, "demo", summary.ProjectName)
	assert.Equal(t, "go", summary.Language)
	assert.Equal(t, 1, summary.DecisionsCount)
}

func TestProvider_GetConstraintsFromArray(t *testing.T) {
	dir := t.TempDir()
	ctxDir := filepath.Join(dir, ".context")
	require.NoError(t, os.MkdirAll(ctxDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ctxDir, "constraints.json"), []byte(`["no new deps", "go 1.24"]`), 0o644))

	p := New(dir)
	constraints := p.GetConstraints()
	assert.Equal(t, []string{"no new deps", "go 1.24"}, constraints)
}

func TestProvider_BuildAgentPrefixTruncates(t *testing.T) {
	dir := t.TempDir()
	ctxDir := filepath.Join(dir, ".context")
	require.NoError(t, os.MkdirAll(ctxDir, 0o755))
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	require.NoError(t, os.WriteFile(filepath.Join(ctxDir, "architecture.md"), long, 0o644))

	p := New(dir)
	prefix := p.BuildAgentPrefix(context.Background(), 500)
	assert.LessOrEqual(t, len(prefix), 600)
	assert.Contains(t, prefix, "truncated for token budget")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
