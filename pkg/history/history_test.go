package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glitchlab/glitchlab/pkg/types"
)

func TestRecordAndGetAll_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	h, err := New(dir)
	require.NoError(t, err)

	entry := types.HistoryEntry{
		Timestamp: time.Now().UTC(),
		TaskID:    "t1",
		Status:    string(types.StatusPRCreated),
		Budget:    types.BudgetState{EstimatedCost: 1.5, TotalTokens: 1000},
	}
	require.NoError(t, h.Record(entry))

	all, err := h.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "t1", all[0].TaskID)
	assert.Equal(t, string(types.StatusPRCreated), all[0].Status)

	data, err := os.ReadFile(filepath.Join(dir, ".glitchlab", "logs", "history.jsonl"))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestGetAll_NoFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	h, err := New(dir)
	require.NoError(t, err)

	all, err := h.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGetFailures_ExcludesSuccessStatuses(t *testing.T) {
	dir := t.TempDir()
	h, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, h.Record(types.HistoryEntry{TaskID: "ok", Status: string(types.StatusPRCreated)}))
	require.NoError(t, h.Record(types.HistoryEntry{TaskID: "bad", Status: string(types.StatusTestsFailed), Error: "boom"}))
	require.NoError(t, h.Record(types.HistoryEntry{TaskID: "ok2", Status: string(types.StatusCommitted)}))

	failures, err := h.GetFailures(10)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].TaskID)
}

func TestGetStats_ComputesSuccessRateAndTotals(t *testing.T) {
	dir := t.TempDir()
	h, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, h.Record(types.HistoryEntry{TaskID: "a", Status: string(types.StatusPRCreated), Budget: types.BudgetState{EstimatedCost: 1.0, TotalTokens: 100}}))
	require.NoError(t, h.Record(types.HistoryEntry{TaskID: "b", Status: string(types.StatusTestsFailed), Budget: types.BudgetState{EstimatedCost: 2.0, TotalTokens: 200}}))

	stats, err := h.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 50.0, stats.SuccessRate)
	assert.Equal(t, 3.0, stats.TotalCost)
	assert.Equal(t, 300, stats.TotalTokens)
}

func TestBuildFailureContext_EmptyWhenNoFailures(t *testing.T) {
	dir := t.TempDir()
	h, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, h.Record(types.HistoryEntry{TaskID: "a", Status: string(types.StatusPRCreated)}))

	ctx, err := h.BuildFailureContext(5)
	require.NoError(t, err)
	assert.Empty(t, ctx)
}

func TestBuildFailureContext_MentionsTaskAndError(t *testing.T) {
	dir := t.TempDir()
	h, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, h.Record(types.HistoryEntry{TaskID: "broke", Status: string(types.StatusTestsFailed), Error: "boom"}))

	ctx, err := h.BuildFailureContext(5)
	require.NoError(t, err)
	assert.Contains(t, ctx, "broke")
}

func TestBuildFailureContext_IncludesSecurityVerdictAndFixAttempts(t *testing.T) {
	dir := t.TempDir()
	h, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, h.Record(types.HistoryEntry{
		TaskID: "broke",
		Status: string(types.StatusTestsFailed),
		Error:  "boom",
		EventsSummary: types.EventsSummary{
			SecurityVerdict: types.VerdictWarn,
			FixAttempts:     2,
		},
	}))

	ctx, err := h.BuildFailureContext(5)
	require.NoError(t, err)
	assert.Contains(t, ctx, "Security verdict: warn")
	assert.Contains(t, ctx, "Fix attempts: 2")
	assert.Contains(t, ctx, "boom")
}
