package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glitchlab/glitchlab/pkg/llm"
	"github.com/glitchlab/glitchlab/pkg/router"
	"github.com/glitchlab/glitchlab/pkg/types"
)

type stubProvider struct {
	response string
	model    string
}

func (s *stubProvider) Complete(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	return &llm.Response{Content: s.response, Model: s.model, TokensUsed: 42, Cost: 0.01}, nil
}

func (s *stubProvider) Model() string { return s.model }

func newTestRouter(response string) *router.Router {
	return router.New(&stubProvider{response: response, model: "test-model"}, 0, 0)
}

func TestPlanner_ParsesValidPlan(t *testing.T) {
	r := newTestRouter(`{
		"steps": [{"step_number": 1, "description": "fix bug", "files": ["main.go"], "action": "modify"}],
		"files_likely_affected": ["main.go"],
		"requires_core_change": false,
		"risk_level": "low",
		"risk_notes": "small change",
		"test_strategy": ["run unit tests"],
		"estimated_complexity": "small",
		"dependencies_affected": false,
		"public_api_changed": false,
		"self_review_notes": "looks fine"
	}`)

	ac := &types.AgentContext{Objective: "fix the bug", TaskID: "t1"}
	plan, err := Planner(context.Background(), r, "test-model", ac)
	require.NoError(t, err)
	assert.Nil(t, plan.Err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "main.go", plan.Steps[0].Files[0])
	assert.Equal(t, types.RiskLow, plan.RiskLevel)
	assert.Equal(t, 42, plan.TokensUsed)
}

func TestPlanner_FallsBackOnMalformedJSON(t *testing.T) {
	r := newTestRouter("not json at all")

	ac := &types.AgentContext{Objective: "fix the bug", TaskID: "t1"}
	plan, err := Planner(context.Background(), r, "test-model", ac)
	require.NoError(t, err)
	require.NotNil(t, plan.Err)
	assert.Equal(t, types.RiskHigh, plan.RiskLevel)
}

func TestPlanner_StripsMarkdownFences(t *testing.T) {
	r := newTestRouter("```json\n{\"steps\":[],\"files_likely_affected\":[],\"requires_core_change\":false,\"risk_level\":\"low\",\"risk_notes\":\"\",\"test_strategy\":[],\"estimated_complexity\":\"trivial\",\"dependencies_affected\":false,\"public_api_changed\":false,\"self_review_notes\":\"\"}\n```")

	ac := &types.AgentContext{Objective: "x", TaskID: "t1"}
	plan, err := Planner(context.Background(), r, "test-model", ac)
	require.NoError(t, err)
	assert.Nil(t, plan.Err)
	assert.Equal(t, types.RiskLow, plan.RiskLevel)
}

func TestImplementer_ParsesChangesIntoTaggedOps(t *testing.T) {
	r := newTestRouter(`{
		"changes": [
			{"file": "new.go", "action": "create", "content": "package x\n"},
			{"file": "old.go", "action": "modify", "patch": "diff..."},
			{"file": "gone.go", "action": "delete"}
		],
		"tests_added": [{"file": "new_test.go", "content": "package x\n"}],
		"commit_message": "feat: add x",
		"summary": "added x"
	}`)

	plan := &types.Plan{Steps: []types.PlanStep{{StepNumber: 1, Description: "do it", Files: []string{"new.go"}, Action: types.ActionCreate}}}
	ac := &types.AgentContext{Objective: "add x", TaskID: "t1"}

	result, err := Implementer(context.Background(), r, "test-model", ac, plan)
	require.NoError(t, err)
	require.Len(t, result.Changes, 3)

	_, isCreate := result.Changes[0].Op.(types.CreateOp)
	assert.True(t, isCreate)
	_, isPatch := result.Changes[1].Op.(types.ModifyPatchOp)
	assert.True(t, isPatch)
	_, isDelete := result.Changes[2].Op.(types.DeleteOp)
	assert.True(t, isDelete)
}

func TestImplementer_SurgicalBlocksTakePriorityOverPatchAndContent(t *testing.T) {
	r := newTestRouter(`{
		"changes": [
			{"file": "old.go", "action": "modify", "content": "whole file", "patch": "diff...", "surgical_blocks": [{"search": "foo", "replace": "bar"}]}
		],
		"tests_added": [],
		"commit_message": "fix: x",
		"summary": "x"
	}`)

	plan := &types.Plan{Steps: []types.PlanStep{{StepNumber: 1, Description: "do it", Files: []string{"old.go"}, Action: types.ActionModify}}}
	ac := &types.AgentContext{Objective: "fix x", TaskID: "t1"}

	result, err := Implementer(context.Background(), r, "test-model", ac, plan)
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)

	surgical, ok := result.Changes[0].Op.(types.ModifySurgicalOp)
	require.True(t, ok, "expected ModifySurgicalOp, got %T", result.Changes[0].Op)
	require.Len(t, surgical.Edits, 1)
	assert.Equal(t, "foo", surgical.Edits[0].Search)
	assert.Equal(t, "bar", surgical.Edits[0].Replace)
}

func TestImplementer_PatchCarriesContentAsFallback(t *testing.T) {
	r := newTestRouter(`{
		"changes": [
			{"file": "old.go", "action": "modify", "content": "whole file", "patch": "diff..."}
		],
		"tests_added": [],
		"commit_message": "fix: x",
		"summary": "x"
	}`)

	plan := &types.Plan{Steps: []types.PlanStep{{StepNumber: 1, Description: "do it", Files: []string{"old.go"}, Action: types.ActionModify}}}
	ac := &types.AgentContext{Objective: "fix x", TaskID: "t1"}

	result, err := Implementer(context.Background(), r, "test-model", ac, plan)
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)

	patch, ok := result.Changes[0].Op.(types.ModifyPatchOp)
	require.True(t, ok, "expected ModifyPatchOp, got %T", result.Changes[0].Op)
	assert.Equal(t, "diff...", patch.Diff)
	assert.Equal(t, "whole file", patch.FallbackContent)
}

func TestSecurity_MergesBoundaryFindingsIntoResult(t *testing.T) {
	r := newTestRouter(`{"verdict": "pass", "issues": [], "dependency_changes": [], "boundary_violations": [], "summary": "clean"}`)

	ac := &types.AgentContext{Objective: "x", TaskID: "t1"}
	req := SecurityRequest{Diff: "diff", BoundaryFindings: nil}
	result, err := Security(context.Background(), r, "test-model", ac, req)
	require.NoError(t, err)
	assert.Equal(t, types.VerdictPass, result.Verdict)
}

func TestSecurity_ParseFailureFallsBackToWarnNotBlock(t *testing.T) {
	r := newTestRouter("garbage")
	ac := &types.AgentContext{Objective: "x", TaskID: "t1"}
	result, err := Security(context.Background(), r, "test-model", ac, SecurityRequest{})
	require.NoError(t, err)
	assert.Equal(t, types.VerdictWarn, result.Verdict)
}

func TestDebugger_ParsesFixAndConfidence(t *testing.T) {
	r := newTestRouter(`{
		"diagnosis": "nil pointer",
		"root_cause": "missing check",
		"fix": {"changes": [{"file": "main.go", "action": "modify", "patch": "diff"}]},
		"confidence": "high",
		"should_retry": true,
		"notes": ""
	}`)

	ac := &types.AgentContext{Objective: "x", TaskID: "t1"}
	result, err := Debugger(context.Background(), r, "test-model", ac, DebugRequest{ErrorOutput: "panic", Attempt: 1})
	require.NoError(t, err)
	assert.Equal(t, 0.9, result.Confidence)
	assert.True(t, result.ShouldRetry)
	require.Len(t, result.Fix, 1)
}

func TestRedTeam_ParsesVectors(t *testing.T) {
	r := newTestRouter(`{"verdict": "exposed", "vectors": [{"id": "RT-001", "category": "injection", "target": "x", "severity": "high", "narrative": "n", "recommendation": "r"}], "summary": "s"}`)
	ac := &types.AgentContext{Objective: "x", TaskID: "t1"}
	result, err := RedTeam(context.Background(), r, "test-model", ac, RedTeamRequest{})
	require.NoError(t, err)
	assert.Equal(t, "exposed", result.Verdict)
	require.Len(t, result.Vectors, 1)
}
