package controller

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glitchlab/glitchlab/pkg/config"
	"github.com/glitchlab/glitchlab/pkg/llm"
	"github.com/glitchlab/glitchlab/pkg/types"
)

// scriptedProvider routes each Complete call to a canned JSON response by
// matching a substring of the role's system prompt, so one provider can
// stand in for the whole agent roster without threading call order.
type scriptedProvider struct {
	byPromptSubstring map[string]string
}

func (s *scriptedProvider) Complete(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	system := messages[0].Content
	for substr, content := range s.byPromptSubstring {
		if strings.Contains(system, substr) {
			return &llm.Response{Content: content, Model: "test-model", TokensUsed: 10, Cost: 0.001}, nil
		}
	}
	return &llm.Response{Content: "{}", Model: "test-model", TokensUsed: 10, Cost: 0.001}, nil
}

func (s *scriptedProvider) Model() string { return "test-model" }

// cancelingProvider lets the Planner call succeed, then cancels its own ctx
// before returning — so by the time the Controller makes its next call
// (the Implementer), ctx is already done. Deterministic: the cancel happens
// synchronously inline, with no goroutine or timing race involved.
type cancelingProvider struct {
	cancel context.CancelFunc
	calls  int
}

func (p *cancelingProvider) Complete(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	p.calls++
	if p.calls == 1 {
		resp := &llm.Response{Content: `{
			"steps": [{"step_number": 1, "description": "update main", "files": ["main.go"], "action": "modify"}],
			"files_likely_affected": ["main.go"],
			"requires_core_change": false,
			"risk_level": "low",
			"risk_notes": "",
			"test_strategy": ["none"],
			"estimated_complexity": "trivial",
			"dependencies_affected": false,
			"public_api_changed": false,
			"self_review_notes": ""
		}`, Model: "test-model", TokensUsed: 10, Cost: 0.001}
		p.cancel()
		return resp, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &llm.Response{Content: "{}", Model: "test-model", TokensUsed: 10, Cost: 0.001}, nil
}

func (p *cancelingProvider) Model() string { return "test-model" }

func initControllerRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/app\n\ngo 1.21\n"), 0o644))
	run("add", "-A")
	run("commit", "-m", "initial")

	return dir
}

func TestController_HappyPathEndsCommitted(t *testing.T) {
	repo := initControllerRepo(t)

	provider := &scriptedProvider{byPromptSubstring: map[string]string{
		"planning engine": `{
			"steps": [{"step_number": 1, "description": "update main", "files": ["main.go"], "action": "modify"}],
			"files_likely_affected": ["main.go"],
			"requires_core_change": false,
			"risk_level": "low",
			"risk_notes": "",
			"test_strategy": ["none"],
			"estimated_complexity": "trivial",
			"dependencies_affected": false,
			"public_api_changed": false,
			"self_review_notes": ""
		}`,
		"implementation engine": `{
			"changes": [{"file": "main.go", "action": "modify", "content": "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"}],
			"tests_added": [],
			"commit_message": "feat: greet on start",
			"summary": "added a greeting"
		}`,
		"security and policy guard": `{"verdict": "pass", "issues": [], "dependency_changes": [], "boundary_violations": [], "summary": "clean"}`,
		"change-impact assessor":    `{"version_bump": "patch", "reasoning": "small fix", "changelog_entry": "- greet on start", "breaking_changes": [], "migration_notes": ""}`,
		"documentation engine":      `{"should_write_adr": false, "doc_updates": [], "architecture_notes": ""}`,
	}}

	cfg := config.Default()
	cfg.Gates.PauseAfterPlan = false
	cfg.Gates.PauseBeforePR = false
	cfg.Gates.PauseOnTestFailure = false
	cfg.Gates.PauseOnSecurityWarn = false
	cfg.Git.CreatePR = false

	c, err := New(repo, cfg, provider, false, true)
	require.NoError(t, err)

	task, err := types.NormalizeTask(&types.Task{TaskID: "t1", Objective: "add a greeting to main"})
	require.NoError(t, err)

	result, err := c.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, types.StatusCommitted, result.Status)
	require.NotEmpty(t, result.Branch)
	require.NotZero(t, result.Budget.TotalTokens)
}

func TestController_BudgetExhaustionEndsBudgetExceeded(t *testing.T) {
	repo := initControllerRepo(t)

	provider := &scriptedProvider{byPromptSubstring: map[string]string{}}

	cfg := config.Default()
	cfg.Gates.PauseAfterPlan = false
	cfg.Budget.MaxTokens = 1 // so even the Planner's pre-call estimate trips ErrBudgetExceeded

	c, err := New(repo, cfg, provider, false, true)
	require.NoError(t, err)

	task, err := types.NormalizeTask(&types.Task{TaskID: "t1", Objective: "add a greeting to main"})
	require.NoError(t, err)

	result, err := c.Run(context.Background(), task)
	require.Error(t, err)
	require.Equal(t, types.StatusBudgetExceeded, result.Status)
}

func TestController_ContextCancellationEndsInterrupted(t *testing.T) {
	repo := initControllerRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	provider := &cancelingProvider{cancel: cancel}

	cfg := config.Default()
	cfg.Gates.PauseAfterPlan = false

	c, err := New(repo, cfg, provider, false, true)
	require.NoError(t, err)

	task, err := types.NormalizeTask(&types.Task{TaskID: "t1", Objective: "add a greeting to main"})
	require.NoError(t, err)

	result, err := c.Run(ctx, task)
	require.Error(t, err)
	require.Equal(t, types.StatusInterrupted, result.Status)
}

func TestController_PlanFailureStopsEarly(t *testing.T) {
	repo := initControllerRepo(t)

	provider := &scriptedProvider{byPromptSubstring: map[string]string{
		"planning engine": "not valid json",
	}}

	cfg := config.Default()
	cfg.Gates.PauseAfterPlan = false
	cfg.Git.CreatePR = false

	c, err := New(repo, cfg, provider, false, true)
	require.NoError(t, err)

	task, err := types.NormalizeTask(&types.Task{TaskID: "t2", Objective: "do something"})
	require.NoError(t, err)

	result, err := c.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, types.StatusPlanFailed, result.Status)
}

func TestController_BoundaryViolationBlocksWithoutAllowCore(t *testing.T) {
	repo := initControllerRepo(t)

	provider := &scriptedProvider{byPromptSubstring: map[string]string{
		"planning engine": `{
			"steps": [{"step_number": 1, "description": "touch git config", "files": [".git/config"], "action": "modify"}],
			"files_likely_affected": [".git/config"],
			"requires_core_change": true,
			"risk_level": "high",
			"risk_notes": "",
			"test_strategy": [],
			"estimated_complexity": "small",
			"dependencies_affected": false,
			"public_api_changed": false,
			"self_review_notes": ""
		}`,
	}}

	cfg := config.Default()
	cfg.Gates.PauseAfterPlan = false
	cfg.Git.CreatePR = false

	c, err := New(repo, cfg, provider, false, true)
	require.NoError(t, err)

	task, err := types.NormalizeTask(&types.Task{TaskID: "t3", Objective: "modify git config", RiskLevel: types.RiskHigh})
	require.NoError(t, err)

	result, err := c.Run(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, types.StatusBoundaryViolation, result.Status)
}
