package agents

import (
	"context"
	"fmt"

	"github.com/glitchlab/glitchlab/pkg/llm"
	"github.com/glitchlab/glitchlab/pkg/router"
	"github.com/glitchlab/glitchlab/pkg/types"
)

const testEngineerSystemPrompt = `You are the test strategy validator inside an automated code-change pipeline.

You receive a plan and the Implementer's change set and produce a validation plan: what
should be exercised beyond the tests the Implementer already wrote, and how.

You MUST respond with valid JSON only.

Output schema:
{
  "test_files": ["path/to/test_file"],
  "validation_steps": [
    {"step": "Description of validation", "type": "dry_run|assert|script", "target": "path/to/file"}
  ],
  "summary": "Brief validation strategy"
}

Rules:
- Focus on gaps the Implementer's own tests might miss, not a restatement of them.
- Validation steps should be actionable and minimal. Fewer checks = faster feedback.`

// TestEngineerRequest carries what the test_engineer role reviews.
type TestEngineerRequest struct {
	Plan           *types.Plan
	Implementation *types.ImplementationResult
}

// TestEngineer builds the test_engineer role's prompt and runs it through r.
// This role is enabled per config.Settings.EnableTestEngineer, layering an
// extra validation pass on top of whatever tests the Implementer wrote.
func TestEngineer(ctx context.Context, r *router.Router, model string, ac *types.AgentContext, req TestEngineerRequest) (*types.TestPlanResult, error) {
	messages := []llm.Message{systemMsg(testEngineerSystemPrompt), userMsg(testEngineerUserContent(ac, req))}

	resp, err := r.Call(ctx, messages, llm.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("test_engineer call: %w", err)
	}

	return parseTestEngineerResponse(resp, model), nil
}

func testEngineerUserContent(ac *types.AgentContext, req TestEngineerRequest) string {
	stepsText := ""
	for _, s := range req.Plan.Steps {
		stepsText += fmt.Sprintf("\n- Step %d: %s", s.StepNumber, s.Description)
	}

	testsAdded := make([]string, 0, len(req.Implementation.TestsAdded))
	for _, t := range req.Implementation.TestsAdded {
		testsAdded = append(testsAdded, t.Path)
	}

	return fmt.Sprintf(`Task: %s

Plan steps:
%s

Files in scope: %v
Tests already added by the implementer: %v

Produce a validation plan as JSON.`,
		ac.Objective, stepsText, req.Plan.PlannedFiles(), testsAdded)
}

func parseTestEngineerResponse(resp *llm.Response, model string) *types.TestPlanResult {
	var raw struct {
		TestFiles       []string `json:"test_files"`
		ValidationSteps []struct {
			Step   string `json:"step"`
			Type   string `json:"type"`
			Target string `json:"target"`
		} `json:"validation_steps"`
		Summary string `json:"summary"`
	}

	err := decodeJSON(resp.Content, &raw)
	result := &types.TestPlanResult{AgentMeta: metaFrom("test_engineer", model, resp, err, resp.Content)}
	if err != nil {
		result.Summary = fmt.Sprintf("failed to parse test plan: %s", err)
		return result
	}

	result.TestFiles = raw.TestFiles
	result.ValidationSteps = make([]types.ValidationStep, len(raw.ValidationSteps))
	for i, v := range raw.ValidationSteps {
		result.ValidationSteps[i] = types.ValidationStep{Step: v.Step, Type: v.Type, Target: v.Target}
	}
	result.Summary = raw.Summary
	return result
}
