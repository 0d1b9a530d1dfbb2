package agents

import (
	"context"
	"fmt"

	"github.com/glitchlab/glitchlab/pkg/llm"
	"github.com/glitchlab/glitchlab/pkg/router"
	"github.com/glitchlab/glitchlab/pkg/types"
)

const plannerSystemPrompt = `You are the planning engine inside an automated code-change pipeline.

Your job is to take a task objective and produce a precise, actionable execution plan. You never
write code and you never run commands — you only decide what should change and why.

You MUST respond with a valid JSON object ONLY. No markdown, no commentary.

Output schema:
{
  "steps": [
    {
      "step_number": 1,
      "description": "What to do",
      "files": ["path/to/file.go"],
      "action": "modify|create|delete"
    }
  ],
  "files_likely_affected": ["path/to/file.go"],
  "requires_core_change": false,
  "risk_level": "low|medium|high",
  "risk_notes": "Why this risk level",
  "test_strategy": ["How to validate the change"],
  "estimated_complexity": "trivial|small|medium|large",
  "dependencies_affected": false,
  "public_api_changed": false,
  "self_review_notes": "Verification of this plan against the stated constraints"
}

Rules:
- Be precise about file paths. Use the repository context provided.
- MAX 2 FILES MODIFIED PER PLAN. If the task needs more, isolate the highest-priority change.
- Keep steps minimal and concrete.
- Flag core changes honestly — changes to shared/critical paths should trigger human review.
- If the task is ambiguous, say so in risk_notes rather than guessing silently.
- Every step must have at least one concrete file path in "files".
- test_strategy describes how the change will be validated, not a literal test command.`

// Planner builds the Planner agent's prompt and runs it through r.
func Planner(ctx context.Context, r *router.Router, model string, ac *types.AgentContext) (*types.Plan, error) {
	messages := []llm.Message{systemMsg(plannerSystemPrompt), userMsg(plannerUserContent(ac))}

	resp, err := r.Call(ctx, messages, llm.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("planner call: %w", err)
	}

	return parsePlanResponse(resp, model), nil
}

func plannerUserContent(ac *types.AgentContext) string {
	content := fmt.Sprintf(`Task: %s

Repository: %s
Task ID: %s

Constraints:
%s

Acceptance criteria:
%s`,
		ac.Objective, ac.RepoPath, ac.TaskID,
		renderList(ac.Constraints, "- None specified"),
		renderList(ac.AcceptanceCriteria, "- Tests pass, clean diff"),
	)

	if ac.PreludePrefix != "" {
		content = ac.PreludePrefix + "\n\n" + content
	}
	if ac.FailureContext != "" {
		content += "\n\n" + ac.FailureContext
	}
	content += renderFileContext(ac.FileContext)
	content += "\n\nProduce your execution plan as JSON."
	return content
}

func parsePlanResponse(resp *llm.Response, model string) *types.Plan {
	var raw struct {
		Steps []struct {
			StepNumber  int      `json:"step_number"`
			Description string   `json:"description"`
			Files       []string `json:"files"`
			Action      string   `json:"action"`
		} `json:"steps"`
		FilesLikelyAffected  []string `json:"files_likely_affected"`
		RequiresCoreChange   bool     `json:"requires_core_change"`
		RiskLevel            string   `json:"risk_level"`
		RiskNotes            string   `json:"risk_notes"`
		TestStrategy         []string `json:"test_strategy"`
		EstimatedComplexity  string   `json:"estimated_complexity"`
		DependenciesAffected bool     `json:"dependencies_affected"`
		PublicAPIChanged     bool     `json:"public_api_changed"`
		SelfReviewNotes      string   `json:"self_review_notes"`
	}

	err := decodeJSON(resp.Content, &raw)
	plan := &types.Plan{AgentMeta: metaFrom("planner", model, resp, err, resp.Content)}
	if err != nil {
		plan.RiskLevel = types.RiskHigh
		plan.RiskNotes = "plan parsing failed; treat as high risk pending human review"
		return plan
	}

	plan.Steps = make([]types.PlanStep, len(raw.Steps))
	for i, s := range raw.Steps {
		plan.Steps[i] = types.PlanStep{
			StepNumber:  s.StepNumber,
			Description: s.Description,
			Files:       s.Files,
			Action:      types.PlanAction(s.Action),
		}
	}
	plan.FilesLikelyAffected = raw.FilesLikelyAffected
	plan.RequiresCoreChange = raw.RequiresCoreChange
	plan.RiskLevel = types.RiskLevel(raw.RiskLevel)
	plan.RiskNotes = raw.RiskNotes
	plan.TestStrategy = raw.TestStrategy
	plan.EstimatedComplexity = raw.EstimatedComplexity
	plan.DependenciesAffected = raw.DependenciesAffected
	plan.PublicAPIChanged = raw.PublicAPIChanged
	plan.SelfReviewNotes = raw.SelfReviewNotes
	return plan
}
