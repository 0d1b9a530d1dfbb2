package agents

import (
	"context"
	"fmt"

	"github.com/glitchlab/glitchlab/pkg/llm"
	"github.com/glitchlab/glitchlab/pkg/router"
	"github.com/glitchlab/glitchlab/pkg/types"
)

const redTeamSystemPrompt = `You are the adversarial review pass inside an automated code-change pipeline.

You run alongside the Security review for high-risk tasks. Your job is to think like an
attacker about the change set just produced: what could be exploited, abused, or silently
broken, that a straightforward security checklist would miss.

You MUST respond with valid JSON only.

Output schema:
{
  "verdict": "hardened|exposed",
  "vectors": [
    {
      "id": "RT-001",
      "category": "injection|auth|supply_chain|resource_exhaustion|logic|other",
      "target": "file, endpoint, or pattern",
      "severity": "info|low|medium|high|critical",
      "narrative": "Step-by-step: how this would actually be exploited",
      "recommendation": "Terse. What changes."
    }
  ],
  "summary": "One paragraph, clinical, no hedging"
}

Rules:
- Only report vectors you can justify with a concrete narrative against the actual diff.
- Do not repeat findings the security review would already catch via static pattern checks —
  focus on exploitation paths and combinations, not isolated code smells.
- verdict=exposed if any vector is medium severity or above.`

// RedTeamRequest carries what the red_team role reviews — the same diff
// and change set Security sees, since this role augments rather than
// replaces that review.
type RedTeamRequest struct {
	Diff    string
	Changes []types.FileChange
}

// RedTeam builds the red_team role's prompt and runs it through r. Invoked
// alongside Security only for Task.RiskLevel == high, per the Controller's
// gating — its findings are folded into the same Security gate rather than
// opening a new terminal status.
func RedTeam(ctx context.Context, r *router.Router, model string, ac *types.AgentContext, req RedTeamRequest) (*types.RedTeamResult, error) {
	messages := []llm.Message{systemMsg(redTeamSystemPrompt), userMsg(redTeamUserContent(ac, req))}

	resp, err := r.Call(ctx, messages, llm.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("red_team call: %w", err)
	}

	return parseRedTeamResponse(resp, model), nil
}

func redTeamUserContent(ac *types.AgentContext, req RedTeamRequest) string {
	changesSummary := ""
	for _, c := range req.Changes {
		changesSummary += fmt.Sprintf("\n%s %s\n", changeOpVerb(c.Op), c.Path)
	}

	diff := req.Diff
	if diff == "" {
		diff = "No diff available"
	}

	return fmt.Sprintf(`Attack this change.

Task: %s
Task ID: %s

Changes:
%s

Full diff:
%s

Return your assessment as JSON.`,
		ac.Objective, ac.TaskID, changesSummary, fence(diff))
}

func parseRedTeamResponse(resp *llm.Response, model string) *types.RedTeamResult {
	var raw struct {
		Verdict string `json:"verdict"`
		Vectors []struct {
			ID             string `json:"id"`
			Category       string `json:"category"`
			Target         string `json:"target"`
			Severity       string `json:"severity"`
			Narrative      string `json:"narrative"`
			Recommendation string `json:"recommendation"`
		} `json:"vectors"`
		Summary string `json:"summary"`
	}

	err := decodeJSON(resp.Content, &raw)
	result := &types.RedTeamResult{AgentMeta: metaFrom("red_team", model, resp, err, resp.Content)}
	if err != nil {
		result.Verdict = "exposed"
		result.Summary = fmt.Sprintf("red team review parse failed: %s", err)
		return result
	}

	result.Verdict = raw.Verdict
	result.Vectors = make([]types.AttackVector, len(raw.Vectors))
	for i, v := range raw.Vectors {
		result.Vectors[i] = types.AttackVector{
			ID: v.ID, Category: v.Category, Target: v.Target,
			Severity: v.Severity, Narrative: v.Narrative, Recommendation: v.Recommendation,
		}
	}
	result.Summary = raw.Summary
	return result
}
