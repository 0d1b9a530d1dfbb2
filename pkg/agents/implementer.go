package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/glitchlab/glitchlab/pkg/llm"
	"github.com/glitchlab/glitchlab/pkg/router"
	"github.com/glitchlab/glitchlab/pkg/types"
)

const implementerSystemPrompt = `You are the implementation engine inside an automated code-change pipeline.

You receive an execution plan and produce code changes.

You MUST respond with valid JSON only. No markdown wrapping around the JSON itself.

Output schema:
{
  "changes": [
    {
      "file": "path/to/file",
      "action": "modify|create|delete",
      "content": "full file content if create, or omitted for delete",
      "patch": "unified diff for modify (preferred for existing files)",
      "surgical_blocks": [{"search": "exact existing text", "replace": "replacement text"}],
      "description": "what this change does"
    }
  ],
  "tests_added": [
    {"file": "path/to/test_file", "content": "full test file content or additions"}
  ],
  "commit_message": "feat: concise description of change",
  "summary": "Brief human-readable summary of all changes"
}

Rules:
- Follow the plan exactly. Do not add unrequested features.
- Keep diffs minimal. Prefer surgical_blocks for a small, precise edit to an
  existing file; patch for a larger but still targeted change; content only
  when the file is new or being rewritten wholesale.
- Always add or update tests for behavior you change.
- Use idiomatic patterns for the language detected in the repository.
- If a step is unclear, implement the safest interpretation.
- Never modify files not mentioned in the plan unless strictly necessary to satisfy it.
- Commit message must follow conventional commits format.`

// Implementer builds the Implementer agent's prompt from a Plan and runs it
// through r.
func Implementer(ctx context.Context, r *router.Router, model string, ac *types.AgentContext, plan *types.Plan) (*types.ImplementationResult, error) {
	messages := []llm.Message{systemMsg(implementerSystemPrompt), userMsg(implementerUserContent(ac, plan))}

	resp, err := r.Call(ctx, messages, llm.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("implementer call: %w", err)
	}

	return parseImplementationResponse(resp, model), nil
}

func implementerUserContent(ac *types.AgentContext, plan *types.Plan) string {
	var steps strings.Builder
	for _, s := range plan.Steps {
		fmt.Fprintf(&steps, "\nStep %d: %s\n  Files: %v\n  Action: %s\n", s.StepNumber, s.Description, s.Files, s.Action)
	}

	content := fmt.Sprintf(`Task: %s
Task ID: %s

Execution plan:
%s

Files likely affected: %v
Test strategy: %v`,
		ac.Objective, ac.TaskID, steps.String(), plan.FilesLikelyAffected, plan.TestStrategy)

	if ac.PreludePrefix != "" {
		content = ac.PreludePrefix + "\n\n" + content
	}
	content += renderFileContext(ac.FileContext)
	content += "\n\nImplement the changes as specified. Return JSON with your changes."
	return content
}

func parseImplementationResponse(resp *llm.Response, model string) *types.ImplementationResult {
	var raw struct {
		Changes []struct {
			File           string `json:"file"`
			Action         string `json:"action"`
			Content        string `json:"content"`
			Patch          string `json:"patch"`
			SurgicalBlocks []struct {
				Search  string `json:"search"`
				Replace string `json:"replace"`
			} `json:"surgical_blocks"`
			Description string `json:"description"`
		} `json:"changes"`
		TestsAdded []struct {
			File    string `json:"file"`
			Content string `json:"content"`
		} `json:"tests_added"`
		CommitMessage string `json:"commit_message"`
		Summary       string `json:"summary"`
	}

	err := decodeJSON(resp.Content, &raw)
	result := &types.ImplementationResult{AgentMeta: metaFrom("implementer", model, resp, err, resp.Content)}
	if err != nil {
		result.CommitMessage = "fix: implementation (parse error)"
		result.Summary = fmt.Sprintf("failed to parse implementation output: %s", err)
		return result
	}

	result.Changes = make([]types.FileChange, 0, len(raw.Changes))
	for _, c := range raw.Changes {
		surgical := make([]types.SearchReplace, len(c.SurgicalBlocks))
		for i, b := range c.SurgicalBlocks {
			surgical[i] = types.SearchReplace{Search: b.Search, Replace: b.Replace}
		}
		op := changeOpFor(c.Action, c.Content, c.Patch, surgical)
		if op == nil {
			continue
		}
		result.Changes = append(result.Changes, types.FileChange{Path: c.File, Op: op})
	}

	result.TestsAdded = make([]types.TestChange, len(raw.TestsAdded))
	for i, t := range raw.TestsAdded {
		result.TestsAdded[i] = types.TestChange{Path: t.File, Content: t.Content}
	}

	result.CommitMessage = raw.CommitMessage
	result.Summary = raw.Summary
	return result
}

// changeOpFor maps the agent's loose action/content/patch/surgical quadruple
// onto the tagged ChangeOp variants. For modify, priority order is
// surgical_blocks (most precise), then patch (carrying content as its
// fallback if the patch fails to apply), then a full-content overwrite.
func changeOpFor(action, content, patch string, surgical []types.SearchReplace) types.ChangeOp {
	switch action {
	case "create":
		return types.CreateOp{Content: content}
	case "delete":
		return types.DeleteOp{}
	case "modify":
		switch {
		case len(surgical) > 0:
			return types.ModifySurgicalOp{Edits: surgical}
		case patch != "":
			return types.ModifyPatchOp{Diff: patch, FallbackContent: content}
		case content != "":
			return types.ModifyContentOp{Content: content}
		default:
			return nil
		}
	default:
		return nil
	}
}
