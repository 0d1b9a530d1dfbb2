package agents

import (
	"context"
	"fmt"

	"github.com/glitchlab/glitchlab/pkg/llm"
	"github.com/glitchlab/glitchlab/pkg/router"
	"github.com/glitchlab/glitchlab/pkg/types"
)

const debuggerSystemPrompt = `You are the debug engine inside an automated code-change pipeline.

You are invoked ONLY when tests fail or a build breaks. Your job is to produce a MINIMAL fix.
Nothing more.

You MUST respond with valid JSON only.

Output schema:
{
  "diagnosis": "What went wrong and why",
  "root_cause": "The specific root cause",
  "fix": {
    "changes": [
      {"file": "path/to/file", "action": "modify", "patch": "unified diff of the fix", "surgical_blocks": [{"search": "exact existing text", "replace": "replacement text"}], "description": "what this fixes"}
    ]
  },
  "confidence": "high|medium|low",
  "should_retry": true,
  "notes": "Any additional context"
}

Rules:
- Fix the EXACT failure. Nothing else.
- Do not refactor. Do not improve. Do not add features.
- If you cannot fix it with confidence, set should_retry=false.
- Keep patches as small as possible.
- Analyze the error output carefully before proposing changes.`

// DebugRequest carries the fix-loop state the Debugger needs beyond the
// base AgentContext: what failed, how, and what's already been tried.
type DebugRequest struct {
	ErrorOutput   string
	TestCommand   string
	Attempt       int
	PreviousFixes []types.DebugResult
}

// Debugger builds the Debugger agent's prompt from a failing test run and
// runs it through r.
func Debugger(ctx context.Context, r *router.Router, model string, ac *types.AgentContext, req DebugRequest) (*types.DebugResult, error) {
	messages := []llm.Message{systemMsg(debuggerSystemPrompt), userMsg(debuggerUserContent(ac, req))}

	resp, err := r.Call(ctx, messages, llm.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("debugger call: %w", err)
	}

	return parseDebugResponse(resp, model), nil
}

func debuggerUserContent(ac *types.AgentContext, req DebugRequest) string {
	prevFixes := ""
	if len(req.PreviousFixes) > 0 {
		prevFixes = "\n\nPrevious fix attempts that did NOT work:\n"
		for i, fix := range req.PreviousFixes {
			prevFixes += fmt.Sprintf("\nAttempt %d: %s\n", i+1, fix.Diagnosis)
		}
	}

	errorOutput := req.ErrorOutput
	if errorOutput == "" {
		errorOutput = "No error output provided"
	}
	testCommand := req.TestCommand
	if testCommand == "" {
		testCommand = "unknown"
	}

	content := fmt.Sprintf(`Test/build failure detected.

Task: %s
Task ID: %s
Fix attempt: %d

Command that failed: %s

Error output:
%s%s`,
		ac.Objective, ac.TaskID, req.Attempt, testCommand, fence(errorOutput), prevFixes)

	content += renderFileContext(ac.FileContext)
	content += "\n\nDiagnose the failure and produce a minimal fix as JSON."
	return content
}

func fence(s string) string {
	return "```\n" + s + "\n```"
}

func parseDebugResponse(resp *llm.Response, model string) *types.DebugResult {
	var raw struct {
		Diagnosis string `json:"diagnosis"`
		RootCause string `json:"root_cause"`
		Fix       struct {
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
		} `json:"fix"`
		Confidence  string `json:"confidence"`
		ShouldRetry bool   `json:"should_retry"`
		Notes       string `json:"notes"`
	}

	err := decodeJSON(resp.Content, &raw)

	result := &types.DebugResult{AgentMeta: metaFrom("debugger", model, resp, err, resp.Content)}
	if err != nil {
		result.Diagnosis = "failed to parse debugger output"
		result.RootCause = err.Error()
		result.ShouldRetry = false
		return result
	}

	result.Diagnosis = raw.Diagnosis
	result.RootCause = raw.RootCause
	result.Confidence = confidenceToScore(raw.Confidence)
	result.ShouldRetry = raw.ShouldRetry
	result.Notes = raw.Notes

	result.Fix = make([]types.FileChange, 0, len(raw.Fix.Changes))
	for _, c := range raw.Fix.Changes {
		surgical := make([]types.SearchReplace, len(c.SurgicalBlocks))
		for i, b := range c.SurgicalBlocks {
			surgical[i] = types.SearchReplace{Search: b.Search, Replace: b.Replace}
		}
		op := changeOpFor(c.Action, c.Content, c.Patch, surgical)
		if op == nil {
			continue
		}
		result.Fix = append(result.Fix, types.FileChange{Path: c.File, Op: op})
	}

	return result
}

func confidenceToScore(level string) float64 {
	switch level {
	case "high":
		return 0.9
	case "medium":
		return 0.6
	case "low":
		return 0.3
	default:
		return 0
	}
}
