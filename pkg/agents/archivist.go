package agents

import (
	"context"
	"fmt"

	"github.com/glitchlab/glitchlab/pkg/llm"
	"github.com/glitchlab/glitchlab/pkg/router"
	"github.com/glitchlab/glitchlab/pkg/types"
)

const archivistSystemPrompt = `You are the documentation engine inside an automated code-change pipeline.

You are invoked AFTER a successful change. Your job is to decide whether it warrants an
architecture decision record and to produce any documentation updates it needs.

You MUST respond with valid JSON only.

Output schema:
{
  "adr": {
    "title": "ADR-NNN: Short descriptive title",
    "status": "accepted",
    "context": "What situation prompted this change",
    "decision": "What was decided and implemented",
    "consequences": "What this means going forward",
    "alternatives_considered": ["Alternative 1", "Alternative 2"]
  },
  "doc_updates": [
    {"file": "path/to/doc.md", "content": "The documentation content to write"}
  ],
  "architecture_notes": "Brief note about process or tooling implications",
  "should_write_adr": true
}

Rules:
- Write ADRs for significant architectural decisions or behavior changes.
- Skip for trivial changes (typo fixes, formatting, simple config tweaks) — set should_write_adr=false.
- Documentation should be concise, actionable, and useful months from now.
- Use the project's existing doc style if visible in context.`

// ArchivistRequest carries what the Archivist agent documents.
type ArchivistRequest struct {
	Plan           *types.Plan
	Implementation *types.ImplementationResult
	Release        *types.ReleaseResult
	ExistingDocs   []string
}

// Archivist builds the Archivist agent's prompt and runs it through r.
func Archivist(ctx context.Context, r *router.Router, model string, ac *types.AgentContext, req ArchivistRequest) (*types.ArchivistResult, error) {
	messages := []llm.Message{systemMsg(archivistSystemPrompt), userMsg(archivistUserContent(ac, req))}

	resp, err := r.Call(ctx, messages, llm.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("archivist call: %w", err)
	}

	return parseArchivistResponse(resp, model), nil
}

func archivistUserContent(ac *types.AgentContext, req ArchivistRequest) string {
	filesModified := make([]string, 0, len(req.Implementation.Changes))
	for _, c := range req.Implementation.Changes {
		filesModified = append(filesModified, c.Path)
	}

	stepsText := ""
	for _, s := range req.Plan.Steps {
		stepsText += fmt.Sprintf("\n- Step %d: %s", s.StepNumber, s.Description)
	}

	return fmt.Sprintf(`A change has been completed. Document it.

Task: %s
Task ID: %s
Risk level: %s
Version bump: %s

Implementation summary: %s

Plan steps:
%s

Files modified:
%s

Existing docs in repo:
%s

Produce documentation artifacts as JSON. Set should_write_adr=false for trivial changes.`,
		ac.Objective, ac.TaskID, req.Plan.RiskLevel, req.Release.VersionBump,
		req.Implementation.Summary, stepsText,
		renderList(filesModified, "- None"),
		renderList(req.ExistingDocs, "- None found"))
}

func parseArchivistResponse(resp *llm.Response, model string) *types.ArchivistResult {
	var raw struct {
		ADR *struct {
			Title                  string   `json:"title"`
			Status                 string   `json:"status"`
			Context                string   `json:"context"`
			Decision               string   `json:"decision"`
			Consequences           string   `json:"consequences"`
			AlternativesConsidered []string `json:"alternatives_considered"`
		} `json:"adr"`
		DocUpdates []struct {
			File    string `json:"file"`
			Content string `json:"content"`
		} `json:"doc_updates"`
		ArchitectureNotes string `json:"architecture_notes"`
		ShouldWriteADR    bool   `json:"should_write_adr"`
	}

	err := decodeJSON(resp.Content, &raw)
	result := &types.ArchivistResult{AgentMeta: metaFrom("archivist", model, resp, err, resp.Content)}
	if err != nil {
		result.ArchitectureNotes = "documentation generation failed"
		result.ShouldWriteADR = false
		return result
	}

	if raw.ADR != nil {
		result.ADR = fmt.Sprintf("# %s\n\nStatus: %s\n\n## Context\n%s\n\n## Decision\n%s\n\n## Consequences\n%s\n",
			raw.ADR.Title, raw.ADR.Status, raw.ADR.Context, raw.ADR.Decision, raw.ADR.Consequences)
	}
	result.DocUpdates = make([]types.DocUpdate, len(raw.DocUpdates))
	for i, d := range raw.DocUpdates {
		result.DocUpdates[i] = types.DocUpdate{Path: d.File, Content: d.Content}
	}
	result.ArchitectureNotes = raw.ArchitectureNotes
	result.ShouldWriteADR = raw.ShouldWriteADR
	return result
}
