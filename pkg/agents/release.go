package agents

import (
	"context"
	"fmt"

	"github.com/glitchlab/glitchlab/pkg/llm"
	"github.com/glitchlab/glitchlab/pkg/router"
	"github.com/glitchlab/glitchlab/pkg/types"
)

const releaseSystemPrompt = `You are the change-impact assessor inside an automated code-change pipeline.

You analyze a completed change for versioning impact and write its changelog entry.

You MUST respond with valid JSON only.

Output schema:
{
  "version_bump": "none|patch|minor|major",
  "reasoning": "Why this bump level",
  "changelog_entry": "Markdown changelog entry",
  "breaking_changes": [],
  "migration_notes": "Any migration needed, or empty",
  "risk_summary": "Brief risk assessment for deployment"
}

Rules:
- patch: bug fixes, non-breaking internal changes
- minor: new functionality, backward compatible
- major: breaking changes to public API or schema
- none: docs only, comments, formatting
- Be conservative. When in doubt, bump higher.
- Changelog should be clear for a reviewer skimming release notes.`

// ReleaseRequest carries what the Release agent needs: the finished
// implementation and what Security already found.
type ReleaseRequest struct {
	Plan            *types.Plan
	Implementation  *types.ImplementationResult
	SecurityVerdict types.SecurityVerdict
	Diff            string
}

// Release builds the Release agent's prompt and runs it through r.
func Release(ctx context.Context, r *router.Router, model string, ac *types.AgentContext, req ReleaseRequest) (*types.ReleaseResult, error) {
	messages := []llm.Message{systemMsg(releaseSystemPrompt), userMsg(releaseUserContent(ac, req))}

	resp, err := r.Call(ctx, messages, llm.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("release call: %w", err)
	}

	return parseReleaseResponse(resp, model), nil
}

func releaseUserContent(ac *types.AgentContext, req ReleaseRequest) string {
	filesModified := make([]string, 0, len(req.Implementation.Changes))
	for _, c := range req.Implementation.Changes {
		filesModified = append(filesModified, c.Path)
	}

	diff := req.Diff
	if len(diff) > 5000 {
		diff = diff[:5000]
	}
	if diff == "" {
		diff = "No diff available"
	}

	return fmt.Sprintf(`Analyze this change for version impact.

Task: %s
Task ID: %s
Risk level: %s

Files modified: %v
Implementation summary: %s
Security verdict: %s

Diff:
%s

Determine version bump and write a changelog entry as JSON.`,
		ac.Objective, ac.TaskID, req.Plan.RiskLevel, filesModified, req.Implementation.Summary, req.SecurityVerdict, fence(diff))
}

func parseReleaseResponse(resp *llm.Response, model string) *types.ReleaseResult {
	var raw struct {
		VersionBump     string   `json:"version_bump"`
		Reasoning       string   `json:"reasoning"`
		ChangelogEntry  string   `json:"changelog_entry"`
		BreakingChanges []string `json:"breaking_changes"`
		MigrationNotes  string   `json:"migration_notes"`
		RiskSummary     string   `json:"risk_summary"`
	}

	err := decodeJSON(resp.Content, &raw)
	result := &types.ReleaseResult{AgentMeta: metaFrom("release", model, resp, err, resp.Content)}
	if err != nil {
		result.VersionBump = types.BumpPatch
		result.Reasoning = fmt.Sprintf("could not parse release assessment: %s", err)
		result.ChangelogEntry = "- Changes applied (manual review needed)"
		return result
	}

	result.VersionBump = types.VersionBump(raw.VersionBump)
	result.Reasoning = raw.Reasoning
	result.ChangelogEntry = raw.ChangelogEntry
	result.BreakingChanges = raw.BreakingChanges
	result.MigrationNotes = raw.MigrationNotes
	result.RiskSummary = raw.RiskSummary
	return result
}
