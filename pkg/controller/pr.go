package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/glitchlab/glitchlab/pkg/types"
	"github.com/glitchlab/glitchlab/pkg/workspace"
)

func (c *Controller) createPR(ctx context.Context, task *types.Task, impl *types.ImplementationResult, rel *types.ReleaseResult, baseBranch string) (string, error) {
	title := impl.CommitMessage
	if title == "" {
		title = fmt.Sprintf("glitchlab: %s", task.TaskID)
	}
	body := buildPRBody(task, impl, rel)

	return workspace.CreatePR(ctx, c.repoPath, title, body, baseBranch, c.workspace.Branch())
}

func buildPRBody(task *types.Task, impl *types.ImplementationResult, rel *types.ReleaseResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## GLITCHLAB Automated PR\n\n**Task:** %s\n**Source:** %s\n\n", task.TaskID, task.Source)

	summary := impl.Summary
	if summary == "" {
		summary = "No summary provided."
	}
	fmt.Fprintf(&b, "### Summary\n%s\n\n### Changes\n", summary)

	for _, change := range impl.Changes {
		fmt.Fprintf(&b, "- `%s` %s\n", changeOpVerbPR(change.Op), change.Path)
	}

	fmt.Fprintf(&b, "\n### Version Impact\n- **Bump:** %s\n- **Reasoning:** %s\n\n### Changelog\n%s\n",
		rel.VersionBump, orNA(rel.Reasoning), orNA(rel.ChangelogEntry))

	b.WriteString("\n---\n*Generated by GLITCHLAB*\n")
	return b.String()
}

func changeOpVerbPR(op types.ChangeOp) string {
	switch op.(type) {
	case types.CreateOp:
		return "create"
	case types.DeleteOp:
		return "delete"
	case types.ModifyContentOp, types.ModifyPatchOp, types.ModifySurgicalOp:
		return "modify"
	default:
		return "change"
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
