// Package reporter is the ambient CLI presentation layer: a lipgloss-styled
// implementation of pkg/controller.Reporter. It is deliberately outside
// pkg/controller so the pipeline package never imports a rendering stack —
// cmd/glitchlab wires this in at the entry point.
package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/glitchlab/glitchlab/pkg/types"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB3BA")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#A8E6CF"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB3BA")).Bold(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFCCCB")).Bold(true)
	riskHighStyl = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFCCCB")).Bold(true)
)

// CLI renders Controller progress to w as it happens, in the teacher's
// header/label/indented-detail texture.
type CLI struct {
	w io.Writer
}

// New builds a CLI reporter writing to w.
func New(w io.Writer) *CLI {
	return &CLI{w: w}
}

func (c *CLI) TaskStarted(task *types.Task) {
	fmt.Fprintln(c.w, headerStyle.Render(fmt.Sprintf("▶ %s", task.TaskID)))
	fmt.Fprintln(c.w, labelStyle.Render("  "+task.Objective))
}

func (c *CLI) PlanCreated(plan *types.Plan) {
	riskStyle := okStyle
	if plan.RiskLevel == types.RiskHigh {
		riskStyle = riskHighStyl
	}
	fmt.Fprintf(c.w, "  plan: %d step(s), risk=%s, complexity=%s\n",
		len(plan.Steps), riskStyle.Render(string(plan.RiskLevel)), plan.EstimatedComplexity)
	for _, step := range plan.Steps {
		fmt.Fprintf(c.w, "    %d. %s %s\n", step.StepNumber, step.Description, labelStyle.Render(fmt.Sprint(step.Files)))
	}
}

func (c *CLI) StepApplied(action, path string) {
	fmt.Fprintf(c.w, "  %s %s\n", okStyle.Render(action), path)
}

func (c *CLI) FixAttempt(attempt, max int) {
	fmt.Fprintln(c.w, labelStyle.Render(fmt.Sprintf("  fix attempt %d/%d", attempt, max)))
}

func (c *CLI) TestsPassed() {
	fmt.Fprintln(c.w, okStyle.Render("  tests passed"))
}

func (c *CLI) TestsFailed(attempt int) {
	fmt.Fprintln(c.w, warnStyle.Render(fmt.Sprintf("  tests failed (attempt %d)", attempt)))
}

func (c *CLI) SecurityIssues(result *types.SecurityResult) {
	style := okStyle
	if result.Verdict == types.VerdictWarn {
		style = warnStyle
	} else if result.Verdict == types.VerdictBlock {
		style = errStyle
	}
	fmt.Fprintf(c.w, "  security: %s — %s\n", style.Render(string(result.Verdict)), result.Summary)
	for _, issue := range result.Issues {
		fmt.Fprintf(c.w, "    [%s] %s (%s)\n", issue.Severity, issue.Description, issue.File)
	}
}

func (c *CLI) DiffSummary(diff string) {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	fmt.Fprintln(c.w, labelStyle.Render(fmt.Sprintf("  diff: %d line(s)", len(lines))))
}

func (c *CLI) PRCreated(url string) {
	fmt.Fprintln(c.w, okStyle.Render("  PR: "+url))
}

func (c *CLI) BudgetSummary(state types.BudgetState) {
	fmt.Fprintln(c.w, labelStyle.Render(fmt.Sprintf(
		"  budget: %d tokens, $%.4f, %d call(s)", state.TotalTokens, state.EstimatedCost, state.CallCount)))
}

func (c *CLI) Warn(msg string) {
	fmt.Fprintln(c.w, warnStyle.Render("  ! "+msg))
}
