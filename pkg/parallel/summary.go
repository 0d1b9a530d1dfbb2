package parallel

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/glitchlab/glitchlab/pkg/types"
)

var (
	summaryHeaderStyle = lipgloss.NewStyle().Bold(true)
	summaryGoodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A8E6CF"))
	summaryWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB3BA"))
	summaryBadStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFCCCB"))
)

func statusStyle(status types.Status) lipgloss.Style {
	switch status {
	case types.StatusPRCreated:
		return summaryGoodStyle
	case types.StatusCommitted:
		return summaryWarnStyle
	default:
		return summaryBadStyle
	}
}

// PrintSummary writes a fixed-width results table to w, one row per
// outcome in the order given, followed by a success-count and total-cost
// line.
func PrintSummary(w io.Writer, outcomes []TaskOutcome) {
	fmt.Fprintln(w, summaryHeaderStyle.Render("Parallel Run Results"))
	fmt.Fprintf(w, "%-20s %-20s %-40s %10s\n", "TASK", "STATUS", "PR / BRANCH", "COST")

	var totalCost float64
	var successes int

	for _, o := range outcomes {
		r := o.Result
		status := r.Status
		if status == "" {
			status = types.StatusError
		}
		if status == types.StatusPRCreated {
			successes++
		}
		totalCost += r.Budget.EstimatedCost

		prOrBranch := r.PRURL
		if prOrBranch == "" {
			prOrBranch = r.Branch
		}
		if prOrBranch == "" {
			prOrBranch = "—"
		}
		if len(prOrBranch) > 40 {
			prOrBranch = prOrBranch[:40]
		}

		fmt.Fprintf(w, "%-20s %-20s %-40s %10s\n",
			r.TaskID,
			statusStyle(status).Render(string(status)),
			prOrBranch,
			fmt.Sprintf("$%.4f", r.Budget.EstimatedCost),
		)
	}

	fmt.Fprintln(w, strings.Repeat("-", 90))
	fmt.Fprintln(w, summaryHeaderStyle.Render(
		fmt.Sprintf("%d/%d succeeded | Total cost: $%.4f", successes, len(outcomes), totalCost)))
}
