package controller

import "github.com/glitchlab/glitchlab/pkg/types"

// Reporter is the presentation surface the Controller reports progress
// through. It is intentionally narrow so pkg/controller carries zero
// import-time dependency on whatever renders it — cmd/glitchlab wires a
// lipgloss-styled implementation; tests use NopReporter.
type Reporter interface {
	TaskStarted(task *types.Task)
	PlanCreated(plan *types.Plan)
	StepApplied(action, path string)
	FixAttempt(attempt, max int)
	TestsPassed()
	TestsFailed(attempt int)
	SecurityIssues(result *types.SecurityResult)
	DiffSummary(diff string)
	PRCreated(url string)
	BudgetSummary(state types.BudgetState)
	Warn(msg string)
}

// Confirmer answers a yes/no human gate. Controller only ever calls it when
// auto-approve is off and a configured gate is active.
type Confirmer interface {
	Confirm(prompt string) bool
}

// NopReporter discards everything. The Controller's default until a caller
// supplies a real one via WithReporter.
type NopReporter struct{}

func (NopReporter) TaskStarted(*types.Task)              {}
func (NopReporter) PlanCreated(*types.Plan)              {}
func (NopReporter) StepApplied(string, string)           {}
func (NopReporter) FixAttempt(int, int)                  {}
func (NopReporter) TestsPassed()                         {}
func (NopReporter) TestsFailed(int)                      {}
func (NopReporter) SecurityIssues(*types.SecurityResult) {}
func (NopReporter) DiffSummary(string)                   {}
func (NopReporter) PRCreated(string)                     {}
func (NopReporter) BudgetSummary(types.BudgetState)      {}
func (NopReporter) Warn(string)                          {}

// DenyConfirmer always answers no. It is the safe default for a Controller
// built without an interactive Confirmer: a gate that fires with nothing to
// ask blocks rather than silently proceeding.
type DenyConfirmer struct{}

func (DenyConfirmer) Confirm(string) bool { return false }

// AutoConfirmer always answers yes, for callers that want gates to pass
// through without a real human in the loop (distinct from Controller's own
// autoApprove flag, which skips the confirm call entirely — this is for a
// Confirmer explicitly wired as "yes" while still routing through Reporter
// output).
type AutoConfirmer struct{}

func (AutoConfirmer) Confirm(string) bool { return true }
