package controller

import (
	"context"
	"fmt"

	"github.com/glitchlab/glitchlab/pkg/agents"
	"github.com/glitchlab/glitchlab/pkg/apply"
	"github.com/glitchlab/glitchlab/pkg/sandbox"
	"github.com/glitchlab/glitchlab/pkg/types"
)

// planOutcome wraps the Planner's output with the one extra bit Run needs
// that isn't part of the agent's own schema: whether a human gate rejected
// an otherwise well-formed plan.
type planOutcome struct {
	types.Plan
	aborted bool
}

func (c *Controller) runPlanner(ctx context.Context, task *types.Task, failureContext string) (*planOutcome, error) {
	objective := task.Objective
	if c.repoIndexContext != "" {
		objective = c.repoIndexContext + "\n\n---\n\n" + objective
	}

	ac := &types.AgentContext{
		TaskID:             task.TaskID,
		Objective:          objective,
		RepoPath:           c.repoPath,
		Constraints:        task.Constraints,
		AcceptanceCriteria: task.AcceptanceCriteria,
		FailureContext:     failureContext,
		PreludePrefix:      c.preludePrefix,
	}

	plan, err := agents.Planner(ctx, c.router, c.config.Model, ac)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	c.logEvent("plan_created", fmt.Sprintf("%d steps, risk=%s", len(plan.Steps), plan.RiskLevel))
	c.reporter.PlanCreated(plan)

	out := &planOutcome{Plan: *plan}
	if plan.Err == nil && c.config.Gates.PauseAfterPlan && !c.confirm("Approve plan?") {
		out.aborted = true
	}
	return out, nil
}

func (c *Controller) runImplementer(ctx context.Context, task *types.Task, plan *types.Plan, wsPath string) (*types.ImplementationResult, error) {
	fileContext := gatherFileContext(wsPath, plan.FilesLikelyAffected, 200)

	ac := &types.AgentContext{
		TaskID:             task.TaskID,
		Objective:          task.Objective,
		RepoPath:           c.repoPath,
		Constraints:        task.Constraints,
		AcceptanceCriteria: task.AcceptanceCriteria,
		FileContext:        fileContext,
		PreludePrefix:      c.preludePrefix,
		Upstream:           plan,
	}

	impl, err := agents.Implementer(ctx, c.router, c.config.Model, ac, plan)
	if err != nil {
		return nil, fmt.Errorf("implementer: %w", err)
	}
	c.logEvent("implementation_created", fmt.Sprintf("%d changes, %d tests", len(impl.Changes), len(impl.TestsAdded)))
	return impl, nil
}

func (c *Controller) runTestEngineer(ctx context.Context, task *types.Task, plan *types.Plan, impl *types.ImplementationResult) {
	ac := &types.AgentContext{TaskID: task.TaskID, Objective: task.Objective, RepoPath: c.repoPath}
	tp, err := agents.TestEngineer(ctx, c.router, c.config.Model, ac, agents.TestEngineerRequest{Plan: plan, Implementation: impl})
	if err != nil {
		c.log.Warningf("test_engineer call failed: %v", err)
		return
	}
	c.logEvent("test_plan_created", fmt.Sprintf("%d validation steps", len(tp.ValidationSteps)))
}

// runFixLoop runs test -> debug -> fix up to config.FixLoop.MaxAttempts
// times, via the Sandbox's allow-listed command executor. Returns true once
// the test command exits clean; false once attempts are exhausted or the
// Debugger itself says not to retry.
func (c *Controller) runFixLoop(ctx context.Context, task *types.Task, wsPath string, impl *types.ImplementationResult) bool {
	maxAttempts := c.config.FixLoop.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	box := sandbox.New(c.config.Sandbox.AllowedCommands, c.config.Sandbox.DeniedPatterns, wsPath, c.config.Sandbox.Timeout)
	var previousFixes []types.DebugResult
	defer func() { c.fixAttempts = len(previousFixes) }()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.reporter.FixAttempt(attempt, maxAttempts)

		tr, err := box.Execute(ctx, c.testCommand)
		if err != nil {
			c.log.Warningf("test command rejected by sandbox: %v", err)
			return false
		}
		if tr.Success() {
			c.testsPassedOnAttempt = attempt
			c.reporter.TestsPassed()
			c.logEvent("tests_passed", fmt.Sprintf("attempt %d", attempt))
			return true
		}

		c.reporter.TestsFailed(attempt)
		c.logEvent("tests_failed", fmt.Sprintf("attempt %d", attempt))
		if attempt >= maxAttempts {
			break
		}

		errorOutput := tr.Stderr
		if errorOutput == "" {
			errorOutput = tr.Stdout
		}
		if len(errorOutput) > 3000 {
			errorOutput = errorOutput[:3000]
		}

		changedFiles := make([]string, 0, len(impl.Changes))
		for _, ch := range impl.Changes {
			changedFiles = append(changedFiles, ch.Path)
		}

		ac := &types.AgentContext{
			TaskID:      task.TaskID,
			Objective:   task.Objective,
			RepoPath:    c.repoPath,
			FileContext: gatherFileContext(wsPath, changedFiles, 200),
		}

		debugResult, err := agents.Debugger(ctx, c.router, c.config.Model, ac, agents.DebugRequest{
			ErrorOutput:   errorOutput,
			TestCommand:   c.testCommand,
			Attempt:       attempt,
			PreviousFixes: previousFixes,
		})
		if err != nil {
			c.log.Warningf("debugger call failed: %v", err)
			return false
		}
		previousFixes = append(previousFixes, *debugResult)

		if !debugResult.ShouldRetry {
			c.log.Infof("debugger recommends not retrying")
			break
		}

		if len(debugResult.Fix) > 0 {
			applied, _ := apply.Apply(ctx, wsPath, debugResult.Fix)
			for _, a := range applied {
				c.reporter.StepApplied(a.Action, a.Path)
			}
		}
	}

	return false
}

func (c *Controller) runSecurity(ctx context.Context, task *types.Task, impl *types.ImplementationResult, wsPath string) (*types.SecurityResult, error) {
	diff, _ := c.workspace.DiffFull(ctx, c.baseBranch)

	changedFiles := make([]string, 0, len(impl.Changes))
	for _, ch := range impl.Changes {
		changedFiles = append(changedFiles, ch.Path)
	}
	boundaryFindings := c.boundary.Check(changedFiles)

	ac := &types.AgentContext{TaskID: task.TaskID, Objective: task.Objective, RepoPath: c.repoPath, Upstream: impl}
	sec, err := agents.Security(ctx, c.router, c.config.Model, ac, agents.SecurityRequest{
		Diff:             diff,
		Changes:          impl.Changes,
		ProtectedPaths:   c.config.Boundary.ProtectedPrefixes,
		BoundaryFindings: boundaryFindings,
	})
	if err != nil {
		return nil, fmt.Errorf("security: %w", err)
	}
	c.logEvent("security_review", string(sec.Verdict))

	if task.RiskLevel == types.RiskHigh && c.config.EnableRedTeam {
		c.foldRedTeamIntoSecurity(ctx, task, impl, diff, sec)
	}

	return sec, nil
}

// foldRedTeamIntoSecurity runs the adversarial red_team pass for high-risk
// tasks and merges its findings into sec in place. red_team never opens its
// own terminal status — its only effect is on this same Security gate, per
// the fixed set of outcomes spec.md defines.
func (c *Controller) foldRedTeamIntoSecurity(ctx context.Context, task *types.Task, impl *types.ImplementationResult, diff string, sec *types.SecurityResult) {
	ac := &types.AgentContext{TaskID: task.TaskID, Objective: task.Objective, RepoPath: c.repoPath}
	red, err := agents.RedTeam(ctx, c.router, c.config.Model, ac, agents.RedTeamRequest{Diff: diff, Changes: impl.Changes})
	if err != nil {
		c.log.Warningf("red_team call failed: %v", err)
		return
	}
	c.logEvent("red_team_review", fmt.Sprintf("verdict=%s vectors=%d", red.Verdict, len(red.Vectors)))

	if red.Verdict != "exposed" {
		return
	}

	forceBlock := false
	for _, v := range red.Vectors {
		sec.Issues = append(sec.Issues, types.SecurityIssue{
			Severity:    v.Severity,
			Description: fmt.Sprintf("[red_team %s] %s — %s", v.ID, v.Narrative, v.Recommendation),
			File:        v.Target,
		})
		if v.Severity == "high" || v.Severity == "critical" {
			forceBlock = true
		}
	}
	if forceBlock {
		sec.Verdict = types.VerdictBlock
	} else if sec.Verdict == types.VerdictPass {
		sec.Verdict = types.VerdictWarn
	}
}

func (c *Controller) runRelease(ctx context.Context, task *types.Task, plan *types.Plan, impl *types.ImplementationResult, verdict types.SecurityVerdict, wsPath string) (*types.ReleaseResult, error) {
	diffStat := ""
	if c.workspace != nil {
		diffStat, _ = c.workspace.DiffStat(ctx, c.baseBranch)
	}

	ac := &types.AgentContext{TaskID: task.TaskID, Objective: task.Objective, RepoPath: c.repoPath, Upstream: impl}
	rel, err := agents.Release(ctx, c.router, c.config.Model, ac, agents.ReleaseRequest{
		Plan:            plan,
		Implementation:  impl,
		SecurityVerdict: verdict,
		Diff:            diffStat,
	})
	if err != nil {
		return nil, fmt.Errorf("release: %w", err)
	}
	c.logEvent("release_assessment", string(rel.VersionBump))
	return rel, nil
}

func (c *Controller) runArchivist(ctx context.Context, task *types.Task, plan *types.Plan, impl *types.ImplementationResult, rel *types.ReleaseResult, wsPath string) *types.ArchivistResult {
	existingDocs := findExistingDocs(wsPath)

	ac := &types.AgentContext{TaskID: task.TaskID, Objective: task.Objective, RepoPath: c.repoPath, PreludePrefix: c.preludePrefix, Upstream: impl}
	arch, err := agents.Archivist(ctx, c.router, c.config.Model, ac, agents.ArchivistRequest{
		Plan:           plan,
		Implementation: impl,
		Release:        rel,
		ExistingDocs:   existingDocs,
	})
	if err != nil {
		c.log.Warningf("archivist call failed: %v", err)
		return &types.ArchivistResult{}
	}
	c.logEvent("archivist_completed", fmt.Sprintf("wrote_adr=%v docs=%d", arch.ShouldWriteADR, len(arch.DocUpdates)))
	return arch
}
