// Package controller implements C9: the deterministic brainstem that
// sequences every other component into one task run. It is not smart — it
// never writes code itself, only coordinates: create workspace, plan,
// check boundaries, implement, test/debug loop, security (plus red_team
// for high-risk tasks), release, archive, commit and open a PR.
package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glitchlab/glitchlab/pkg/apply"
	"github.com/glitchlab/glitchlab/pkg/boundary"
	"github.com/glitchlab/glitchlab/pkg/config"
	"github.com/glitchlab/glitchlab/pkg/contextprovider"
	"github.com/glitchlab/glitchlab/pkg/glitchlog"
	"github.com/glitchlab/glitchlab/pkg/history"
	"github.com/glitchlab/glitchlab/pkg/indexer"
	"github.com/glitchlab/glitchlab/pkg/llm"
	"github.com/glitchlab/glitchlab/pkg/router"
	"github.com/glitchlab/glitchlab/pkg/types"
	"github.com/glitchlab/glitchlab/pkg/workspace"
)

// Result is what Run returns: the terminal status of one task attempt plus
// whatever artifacts it produced along the way.
type Result struct {
	TaskID string            `json:"task_id"`
	Status types.Status      `json:"status"`
	PRURL  string            `json:"pr_url,omitempty"`
	Branch string            `json:"branch,omitempty"`
	Error  string            `json:"error,omitempty"`
	Events []string          `json:"events,omitempty"`
	Budget types.BudgetState `json:"budget"`
}

// Controller runs the full agent pipeline for one task against one repo.
// One Controller is built per repo; Run is called once per task and is not
// safe to call concurrently on the same Controller (each task gets its own
// Router budget and workspace, but event log and prelude prefix are
// Controller-scoped state reset at the top of Run).
type Controller struct {
	repoPath    string
	config      *config.Settings
	allowCore   bool
	autoApprove bool
	testCommand string

	router    *router.Router
	boundary  *boundary.Enforcer
	history   *history.History
	prelude   *contextprovider.Provider
	log       *glitchlog.Logger
	reporter  Reporter
	confirmer Confirmer

	task             *types.Task
	workspace        *workspace.Workspace
	baseBranch       string
	eventLog         []string
	repoIndexContext string
	preludePrefix    string

	// Stage summary state, reset at the top of Run and folded into the
	// history entry's EventsSummary regardless of which terminal status the
	// run ends on.
	planSteps            int
	planRisk             types.RiskLevel
	testsPassedOnAttempt int
	fixAttempts          int
	securityVerdict      types.SecurityVerdict
	versionBump          types.VersionBump
}

// Option configures optional Controller behavior beyond the required
// constructor arguments.
type Option func(*Controller)

// WithReporter overrides the default no-op Reporter.
func WithReporter(r Reporter) Option { return func(c *Controller) { c.reporter = r } }

// WithConfirmer overrides the default always-deny Confirmer used when
// autoApprove is false and a gate fires.
func WithConfirmer(cf Confirmer) Option { return func(c *Controller) { c.confirmer = cf } }

// WithTestCommand sets the command the fix loop runs to validate changes.
// An empty test command skips the fix loop entirely, matching the
// original's "if self.test_command" guard.
func WithTestCommand(cmd string) Option { return func(c *Controller) { c.testCommand = cmd } }

// WithLogger overrides the default Normal-level stdout logger.
func WithLogger(l *glitchlog.Logger) Option { return func(c *Controller) { c.log = l } }

// New builds a Controller rooted at repoPath, with one Router wrapping
// provider scoped to cfg's budget ceilings.
func New(repoPath string, cfg *config.Settings, provider llm.Provider, allowCore, autoApprove bool, opts ...Option) (*Controller, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving repo path: %w", err)
	}

	be, err := boundary.New(cfg.Boundary.ProtectedPrefixes, cfg.Boundary.ProtectedGlobs)
	if err != nil {
		return nil, fmt.Errorf("building boundary enforcer: %w", err)
	}

	hist, err := history.New(abs)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}

	c := &Controller{
		repoPath:    abs,
		config:      cfg,
		allowCore:   allowCore,
		autoApprove: autoApprove,

		router:   router.New(provider, cfg.Budget.MaxTokens, cfg.Budget.MaxCost),
		boundary: be,
		history:  hist,
		prelude:  contextprovider.New(abs),
		log:      glitchlog.New(glitchlog.ParseLevel(cfg.LogLevel)),

		reporter:  NopReporter{},
		confirmer: DenyConfirmer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run executes the full pipeline for task: workspace creation, planning,
// boundary check, implementation, the test/debug fix loop, security (plus
// red_team for high-risk tasks), release assessment, documentation, and
// finally commit/push/PR. Every exit path funnels through one deferred
// cleanup + history record, matching the original's try/finally shape.
func (c *Controller) Run(ctx context.Context, task *types.Task) (Result, error) {
	start := time.Now()
	c.task = task
	c.eventLog = nil
	c.repoIndexContext = ""
	c.preludePrefix = ""
	c.planSteps = 0
	c.planRisk = ""
	c.testsPassedOnAttempt = 0
	c.fixAttempts = 0
	c.securityVerdict = ""
	c.versionBump = ""

	result := Result{TaskID: task.TaskID, Status: types.StatusError}
	c.reporter.TaskStarted(task)

	ws, err := workspace.New(c.repoPath, task.TaskID, c.config.WorkspaceDir)
	if err != nil {
		return c.recordAndReturn(result, start, fmt.Errorf("building workspace: %w", err))
	}
	c.workspace = ws

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		ws.Cleanup(cleanupCtx)
	}()

	baseBranch, err := workspace.DetectBaseBranch(ctx, c.repoPath)
	if err != nil {
		result.Status = types.StatusError
		result.Error = err.Error()
		return c.recordAndReturn(result, start, err)
	}

	if err := ws.Create(ctx, baseBranch); err != nil {
		result.Status = types.StatusError
		result.Error = err.Error()
		return c.recordAndReturn(result, start, err)
	}
	c.baseBranch = baseBranch
	c.logEvent("workspace_created", ws.Path())

	c.gatherAmbientContext(ctx, ws.Path(), task)

	failureContext, _ := c.history.BuildFailureContext(5)

	plan, err := c.runPlanner(ctx, task, failureContext)
	if err != nil {
		return c.recordAndReturn(Result{TaskID: task.TaskID, Status: types.StatusError, Error: err.Error()}, start, err)
	}
	c.planSteps = len(plan.Steps)
	c.planRisk = plan.RiskLevel
	if plan.Err != nil || plan.aborted {
		result.Status = types.StatusPlanFailed
		return c.recordAndReturn(result, start, nil)
	}

	violations := c.boundary.CheckPlan(&plan.Plan)
	if len(violations) > 0 {
		if !c.allowCore {
			c.reporter.Warn(fmt.Sprintf("boundary violation: %v", violations))
			result.Status = types.StatusBoundaryViolation
			return c.recordAndReturn(result, start, nil)
		}
		c.logEvent("core_override", fmt.Sprintf("%v", violations))
	}

	impl, err := c.runImplementer(ctx, task, &plan.Plan, ws.Path())
	if err != nil {
		return c.recordAndReturn(Result{TaskID: task.TaskID, Status: types.StatusError, Error: err.Error()}, start, err)
	}
	if impl.Err != nil {
		result.Status = types.StatusImplementationFailed
		return c.recordAndReturn(result, start, nil)
	}

	applied, _ := apply.Apply(ctx, ws.Path(), impl.Changes)
	testApplied, _ := apply.ApplyTests(ws.Path(), impl.TestsAdded)
	for _, a := range append(applied, testApplied...) {
		c.reporter.StepApplied(a.Action, a.Path)
	}

	if c.config.EnableTestEngineer {
		c.runTestEngineer(ctx, task, &plan.Plan, impl)
	}

	if c.testCommand != "" {
		ok := c.runFixLoop(ctx, task, ws.Path(), impl)
		if !ok {
			result.Status = types.StatusTestsFailed
			if c.config.Gates.PauseOnTestFailure && !c.confirm("Tests still failing. Continue to PR anyway?") {
				return c.recordAndReturn(result, start, nil)
			}
		}
	}

	sec, err := c.runSecurity(ctx, task, impl, ws.Path())
	if err != nil {
		return c.recordAndReturn(Result{TaskID: task.TaskID, Status: types.StatusError, Error: err.Error()}, start, err)
	}
	c.securityVerdict = sec.Verdict
	if sec.Verdict == types.VerdictBlock {
		c.reporter.SecurityIssues(sec)
		if !c.config.Gates.AllowSecurityOverride || !c.confirm("Security blocked this change. Override?") {
			result.Status = types.StatusSecurityBlocked
			return c.recordAndReturn(result, start, nil)
		}
	}

	rel, err := c.runRelease(ctx, task, &plan.Plan, impl, sec.Verdict, ws.Path())
	if err != nil {
		return c.recordAndReturn(Result{TaskID: task.TaskID, Status: types.StatusError, Error: err.Error()}, start, err)
	}
	c.versionBump = rel.VersionBump

	arch := c.runArchivist(ctx, task, &plan.Plan, impl, rel, ws.Path())
	c.applyArchivistOutput(ws.Path(), arch)

	commitMsg := impl.CommitMessage
	if commitMsg == "" {
		commitMsg = fmt.Sprintf("glitchlab: %s", task.TaskID)
	}
	sha, err := ws.Commit(ctx, commitMsg)
	if err != nil {
		return c.recordAndReturn(Result{TaskID: task.TaskID, Status: types.StatusError, Error: err.Error()}, start, err)
	}
	_ = sha

	if c.config.Gates.PauseBeforePR {
		diff, _ := ws.DiffStat(ctx, baseBranch)
		c.reporter.DiffSummary(diff)
		if !c.confirm("Create PR?") {
			result.Status = types.StatusPRCancelled
			result.Branch = ws.Branch()
			return c.recordAndReturn(result, start, nil)
		}
	}

	if !c.config.Git.CreatePR {
		result.Status = types.StatusCommitted
		result.Branch = ws.Branch()
		return c.recordAndReturn(result, start, nil)
	}

	prURL, err := c.createPR(ctx, task, impl, rel, baseBranch)
	if err != nil {
		c.log.Warningf("PR creation failed: %v", err)
		result.Status = types.StatusCommitted
		result.Branch = ws.Branch()
		return c.recordAndReturn(result, start, nil)
	}

	result.Status = types.StatusPRCreated
	result.PRURL = prURL
	c.reporter.PRCreated(prURL)

	return c.recordAndReturn(result, start, nil)
}

// recordAndReturn classifies runErr into a terminal status — budget_exceeded
// and interrupted get their own statuses so a caller (or glitchlab stats)
// can tell "ran out of budget" and "killed mid-run" apart from a generic
// error, matching the original's exception-type dispatch in its run()
// try/except (controller.py).
func (c *Controller) recordAndReturn(result Result, start time.Time, runErr error) (Result, error) {
	if runErr != nil {
		if result.Error == "" {
			result.Error = runErr.Error()
		}
		switch {
		case errors.Is(runErr, context.Canceled):
			result.Status = types.StatusInterrupted
		case errors.Is(runErr, router.ErrBudgetExceeded):
			result.Status = types.StatusBudgetExceeded
		case result.Status == "":
			result.Status = types.StatusError
		}
	}
	result.Events = append([]string{}, c.eventLog...)
	result.Budget = c.router.State()
	c.reporter.BudgetSummary(result.Budget)

	entry := types.HistoryEntry{
		Timestamp:    time.Now().UTC(),
		TaskID:       result.TaskID,
		Objective:    c.task.Objective,
		Status:       string(result.Status),
		RiskLevel:    c.task.RiskLevel,
		Budget:       result.Budget,
		DurationSecs: time.Since(start).Seconds(),
		Branch:       result.Branch,
		PRURL:        result.PRURL,
		Error:        result.Error,
		Events:       result.Events,
		EventsSummary: types.EventsSummary{
			PlanSteps:            c.planSteps,
			PlanRisk:             c.planRisk,
			TestsPassedOnAttempt: c.testsPassedOnAttempt,
			FixAttempts:          c.fixAttempts,
			SecurityVerdict:      c.securityVerdict,
			VersionBump:          c.versionBump,
		},
	}
	if err := c.history.Record(entry); err != nil {
		c.log.Warningf("failed to record history: %v", err)
	}

	return result, runErr
}

// gatherAmbientContext loads the context provider prefix and the repo
// index summary used by the Planner, mirroring the original's prelude +
// indexer pre-planning steps. Failures in either are non-fatal — an
// unavailable context provider or an unindexable repo just means the
// Planner runs with less context, not that the task fails outright.
func (c *Controller) gatherAmbientContext(ctx context.Context, wsPath string, task *types.Task) {
	if c.prelude.Available() {
		c.prelude.Refresh(ctx)
		c.preludePrefix = c.prelude.BuildAgentPrefix(ctx, 4000)
		if c.preludePrefix != "" {
			summary := c.prelude.Summary()
			c.logEvent("prelude_loaded", fmt.Sprintf("%d files, %d ADRs", len(summary.Files), summary.DecisionsCount))

			if constraints := c.prelude.GetConstraints(); len(constraints) > 0 {
				task.Constraints = dedupMerge(task.Constraints, constraints)
			}
		}
	}

	idx, err := indexer.Build(wsPath, 0)
	if err != nil {
		c.log.Warningf("repo index failed: %v", err)
		return
	}
	c.repoIndexContext = idx.ToAgentContext(indexer.DefaultMaxFiles, 6000)
	c.logEvent("repo_indexed", fmt.Sprintf("%d files, %d languages", idx.TotalFiles, len(idx.Languages)))
}

func dedupMerge(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// gatherFileContext reads the current content of each file relative to
// workingDir, truncating any file over maxLines lines. A file that can't be
// read (doesn't exist yet, permissions) is simply omitted rather than
// failing the whole context build.
func gatherFileContext(workingDir string, files []string, maxLines int) map[string]string {
	out := make(map[string]string)
	for _, f := range files {
		full := filepath.Join(workingDir, f)
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		lines := strings.Split(string(data), "\n")
		if len(lines) > maxLines {
			out[f] = strings.Join(lines[:maxLines], "\n") + fmt.Sprintf("\n\n... truncated (%d lines total)", len(lines))
		} else {
			out[f] = string(data)
		}
	}
	return out
}

func (c *Controller) logEvent(eventType, data string) {
	c.eventLog = append(c.eventLog, fmt.Sprintf("%s: %s", eventType, data))
	c.log.Debugf("[event] %s: %s", eventType, data)
}

func (c *Controller) confirm(prompt string) bool {
	if c.autoApprove {
		return true
	}
	return c.confirmer.Confirm(prompt)
}
