package types

// DebugResult is the Debugger agent's output, produced on each iteration of
// the test/debug fix loop.
type DebugResult struct {
	AgentMeta

	Diagnosis   string
	RootCause   string
	Fix         []FileChange
	Confidence  float64
	ShouldRetry bool
	Notes       string
}

// SecurityVerdict is the Security agent's pass/warn/block judgment.
type SecurityVerdict string

const (
	VerdictPass  SecurityVerdict = "pass"
	VerdictWarn  SecurityVerdict = "warn"
	VerdictBlock SecurityVerdict = "block"
)

// SecurityIssue is one finding the Security agent surfaces.
type SecurityIssue struct {
	Severity    string
	Description string
	File        string
}

// SecurityResult is the Security agent's output. Its parse-error fallback
// verdict is VerdictWarn, not VerdictBlock — a malformed response should
// surface for human review, not silently hard-fail the pipeline.
type SecurityResult struct {
	AgentMeta

	Verdict            SecurityVerdict
	Issues             []SecurityIssue
	DependencyChanges  []string
	BoundaryViolations []string
	Summary            string
}

// VersionBump is the Release agent's semver recommendation.
type VersionBump string

const (
	BumpNone  VersionBump = "none"
	BumpPatch VersionBump = "patch"
	BumpMinor VersionBump = "minor"
	BumpMajor VersionBump = "major"
)

// ReleaseResult is the Release agent's output.
type ReleaseResult struct {
	AgentMeta

	VersionBump     VersionBump
	Reasoning       string
	ChangelogEntry  string
	BreakingChanges []string
	MigrationNotes  string
	RiskSummary     string
}

// DocUpdate is one documentation file the Archivist wants touched.
type DocUpdate struct {
	Path    string
	Content string
}

// ArchivistResult is the Archivist agent's output: the closing stage that
// records an ADR and documentation updates for the change.
type ArchivistResult struct {
	AgentMeta

	ADR               string
	DocUpdates        []DocUpdate
	ArchitectureNotes string
	ShouldWriteADR    bool
}

// ValidationStep is one check the test_engineer role wants run against the
// change before it is considered validated, distinct from the unit/
// integration tests the Implementer writes alongside code.
type ValidationStep struct {
	Step   string
	Type   string // dry_run|assert|script
	Target string
}

// TestPlanResult is the supplemented test_engineer role's output: a
// validation plan layered on top of whatever tests the Implementer already
// wrote, for changes where an extra pass of scrutiny over test coverage is
// worth the added Router calls.
type TestPlanResult struct {
	AgentMeta

	TestFiles       []string
	ValidationSteps []ValidationStep
	Summary         string
}

// AttackVector is one finding from the red_team role's adversarial pass.
type AttackVector struct {
	ID             string
	Category       string
	Target         string
	Severity       string // info|low|medium|high|critical
	Narrative      string
	Recommendation string
}

// RedTeamResult is the supplemented red_team role's output: an adversarial
// review that runs alongside Security for high-risk tasks. Its findings
// feed into the same Security gate rather than opening a new terminal
// status.
type RedTeamResult struct {
	AgentMeta

	Verdict string // hardened|exposed
	Vectors []AttackVector
	Summary string
}
