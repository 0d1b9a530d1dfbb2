package types

import "time"

// EventsSummary is a structured digest of one run's notable stage outcomes,
// alongside the raw Events log — enough for BuildFailureContext and
// `glitchlab stats` to answer "how far did this get and what happened" without
// re-parsing free-text event strings.
type EventsSummary struct {
	PlanSteps            int             `json:"plan_steps"`
	PlanRisk             RiskLevel       `json:"plan_risk,omitempty"`
	TestsPassedOnAttempt int             `json:"tests_passed_on_attempt,omitempty"`
	FixAttempts          int             `json:"fix_attempts,omitempty"`
	SecurityVerdict      SecurityVerdict `json:"security_verdict,omitempty"`
	VersionBump          VersionBump     `json:"version_bump,omitempty"`
}

// HistoryEntry is one append-only record in the task history log.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	TaskID    string    `json:"task_id"`
	Objective string    `json:"objective"`
	Status    string    `json:"status"`
	RiskLevel RiskLevel `json:"risk_level"`

	FilesChanged int         `json:"files_changed"`
	Budget       BudgetState `json:"budget"`
	DurationSecs float64     `json:"duration_secs"`

	Branch  string `json:"branch,omitempty"`
	PRURL   string `json:"pr_url,omitempty"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`

	Events        []string      `json:"events,omitempty"`
	EventsSummary EventsSummary `json:"events_summary"`
}
