// Package config loads glitchlab.yaml project configuration. It is the
// external collaborator the Controller consumes only through the narrow
// Settings struct — this package owns file I/O and defaulting, the
// Controller owns none of it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BudgetConfig sets the per-task Router ceilings.
type BudgetConfig struct {
	MaxTokens int     `yaml:"max_tokens"`
	MaxCost   float64 `yaml:"max_cost"`
}

// SandboxConfig configures the Tool Sandbox's allow/deny lists.
type SandboxConfig struct {
	AllowedCommands []string      `yaml:"allowed_commands"`
	DeniedPatterns  []string      `yaml:"denied_patterns"`
	Timeout         time.Duration `yaml:"timeout"`
}

// BoundaryConfig configures the Boundary Enforcer's protected paths.
type BoundaryConfig struct {
	ProtectedPrefixes []string `yaml:"protected_prefixes"`
	ProtectedGlobs    []string `yaml:"protected_globs"`
}

// GateConfig configures which human-confirmation gates are active.
type GateConfig struct {
	PauseAfterPlan           bool `yaml:"pause_after_plan"`
	PauseOnTestFailure       bool `yaml:"pause_on_test_failure"`
	PauseOnSecurityWarn      bool `yaml:"pause_on_security_warn"`
	PauseBeforePR            bool `yaml:"pause_before_pr"`
	AllowSecurityOverride    bool `yaml:"allow_security_override"`
}

// FixLoopConfig bounds the test/debug retry loop.
type FixLoopConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// GitConfig configures branch/PR behavior.
type GitConfig struct {
	BranchPrefix string `yaml:"branch_prefix"`
	BaseBranch   string `yaml:"base_branch"`
	CreatePR     bool   `yaml:"create_pr"`
	AuthorName   string `yaml:"author_name"`
	AuthorEmail  string `yaml:"author_email"`
}

// ParallelConfig configures the Parallel Runner.
type ParallelConfig struct {
	MaxWorkers int `yaml:"max_workers"` // 0 = CPU-count default
}

// Settings is the fully-resolved configuration passed into
// pkg/controller.New. Nothing downstream reads glitchlab.yaml directly.
type Settings struct {
	Model        string         `yaml:"model"`
	Provider     string         `yaml:"provider"`
	WorkspaceDir string         `yaml:"workspace_root"` // default: ".glitchlab/worktrees"
	HistoryPath  string         `yaml:"history_path"`   // default: ".glitchlab/logs/history.jsonl"
	LogLevel     string         `yaml:"log_level"`

	Budget      BudgetConfig   `yaml:"budget"`
	Sandbox     SandboxConfig  `yaml:"sandbox"`
	Boundary    BoundaryConfig `yaml:"boundary"`
	Gates       GateConfig     `yaml:"gates"`
	FixLoop     FixLoopConfig  `yaml:"fix_loop"`
	Git         GitConfig      `yaml:"git"`
	Parallel    ParallelConfig `yaml:"parallel"`

	EnableTestEngineer bool `yaml:"enable_test_engineer"`
	EnableRedTeam      bool `yaml:"enable_red_team"`
}

// Default returns a Settings populated with the defaults a fresh repo
// should run with.
func Default() *Settings {
	return &Settings{
		Model:        "gpt-4o",
		Provider:     "openai",
		WorkspaceDir: ".glitchlab/worktrees",
		HistoryPath:  ".glitchlab/logs/history.jsonl",
		LogLevel:     "normal",
		Budget: BudgetConfig{
			MaxTokens: 200000,
			MaxCost:   5.0,
		},
		Sandbox: SandboxConfig{
			AllowedCommands: []string{
				"go test", "go build", "go vet", "go fmt",
				"npm test", "npm run", "pytest", "python -m pytest",
				"git status", "git diff", "git log",
			},
			DeniedPatterns: []string{
				"rm -rf /", "sudo ", ":(){:|:&};:", "curl ", "wget ",
			},
			Timeout: 120 * time.Second,
		},
		Boundary: BoundaryConfig{
			ProtectedPrefixes: []string{".git/", ".glitchlab/", ".github/workflows/"},
		},
		Gates: GateConfig{
			PauseAfterPlan:        true,
			PauseOnTestFailure:    false,
			PauseOnSecurityWarn:   true,
			PauseBeforePR:         true,
			AllowSecurityOverride: false,
		},
		FixLoop: FixLoopConfig{MaxAttempts: 3},
		Git: GitConfig{
			BranchPrefix: "glitchlab",
			AuthorName:   "glitchlab[bot]",
			AuthorEmail:  "glitchlab-bot@users.noreply.github.com",
			CreatePR:     true,
		},
		Parallel: ParallelConfig{MaxWorkers: 0},
	}
}

// Load reads glitchlab.yaml at path, overlaying it onto Default(). A missing
// file is not an error — the repo simply runs with defaults.
func Load(path string) (*Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return s, nil
}
