// Package contextprovider implements C11: bridging external,
// machine-readable project context (stack, architecture, constraints, past
// decisions) into agent prompts, so every agent plans and writes against
// the project's actual conventions instead of generic defaults.
package contextprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const cliTimeout = 10 * time.Second

// fileOrder is the priority order context files are assembled in — project,
// stack and architecture ahead of constraints and changelog, since the
// earlier files matter most under a truncated budget.
var fileOrder = []string{
	"project.json",
	"stack.json",
	"architecture.md",
	"constraints.json",
	"changelog.md",
}

// Provider bridges a repo's .context/ directory (and, if installed, its
// companion CLI) into agent context. Three modes of operation: the CLI is
// on PATH and can init/update/export; only .context/ exists, so reads are
// read-only off cached files; or neither exists, in which case Provider is
// Available() == false and agents simply get no project context.
type Provider struct {
	repoPath   string
	contextDir string
	cliPath    string

	cachedExport string
}

// New creates a Provider scoped to repoPath, detecting the CLI via PATH
// lookup once at construction.
func New(repoPath string) *Provider {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		abs = repoPath
	}
	cliPath, _ := exec.LookPath("prelude")
	return &Provider{
		repoPath:   abs,
		contextDir: filepath.Join(abs, ".context"),
		cliPath:    cliPath,
	}
}

// CLIAvailable reports whether the context CLI is installed.
func (p *Provider) CLIAvailable() bool { return p.cliPath != "" }

// ContextExists reports whether a .context/ directory exists in this repo.
func (p *Provider) ContextExists() bool {
	info, err := os.Stat(p.contextDir)
	return err == nil && info.IsDir()
}

// Available reports whether any context can be obtained at all.
func (p *Provider) Available() bool {
	return p.CLIAvailable() || p.ContextExists()
}

// Refresh ensures context is fresh before a run: updates an existing
// .context/ directory, or initializes one if the CLI is installed but no
// directory exists yet. Returns false (not an error) when neither is
// possible — callers proceed without project context rather than failing
// the run over it.
func (p *Provider) Refresh(ctx context.Context) bool {
	if !p.CLIAvailable() {
		return p.ContextExists()
	}
	if p.ContextExists() {
		return p.update(ctx)
	}
	return p.init(ctx)
}

func (p *Provider) init(ctx context.Context) bool {
	_, err := p.run(ctx, "init")
	return err == nil
}

func (p *Provider) update(ctx context.Context) bool {
	_, err := p.run(ctx, "update")
	if err == nil {
		p.cachedExport = ""
	}
	return err == nil
}

// Export returns the full project context as markdown, preferring a direct
// read of .context/ files (no subprocess, no hang risk) and falling back to
// the CLI's own export when no .context/ directory exists or reading its
// files yields no text.
func (p *Provider) Export(ctx context.Context) string {
	if p.cachedExport != "" {
		return p.cachedExport
	}

	if p.ContextExists() {
		if text := p.readContextFiles(); text != "" {
			p.cachedExport = text
			return text
		}
	}

	if p.CLIAvailable() {
		if out, err := p.run(ctx, "export", "--no-clipboard"); err == nil {
			if trimmed := strings.TrimSpace(out); trimmed != "" {
				p.cachedExport = trimmed
				return trimmed
			}
		}
	}

	return ""
}

// Summary is a structured snapshot of available project context, useful for
// status display and logging without needing the full export text.
type Summary struct {
	Available        bool     `json:"available"`
	CLIInstalled     bool     `json:"cli_installed"`
	ContextDirExists bool     `json:"context_dir_exists"`
	Files            []string `json:"files"`
	ProjectName      string   `json:"project_name,omitempty"`
	Language         string   `json:"language,omitempty"`
	Framework        string   `json:"framework,omitempty"`
	DecisionsCount   int      `json:"decisions_count,omitempty"`
}

// Summary builds a Summary by reading project.json and counting decision
// records, without needing the full Export.
func (p *Provider) Summary() Summary {
	s := Summary{
		Available:        p.Available(),
		CLIInstalled:     p.CLIAvailable(),
		ContextDirExists: p.ContextExists(),
	}
	if !p.ContextExists() {
		return s
	}

	entries, err := os.ReadDir(p.contextDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() || strings.HasSuffix(e.Name(), ".session.json") {
				continue
			}
			s.Files = append(s.Files, e.Name())
		}
	}

	if data, err := os.ReadFile(filepath.Join(p.contextDir, "project.json")); err == nil {
		var proj struct {
			Name      string `json:"name"`
			Language  string `json:"language"`
			Framework string `json:"framework"`
		}
		if json.Unmarshal(data, &proj) == nil {
			s.ProjectName = proj.Name
			s.Language = proj.Language
			s.Framework = proj.Framework
		}
	}

	if entries, err := os.ReadDir(filepath.Join(p.contextDir, "decisions")); err == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
				s.DecisionsCount++
			}
		}
	}

	return s
}

// GetConstraints extracts project constraints from .context/constraints.json,
// which may be a JSON array of strings or an object of string values.
func (p *Provider) GetConstraints() []string {
	data, err := os.ReadFile(filepath.Join(p.contextDir, "constraints.json"))
	if err != nil {
		return nil
	}

	var list []string
	if json.Unmarshal(data, &list) == nil {
		return list
	}

	var obj map[string]any
	if json.Unmarshal(data, &obj) == nil {
		var out []string
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s, ok := obj[k].(string); ok {
				out = append(out, k+": "+s)
			}
		}
		return out
	}

	return nil
}

// BuildAgentPrefix builds the prefix prepended to agent prompts: the
// project's exported context, truncated to maxChars (preserving the
// beginning — stack and architecture matter most) to keep within a token
// budget. Returns "" when no context is available, so callers can skip the
// prefix entirely rather than injecting an empty header.
func (p *Provider) BuildAgentPrefix(ctx context.Context, maxChars int) string {
	exported := p.Export(ctx)
	if exported == "" {
		return ""
	}

	const header = "=== PROJECT CONTEXT (via Prelude) ===\n" +
		"The following is machine-readable context about this project's " +
		"stack, architecture, patterns, constraints, and decisions. " +
		"Respect all constraints and decisions when planning or implementing.\n\n"

	remaining := maxChars - len(header)
	if remaining > 0 && len(exported) > remaining {
		exported = exported[:remaining] + "\n\n[... context truncated for token budget ...]"
	}

	return header + exported
}

func (p *Provider) readContextFiles() string {
	var parts []string

	for _, fname := range fileOrder {
		data, err := os.ReadFile(filepath.Join(p.contextDir, fname))
		if err != nil {
			continue
		}
		if content := strings.TrimSpace(string(data)); content != "" {
			parts = append(parts, "## "+fname+"\n\n"+content)
		}
	}

	decisionsDir := filepath.Join(p.contextDir, "decisions")
	if entries, err := os.ReadDir(decisionsDir); err == nil {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			data, err := os.ReadFile(filepath.Join(decisionsDir, name))
			if err != nil {
				continue
			}
			if content := strings.TrimSpace(string(data)); content != "" {
				parts = append(parts, "## Decision: "+strings.TrimSuffix(name, ".md")+"\n\n"+content)
			}
		}
	}

	seen := make(map[string]struct{}, len(fileOrder))
	for _, f := range fileOrder {
		seen[f] = struct{}{}
	}
	if entries, err := os.ReadDir(p.contextDir); err == nil {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if _, ok := seen[e.Name()]; ok {
				continue
			}
			if strings.HasSuffix(e.Name(), ".session.json") {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			data, err := os.ReadFile(filepath.Join(p.contextDir, name))
			if err != nil {
				continue
			}
			if content := strings.TrimSpace(string(data)); content != "" {
				parts = append(parts, "## "+name+"\n\n"+content)
			}
		}
	}

	return strings.Join(parts, "\n\n---\n\n")
}

func (p *Provider) run(ctx context.Context, args ...string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, cliTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "prelude", args...)
	cmd.Dir = p.repoPath
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}
