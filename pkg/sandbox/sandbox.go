// Package sandbox implements C3: a constrained command executor. Agents
// never run arbitrary commands — the Controller exposes only this
// allow-listed surface, scoped to a single task's worktree.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/glitchlab/glitchlab/pkg/types"
)

// ErrBlocked is returned when a command matches a denied pattern.
var ErrBlocked = errors.New("sandbox: blocked pattern")

// ErrDenied is returned when a command matches no allow-list entry.
var ErrDenied = errors.New("sandbox: command not in allowlist")

// Sandbox is a scoped, allow-listed command executor.
type Sandbox struct {
	allowedCommands []string
	deniedPatterns  []string
	workingDir      string
	timeout         time.Duration

	log []types.ToolResult
}

// New creates a Sandbox scoped to workingDir (a task's worktree).
func New(allowedCommands, deniedPatterns []string, workingDir string, timeout time.Duration) *Sandbox {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Sandbox{
		allowedCommands: allowedCommands,
		deniedPatterns:  deniedPatterns,
		workingDir:      workingDir,
		timeout:         timeout,
	}
}

// Execute runs command if it passes the deny-list then the allow-list
// check, in that order — a command that matches both a denial and an
// allowance is still blocked. Returns the sandbox's own error (ErrBlocked
// or ErrDenied) alongside a ToolResult describing the rejection, so
// callers can log the attempt without needing a type switch to find out
// why it failed.
func (s *Sandbox) Execute(ctx context.Context, command string) (types.ToolResult, error) {
	for _, pattern := range s.deniedPatterns {
		if strings.Contains(command, pattern) {
			result := types.ToolResult{
				Command:    command,
				Stderr:     fmt.Sprintf("BLOCKED: command contains forbidden pattern: %s", pattern),
				ReturnCode: -1,
				Allowed:    false,
			}
			s.log = append(s.log, result)
			return result, fmt.Errorf("%w: %s", ErrBlocked, pattern)
		}
	}

	if !s.isAllowed(command) {
		result := types.ToolResult{
			Command:    command,
			Stderr:     fmt.Sprintf("DENIED: command not in allowlist: %v", s.allowedCommands),
			ReturnCode: -1,
			Allowed:    false,
		}
		s.log = append(s.log, result)
		return result, fmt.Errorf("%w: %s", ErrDenied, command)
	}

	execCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = s.workingDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	result := types.ToolResult{Command: command, Allowed: true}
	err := cmd.Run()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if execCtx.Err() == context.DeadlineExceeded {
		result.Stderr = fmt.Sprintf("TIMEOUT: command exceeded %s", s.timeout)
		result.ReturnCode = -1
	} else if exitErr, ok := err.(*exec.ExitError); ok {
		result.ReturnCode = exitErr.ExitCode()
	} else if err != nil {
		result.ReturnCode = -1
		result.Stderr = err.Error()
	}

	s.log = append(s.log, result)
	return result, nil
}

// isAllowed reports whether command matches any allow-list entry by
// prefix. This mirrors the original's simple prefix check rather than
// requiring a word-boundary, so "go test" permits "go test ./..." but
// also, by the same loose rule, "go testx" — callers compose allow-list
// entries accordingly.
func (s *Sandbox) isAllowed(command string) bool {
	trimmed := strings.TrimSpace(command)
	for _, allowed := range s.allowedCommands {
		if strings.HasPrefix(trimmed, allowed) {
			return true
		}
	}
	return false
}

// ExecutionLog returns every command attempted through this Sandbox,
// including blocked and denied ones, in order.
func (s *Sandbox) ExecutionLog() []types.ToolResult {
	out := make([]types.ToolResult, len(s.log))
	copy(out, s.log)
	return out
}
