// Package parallel implements C10: running a batch of tasks against the
// same repo concurrently, each in its own workspace and budget.
//
// Go has no ProcessPoolExecutor equivalent that would let us hand a
// Controller across a process boundary, and running several Controllers
// as goroutines inside one process invites exactly the git/subprocess
// race conditions worktree isolation exists to avoid. The idiomatic
// substitute is the one the original used process isolation for in the
// first place: re-exec the glitchlab binary itself, once per task, and
// collect each child's result over its stdout.
package parallel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/semaphore"

	"github.com/glitchlab/glitchlab/pkg/controller"
	"github.com/glitchlab/glitchlab/pkg/types"
)

// defaultMaxWorkers is the fallback used when neither RunOptions.MaxWorkers
// nor a CPU-count probe is available.
const defaultMaxWorkers = 3

// RunOptions configures one parallel batch.
type RunOptions struct {
	RepoPath    string
	TaskFiles   []string
	MaxWorkers  int
	AllowCore   bool
	TestCommand string

	// BinaryPath is the glitchlab executable each task is run through.
	// Defaults to os.Executable() when empty.
	BinaryPath string
}

// TaskOutcome is one task's result from a batch run, keyed back to the
// task file it came from so callers can correlate failures.
type TaskOutcome struct {
	TaskFile string
	Result   controller.Result
	Err      error
}

// resolveMaxWorkers returns opts.MaxWorkers when set, otherwise a
// CPU-aware default: physical core count, capped at 8, falling back to
// defaultMaxWorkers if the probe fails. Each worker shells out to run the
// full agent pipeline, so oversubscribing past core count buys nothing.
func resolveMaxWorkers(opts RunOptions) int {
	if opts.MaxWorkers > 0 {
		return opts.MaxWorkers
	}
	counts, err := cpu.Counts(false)
	if err != nil || counts <= 0 {
		return defaultMaxWorkers
	}
	if counts > 8 {
		return 8
	}
	return counts
}

// Run executes every task file in opts.TaskFiles concurrently, bounded by
// the resolved worker count, and returns one TaskOutcome per file in
// completion order (mirroring as_completed — callers that need file order
// back should sort on TaskOutcome.TaskFile themselves).
func Run(ctx context.Context, opts RunOptions) ([]TaskOutcome, error) {
	repoPath, err := filepath.Abs(opts.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving repo path: %w", err)
	}
	opts.RepoPath = repoPath

	if opts.BinaryPath == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolving glitchlab binary: %w", err)
		}
		opts.BinaryPath = self
	}

	maxWorkers := resolveMaxWorkers(opts)
	sem := semaphore.NewWeighted(int64(maxWorkers))

	outcomes := make(chan TaskOutcome, len(opts.TaskFiles))
	var wg sync.WaitGroup

	for _, tf := range opts.TaskFiles {
		taskFile := tf
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes <- TaskOutcome{TaskFile: taskFile, Err: err}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			outcomes <- runSingleTask(ctx, opts, taskFile)
		}()
	}

	wg.Wait()
	close(outcomes)

	results := make([]TaskOutcome, 0, len(opts.TaskFiles))
	for o := range outcomes {
		results = append(results, o)
	}
	return results, nil
}

// runSingleTask re-execs the glitchlab binary for one task file and parses
// its JSON result from stdout. Any failure to launch, or a non-JSON
// response, is folded into a Result with StatusError rather than
// propagated, so one bad task file can't abort the whole batch.
func runSingleTask(ctx context.Context, opts RunOptions, taskFile string) TaskOutcome {
	taskID := taskIDFromFile(taskFile)

	args := []string{
		"run",
		"--repo", opts.RepoPath,
		"--task", taskFile,
		"--auto-approve",
		"--json",
	}
	if opts.AllowCore {
		args = append(args, "--allow-core")
	}
	if opts.TestCommand != "" {
		args = append(args, "--test-command", opts.TestCommand)
	}

	cmd := exec.CommandContext(ctx, opts.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	var result controller.Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &result); err != nil {
		errMsg := stderr.String()
		if errMsg == "" && runErr != nil {
			errMsg = runErr.Error()
		}
		if errMsg == "" {
			errMsg = fmt.Sprintf("child process produced no parseable result: %v", err)
		}
		return TaskOutcome{
			TaskFile: taskFile,
			Result: controller.Result{
				TaskID: taskID,
				Status: types.StatusError,
				Error:  errMsg,
			},
			Err: runErr,
		}
	}

	return TaskOutcome{TaskFile: taskFile, Result: result, Err: runErr}
}

func taskIDFromFile(taskFile string) string {
	base := filepath.Base(taskFile)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// ByTaskFile sorts outcomes into a stable, reproducible order for display,
// independent of the completion-order they arrived from Run in.
func ByTaskFile(outcomes []TaskOutcome) []TaskOutcome {
	sorted := make([]TaskOutcome, len(outcomes))
	copy(sorted, outcomes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TaskFile < sorted[j].TaskFile })
	return sorted
}
