// Package history implements C6: an append-only JSONL log of every run, so
// failure patterns and spend can inform future planning and reporting.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glitchlab/glitchlab/pkg/types"
)

// terminalSuccess are the statuses GetFailures (and so BuildFailureContext)
// treat as a successful run rather than a failure worth learning from.
// GetStats' success rate counts only pr_created.
var terminalSuccess = map[types.Status]struct{}{
	types.StatusPRCreated: {},
	types.StatusCommitted: {},
}

// History manages the append-only task history log at
// <repo>/.glitchlab/logs/history.jsonl.
type History struct {
	repoPath    string
	logDir      string
	historyFile string
}

// New creates a History scoped to repoPath.
func New(repoPath string) (*History, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving repo path: %w", err)
	}
	logDir := filepath.Join(abs, ".glitchlab", "logs")
	return &History{
		repoPath:    abs,
		logDir:      logDir,
		historyFile: filepath.Join(logDir, "history.jsonl"),
	}, nil
}

// Record appends one completed run to the log. A write failure is returned
// rather than swallowed — unlike the logging-only original, a caller here
// can decide whether a lost history record should fail the run.
func (h *History) Record(entry types.HistoryEntry) error {
	if err := os.MkdirAll(h.logDir, 0o755); err != nil {
		return fmt.Errorf("creating history log dir: %w", err)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding history entry: %w", err)
	}

	f, err := os.OpenFile(h.historyFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening history log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing history entry: %w", err)
	}
	return nil
}

// GetAll reads every entry in the log, skipping any line that fails to
// parse rather than failing the whole read.
func (h *History) GetAll() ([]types.HistoryEntry, error) {
	f, err := os.Open(h.historyFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening history log: %w", err)
	}
	defer f.Close()

	var entries []types.HistoryEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry types.HistoryEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

// GetRecent returns the most recent n entries, oldest first within that
// window.
func (h *History) GetRecent(n int) ([]types.HistoryEntry, error) {
	all, err := h.GetAll()
	if err != nil {
		return nil, err
	}
	if n <= 0 || n >= len(all) {
		return all, nil
	}
	return all[len(all)-n:], nil
}

// GetFailures returns up to n entries whose status wasn't a successful
// terminal status, most recent first.
func (h *History) GetFailures(n int) ([]types.HistoryEntry, error) {
	all, err := h.GetAll()
	if err != nil {
		return nil, err
	}

	var failures []types.HistoryEntry
	for i := len(all) - 1; i >= 0 && len(failures) < n; i-- {
		if _, ok := terminalSuccess[types.Status(all[i].Status)]; !ok {
			failures = append(failures, all[i])
		}
	}
	return failures, nil
}

// Stats summarizes every run recorded so far.
type Stats struct {
	TotalRuns     int            `json:"total_runs"`
	Statuses      map[string]int `json:"statuses"`
	SuccessRate   float64        `json:"success_rate"`
	TotalCost     float64        `json:"total_cost"`
	TotalTokens   int            `json:"total_tokens"`
	AvgCostPerRun float64        `json:"avg_cost_per_run"`
}

// GetStats computes summary statistics across every recorded run.
func (h *History) GetStats() (Stats, error) {
	entries, err := h.GetAll()
	if err != nil {
		return Stats{}, err
	}
	if len(entries) == 0 {
		return Stats{Statuses: map[string]int{}}, nil
	}

	stats := Stats{TotalRuns: len(entries), Statuses: map[string]int{}}
	var totalCost float64
	var totalTokens int
	var prCreated int

	for _, e := range entries {
		stats.Statuses[e.Status]++
		totalCost += e.Budget.EstimatedCost
		totalTokens += e.Budget.TotalTokens
		if e.Status == string(types.StatusPRCreated) {
			prCreated++
		}
	}

	stats.TotalCost = round4(totalCost)
	stats.TotalTokens = totalTokens
	stats.SuccessRate = round1(float64(prCreated) / float64(stats.TotalRuns) * 100)
	stats.AvgCostPerRun = round4(totalCost / float64(stats.TotalRuns))
	return stats, nil
}

// BuildFailureContext renders recent failures as a string suitable for
// injection into planner context, so agents can learn from what went wrong
// on earlier attempts at this repo instead of repeating it.
func (h *History) BuildFailureContext(maxEntries int) (string, error) {
	failures, err := h.GetFailures(maxEntries)
	if err != nil {
		return "", err
	}
	if len(failures) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("=== RECENT FAILURES (learn from these) ===\n")
	for _, e := range failures {
		errStr := e.Error
		if errStr == "" {
			errStr = "N/A"
		}
		fmt.Fprintf(&b, "- Task: %s | Status: %s | Error: %s", e.TaskID, e.Status, errStr)
		if e.Summary != "" {
			fmt.Fprintf(&b, "\n  Summary: %s", e.Summary)
		}
		if e.EventsSummary.SecurityVerdict != "" {
			fmt.Fprintf(&b, "\n  Security verdict: %s", e.EventsSummary.SecurityVerdict)
		}
		if e.EventsSummary.FixAttempts > 0 {
			fmt.Fprintf(&b, "\n  Fix attempts: %d", e.EventsSummary.FixAttempts)
		}
		for _, ev := range e.Events {
			fmt.Fprintf(&b, "\n  %s", ev)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func round4(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
