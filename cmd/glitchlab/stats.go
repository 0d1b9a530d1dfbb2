package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/glitchlab/glitchlab/pkg/history"
)

func statsCmd(args []string) error {
	fs := newFlagSet("stats")
	repoPath := fs.String("repo", ".", "path to the target repository")
	jsonOut := fs.Bool("json", false, "print stats as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	h, err := history.New(*repoPath)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}

	stats, err := h.GetStats()
	if err != nil {
		return fmt.Errorf("computing stats: %w", err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("total runs:        %d\n", stats.TotalRuns)
	fmt.Printf("success rate:      %.1f%%\n", stats.SuccessRate)
	fmt.Printf("total cost:        $%.4f\n", stats.TotalCost)
	fmt.Printf("total tokens:      %d\n", stats.TotalTokens)
	fmt.Printf("avg cost per run:  $%.4f\n", stats.AvgCostPerRun)

	if len(stats.Statuses) > 0 {
		fmt.Println("\nby status:")
		statuses := make([]string, 0, len(stats.Statuses))
		for s := range stats.Statuses {
			statuses = append(statuses, s)
		}
		sort.Strings(statuses)
		for _, s := range statuses {
			fmt.Printf("  %-22s %d\n", s, stats.Statuses[s])
		}
	}

	return nil
}
