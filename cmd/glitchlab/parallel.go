package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glitchlab/glitchlab/pkg/parallel"
)

func parallelCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("parallel")
	repoPath := fs.String("repo", ".", "path to the target repository")
	tasksDir := fs.String("tasks", "", "directory of task YAML files to run (required)")
	maxWorkers := fs.Int("max-workers", 0, "max concurrent tasks (0 = CPU-aware default)")
	allowCore := fs.Bool("allow-core", false, "allow changes to protected/core paths")
	testCommand := fs.String("test-command", "", "shell command the fix loop runs to validate changes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *tasksDir == "" {
		return fmt.Errorf("--tasks is required")
	}

	entries, err := os.ReadDir(*tasksDir)
	if err != nil {
		return fmt.Errorf("reading tasks dir: %w", err)
	}

	var taskFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml") {
			taskFiles = append(taskFiles, filepath.Join(*tasksDir, e.Name()))
		}
	}
	if len(taskFiles) == 0 {
		return fmt.Errorf("no task files found in %s", *tasksDir)
	}

	fmt.Printf("running %d task(s) from %s\n", len(taskFiles), *tasksDir)

	outcomes, err := parallel.Run(ctx, parallel.RunOptions{
		RepoPath:    *repoPath,
		TaskFiles:   taskFiles,
		MaxWorkers:  *maxWorkers,
		AllowCore:   *allowCore,
		TestCommand: *testCommand,
	})
	if err != nil {
		return fmt.Errorf("running parallel batch: %w", err)
	}

	parallel.PrintSummary(os.Stdout, parallel.ByTaskFile(outcomes))
	return nil
}
