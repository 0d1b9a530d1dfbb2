package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glitchlab/glitchlab/pkg/auditor"
)

func auditCmd(args []string) error {
	fs := newFlagSet("audit")
	repoPath := fs.String("repo", ".", "path to the repository to scan")
	kind := fs.String("kind", "", "restrict to one finding kind (missing_doc|missing_test|todo|large_file)")
	dryRun := fs.Bool("dry-run", false, "print findings without writing task files")
	outDir := fs.String("out", "", "directory to write generated task files to (default: <repo>/.glitchlab/audit-tasks)")
	maxPerTask := fs.Int("max-per-task", 5, "max findings grouped into one generated task")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := auditor.ScanOptions{}
	if *kind != "" {
		opts.Kinds = []string{*kind}
	}

	scanner := auditor.New(opts)
	result, err := scanner.Scan(*repoPath)
	if err != nil {
		return fmt.Errorf("scanning repo: %w", err)
	}

	if len(result.Findings) == 0 {
		fmt.Println("no findings")
		return nil
	}

	fmt.Printf("%d finding(s):\n", len(result.Findings))
	for _, f := range result.Findings {
		loc := f.Path
		if f.Line > 0 {
			loc = fmt.Sprintf("%s:%d", f.Path, f.Line)
		}
		fmt.Printf("  [%s/%s] %s — %s\n", f.Kind, f.Severity, loc, f.Description)
	}

	if *dryRun {
		return nil
	}

	tasks, err := auditor.GroupFindingsIntoTasks(result.Findings, *maxPerTask)
	if err != nil {
		return fmt.Errorf("grouping findings into tasks: %w", err)
	}

	if *outDir == "" {
		*outDir = filepath.Join(*repoPath, ".glitchlab", "audit-tasks")
	}
	paths, err := auditor.WriteTasks(tasks, *outDir)
	if err != nil {
		return fmt.Errorf("writing task files: %w", err)
	}

	fmt.Printf("\nwrote %d task(s):\n", len(paths))
	for _, p := range paths {
		fmt.Println("  " + strings.TrimPrefix(p, *repoPath+string(os.PathSeparator)))
	}
	return nil
}
