package auditor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/glitchlab/glitchlab/pkg/types"
)

// GroupFindingsIntoTasks batches findings into well-scoped tasks, one batch
// per (kind, up to maxPerTask findings), grounded on the auditor docstring's
// "generates well-scoped GLITCHLAB task YAML files" — a task whose objective
// is "fix every TODO in the repo" is too unbounded for the Implementer to
// act on reliably, so each kind is split into fixed-size batches instead of
// one task per kind.
func GroupFindingsIntoTasks(findings []Finding, maxPerTask int) ([]*types.Task, error) {
	if maxPerTask <= 0 {
		maxPerTask = 5
	}

	byKind := map[string][]Finding{}
	for _, f := range findings {
		byKind[f.Kind] = append(byKind[f.Kind], f)
	}

	var tasks []*types.Task
	for _, kind := range AllKinds {
		group := byKind[kind]
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].Path < group[j].Path })

		for start := 0; start < len(group); start += maxPerTask {
			end := start + maxPerTask
			if end > len(group) {
				end = len(group)
			}
			batch := group[start:end]

			task, err := types.NormalizeTask(&types.Task{
				Objective:          objectiveFor(kind, batch),
				Constraints:        constraintsFor(batch),
				AcceptanceCriteria: acceptanceFor(kind),
				RiskLevel:          types.RiskLow,
				Source:             "audit",
			})
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
	}

	return tasks, nil
}

func objectiveFor(kind string, batch []Finding) string {
	switch kind {
	case KindMissingDoc:
		return fmt.Sprintf("Add package/module-level doc comments to: %s", pathList(batch))
	case KindMissingTest:
		return fmt.Sprintf("Add test coverage for: %s", pathList(batch))
	case KindTODO:
		return fmt.Sprintf("Resolve outstanding TODO/FIXME markers in: %s", pathList(batch))
	case KindLargeFile:
		return fmt.Sprintf("Split or simplify oversized files: %s", pathList(batch))
	default:
		return fmt.Sprintf("Address %s findings in: %s", kind, pathList(batch))
	}
}

func acceptanceFor(kind string) []string {
	switch kind {
	case KindMissingDoc:
		return []string{"every listed file has a doc comment on its first non-blank line"}
	case KindMissingTest:
		return []string{"every listed file has at least one corresponding test file"}
	case KindTODO:
		return []string{"every listed TODO/FIXME is either resolved or replaced with a tracked follow-up"}
	case KindLargeFile:
		return []string{"no listed file grows; prefer splitting over padding"}
	default:
		return nil
	}
}

func pathList(batch []Finding) string {
	seen := map[string]struct{}{}
	var paths []string
	for _, f := range batch {
		if _, ok := seen[f.Path]; ok {
			continue
		}
		seen[f.Path] = struct{}{}
		paths = append(paths, f.Path)
	}
	out := ""
	for i, p := range paths {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func constraintsFor(batch []Finding) []string {
	constraints := []string{"only touch the files named in the objective"}
	for _, f := range batch {
		if f.Line > 0 {
			constraints = append(constraints, fmt.Sprintf("%s:%d — %s", f.Path, f.Line, f.Description))
		}
	}
	return constraints
}

// WriteTasks marshals each task to <outDir>/<task_id>.yaml and returns the
// paths written.
func WriteTasks(tasks []*types.Task, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	var written []string
	for _, task := range tasks {
		data, err := yaml.Marshal(task)
		if err != nil {
			return written, fmt.Errorf("marshaling task %s: %w", task.TaskID, err)
		}

		path := filepath.Join(outDir, task.TaskID+".yaml")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("writing task file %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
