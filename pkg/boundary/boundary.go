// Package boundary implements C4: reporting changes that touch protected
// paths. The Controller stops the run on any reported hit unless the
// operator allowed core changes.
package boundary

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/glitchlab/glitchlab/pkg/types"
)

// Violation is a single protected-path hit.
type Violation struct {
	Path      string
	Protected string // the prefix or glob pattern that matched
}

// Enforcer rejects files matching protected prefixes or glob patterns.
type Enforcer struct {
	prefixes []string
	globs    []glob.Glob
	patterns []string // parallel to globs, for reporting which pattern matched
}

// New creates an Enforcer. prefixes are matched literally (plain string prefix, see hasPrefix);
// globPatterns are compiled with gobwas/glob for cases a plain prefix can't
// express, such as "**/*.pem" or "internal/*/secrets/**".
func New(prefixes, globPatterns []string) (*Enforcer, error) {
	e := &Enforcer{prefixes: prefixes}
	for _, p := range globPatterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling protected glob %q: %w", p, err)
		}
		e.globs = append(e.globs, g)
		e.patterns = append(e.patterns, p)
	}
	return e, nil
}

// Check returns every file in files that touches a protected path. An empty
// result means the change set is clean.
func (e *Enforcer) Check(files []string) []Violation {
	var violations []Violation
	seen := make(map[string]struct{})
	for _, f := range files {
		if _, ok := seen[f]; ok {
			continue
		}
		if protected, hit := e.matches(f); hit {
			violations = append(violations, Violation{Path: f, Protected: protected})
			seen[f] = struct{}{}
		}
	}
	return violations
}

func (e *Enforcer) matches(f string) (string, bool) {
	for _, prefix := range e.prefixes {
		if hasPrefix(f, prefix) {
			return prefix, true
		}
	}
	for i, g := range e.globs {
		if g.Match(f) {
			return e.patterns[i], true
		}
	}
	return "", false
}

func hasPrefix(path, prefix string) bool {
	if len(path) < len(prefix) {
		return false
	}
	return path[:len(prefix)] == prefix
}

// CheckPlan checks every file a Plan names, across both its top-level
// FilesLikelyAffected and each step's Files.
func (e *Enforcer) CheckPlan(plan *types.Plan) []Violation {
	files := append([]string{}, plan.FilesLikelyAffected...)
	for _, step := range plan.Steps {
		files = append(files, step.Files...)
	}
	return e.Check(files)
}
