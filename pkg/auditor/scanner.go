// Package auditor scans a repository for actionable findings and turns
// them into well-scoped task files the controller can run unattended —
// the proactive half of the pipeline, versus the reactive task-in/PR-out
// half pkg/controller drives.
//
// Grounded on original_source/glitchlab/auditor/__init__.py's module
// docstring ("Scans a repository for actionable findings and generates
// well-scoped GLITCHLAB task YAML files", `glitchlab audit --repo ... [--kind
// ...] [--dry-run]`) — scanner.py and task_writer.py themselves weren't part
// of the retrieved pack, so the scan kinds below are a from-scratch design
// built to the same Scanner/ScanResult/Finding shape the package exports.
// Reuses pkg/indexer's repo walk (C5) instead of walking the filesystem a
// second time.
package auditor

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glitchlab/glitchlab/pkg/indexer"
)

// Finding kinds, matching the CLI's `--kind` filter.
const (
	KindMissingDoc  = "missing_doc"
	KindMissingTest = "missing_test"
	KindTODO        = "todo"
	KindLargeFile   = "large_file"
)

// AllKinds lists every kind Scan can produce, in the fixed order findings
// of each kind are grouped in.
var AllKinds = []string{KindMissingDoc, KindMissingTest, KindTODO, KindLargeFile}

// Finding is one actionable item the scanner surfaced.
type Finding struct {
	Kind        string
	Path        string
	Line        int
	Description string
	Severity    string // "low" | "medium" | "high"
}

// ScanResult is everything one Scan call produced.
type ScanResult struct {
	Root     string
	Findings []Finding
}

// ScanOptions narrows what Scan looks for.
type ScanOptions struct {
	// Kinds restricts the scan to the given finding kinds. Empty means all.
	Kinds []string
	// LargeFileLines is the line-count threshold for KindLargeFile.
	// Defaults to 600.
	LargeFileLines int
}

func (o ScanOptions) wants(kind string) bool {
	if len(o.Kinds) == 0 {
		return true
	}
	for _, k := range o.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Scanner scans one repository for findings.
type Scanner struct {
	opts ScanOptions
}

// New builds a Scanner with the given options. A zero ScanOptions scans
// every kind with default thresholds.
func New(opts ScanOptions) *Scanner {
	if opts.LargeFileLines <= 0 {
		opts.LargeFileLines = 600
	}
	return &Scanner{opts: opts}
}

// Scan walks repoPath via pkg/indexer and reports every finding matching
// the Scanner's options.
func (s *Scanner) Scan(repoPath string) (*ScanResult, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving repo path: %w", err)
	}

	idx, err := indexer.Build(abs, 0)
	if err != nil {
		return nil, fmt.Errorf("indexing repo: %w", err)
	}

	testPaths := make(map[string]struct{}, len(idx.TestFiles))
	for _, tf := range idx.TestFiles {
		testPaths[tf] = struct{}{}
	}

	result := &ScanResult{Root: abs}

	for _, entry := range idx.Files {
		if entry.IsKeyFile || entry.IsTest {
			continue
		}
		if !isSourceExtension(entry.Extension) {
			continue
		}

		full := filepath.Join(abs, entry.Path)

		if s.opts.wants(KindMissingTest) && !hasSiblingTest(entry.Path, testPaths) {
			result.Findings = append(result.Findings, Finding{
				Kind:        KindMissingTest,
				Path:        entry.Path,
				Description: fmt.Sprintf("%s has no matching test file", entry.Path),
				Severity:    "medium",
			})
		}

		if s.opts.wants(KindLargeFile) {
			if lines := countLines(full); lines > s.opts.LargeFileLines {
				result.Findings = append(result.Findings, Finding{
					Kind:        KindLargeFile,
					Path:        entry.Path,
					Description: fmt.Sprintf("%s is %d lines (over %d)", entry.Path, lines, s.opts.LargeFileLines),
					Severity:    "low",
				})
			}
		}

		if s.opts.wants(KindMissingDoc) && !hasLeadingDocComment(full, entry.Extension) {
			result.Findings = append(result.Findings, Finding{
				Kind:        KindMissingDoc,
				Path:        entry.Path,
				Description: fmt.Sprintf("%s has no package/module-level doc comment", entry.Path),
				Severity:    "low",
			})
		}

		if s.opts.wants(KindTODO) {
			result.Findings = append(result.Findings, scanTODOs(full, entry.Path)...)
		}
	}

	return result, nil
}

var sourceExtensions = map[string]struct{}{
	".go": {}, ".py": {}, ".ts": {}, ".tsx": {}, ".js": {}, ".jsx": {},
	".rs": {}, ".java": {}, ".c": {}, ".cpp": {}, ".rb": {},
}

func isSourceExtension(ext string) bool {
	_, ok := sourceExtensions[ext]
	return ok
}

func hasSiblingTest(path string, testPaths map[string]struct{}) bool {
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for tf := range testPaths {
		if filepath.Dir(tf) != dir {
			continue
		}
		if strings.Contains(strings.TrimSuffix(filepath.Base(tf), filepath.Ext(tf)), base) {
			return true
		}
	}
	return false
}

func countLines(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines++
	}
	return lines
}

func hasLeadingDocComment(path, ext string) bool {
	f, err := os.Open(path)
	if err != nil {
		return true // unreadable file isn't a finding
	}
	defer f.Close()

	commentPrefix, ok := commentPrefixFor(ext)
	if !ok {
		return true
	}

	scanner := bufio.NewScanner(f)
	for i := 0; i < 5 && scanner.Scan(); i++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		return strings.HasPrefix(line, commentPrefix)
	}
	return false
}

func commentPrefixFor(ext string) (string, bool) {
	switch ext {
	case ".go", ".rs", ".java", ".c", ".cpp", ".ts", ".tsx", ".js", ".jsx":
		return "//", true
	case ".py", ".rb":
		return "#", true
	default:
		return "", false
	}
}

func scanTODOs(path, relPath string) []Finding {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var findings []Finding
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		upper := strings.ToUpper(line)
		if strings.Contains(upper, "TODO") || strings.Contains(upper, "FIXME") {
			findings = append(findings, Finding{
				Kind:        KindTODO,
				Path:        relPath,
				Line:        lineNum,
				Description: strings.TrimSpace(line),
				Severity:    "low",
			})
		}
	}
	return findings
}
