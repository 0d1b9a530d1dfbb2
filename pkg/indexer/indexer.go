// Package indexer implements C5: a lightweight scan of a task's repository
// so agents reference real paths instead of inventing them. The index is
// cheap to build and gets injected into planner and implementer context.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// SkipDirs are never descended into or reported, regardless of how files
// underneath them were discovered.
var SkipDirs = map[string]struct{}{
	".git": {}, ".glitchlab": {}, ".context": {}, ".venv": {}, "venv": {}, "env": {},
	"node_modules": {}, "target": {}, "dist": {}, "build": {}, "__pycache__": {},
	".tox": {}, ".mypy_cache": {}, ".pytest_cache": {}, ".ruff_cache": {},
	".next": {}, ".nuxt": {}, "coverage": {}, ".cargo": {}, "vendor": {},
	".idea": {}, ".vscode": {}, "out": {}, "bin": {}, "obj": {},
}

// CodeExtensions are the file types worth indexing as source.
var CodeExtensions = map[string]struct{}{
	".rs": {}, ".py": {}, ".ts": {}, ".tsx": {}, ".js": {}, ".jsx": {}, ".go": {}, ".java": {},
	".c": {}, ".cpp": {}, ".h": {}, ".hpp": {}, ".cs": {}, ".rb": {}, ".swift": {}, ".kt": {},
	".toml": {}, ".yaml": {}, ".yml": {}, ".json": {}, ".md": {}, ".txt": {},
	".sql": {}, ".graphql": {}, ".proto": {}, ".sh": {}, ".bash": {},
	".css": {}, ".scss": {}, ".html": {}, ".svelte": {}, ".vue": {},
}

// nonLanguageExtensions are tracked as files but excluded from the language
// breakdown — config/doc formats aren't "a language".
var nonLanguageExtensions = map[string]struct{}{
	".toml": {}, ".yaml": {}, ".yml": {}, ".json": {}, ".md": {}, ".txt": {},
}

// KeyFiles indicate project structure regardless of extension.
var KeyFiles = map[string]struct{}{
	"Cargo.toml": {}, "package.json": {}, "pyproject.toml": {}, "setup.py": {},
	"go.mod": {}, "Makefile": {}, "Dockerfile": {}, "docker-compose.yml": {},
	"tsconfig.json": {}, "vite.config.ts": {}, "next.config.js": {},
	".env.example": {}, "README.md": {}, "CHANGELOG.md": {},
	"justfile": {}, "Taskfile.yml": {}, "flake.nix": {},
}

const gitLsFilesTimeout = 15 * time.Second

// FileEntry describes one indexed file.
type FileEntry struct {
	Path      string
	Extension string
	SizeBytes int64
	IsTest    bool
	IsKeyFile bool
}

// RepoIndex is a lightweight snapshot of a repository's file structure.
type RepoIndex struct {
	Root        string
	TotalFiles  int
	Languages   map[string]int // extension -> count
	Files       []FileEntry
	Directories []string
	KeyFiles    []string
	TestFiles   []string
	Crates      []string // Rust workspace members
	Packages    []string // Node workspace packages
}

// cargoMembersRe extracts quoted strings out of a Cargo.toml members line.
var cargoMembersRe = regexp.MustCompile(`"([^"]+)"`)

// Build walks repoPath and produces a RepoIndex. It prefers `git ls-files`
// (fast, .gitignore-aware) and falls back to a filesystem walk bounded by
// maxDepth when the repo isn't a git checkout or git isn't available.
func Build(repoPath string, maxDepth int) (*RepoIndex, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	if maxDepth <= 0 {
		maxDepth = 8
	}

	idx := &RepoIndex{Root: abs, Languages: map[string]int{}}

	files := gitLsFiles(abs)
	if len(files) == 0 {
		files = walkFiles(abs, maxDepth)
	}

	dirSet := map[string]struct{}{}

	for _, rel := range files {
		rel = filepath.ToSlash(rel)
		parts := strings.Split(rel, "/")
		if inSkipDir(parts) {
			continue
		}

		base := parts[len(parts)-1]
		ext := ""
		if i := strings.LastIndex(base, "."); i >= 0 {
			ext = base[i:]
		}

		_, isKnownExt := CodeExtensions[ext]
		_, isKeyName := KeyFiles[base]
		if !isKnownExt && !isKeyName {
			continue
		}

		var size int64
		if info, err := os.Stat(filepath.Join(abs, rel)); err == nil {
			size = info.Size()
		}

		entry := FileEntry{
			Path:      rel,
			Extension: ext,
			SizeBytes: size,
			IsTest:    isTestFile(rel),
			IsKeyFile: isKeyName,
		}
		idx.Files = append(idx.Files, entry)

		if entry.IsKeyFile {
			idx.KeyFiles = append(idx.KeyFiles, rel)
		}
		if entry.IsTest {
			idx.TestFiles = append(idx.TestFiles, rel)
		}

		if _, skip := nonLanguageExtensions[ext]; isKnownExt && !skip {
			idx.Languages[ext]++
		}

		for i := 1; i < len(parts) && i < 3; i++ {
			dirSet[strings.Join(parts[:i], "/")] = struct{}{}
		}
	}

	idx.TotalFiles = len(idx.Files)
	idx.Directories = make([]string, 0, len(dirSet))
	for d := range dirSet {
		idx.Directories = append(idx.Directories, d)
	}
	sort.Strings(idx.Directories)

	idx.Crates = detectRustCrates(abs)
	idx.Packages = detectNodePackages(abs)

	return idx, nil
}

func inSkipDir(parts []string) bool {
	for _, p := range parts {
		if _, ok := SkipDirs[p]; ok {
			return true
		}
	}
	return false
}

func isTestFile(path string) bool {
	lower := strings.ToLower(path)
	parts := strings.Split(lower, "/")
	name := parts[len(parts)-1]

	switch {
	case strings.Contains(name, "test"),
		strings.Contains(name, "spec"),
		strings.Contains(lower, "tests/"),
		strings.Contains(lower, "test/"),
		strings.Contains(lower, "__tests__/"),
		strings.Contains(lower, "spec/"),
		strings.HasPrefix(name, "test_"),
		strings.HasSuffix(name, "_test.rs"),
		strings.HasSuffix(name, "_test.go"),
		strings.HasSuffix(name, ".test.ts"),
		strings.HasSuffix(name, ".test.tsx"),
		strings.HasSuffix(name, ".test.js"),
		strings.HasSuffix(name, ".spec.ts"),
		strings.HasSuffix(name, ".spec.js"):
		return true
	default:
		return false
	}
}

func gitLsFiles(repoPath string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), gitLsFilesTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "ls-files")
	cmd.Dir = repoPath
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil
	}
	var files []string
	for _, line := range strings.Split(out.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files
}

func walkFiles(repoPath string, maxDepth int) []string {
	var files []string
	_ = filepath.Walk(repoPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(repoPath, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		parts := strings.Split(rel, "/")
		if info.IsDir() {
			if _, skip := SkipDirs[info.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if len(parts) > maxDepth || inSkipDir(parts) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	return files
}

func detectRustCrates(repoPath string) []string {
	data, err := os.ReadFile(filepath.Join(repoPath, "Cargo.toml"))
	if err != nil {
		return nil
	}

	var crates []string
	inMembers := false
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, "members") && strings.Contains(line, "[") {
			inMembers = true
			if strings.Contains(line, "]") {
				for _, m := range cargoMembersRe.FindAllStringSubmatch(line, -1) {
					crates = append(crates, m[1])
				}
				inMembers = false
			}
			continue
		}
		if inMembers {
			if strings.Contains(line, "]") {
				inMembers = false
			}
			for _, m := range cargoMembersRe.FindAllStringSubmatch(line, -1) {
				crates = append(crates, m[1])
			}
		}
	}

	if len(crates) == 0 {
		_ = filepath.Walk(repoPath, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() || info.Name() != "Cargo.toml" {
				return nil
			}
			rel, err := filepath.Rel(repoPath, filepath.Dir(path))
			if err != nil || rel == "." || strings.Contains(rel, "target") {
				return nil
			}
			crates = append(crates, filepath.ToSlash(rel))
			return nil
		})
	}

	return dedupSorted(crates)
}

func detectNodePackages(repoPath string) []string {
	data, err := os.ReadFile(filepath.Join(repoPath, "package.json"))
	if err != nil {
		return nil
	}
	var pkg struct {
		Workspaces json.RawMessage `json:"workspaces"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil || len(pkg.Workspaces) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(pkg.Workspaces, &list); err == nil {
		sort.Strings(list)
		return list
	}

	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(pkg.Workspaces, &obj); err == nil {
		sort.Strings(obj.Packages)
		return obj.Packages
	}
	return nil
}

func dedupSorted(in []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
