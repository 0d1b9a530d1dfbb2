package controller

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/glitchlab/glitchlab/pkg/types"
)

// findExistingDocs lists markdown files already in the workspace, capped at
// 20, so the Archivist can match the project's existing doc style instead
// of inventing its own.
func findExistingDocs(wsPath string) []string {
	var out []string
	_ = filepath.Walk(wsPath, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(wsPath, path)
		if relErr != nil || strings.HasPrefix(rel, ".glitchlab") || strings.HasPrefix(rel, ".git") {
			return nil
		}
		if strings.HasSuffix(rel, ".md") {
			out = append(out, rel)
		}
		return nil
	})
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}

// applyArchivistOutput writes an ADR (if the Archivist recommended one) and
// any documentation updates to wsPath, reporting each write through the
// Reporter the same way pkg/apply's results are.
func (c *Controller) applyArchivistOutput(wsPath string, arch *types.ArchivistResult) {
	if arch.ShouldWriteADR && arch.ADR != "" {
		if path, err := writeADR(wsPath, arch.ADR); err != nil {
			c.log.Warningf("failed to write ADR: %v", err)
		} else {
			c.reporter.StepApplied("ADR", path)
		}
	}
	for _, doc := range arch.DocUpdates {
		if err := writeDocUpdate(wsPath, doc); err != nil {
			c.log.Warningf("failed to write doc update %s: %v", doc.Path, err)
			continue
		}
		c.reporter.StepApplied("DOC", doc.Path)
	}
}

// writeADR writes a pre-rendered ADR body under .context/decisions/ when
// that directory already exists (context-provider compatible layout),
// falling back to docs/adr/ otherwise. Returns the path written, relative
// to wsPath.
func writeADR(wsPath, body string) (string, error) {
	adrDir := filepath.Join(wsPath, ".context", "decisions")
	if _, err := os.Stat(adrDir); err != nil {
		adrDir = filepath.Join(wsPath, "docs", "adr")
	}
	if err := os.MkdirAll(adrDir, 0o755); err != nil {
		return "", fmt.Errorf("creating ADR dir: %w", err)
	}

	existing, _ := filepath.Glob(filepath.Join(adrDir, "*.md"))
	next := len(existing) + 1

	filename := fmt.Sprintf("%s-change.md", pad3(next))
	full := filepath.Join(adrDir, filename)

	content := body + fmt.Sprintf("\n---\n*Recorded %s*\n", time.Now().UTC().Format("2006-01-02"))
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing ADR: %w", err)
	}

	rel, _ := filepath.Rel(wsPath, full)
	return rel, nil
}

func pad3(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// writeDocUpdate applies one Archivist-proposed documentation change.
// Content is appended to an existing non-empty file, separated by a blank
// line; otherwise the file is written with Content alone.
func writeDocUpdate(wsPath string, doc types.DocUpdate) error {
	if doc.Content == "" {
		return nil
	}
	full := filepath.Join(wsPath, doc.Path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	existing, err := os.ReadFile(full)
	if err != nil {
		existing = nil
	}
	content := doc.Content
	if len(existing) > 0 {
		content = string(existing) + "\n\n" + doc.Content
	}
	return os.WriteFile(full, []byte(content), 0o644)
}
