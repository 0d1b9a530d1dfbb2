package indexer

import (
	"fmt"
	"sort"
	"strings"

	tiktoken "github.com/pkoukk/tiktoken-go"
	"github.com/sahilm/fuzzy"
)

// DefaultMaxFiles bounds how many individual file paths ToAgentContext will
// list before summarizing the remainder as a count.
const DefaultMaxFiles = 300

// ToAgentContext formats the index as a string suitable for injecting into
// agent context. It prioritizes structure (languages, crates, key files,
// directory tree) over an exhaustive file listing, then truncates the
// rendered text to maxTokens as estimated by tiktoken-go rather than a raw
// byte count, since prompt budgets are token budgets.
func (idx *RepoIndex) ToAgentContext(maxFiles, maxTokens int) string {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== REPO INDEX (%d files) ===\n", idx.TotalFiles)

	if len(idx.Languages) > 0 {
		type langCount struct {
			ext   string
			count int
		}
		langs := make([]langCount, 0, len(idx.Languages))
		for ext, count := range idx.Languages {
			langs = append(langs, langCount{ext, count})
		}
		sort.Slice(langs, func(i, j int) bool {
			if langs[i].count != langs[j].count {
				return langs[i].count > langs[j].count
			}
			return langs[i].ext < langs[j].ext
		})
		if len(langs) > 10 {
			langs = langs[:10]
		}
		parts := make([]string, len(langs))
		for i, l := range langs {
			parts[i] = fmt.Sprintf("%s: %d", l.ext, l.count)
		}
		fmt.Fprintf(&b, "Languages: %s\n", strings.Join(parts, ", "))
	}

	if len(idx.Crates) > 0 {
		fmt.Fprintf(&b, "Rust crates: %s\n", strings.Join(idx.Crates, ", "))
	}
	if len(idx.Packages) > 0 {
		fmt.Fprintf(&b, "Packages: %s\n", strings.Join(idx.Packages, ", "))
	}
	if len(idx.KeyFiles) > 0 {
		fmt.Fprintf(&b, "Key files: %s\n", strings.Join(idx.KeyFiles, ", "))
	}

	if len(idx.Directories) > 0 {
		b.WriteString("\nDirectory structure:")
		dirs := idx.Directories
		if len(dirs) > 50 {
			dirs = dirs[:50]
		}
		for _, d := range dirs {
			depth := strings.Count(d, "/")
			indent := strings.Repeat("  ", depth)
			name := d
			if i := strings.LastIndex(d, "/"); i >= 0 {
				name = d[i+1:]
			}
			fmt.Fprintf(&b, "\n  %s%s/", indent, name)
		}
	}

	shown := len(idx.Files)
	if shown > maxFiles {
		shown = maxFiles
	}
	fmt.Fprintf(&b, "\n\nSource files (%d shown):", shown)
	for _, entry := range idx.Files[:shown] {
		var markers []string
		if entry.IsTest {
			markers = append(markers, "test")
		}
		if entry.IsKeyFile {
			markers = append(markers, "key")
		}
		suffix := ""
		if len(markers) > 0 {
			suffix = fmt.Sprintf("  [%s]", strings.Join(markers, ", "))
		}
		fmt.Fprintf(&b, "\n  %s%s", entry.Path, suffix)
	}
	if len(idx.Files) > maxFiles {
		fmt.Fprintf(&b, "\n  ... and %d more files", len(idx.Files)-maxFiles)
	}

	return truncateToTokens(b.String(), maxTokens)
}

// truncateToTokens trims text to at most maxTokens as estimated by the
// cl100k_base encoding. maxTokens <= 0 means no truncation. Encoding
// failures degrade to the untruncated text rather than an error, since
// context injection is best-effort.
func truncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return text
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	truncated := enc.Decode(tokens[:maxTokens])
	return truncated + "\n... (truncated to fit context budget)"
}

// RankFiles ranks every indexed file path against query using fuzzy
// subsequence matching and returns the top n matches, best first. The
// pipeline stages do not call it.
func (idx *RepoIndex) RankFiles(query string, n int) []string {
	if query == "" || n <= 0 {
		return nil
	}
	paths := make([]string, len(idx.Files))
	for i, f := range idx.Files {
		paths[i] = f.Path
	}
	matches := fuzzy.Find(query, paths)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > n {
		matches = matches[:n]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Str
	}
	return out
}
