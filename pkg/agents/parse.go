// Package agents implements C8: one adapter per pipeline role, each
// building a role-specific prompt from AgentContext, calling through a
// Router, and parsing the response into a typed, tagged-union-shaped
// result. A malformed response never panics or aborts the process — it
// becomes a role-specific fallback result with Err set, and the Controller
// decides whether that role's failure halts the pipeline.
package agents

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/glitchlab/glitchlab/pkg/llm"
	"github.com/glitchlab/glitchlab/pkg/types"
)

// jsonObjectRe is the last-resort extraction when a model wraps its JSON in
// commentary despite JSON mode and fence-stripping — grabs the largest
// brace-delimited span.
var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// stripFences removes a leading/trailing markdown code fence and an
// optional "json" language tag, which models occasionally emit even under
// JSON mode.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, ln := range lines {
		trimmed := strings.TrimSpace(ln)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		kept = append(kept, ln)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// decodeJSON unmarshals content into v, retrying against the largest
// brace-delimited substring if the first attempt fails — models under load
// sometimes prepend a stray sentence before the JSON object.
func decodeJSON(content string, v any) error {
	content = stripFences(content)
	if err := json.Unmarshal([]byte(content), v); err == nil {
		return nil
	}
	if match := jsonObjectRe.FindString(content); match != "" {
		if err := json.Unmarshal([]byte(match), v); err == nil {
			return nil
		}
	}
	return json.Unmarshal([]byte(content), v) // return the original error
}

func metaFrom(role, model string, resp *llm.Response, parseErr error, raw string) types.AgentMeta {
	meta := types.AgentMeta{
		AgentRole:  role,
		Model:      model,
		TokensUsed: resp.TokensUsed,
		Cost:       resp.Cost,
	}
	if parseErr != nil {
		reason := parseErr.Error()
		if len(raw) > 2000 {
			raw = raw[:2000]
		}
		meta.Err = &types.ParseError{Raw: raw, Reason: reason}
	}
	return meta
}

func systemMsg(prompt string) llm.Message { return llm.Message{Role: "system", Content: prompt} }
func userMsg(content string) llm.Message  { return llm.Message{Role: "user", Content: content} }

func renderList(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderFileContext(files map[string]string) string {
	if len(files) == 0 {
		return ""
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("\n\nCurrent file contents:\n")
	for _, name := range names {
		b.WriteString("\n--- ")
		b.WriteString(name)
		b.WriteString(" ---\n")
		b.WriteString(files[name])
		b.WriteString("\n")
	}
	return b.String()
}
