package types

// ParseError is the failure variant of a stage result, carried in
// AgentMeta.Err: the raw LLM response could not be decoded as the role's
// JSON object.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Reason
}

// AgentMeta carries the fields every agent role's output is tagged with,
// regardless of whether parsing succeeded.
type AgentMeta struct {
	AgentRole  string
	Model      string
	TokensUsed int
	Cost       float64

	// Err is non-nil when the role's output is the ParseError variant of its
	// stage result. Callers MUST check Err before trusting role-specific
	// fields — this is the tagged-variant rendering of "previous_output"
	// from the distilled spec: a field that is either absent or present,
	// never both, and never probed with an optional-key lookup.
	Err *ParseError
}

// Valid reports whether this stage produced a usable (non-parse-error)
// result.
func (m AgentMeta) Valid() bool {
	return m.Err == nil
}
