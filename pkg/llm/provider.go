// Package llm provides the Provider abstraction the Router (pkg/router)
// wraps with budget enforcement. Providers are kept narrow — a single
// synchronous Complete call — because every glitchlab agent is a
// stateless one-shot prompt-in, JSON-out transformer, never a streaming
// chat session.
package llm

import "context"

// Message is one chat message in a completion request.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// Response is the result of a completion call.
type Response struct {
	Content    string
	Model      string
	TokensUsed int
	Cost       float64
}

// ModelCloner lets a Router share one Provider's credentials and transport
// across calls that each need a different model, without reconstructing a
// full client per call.
type ModelCloner interface {
	CloneWithModel(model string) Provider
}

// Provider sends chat messages to an LLM and returns the full response.
type Provider interface {
	Complete(ctx context.Context, messages []Message, opts ...CallOption) (*Response, error)
	Model() string
}

// CallOption configures a single Complete call.
type CallOption func(*CallOptions)

// CallOptions are the per-call knobs a Provider implementation may honor.
type CallOptions struct {
	JSONMode    bool
	Temperature float64
}

// WithJSONMode requests the provider constrain output to a JSON object,
// preventing conversational filler around an agent's structured response.
func WithJSONMode() CallOption {
	return func(o *CallOptions) { o.JSONMode = true }
}

// WithTemperature sets the sampling temperature for a single call.
func WithTemperature(t float64) CallOption {
	return func(o *CallOptions) { o.Temperature = t }
}

// ResolveOptions applies CallOptions to a zero value, matching the
// functional-options idiom used throughout this codebase.
func ResolveOptions(opts ...CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
