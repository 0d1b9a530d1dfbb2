// Package router implements C1: a budget-enforcing wrapper around an
// llm.Provider. Every agent adapter calls through a Router, never the
// Provider directly, so no call can silently blow past a task's token or
// cost ceiling.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/glitchlab/glitchlab/pkg/llm"
	"github.com/glitchlab/glitchlab/pkg/types"
)

// ErrBudgetExceeded is returned before a call is issued when the estimated
// token count would breach the token ceiling, and after a call whose
// recorded cost pushed spend over the cost ceiling.
var ErrBudgetExceeded = errors.New("router: budget exceeded")

// Router wraps a Provider with pre-call budget estimation and post-call
// accounting. One Router is created per task run so BudgetState is scoped
// to that task, never shared across concurrent tasks.
type Router struct {
	provider llm.Provider

	mu    sync.Mutex
	state types.BudgetState

	encoding *tiktoken.Tiktoken
}

// New creates a Router against provider with the given ceilings. A zero
// ceiling means unlimited.
func New(provider llm.Provider, maxTokens int, maxCost float64) *Router {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil // estimation degrades to a conservative heuristic below
	}
	return &Router{
		provider: provider,
		state: types.BudgetState{
			MaxTokens: maxTokens,
			MaxCost:   maxCost,
		},
		encoding: enc,
	}
}

// State returns a snapshot of the current spend.
func (r *Router) State() types.BudgetState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Call sends messages through the wrapped Provider after verifying the
// estimated token count would not exceed the configured ceiling. The
// estimate uses a cheap fixed completion-token allowance since the
// response size isn't known until after the call — this keeps the check
// fail-fast (before any network round trip) at the cost of being
// conservative rather than exact.
func (r *Router) Call(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Response, error) {
	const completionAllowance = 2048

	promptTokens := r.estimateTokens(messages)

	r.mu.Lock()
	wouldExceed := r.state.WouldExceed(promptTokens+completionAllowance, 0)
	r.mu.Unlock()
	if wouldExceed {
		return nil, fmt.Errorf("%w: estimated %d tokens would exceed ceiling of %d", ErrBudgetExceeded, promptTokens+completionAllowance, r.state.MaxTokens)
	}

	resp, err := r.provider.Complete(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.state.Record(resp.TokensUsed, resp.Cost)
	exceeded := r.state.MaxCost > 0 && r.state.EstimatedCost > r.state.MaxCost
	r.mu.Unlock()

	if exceeded {
		return resp, fmt.Errorf("%w: call succeeded but pushed spend to $%.4f over ceiling of $%.2f", ErrBudgetExceeded, r.state.EstimatedCost, r.state.MaxCost)
	}

	return resp, nil
}

func (r *Router) estimateTokens(messages []llm.Message) int {
	if r.encoding == nil {
		total := 0
		for _, m := range messages {
			total += len(m.Content) / 4 // ~4 chars/token heuristic fallback
		}
		return total
	}
	total := 0
	for _, m := range messages {
		total += len(r.encoding.Encode(m.Content, nil, nil))
	}
	return total
}
