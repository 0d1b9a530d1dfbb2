package types

// BudgetState tracks cumulative Router spend for one task run against the
// ceilings configured for it.
type BudgetState struct {
	TotalTokens   int     `json:"total_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
	CallCount     int     `json:"call_count"`

	MaxTokens int     `json:"max_tokens,omitempty"`
	MaxCost   float64 `json:"max_cost,omitempty"`
}

// WouldExceed reports whether adding estimatedTokens/estimatedCost on top of
// the running total would breach either ceiling. A zero ceiling means
// unlimited.
func (b BudgetState) WouldExceed(estimatedTokens int, estimatedCost float64) bool {
	if b.MaxTokens > 0 && b.TotalTokens+estimatedTokens > b.MaxTokens {
		return true
	}
	if b.MaxCost > 0 && b.EstimatedCost+estimatedCost > b.MaxCost {
		return true
	}
	return false
}

// Record folds a completed call's actual usage into the running total.
func (b *BudgetState) Record(tokens int, cost float64) {
	b.TotalTokens += tokens
	b.EstimatedCost += cost
	b.CallCount++
}
