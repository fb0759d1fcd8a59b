package domain

import "time"

// TokenUsage is one append-only record of an external model call.
// Immutable once written.
type TokenUsage struct {
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	RequestID    string    `json:"request_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// TotalTokens returns input plus output tokens.
func (u TokenUsage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// UsageSummary aggregates token usage for reporting.
type UsageSummary struct {
	TotalInput  int64                  `json:"total_input"`
	TotalOutput int64                  `json:"total_output"`
	TotalCost   float64                `json:"total_cost_usd"`
	Requests    int64                  `json:"requests"`
	ByModel     map[string]ModelTotals `json:"by_model,omitempty"`
}

// ModelTotals holds per-model token sums.
type ModelTotals struct {
	Input   int64   `json:"input"`
	Output  int64   `json:"output"`
	CostUSD float64 `json:"cost_usd"`
}
