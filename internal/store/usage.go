package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

// InsertUsage appends a token usage record. Records are immutable once
// written; there is no update path.
func (s *Store) InsertUsage(ctx context.Context, u domain.TokenUsage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO token_usage (provider, model, input_tokens, output_tokens, cost_usd, request_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Provider, u.Model, u.InputTokens, u.OutputTokens, u.CostUSD, u.RequestID,
		formatTime(u.Timestamp))
	if err != nil {
		return fmt.Errorf("inserting token usage: %w", err)
	}
	return nil
}

// SummarizeUsage aggregates usage since the given time. A zero time
// aggregates everything.
func (s *Store) SummarizeUsage(ctx context.Context, since time.Time) (*domain.UsageSummary, error) {
	query := `SELECT model, COUNT(*), COALESCE(SUM(input_tokens), 0),
		COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM token_usage`
	var args []any
	if !since.IsZero() {
		query += ` WHERE created_at >= ?`
		args = append(args, formatTime(since))
	}
	query += ` GROUP BY model ORDER BY model`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summarizing usage: %w", err)
	}
	defer rows.Close()

	summary := &domain.UsageSummary{ByModel: make(map[string]domain.ModelTotals)}
	for rows.Next() {
		var model string
		var requests, input, output int64
		var cost float64
		if err := rows.Scan(&model, &requests, &input, &output, &cost); err != nil {
			return nil, fmt.Errorf("scanning usage row: %w", err)
		}
		summary.ByModel[model] = domain.ModelTotals{Input: input, Output: output, CostUSD: cost}
		summary.Requests += requests
		summary.TotalInput += input
		summary.TotalOutput += output
		summary.TotalCost += cost
	}
	return summary, rows.Err()
}
