package db

import (
	"context"

	"github.com/agentcluster/dashboard/pkg/model"
)

// Stats is a snapshot of the aggregate statistics across all tables.
type Stats struct {
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	FailedTasks    int     `json:"failed_tasks"`
	RunningTasks   int     `json:"running_tasks"`
	SuccessRate    float64 `json:"success_rate"`

	TotalInputTokens  int `json:"total_input_tokens"`
	TotalOutputTokens int `json:"total_output_tokens"`
	TotalTokens       int `json:"total_tokens"`

	TotalAlerts  int `json:"total_alerts"`
	UnsentAlerts int `json:"unsent_alerts"`

	TotalAgents  int `json:"total_agents"`
	ActiveAgents int `json:"active_agents"`
}

// Stats returns aggregate counts over tasks, alerts and agents. Each count is
// its own read; the snapshot is not transactionally consistent, which is fine
// for a diagnostics surface.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	var err error
	if stats.TotalTasks, err = s.bun.NewSelect().
		Model((*model.Task)(nil)).Count(ctx); err != nil {
		return nil, err
	}
	if stats.CompletedTasks, err = s.bun.NewSelect().
		Model((*model.Task)(nil)).Where("status = ?", model.TaskCompleted).Count(ctx); err != nil {
		return nil, err
	}
	if stats.FailedTasks, err = s.bun.NewSelect().
		Model((*model.Task)(nil)).Where("status = ?", model.TaskFailed).Count(ctx); err != nil {
		return nil, err
	}
	if stats.RunningTasks, err = s.bun.NewSelect().
		Model((*model.Task)(nil)).Where("status = ?", model.TaskRunning).Count(ctx); err != nil {
		return nil, err
	}
	stats.SuccessRate = model.Rate(stats.CompletedTasks, stats.TotalTasks)

	if err = s.bun.NewSelect().
		Model((*model.Task)(nil)).
		ColumnExpr("coalesce(sum(input_tokens), 0)").
		ColumnExpr("coalesce(sum(output_tokens), 0)").
		Scan(ctx, &stats.TotalInputTokens, &stats.TotalOutputTokens); err != nil {
		return nil, err
	}
	stats.TotalTokens = stats.TotalInputTokens + stats.TotalOutputTokens

	if stats.TotalAlerts, err = s.bun.NewSelect().
		Model((*model.Alert)(nil)).Count(ctx); err != nil {
		return nil, err
	}
	if stats.UnsentAlerts, err = s.bun.NewSelect().
		Model((*model.Alert)(nil)).Where("is_sent = false").Count(ctx); err != nil {
		return nil, err
	}

	if stats.TotalAgents, err = s.bun.NewSelect().
		Model((*model.Agent)(nil)).Count(ctx); err != nil {
		return nil, err
	}
	if stats.ActiveAgents, err = s.bun.NewSelect().
		Model((*model.Agent)(nil)).Where("status = ?", model.AgentBusy).Count(ctx); err != nil {
		return nil, err
	}

	return stats, nil
}
