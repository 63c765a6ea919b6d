package feishu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentcluster/dashboard/pkg/model"
)

const (
	titleLimit = 50
	errorLimit = 500

	maxFailedTasksListed = 5

	timeLayout = "2006-01-02 15:04:05"
)

// Truncate bounds s to limit runes.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// SendTaskFailedAlert posts a red card for a failed task. The title is
// passed through as given; callers truncate when they build it. The error
// text is fenced and truncated to bound the message size.
func (n *Notifier) SendTaskFailedAlert(
	ctx context.Context, taskID, taskTitle, agentName string, errorMessage *string,
) bool {
	var b strings.Builder
	fmt.Fprintf(&b, "**Task failed** 🔴\n\n")
	fmt.Fprintf(&b, "**Task ID**: %s\n", taskID)
	fmt.Fprintf(&b, "**Title**: %s\n", taskTitle)
	fmt.Fprintf(&b, "**Agent**: %s\n", agentName)
	fmt.Fprintf(&b, "**Failed at**: %s", time.Now().UTC().Format(timeLayout))
	if errorMessage != nil && *errorMessage != "" {
		fmt.Fprintf(&b, "\n\n**Error**:\n```\n%s\n```", Truncate(*errorMessage, errorLimit))
	}

	return n.SendCard(ctx, Card{
		Title:   "🚨 Task failed",
		Color:   "red",
		Content: b.String(),
	})
}

// SendTaskTimeoutAlert posts a yellow card for a task running past its
// deadline.
func (n *Notifier) SendTaskTimeoutAlert(
	ctx context.Context, taskID, taskTitle, agentName string,
	timeoutMinutes int, startedAt *time.Time,
) bool {
	started := ""
	if startedAt != nil {
		started = startedAt.UTC().Format(timeLayout)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Task timed out** ⚠️\n\n")
	fmt.Fprintf(&b, "**Task ID**: %s\n", taskID)
	fmt.Fprintf(&b, "**Title**: %s\n", taskTitle)
	fmt.Fprintf(&b, "**Agent**: %s\n", agentName)
	fmt.Fprintf(&b, "**Timeout**: %d minutes\n", timeoutMinutes)
	fmt.Fprintf(&b, "**Started at**: %s\n", started)
	fmt.Fprintf(&b, "**Current time**: %s", time.Now().UTC().Format(timeLayout))

	return n.SendCard(ctx, Card{
		Title:   "⏰ Task timed out",
		Color:   "yellow",
		Content: b.String(),
	})
}

// FailedTask is one failed-task line of the daily summary.
type FailedTask struct {
	TaskID string
	Title  string
}

// AgentStat is one per-agent line of the daily summary.
type AgentStat struct {
	Name        string
	DisplayName string
	Total       int
	Completed   int
}

// DailySummary is the payload of the daily aggregate report.
type DailySummary struct {
	TotalTasks  int
	Completed   int
	Failed      int
	Running     int
	FailedTasks []FailedTask
	AgentStats  []AgentStat
}

// SendDailySummary posts the blue daily report card. It lists at most
// maxFailedTasksListed failed tasks, then an "...and N more" line, and every
// agent's completion rate.
func (n *Notifier) SendDailySummary(ctx context.Context, summary DailySummary) bool {
	var b strings.Builder
	fmt.Fprintf(&b, "**Daily task summary** 📊\n\n")
	fmt.Fprintf(&b, "**Totals:**\n")
	fmt.Fprintf(&b, "- Tasks: %d\n", summary.TotalTasks)
	fmt.Fprintf(&b, "- ✅ Completed: %d\n", summary.Completed)
	fmt.Fprintf(&b, "- 🔴 Failed: %d\n", summary.Failed)
	fmt.Fprintf(&b, "- 🔵 Running: %d\n", summary.Running)
	fmt.Fprintf(&b, "- Success rate: %.1f%%\n", model.Rate(summary.Completed, summary.TotalTasks))

	if len(summary.FailedTasks) > 0 {
		fmt.Fprintf(&b, "\n**Failed tasks:**\n")
		for i, task := range summary.FailedTasks {
			if i == maxFailedTasksListed {
				break
			}
			fmt.Fprintf(&b, "- %s: %s\n", task.TaskID, Truncate(task.Title, titleLimit))
		}
		if extra := len(summary.FailedTasks) - maxFailedTasksListed; extra > 0 {
			fmt.Fprintf(&b, "- ...and %d more\n", extra)
		}
	}

	fmt.Fprintf(&b, "\n**Per-agent stats:**\n")
	for _, agent := range summary.AgentStats {
		fmt.Fprintf(&b, "- %s: %d/%d completed (%.1f%%)\n",
			agent.DisplayName, agent.Completed, agent.Total,
			model.Rate(agent.Completed, agent.Total))
	}

	fmt.Fprintf(&b, "\n**Reported at**: %s", time.Now().UTC().Format(timeLayout))

	return n.SendCard(ctx, Card{
		Title:   "📈 Daily task summary",
		Color:   "blue",
		Content: b.String(),
	})
}
