// Package alerts detects failure and timeout conditions over the task table
// and orchestrates their delivery.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/agentcluster/dashboard/internal/config"
	"github.com/agentcluster/dashboard/internal/db"
	"github.com/agentcluster/dashboard/internal/feishu"
	"github.com/agentcluster/dashboard/pkg/model"
	"github.com/agentcluster/dashboard/pkg/set"
)

// scanBatchSize bounds one detection pass to the most recent tasks instead of
// a full table scan.
const scanBatchSize = 500

// Detector scans task state and writes new alert rows. The timeout dedup
// memory is owned by the instance; it is not persisted, so a process restart
// forgets which tasks already raised a timeout alert and may re-alert. Known
// gap.
type Detector struct {
	log   *log.Entry
	store *db.Store
	cfg   config.AlertsConfig

	mu             sync.Mutex
	timeoutAlerted set.Set[string]
}

// NewDetector returns a detector applying the configured rules.
func NewDetector(store *db.Store, cfg config.AlertsConfig) *Detector {
	return &Detector{
		log:            log.WithField("component", "alert-detector"),
		store:          store,
		cfg:            cfg,
		timeoutAlerted: set.New[string](),
	}
}

// CheckAllTasks scans the most recent tasks, applies the failure and timeout
// rules, and returns the alerts created by this pass. Tasks themselves are
// left untouched.
func (d *Detector) CheckAllTasks(ctx context.Context) (model.Alerts, error) {
	tasks, err := d.store.Tasks(ctx, db.TaskFilter{Limit: scanBatchSize})
	if err != nil {
		return nil, err
	}

	created := model.Alerts{}
	for _, task := range tasks {
		if alert, err := d.checkTaskFailure(ctx, task); err != nil {
			d.log.WithError(err).Warnf("failure check for task %q", task.TaskID)
		} else if alert != nil {
			created = append(created, alert)
		}

		if alert, err := d.checkTaskTimeout(ctx, task); err != nil {
			d.log.WithError(err).Warnf("timeout check for task %q", task.TaskID)
		} else if alert != nil {
			created = append(created, alert)
		}
	}

	alertsGenerated.Add(float64(len(created)))
	return created, nil
}

// checkTaskFailure raises a task_failure alert for a failed task unless an
// undelivered one already exists for it. The dedup lives in the store's
// conditional insert.
func (d *Detector) checkTaskFailure(
	ctx context.Context, task *model.Task,
) (*model.Alert, error) {
	if !d.cfg.EnableTaskFailureAlert || task.Status != model.TaskFailed {
		return nil, nil
	}

	message := "task execution failed"
	if task.ErrorMessage != nil && *task.ErrorMessage != "" {
		message = *task.ErrorMessage
	}
	alert := &model.Alert{
		AlertType: model.AlertTaskFailure,
		Title:     "Task failed: " + feishu.Truncate(task.Title, 50),
		Message:   &message,
		Severity:  model.SeverityError,
		AgentName: task.AgentName,
		TaskID:    &task.TaskID,
	}

	created, err := d.store.CreateAlertIfAbsent(ctx, alert)
	if err != nil || !created {
		return nil, err
	}
	return alert, nil
}

// checkTaskTimeout raises a task_timeout alert for a running task whose
// elapsed time exceeds the threshold, at most once per task within this
// process lifetime.
func (d *Detector) checkTaskTimeout(
	ctx context.Context, task *model.Task,
) (*model.Alert, error) {
	if !d.cfg.EnableTaskTimeoutAlert || task.Status != model.TaskRunning {
		return nil, nil
	}
	if task.StartedAt == nil {
		return nil, nil
	}

	timeout := time.Duration(d.cfg.TaskTimeoutMinutes) * time.Minute
	if time.Since(*task.StartedAt) <= timeout {
		return nil, nil
	}

	d.mu.Lock()
	if d.timeoutAlerted.Contains(task.TaskID) {
		d.mu.Unlock()
		return nil, nil
	}
	d.timeoutAlerted.Insert(task.TaskID)
	d.mu.Unlock()

	message := fmt.Sprintf(
		"task has been running for more than %d minutes", d.cfg.TaskTimeoutMinutes)
	alert := &model.Alert{
		AlertType: model.AlertTaskTimeout,
		Title:     "Task timed out: " + feishu.Truncate(task.Title, 50),
		Message:   &message,
		Severity:  model.SeverityWarning,
		AgentName: task.AgentName,
		TaskID:    &task.TaskID,
	}
	if err := d.store.CreateAlert(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// FailedTaskSummary is one recently failed task in the daily stats snapshot.
type FailedTaskSummary struct {
	TaskID       string     `json:"task_id"`
	Title        string     `json:"title"`
	AgentName    *string    `json:"agent_name"`
	ErrorMessage *string    `json:"error_message"`
	CompletedAt  *time.Time `json:"completed_at"`
}

// AgentDailyStat is one agent's counters in the daily stats snapshot.
type AgentDailyStat struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	Failed      int    `json:"failed"`
}

// DailyStats is a read-only aggregation for the daily summary.
type DailyStats struct {
	TotalTasks  int                 `json:"total_tasks"`
	Completed   int                 `json:"completed"`
	Failed      int                 `json:"failed"`
	Running     int                 `json:"running"`
	FailedTasks []FailedTaskSummary `json:"failed_tasks"`
	AgentStats  []AgentDailyStat    `json:"agent_stats"`
}

// DailyStats snapshots overall counters, the tasks that failed within the
// last 24 hours (window start inclusive), and per-agent counters. No
// mutation.
func (d *Detector) DailyStats(ctx context.Context) (*DailyStats, error) {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	failed, err := d.store.Tasks(ctx, db.TaskFilter{Status: model.TaskFailed, Limit: 100})
	if err != nil {
		return nil, err
	}
	failedTasks := []FailedTaskSummary{}
	for _, task := range failed {
		if task.CompletedAt == nil || task.CompletedAt.Before(since) {
			continue
		}
		failedTasks = append(failedTasks, FailedTaskSummary{
			TaskID:       task.TaskID,
			Title:        task.Title,
			AgentName:    task.AgentName,
			ErrorMessage: task.ErrorMessage,
			CompletedAt:  task.CompletedAt,
		})
	}

	agents, err := d.store.Agents(ctx)
	if err != nil {
		return nil, err
	}
	agentStats := make([]AgentDailyStat, 0, len(agents))
	for _, agent := range agents {
		agentStats = append(agentStats, AgentDailyStat{
			Name:        agent.Name,
			DisplayName: agent.DisplayName,
			Total:       agent.TotalTasks,
			Completed:   agent.CompletedTasks,
			Failed:      agent.FailedTasks,
		})
	}

	return &DailyStats{
		TotalTasks:  stats.TotalTasks,
		Completed:   stats.CompletedTasks,
		Failed:      stats.FailedTasks,
		Running:     stats.RunningTasks,
		FailedTasks: failedTasks,
		AgentStats:  agentStats,
	}, nil
}
