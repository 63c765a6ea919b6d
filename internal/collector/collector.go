// Package collector reconciles the dashboard's state store with the external
// task snapshot and worker log directory.
package collector

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/agentcluster/dashboard/internal/config"
	"github.com/agentcluster/dashboard/internal/db"
	"github.com/agentcluster/dashboard/pkg/model"
)

// SourceResult counts the outcome of one sub-sync. Per-entry errors are
// counted, never fatal; the batch always runs to the end.
type SourceResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// SyncResult is the outcome of one full sync pass.
type SyncResult struct {
	ActiveTasks SourceResult `json:"active_tasks"`
	CronLogs    SourceResult `json:"cron_logs"`
	Timestamp   time.Time    `json:"timestamp"`
}

// taskEntry is one entry of the external task snapshot.
type taskEntry struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	Assignee    *string `json:"assignee"`
	Priority    string  `json:"priority"`
	Requester   *string `json:"requester"`
}

type taskSnapshot struct {
	Tasks []taskEntry `json:"tasks"`
}

// statusMap translates the snapshot's status vocabulary to task statuses.
// Unknown values fall back to pending.
var statusMap = map[string]model.TaskStatus{
	"pending":     model.TaskPending,
	"in_progress": model.TaskRunning,
	"completed":   model.TaskCompleted,
	"failed":      model.TaskFailed,
}

// Collector converges the state store with the external snapshot via
// idempotent upserts.
type Collector struct {
	log   *log.Entry
	store *db.Store
	cfg   config.CollectorConfig
}

// New returns a collector reading from the configured sources.
func New(store *db.Store, cfg config.CollectorConfig) *Collector {
	return &Collector{
		log:   log.WithField("component", "collector"),
		store: store,
		cfg:   cfg,
	}
}

// SyncAll runs both sub-syncs. They are independent: a failure in one never
// blocks the other, and the result only carries counts for the caller to log.
func (c *Collector) SyncAll(ctx context.Context) SyncResult {
	result := SyncResult{
		ActiveTasks: c.collectActiveTasks(ctx),
		CronLogs:    c.collectCronLogs(),
		Timestamp:   time.Now().UTC(),
	}
	syncPasses.Inc()
	c.log.WithFields(log.Fields{
		"tasks_processed": result.ActiveTasks.Processed,
		"tasks_errors":    result.ActiveTasks.Errors,
		"log_lines":       result.CronLogs.Processed,
		"log_errors":      result.CronLogs.Errors,
	}).Debug("sync pass finished")
	return result
}

func (c *Collector) collectActiveTasks(ctx context.Context) SourceResult {
	result := SourceResult{}

	bs, err := os.ReadFile(c.cfg.TasksFile)
	if os.IsNotExist(err) {
		// An absent snapshot is an empty snapshot.
		return result
	} else if err != nil {
		c.log.WithError(err).Error("failed to read task snapshot")
		result.Errors++
		syncErrors.WithLabelValues("active_tasks").Inc()
		return result
	}

	var snapshot taskSnapshot
	if err := json.Unmarshal(bs, &snapshot); err != nil {
		c.log.WithError(err).Error("failed to parse task snapshot")
		result.Errors++
		syncErrors.WithLabelValues("active_tasks").Inc()
		return result
	}

	for _, entry := range snapshot.Tasks {
		if err := c.processTask(ctx, entry); err != nil {
			c.log.WithError(err).Warnf("failed to process task %q", entry.ID)
			result.Errors++
			syncErrors.WithLabelValues("active_tasks").Inc()
			continue
		}
		result.Processed++
		tasksProcessed.Inc()
	}
	return result
}

func (c *Collector) processTask(ctx context.Context, entry taskEntry) error {
	if entry.ID == "" {
		return errors.New("task entry has no id")
	}

	status, ok := statusMap[entry.Status]
	if !ok {
		status = model.TaskPending
	}

	existing, err := c.store.TaskByID(ctx, entry.ID)
	switch {
	case err == nil:
		// Same snapshot observed again with an unchanged status is a no-op.
		if existing.Status == status {
			break
		}
		update := db.TaskUpdate{}
		now := time.Now().UTC()
		if status.Terminal() {
			update.CompletedAt = &now
		}
		if err := c.store.UpdateTaskStatus(ctx, entry.ID, status, update); err != nil {
			return errors.Wrap(err, "updating task status")
		}
	case errors.Is(err, db.ErrNotFound):
		priority := entry.Priority
		if priority == "" {
			priority = "normal"
		}
		task := &model.Task{
			TaskID:      entry.ID,
			Title:       entry.Title,
			Description: entry.Description,
			AgentName:   entry.Assignee,
			Priority:    priority,
			Requester:   entry.Requester,
			Status:      model.TaskPending,
		}
		if err := c.store.CreateTask(ctx, task); err != nil {
			return errors.Wrap(err, "creating task")
		}
		if status != model.TaskPending {
			update := db.TaskUpdate{}
			now := time.Now().UTC()
			if status == model.TaskRunning {
				update.StartedAt = &now
			}
			if status.Terminal() {
				update.CompletedAt = &now
			}
			if err := c.store.UpdateTaskStatus(ctx, entry.ID, status, update); err != nil {
				return errors.Wrap(err, "advancing new task status")
			}
		}
	default:
		return errors.Wrap(err, "looking up task")
	}

	// Project the assignee's status from the last observation of its task.
	if entry.Assignee != nil && *entry.Assignee != "" {
		agentStatus, currentTaskID := model.AgentIdle, ""
		if status == model.TaskRunning {
			agentStatus, currentTaskID = model.AgentBusy, entry.ID
		}
		err := c.store.UpdateAgentStatus(ctx, *entry.Assignee, agentStatus, currentTaskID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return errors.Wrap(err, "projecting agent status")
		}
	}
	return nil
}

// collectCronLogs counts the lines of each *.log file in the logs directory.
// A missing directory is an empty result; per-file errors are counted and the
// scan continues.
func (c *Collector) collectCronLogs() SourceResult {
	result := SourceResult{}

	entries, err := os.ReadDir(c.cfg.LogsDir)
	if os.IsNotExist(err) {
		return result
	} else if err != nil {
		c.log.WithError(err).Error("failed to read logs directory")
		result.Errors++
		syncErrors.WithLabelValues("cron_logs").Inc()
		return result
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		n, err := countLines(filepath.Join(c.cfg.LogsDir, entry.Name()))
		if err != nil {
			c.log.WithError(err).Warnf("failed to read log file %q", entry.Name())
			result.Errors++
			syncErrors.WithLabelValues("cron_logs").Inc()
			continue
		}
		result.Processed += n
	}
	return result
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}
