package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/agentcluster/dashboard/pkg/model"
)

// TaskFilter restricts the tasks returned by Tasks. Zero values mean no
// filtering; a zero limit falls back to 100.
type TaskFilter struct {
	AgentName string
	Status    model.TaskStatus
	Limit     int
}

// CreateTask inserts a new task row. The caller supplies the external task
// identifier; uniqueness is enforced by the task_id index.
func (s *Store) CreateTask(ctx context.Context, task *model.Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if task.Status == "" {
		task.Status = model.TaskPending
	}
	_, err := s.bun.NewInsert().Model(task).Exec(ctx)
	return err
}

// TaskByID returns the task with the given external identifier, or
// ErrNotFound.
func (s *Store) TaskByID(ctx context.Context, taskID string) (*model.Task, error) {
	task := &model.Task{}
	err := s.bun.NewSelect().
		Model(task).
		Where("task_id = ?", taskID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return task, nil
}

// Tasks returns tasks matching the filter, newest first.
func (s *Store) Tasks(ctx context.Context, filter TaskFilter) (model.Tasks, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	tasks := model.Tasks{}
	q := s.bun.NewSelect().Model(&tasks)
	if filter.AgentName != "" {
		q = q.Where("agent_name = ?", filter.AgentName)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if err := q.Order("created_at DESC").Limit(limit).Scan(ctx); err != nil {
		return nil, err
	}
	return tasks, nil
}

// TaskUpdate carries the optional fields of a status transition.
type TaskUpdate struct {
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage *string
}

// UpdateTaskStatus transitions the task to the given status. When a
// completion timestamp is supplied and the task has a start timestamp, the
// duration is computed here, once, from the timestamps held at this instant.
// If the task carries an agent name, that agent's cumulative counters are
// incremented in the same transaction so the counters cannot drift from the
// task row under partial failure.
func (s *Store) UpdateTaskStatus(
	ctx context.Context, taskID string, status model.TaskStatus, update TaskUpdate,
) error {
	return s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		task := &model.Task{}
		err := tx.NewSelect().Model(task).Where("task_id = ?", taskID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(ErrNotFound, "task %q", taskID)
		} else if err != nil {
			return err
		}

		task.Status = status
		if update.StartedAt != nil {
			task.StartedAt = update.StartedAt
		}
		if update.CompletedAt != nil {
			task.CompletedAt = update.CompletedAt
			if task.StartedAt != nil {
				d := update.CompletedAt.Sub(*task.StartedAt).Seconds()
				if d < 0 {
					d = 0
				}
				task.Duration = &d
			}
		}
		if update.ErrorMessage != nil {
			task.ErrorMessage = update.ErrorMessage
		}

		if _, err := tx.NewUpdate().Model(task).WherePK().Exec(ctx); err != nil {
			return err
		}

		if task.AgentName == nil {
			return nil
		}
		q := tx.NewUpdate().
			Model((*model.Agent)(nil)).
			Set("total_tasks = total_tasks + 1").
			Where("name = ?", *task.AgentName)
		switch status {
		case model.TaskCompleted:
			q = q.Set("completed_tasks = completed_tasks + 1")
		case model.TaskFailed:
			q = q.Set("failed_tasks = failed_tasks + 1")
		}
		_, err = q.Exec(ctx)
		return err
	})
}
