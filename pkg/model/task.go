package model

import (
	"math"
	"time"

	"github.com/uptrace/bun"
)

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	// TaskPending means the task is queued but not started.
	TaskPending TaskStatus = "pending"
	// TaskRunning means the task is currently executing.
	TaskRunning TaskStatus = "running"
	// TaskCompleted means the task finished successfully.
	TaskCompleted TaskStatus = "completed"
	// TaskFailed means the task finished with an error.
	TaskFailed TaskStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is the bun model of a unit of work performed by an agent. The task
// identifier is supplied by the external task source; rows are upserted in
// place on every observation and never deleted here.
type Task struct {
	bun.BaseModel `bun:"table:tasks"`

	ID          int        `bun:"id,pk,autoincrement" json:"-"`
	TaskID      string     `bun:"task_id,unique,notnull" json:"task_id"`
	Title       string     `bun:"title,notnull" json:"title"`
	Description *string    `bun:"description,nullzero" json:"description"`
	Status      TaskStatus `bun:"status,notnull,default:'pending'" json:"status"`
	Priority    string     `bun:"priority,notnull,default:'normal'" json:"priority"`

	// AgentName is a weak reference to the assigned agent, by name.
	AgentName *string `bun:"agent_name,nullzero" json:"agent_name"`

	CreatedAt   time.Time  `bun:"created_at,notnull" json:"created_at"`
	StartedAt   *time.Time `bun:"started_at,nullzero" json:"started_at"`
	CompletedAt *time.Time `bun:"completed_at,nullzero" json:"completed_at"`

	// Duration in seconds, computed exactly once at the transition into a
	// terminal state, from the timestamps held at that instant.
	Duration *float64 `bun:"duration,nullzero" json:"duration"`

	InputTokens  int `bun:"input_tokens,notnull,default:0" json:"input_tokens"`
	OutputTokens int `bun:"output_tokens,notnull,default:0" json:"output_tokens"`

	ErrorMessage *string `bun:"error_message,nullzero" json:"error_message"`
	Requester    *string `bun:"requester,nullzero" json:"requester"`
}

// Tasks is a slice of task instances.
type Tasks []*Task

// Rate returns part/total as a percentage rounded to one decimal, and 0 when
// total is zero.
func Rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
