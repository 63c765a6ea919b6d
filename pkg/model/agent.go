package model

import (
	"time"

	"github.com/uptrace/bun"
)

// AgentStatus is the lifecycle status of an agent.
type AgentStatus string

const (
	// AgentIdle means the agent has no task assigned.
	AgentIdle AgentStatus = "idle"
	// AgentBusy means the agent is currently executing a task.
	AgentBusy AgentStatus = "busy"
	// AgentError means the agent hit an unrecoverable error.
	AgentError AgentStatus = "error"
	// AgentOffline means the agent is not reachable.
	AgentOffline AgentStatus = "offline"
)

// Agent is the bun model of one named autonomous worker. Agents are created
// once from the default roster at store initialization and never deleted.
type Agent struct {
	bun.BaseModel `bun:"table:agents"`

	ID            int         `bun:"id,pk,autoincrement" json:"-"`
	Name          string      `bun:"name,unique,notnull" json:"name"`
	DisplayName   string      `bun:"display_name,notnull" json:"display_name"`
	Description   string      `bun:"description" json:"description"`
	Status        AgentStatus `bun:"status,notnull,default:'idle'" json:"status"`
	CurrentTaskID *string     `bun:"current_task_id,nullzero" json:"current_task_id"`
	CreatedAt     time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time   `bun:"updated_at,notnull" json:"updated_at"`

	// Cumulative counters, maintained alongside task status transitions.
	TotalTasks     int `bun:"total_tasks,notnull,default:0" json:"total_tasks"`
	CompletedTasks int `bun:"completed_tasks,notnull,default:0" json:"completed_tasks"`
	FailedTasks    int `bun:"failed_tasks,notnull,default:0" json:"failed_tasks"`
	TotalTokens    int `bun:"total_tokens,notnull,default:0" json:"total_tokens"`
	InputTokens    int `bun:"input_tokens,notnull,default:0" json:"input_tokens"`
	OutputTokens   int `bun:"output_tokens,notnull,default:0" json:"output_tokens"`
}

// Agents is a slice of agent instances.
type Agents []*Agent

// SuccessRate returns the agent's completion rate as a percentage rounded to
// one decimal, and 0 when the agent has no tasks at all.
func (a Agent) SuccessRate() float64 {
	return Rate(a.CompletedTasks, a.TotalTasks)
}
