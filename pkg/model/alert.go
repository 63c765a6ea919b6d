package model

import (
	"time"

	"github.com/uptrace/bun"
)

// AlertType identifies what condition an alert reports. The set is open;
// these are the types the detector currently emits.
type AlertType string

const (
	// AlertTaskFailure is raised when a task enters the failed state.
	AlertTaskFailure AlertType = "task_failure"
	// AlertTaskTimeout is raised when a running task exceeds its deadline.
	AlertTaskTimeout AlertType = "task_timeout"
)

// Severity is the severity of an alert.
type Severity string

const (
	// SeverityInfo is informational.
	SeverityInfo Severity = "info"
	// SeverityWarning signals a condition worth attention.
	SeverityWarning Severity = "warning"
	// SeverityError signals a failure.
	SeverityError Severity = "error"
	// SeveritySuccess signals a positive event.
	SeveritySuccess Severity = "success"
)

// Alert is the bun model of a detected failure or timeout condition. IsSent
// flips false to true exactly once, after a confirmed successful delivery,
// and is never reverted. Alerts are never deleted.
type Alert struct {
	bun.BaseModel `bun:"table:alerts"`

	ID        int       `bun:"id,pk,autoincrement" json:"id"`
	AlertType AlertType `bun:"alert_type,notnull" json:"alert_type"`
	Title     string    `bun:"title,notnull" json:"title"`
	Message   *string   `bun:"message,nullzero" json:"message"`
	Severity  Severity  `bun:"severity,notnull,default:'info'" json:"severity"`

	// Weak back-references to the related entities.
	AgentName *string `bun:"agent_name,nullzero" json:"agent_name"`
	TaskID    *string `bun:"task_id,nullzero" json:"task_id"`

	IsSent    bool       `bun:"is_sent,notnull,default:false" json:"is_sent"`
	SentAt    *time.Time `bun:"sent_at,nullzero" json:"sent_at"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// Alerts is a slice of alert instances.
type Alerts []*Alert
