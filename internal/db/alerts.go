package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/agentcluster/dashboard/pkg/model"
)

// CreateAlert inserts a new alert row unconditionally.
func (s *Store) CreateAlert(ctx context.Context, alert *model.Alert) error {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.Severity == "" {
		alert.Severity = model.SeverityInfo
	}
	_, err := s.bun.NewInsert().Model(alert).Exec(ctx)
	return err
}

// CreateAlertIfAbsent inserts the alert only if no undelivered alert with the
// same (task_id, alert_type) pair exists. The conditional insert runs as a
// single statement, so the dedup check cannot race another writer. Returns
// whether a row was created; on creation the alert's ID and CreatedAt are
// filled in.
func (s *Store) CreateAlertIfAbsent(ctx context.Context, alert *model.Alert) (bool, error) {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.Severity == "" {
		alert.Severity = model.SeverityInfo
	}

	err := s.bun.NewRaw(`
		INSERT INTO alerts
			(alert_type, title, message, severity, agent_name, task_id, is_sent, created_at)
		SELECT ?, ?, ?, ?, ?, ?, false, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM alerts
			WHERE task_id = ? AND alert_type = ? AND is_sent = false
		)
		RETURNING id`,
		alert.AlertType, alert.Title, alert.Message, alert.Severity,
		alert.AgentName, alert.TaskID, alert.CreatedAt,
		alert.TaskID, alert.AlertType,
	).Scan(ctx, &alert.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// Alerts returns the most recent alerts, newest first.
func (s *Store) Alerts(ctx context.Context, limit int) (model.Alerts, error) {
	if limit <= 0 {
		limit = 50
	}
	alerts := model.Alerts{}
	err := s.bun.NewSelect().
		Model(&alerts).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// UnsentAlerts returns undelivered alerts, oldest first so a backlog drains
// in order.
func (s *Store) UnsentAlerts(ctx context.Context, limit int) (model.Alerts, error) {
	if limit <= 0 {
		limit = 100
	}
	alerts := model.Alerts{}
	err := s.bun.NewSelect().
		Model(&alerts).
		Where("is_sent = false").
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// MarkAlertSent flips the alert's delivery flag and records the send time.
// The transition is one-way; it is only called after a confirmed successful
// delivery.
func (s *Store) MarkAlertSent(ctx context.Context, id int) error {
	res, err := s.bun.NewUpdate().
		Model((*model.Alert)(nil)).
		Set("is_sent = true").
		Set("sent_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(ErrNotFound, "alert %d", id)
	}
	return nil
}
