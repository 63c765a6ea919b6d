package alerts

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/agentcluster/dashboard/internal/config"
	"github.com/agentcluster/dashboard/internal/db"
	"github.com/agentcluster/dashboard/internal/feishu"
	"github.com/agentcluster/dashboard/pkg/model"
)

// Manager orchestrates one scan-and-notify cycle: run the detector, deliver
// what is undelivered, mark what was delivered.
type Manager struct {
	log      *log.Entry
	store    *db.Store
	detector *Detector
	notifier *feishu.Notifier
	cfg      config.AlertsConfig

	mu          sync.Mutex
	lastSummary time.Time
}

// NewManager returns a manager wiring the detector to the notifier.
func NewManager(store *db.Store, notifier *feishu.Notifier, cfg config.AlertsConfig) *Manager {
	return &Manager{
		log:      log.WithField("component", "alert-manager"),
		store:    store,
		detector: NewDetector(store, cfg),
		notifier: notifier,
		cfg:      cfg,
	}
}

// Detector exposes the manager's detector for read-side callers.
func (m *Manager) Detector() *Detector {
	return m.detector
}

// CheckResult is the outcome of one CheckAndAlert pass.
type CheckResult struct {
	AlertsGenerated int      `json:"alerts_generated"`
	AlertsSent      int      `json:"alerts_sent"`
	Errors          []string `json:"errors"`
}

// CheckAndAlert runs a detection pass and then attempts delivery of every
// undelivered alert, not only the ones generated this pass: an alert whose
// delivery failed earlier stays unsent and is retried here on the next cycle.
// A failing delivery is recorded and never aborts the rest of the batch.
func (m *Manager) CheckAndAlert(ctx context.Context) CheckResult {
	result := CheckResult{Errors: []string{}}

	generated, err := m.detector.CheckAllTasks(ctx)
	if err != nil {
		m.log.WithError(err).Error("detection pass failed")
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.AlertsGenerated = len(generated)

	if !m.notifier.IsEnabled() {
		return result
	}

	unsent, err := m.store.UnsentAlerts(ctx, 0)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	for _, alert := range unsent {
		if !m.sendAlert(ctx, alert) {
			deliveryFailures.Inc()
			result.Errors = append(result.Errors, "delivery failed for alert "+alert.Title)
			continue
		}
		if err := m.store.MarkAlertSent(ctx, alert.ID); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.AlertsSent++
		alertsSent.Inc()
	}
	return result
}

// sendAlert dispatches the type-appropriate message for one alert.
func (m *Manager) sendAlert(ctx context.Context, alert *model.Alert) bool {
	taskID, agentName := "", ""
	if alert.TaskID != nil {
		taskID = *alert.TaskID
	}
	if alert.AgentName != nil {
		agentName = *alert.AgentName
	}

	switch alert.AlertType {
	case model.AlertTaskFailure:
		return m.notifier.SendTaskFailedAlert(ctx, taskID, alert.Title, agentName, alert.Message)
	case model.AlertTaskTimeout:
		var startedAt *time.Time
		if taskID != "" {
			if task, err := m.store.TaskByID(ctx, taskID); err == nil {
				startedAt = task.StartedAt
			}
		}
		return m.notifier.SendTaskTimeoutAlert(
			ctx, taskID, alert.Title, agentName, m.cfg.TaskTimeoutMinutes, startedAt)
	default:
		content := ""
		if alert.Message != nil {
			content = *alert.Message
		}
		return m.notifier.SendCard(ctx, feishu.Card{
			Title:   alert.Title,
			Color:   string(alert.Severity),
			Content: content,
		})
	}
}

// SendDailySummary dispatches the daily aggregate report. It is gated by the
// notifier being enabled and the summary feature flag; the last summary time
// is recorded on success only.
func (m *Manager) SendDailySummary(ctx context.Context) bool {
	if !m.notifier.IsEnabled() || !m.cfg.EnableDailySummary {
		return false
	}

	stats, err := m.detector.DailyStats(ctx)
	if err != nil {
		m.log.WithError(err).Error("failed to gather daily stats")
		return false
	}

	failedTasks := make([]feishu.FailedTask, 0, len(stats.FailedTasks))
	for _, task := range stats.FailedTasks {
		failedTasks = append(failedTasks, feishu.FailedTask{
			TaskID: task.TaskID,
			Title:  task.Title,
		})
	}
	agentStats := make([]feishu.AgentStat, 0, len(stats.AgentStats))
	for _, agent := range stats.AgentStats {
		agentStats = append(agentStats, feishu.AgentStat{
			Name:        agent.Name,
			DisplayName: agent.DisplayName,
			Total:       agent.Total,
			Completed:   agent.Completed,
		})
	}

	ok := m.notifier.SendDailySummary(ctx, feishu.DailySummary{
		TotalTasks:  stats.TotalTasks,
		Completed:   stats.Completed,
		Failed:      stats.Failed,
		Running:     stats.Running,
		FailedTasks: failedTasks,
		AgentStats:  agentStats,
	})
	if ok {
		m.mu.Lock()
		m.lastSummary = time.Now().UTC()
		m.mu.Unlock()
	}
	return ok
}

// LastSummaryTime returns when the last daily summary was delivered, zero if
// never.
func (m *Manager) LastSummaryTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSummary
}
