package alerts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentcluster/dashboard/internal/config"
	"github.com/agentcluster/dashboard/internal/db"
	"github.com/agentcluster/dashboard/pkg/model"
	"github.com/agentcluster/dashboard/pkg/ptrs"
)

func testAlertsConfig() config.AlertsConfig {
	return config.AlertsConfig{
		TaskTimeoutMinutes:     30,
		EnableTaskFailureAlert: true,
		EnableTaskTimeoutAlert: true,
		EnableDailySummary:     true,
	}
}

func TestFailureAlertDedup(t *testing.T) {
	ctx := context.Background()
	store := db.MustConnectTest(t)
	detector := NewDetector(store, testAlertsConfig())

	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID:       "T1",
		Title:        "doomed task",
		Status:       model.TaskFailed,
		AgentName:    ptrs.Ptr("coder"),
		ErrorMessage: ptrs.Ptr("exit status 1"),
	}))

	created, err := detector.CheckAllTasks(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, model.AlertTaskFailure, created[0].AlertType)
	require.Equal(t, model.SeverityError, created[0].Severity)
	require.Equal(t, "Task failed: doomed task", created[0].Title)
	require.NotNil(t, created[0].Message)
	require.Equal(t, "exit status 1", *created[0].Message)

	// A second pass over the same failed task produces nothing while the
	// first alert is still undelivered.
	created, err = detector.CheckAllTasks(ctx)
	require.NoError(t, err)
	require.Empty(t, created)

	alerts, err := store.Alerts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
}

func TestFailureAlertTitleTruncationAndDefaultMessage(t *testing.T) {
	ctx := context.Background()
	store := db.MustConnectTest(t)
	detector := NewDetector(store, testAlertsConfig())

	longTitle := strings.Repeat("x", 80)
	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID: "T1",
		Title:  longTitle,
		Status: model.TaskFailed,
	}))

	created, err := detector.CheckAllTasks(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, "Task failed: "+strings.Repeat("x", 50), created[0].Title)
	require.Equal(t, "task execution failed", *created[0].Message)
}

func TestTimeoutAlertSingleFire(t *testing.T) {
	ctx := context.Background()
	store := db.MustConnectTest(t)
	detector := NewDetector(store, testAlertsConfig())

	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID:    "T1",
		Title:     "stuck task",
		Status:    model.TaskRunning,
		StartedAt: ptrs.Ptr(time.Now().UTC().Add(-45 * time.Minute)),
	}))

	created, err := detector.CheckAllTasks(ctx)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, model.AlertTaskTimeout, created[0].AlertType)
	require.Equal(t, model.SeverityWarning, created[0].Severity)

	// Repeated scans within one process lifetime never fire again, even
	// though the alert is still unsent.
	for i := 0; i < 3; i++ {
		created, err = detector.CheckAllTasks(ctx)
		require.NoError(t, err)
		require.Empty(t, created)
	}

	alerts, err := store.Alerts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
}

func TestTimeoutUnderThresholdIsQuiet(t *testing.T) {
	ctx := context.Background()
	store := db.MustConnectTest(t)
	detector := NewDetector(store, testAlertsConfig())

	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID:    "T1",
		Title:     "still fine",
		Status:    model.TaskRunning,
		StartedAt: ptrs.Ptr(time.Now().UTC().Add(-10 * time.Minute)),
	}))
	// No start timestamp means no timeout check at all.
	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID: "T2",
		Title:  "no start recorded",
		Status: model.TaskRunning,
	}))

	created, err := detector.CheckAllTasks(ctx)
	require.NoError(t, err)
	require.Empty(t, created)
}

func TestDisabledRulesShortCircuit(t *testing.T) {
	ctx := context.Background()
	store := db.MustConnectTest(t)
	cfg := testAlertsConfig()
	cfg.EnableTaskFailureAlert = false
	cfg.EnableTaskTimeoutAlert = false
	detector := NewDetector(store, cfg)

	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID: "T1", Title: "failed", Status: model.TaskFailed,
	}))
	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID:    "T2",
		Title:     "old runner",
		Status:    model.TaskRunning,
		StartedAt: ptrs.Ptr(time.Now().UTC().Add(-2 * time.Hour)),
	}))

	created, err := detector.CheckAllTasks(ctx)
	require.NoError(t, err)
	require.Empty(t, created)
}

func TestDailyStatsWindow(t *testing.T) {
	ctx := context.Background()
	store := db.MustConnectTest(t)
	detector := NewDetector(store, testAlertsConfig())

	now := time.Now().UTC()
	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID:      "recent",
		Title:       "recent failure",
		Status:      model.TaskFailed,
		AgentName:   ptrs.Ptr("coder"),
		CompletedAt: ptrs.Ptr(now.Add(-2 * time.Hour)),
	}))
	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID:      "stale",
		Title:       "old failure",
		Status:      model.TaskFailed,
		CompletedAt: ptrs.Ptr(now.Add(-30 * time.Hour)),
	}))
	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID: "ok",
		Title:  "done",
		Status: model.TaskCompleted,
	}))

	stats, err := detector.DailyStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalTasks)
	require.Equal(t, 1, stats.Completed)
	require.Equal(t, 2, stats.Failed)
	require.Len(t, stats.FailedTasks, 1, "only failures inside the 24h window")
	require.Equal(t, "recent", stats.FailedTasks[0].TaskID)
	require.Len(t, stats.AgentStats, 5)
}
