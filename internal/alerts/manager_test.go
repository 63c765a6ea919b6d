package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentcluster/dashboard/internal/collector"
	"github.com/agentcluster/dashboard/internal/config"
	"github.com/agentcluster/dashboard/internal/db"
	"github.com/agentcluster/dashboard/internal/feishu"
	"github.com/agentcluster/dashboard/pkg/model"
	"github.com/agentcluster/dashboard/pkg/ptrs"
)

// webhookServer is a fake chat endpoint recording every delivered payload.
type webhookServer struct {
	*httptest.Server
	status   atomic.Int32
	received atomic.Int32
}

func newWebhookServer(t *testing.T) *webhookServer {
	t.Helper()
	ws := &webhookServer{}
	ws.status.Store(http.StatusOK)
	ws.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		ws.received.Add(1)
		w.WriteHeader(int(ws.status.Load()))
	}))
	t.Cleanup(ws.Close)
	return ws
}

func newTestManager(t *testing.T, webhookURL string) (*Manager, *db.Store) {
	t.Helper()
	store := db.MustConnectTest(t)
	notifier := feishu.New(config.FeishuConfig{WebhookURL: webhookURL})
	return NewManager(store, notifier, testAlertsConfig()), store
}

func TestCheckAndAlertDeliversAndMarksSent(t *testing.T) {
	ctx := context.Background()
	ws := newWebhookServer(t)
	manager, store := newTestManager(t, ws.URL)

	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID:       "T1",
		Title:        "doomed",
		Status:       model.TaskFailed,
		AgentName:    ptrs.Ptr("coder"),
		ErrorMessage: ptrs.Ptr("segfault"),
	}))

	result := manager.CheckAndAlert(ctx)
	require.Equal(t, 1, result.AlertsGenerated)
	require.Equal(t, 1, result.AlertsSent)
	require.Empty(t, result.Errors)
	require.Equal(t, int32(1), ws.received.Load())

	alerts, err := store.Alerts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.True(t, alerts[0].IsSent)
	require.NotNil(t, alerts[0].SentAt)
}

func TestFailedDeliveryLeavesAlertUnsent(t *testing.T) {
	ctx := context.Background()
	ws := newWebhookServer(t)
	ws.status.Store(http.StatusNotFound) // permanent failure, no retry delay
	manager, store := newTestManager(t, ws.URL)

	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID: "T1", Title: "doomed", Status: model.TaskFailed,
	}))

	result := manager.CheckAndAlert(ctx)
	require.Equal(t, 1, result.AlertsGenerated)
	require.Zero(t, result.AlertsSent)
	require.Len(t, result.Errors, 1)

	alerts, err := store.Alerts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.False(t, alerts[0].IsSent)
	require.Nil(t, alerts[0].SentAt)
}

func TestUnsentAlertRetriedOnNextPass(t *testing.T) {
	ctx := context.Background()
	ws := newWebhookServer(t)
	ws.status.Store(http.StatusNotFound)
	manager, store := newTestManager(t, ws.URL)

	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID: "T1", Title: "doomed", Status: model.TaskFailed,
	}))

	result := manager.CheckAndAlert(ctx)
	require.Zero(t, result.AlertsSent)

	// The next pass generates nothing new (dedup), but re-surfaces the
	// unsent alert and delivers it once the endpoint recovers.
	ws.status.Store(http.StatusOK)
	result = manager.CheckAndAlert(ctx)
	require.Zero(t, result.AlertsGenerated)
	require.Equal(t, 1, result.AlertsSent)

	alerts, err := store.Alerts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.True(t, alerts[0].IsSent)
}

func TestDisabledNotifierSkipsDelivery(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager(t, "")

	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID: "T1", Title: "doomed", Status: model.TaskFailed,
	}))

	result := manager.CheckAndAlert(ctx)
	require.Equal(t, 1, result.AlertsGenerated)
	require.Zero(t, result.AlertsSent)
	require.Empty(t, result.Errors)
}

func TestDeliveryFailureDoesNotBlockBatch(t *testing.T) {
	ctx := context.Background()
	ws := newWebhookServer(t)
	manager, store := newTestManager(t, ws.URL)

	// Two unsent alerts; both get a delivery attempt even though the first
	// attempt of the pass fails at MarkAlertSent level only on error. Here
	// both succeed; the point is the batch loop touches every alert.
	require.NoError(t, store.CreateAlert(ctx, &model.Alert{
		AlertType: model.AlertTaskFailure, Title: "a", TaskID: ptrs.Ptr("T1"),
	}))
	require.NoError(t, store.CreateAlert(ctx, &model.Alert{
		AlertType: model.AlertTaskTimeout, Title: "b", TaskID: ptrs.Ptr("T2"),
	}))

	result := manager.CheckAndAlert(ctx)
	require.Equal(t, 2, result.AlertsSent)
	require.Equal(t, int32(2), ws.received.Load())
}

func TestSendDailySummary(t *testing.T) {
	ctx := context.Background()
	ws := newWebhookServer(t)
	manager, store := newTestManager(t, ws.URL)

	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID:      "T1",
		Title:       "failed recently",
		Status:      model.TaskFailed,
		CompletedAt: ptrs.Ptr(time.Now().UTC().Add(-time.Hour)),
	}))

	require.True(t, manager.LastSummaryTime().IsZero())
	require.True(t, manager.SendDailySummary(ctx))
	require.False(t, manager.LastSummaryTime().IsZero())
	require.Equal(t, int32(1), ws.received.Load())
}

func TestSendDailySummaryGates(t *testing.T) {
	ctx := context.Background()

	// Disabled notifier.
	manager, _ := newTestManager(t, "")
	require.False(t, manager.SendDailySummary(ctx))

	// Disabled feature flag.
	ws := newWebhookServer(t)
	store := db.MustConnectTest(t)
	cfg := testAlertsConfig()
	cfg.EnableDailySummary = false
	manager = NewManager(store, feishu.New(config.FeishuConfig{WebhookURL: ws.URL}), cfg)
	require.False(t, manager.SendDailySummary(ctx))
	require.Zero(t, ws.received.Load())
}

// TestEndToEndFailureFlow walks the full pipeline: external snapshot to
// reconciled task to detected alert to delivered notification.
func TestEndToEndFailureFlow(t *testing.T) {
	ctx := context.Background()
	ws := newWebhookServer(t)
	store := db.MustConnectTest(t)

	dir := t.TempDir()
	snapshot := filepath.Join(dir, "active-tasks.json")
	require.NoError(t, os.WriteFile(snapshot, []byte(
		`{"tasks": [{"id": "T1", "title": "ship it", "status": "failed", "assignee": "coder"}]}`,
	), 0o644))

	coll := collector.New(store, config.CollectorConfig{
		TasksFile: snapshot,
		LogsDir:   filepath.Join(dir, "logs"),
	})
	syncResult := coll.SyncAll(ctx)
	require.Equal(t, 1, syncResult.ActiveTasks.Processed)

	task, err := store.TaskByID(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, model.TaskFailed, task.Status)

	agent, err := store.AgentByName(ctx, "coder")
	require.NoError(t, err)
	require.Equal(t, 1, agent.TotalTasks)
	require.Equal(t, 1, agent.FailedTasks)

	manager := NewManager(store, feishu.New(config.FeishuConfig{WebhookURL: ws.URL}),
		testAlertsConfig())
	result := manager.CheckAndAlert(ctx)
	require.Equal(t, 1, result.AlertsGenerated)
	require.Equal(t, 1, result.AlertsSent)

	alerts, err := store.Alerts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, model.AlertTaskFailure, alerts[0].AlertType)
	require.Equal(t, "T1", *alerts[0].TaskID)
	require.True(t, alerts[0].IsSent)
	require.NotNil(t, alerts[0].SentAt)
}
