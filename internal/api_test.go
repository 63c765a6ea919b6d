package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentcluster/dashboard/internal/alerts"
	"github.com/agentcluster/dashboard/internal/collector"
	"github.com/agentcluster/dashboard/internal/config"
	"github.com/agentcluster/dashboard/internal/db"
	"github.com/agentcluster/dashboard/internal/feishu"
	"github.com/agentcluster/dashboard/pkg/model"
	"github.com/agentcluster/dashboard/pkg/ptrs"
)

// newTestDashboard wires a dashboard against a throwaway store, with the
// notifier disabled and no scheduler.
func newTestDashboard(t *testing.T) (*Dashboard, *db.Store) {
	t.Helper()
	store := db.MustConnectTest(t)

	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.Collector.TasksFile = filepath.Join(dir, "active-tasks.json")
	cfg.Collector.LogsDir = filepath.Join(dir, "logs")
	require.NoError(t, cfg.Resolve())

	notifier := feishu.New(cfg.Feishu)
	d := &Dashboard{
		InstanceID: "test-instance",
		version:    "test",
		config:     cfg,
		store:      store,
		collector:  collector.New(store, cfg.Collector),
		notifier:   notifier,
		manager:    alerts.NewManager(store, notifier, cfg.Alerts),
	}
	d.setupEchoServer()
	return d, store
}

func doRequest(t *testing.T, d *Dashboard, method, target string) (*httptest.ResponseRecorder, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	d.echo.ServeHTTP(rec, req)
	return rec, rec.Body.Bytes()
}

func TestGetAgentsReturnsRoster(t *testing.T) {
	d, _ := newTestDashboard(t)

	rec, body := doRequest(t, d, http.MethodGet, "/api/agents")
	require.Equal(t, http.StatusOK, rec.Code)

	var agents []agentResponse
	require.NoError(t, json.Unmarshal(body, &agents))
	require.Len(t, agents, 5)
	names := make([]string, 0, len(agents))
	for _, agent := range agents {
		names = append(names, agent.Name)
	}
	require.Contains(t, names, "coder")
	require.Contains(t, names, "chief")
}

func TestGetAgentByName(t *testing.T) {
	d, store := newTestDashboard(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID: "T1", Title: "t", Status: model.TaskRunning, AgentName: ptrs.Ptr("coder"),
	}))
	require.NoError(t, store.UpdateTaskStatus(ctx, "T1", model.TaskCompleted, db.TaskUpdate{}))

	rec, body := doRequest(t, d, http.MethodGet, "/api/agents/coder")
	require.Equal(t, http.StatusOK, rec.Code)

	var agent agentResponse
	require.NoError(t, json.Unmarshal(body, &agent))
	require.Equal(t, "coder", agent.Name)
	require.Equal(t, 1, agent.Statistics.TotalTasks)
	require.Equal(t, 100.0, agent.Statistics.SuccessRate)
}

func TestGetAgentNotFound(t *testing.T) {
	d, _ := newTestDashboard(t)

	rec, body := doRequest(t, d, http.MethodGet, "/api/agents/nobody")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Contains(t, resp["message"], "nobody")
}

func TestGetTasksWithFilters(t *testing.T) {
	d, store := newTestDashboard(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID: "T1", Title: "a", Status: model.TaskCompleted, AgentName: ptrs.Ptr("coder"),
	}))
	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID: "T2", Title: "b", Status: model.TaskFailed, AgentName: ptrs.Ptr("ops"),
	}))

	rec, body := doRequest(t, d, http.MethodGet, "/api/tasks")
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []model.Task
	require.NoError(t, json.Unmarshal(body, &tasks))
	require.Len(t, tasks, 2)

	rec, body = doRequest(t, d, http.MethodGet, "/api/tasks?status=failed&agent_name=ops")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(body, &tasks))
	require.Len(t, tasks, 1)
	require.Equal(t, "T2", tasks[0].TaskID)
}

func TestGetTaskNotFound(t *testing.T) {
	d, _ := newTestDashboard(t)
	rec, _ := doRequest(t, d, http.MethodGet, "/api/tasks/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostAlertCheck(t *testing.T) {
	d, store := newTestDashboard(t)
	ctx := context.Background()

	require.NoError(t, store.CreateTask(ctx, &model.Task{
		TaskID: "T1", Title: "doomed", Status: model.TaskFailed,
	}))

	rec, body := doRequest(t, d, http.MethodPost, "/api/alerts/check")
	require.Equal(t, http.StatusOK, rec.Code)

	var result alerts.CheckResult
	require.NoError(t, json.Unmarshal(body, &result))
	require.Equal(t, 1, result.AlertsGenerated)
	// Notifier is disabled in tests, nothing is delivered.
	require.Zero(t, result.AlertsSent)

	rec, body = doRequest(t, d, http.MethodGet, "/api/alerts?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	var alertList []model.Alert
	require.NoError(t, json.Unmarshal(body, &alertList))
	require.Len(t, alertList, 1)
	require.False(t, alertList[0].IsSent)
}

func TestPostDailySummaryDisabledNotifier(t *testing.T) {
	d, _ := newTestDashboard(t)

	rec, body := doRequest(t, d, http.MethodPost, "/api/alerts/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(body, &resp))
	require.False(t, resp["sent"])
}

func TestPostSyncAndStats(t *testing.T) {
	d, _ := newTestDashboard(t)

	snapshot := `{"tasks": [{"id": "T1", "title": "x", "status": "completed", "assignee": "coder"}]}`
	require.NoError(t, os.WriteFile(d.config.Collector.TasksFile, []byte(snapshot), 0o644))

	rec, body := doRequest(t, d, http.MethodPost, "/api/sync")
	require.Equal(t, http.StatusOK, rec.Code)
	var syncResp struct {
		Success bool `json:"success"`
		Result  struct {
			ActiveTasks struct {
				Processed int `json:"processed"`
			} `json:"active_tasks"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(body, &syncResp))
	require.True(t, syncResp.Success)
	require.Equal(t, 1, syncResp.Result.ActiveTasks.Processed)

	rec, body = doRequest(t, d, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats db.Stats
	require.NoError(t, json.Unmarshal(body, &stats))
	require.Equal(t, 1, stats.TotalTasks)
	require.Equal(t, 1, stats.CompletedTasks)
}

func TestHealth(t *testing.T) {
	d, _ := newTestDashboard(t)

	rec, body := doRequest(t, d, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, "healthy", resp["status"])
	require.Equal(t, "test-instance", resp["instance_id"])
	require.Equal(t, true, resp["database"])
	require.Equal(t, false, resp["scheduler"])
}

func TestMetricsEndpoint(t *testing.T) {
	d, _ := newTestDashboard(t)
	rec, _ := doRequest(t, d, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
}
