package config

import (
	"encoding/json"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/agentcluster/dashboard/pkg/logger"
)

const (
	defaultSyncSeconds       = 30
	defaultAlertCheckSeconds = 60
)

// DefaultDBConfig returns the default configuration of the database.
func DefaultDBConfig() *DBConfig {
	return &DBConfig{
		Path: "data/dashboard.db",
	}
}

// DBConfig hosts configuration fields of the database.
type DBConfig struct {
	Path string `json:"path"`
}

// CollectorConfig hosts configuration fields of the data collector.
type CollectorConfig struct {
	// TasksFile is the externally rewritten task snapshot. A missing file is
	// treated as an empty snapshot, not an error.
	TasksFile string `json:"tasks_file"`
	// LogsDir holds worker cron logs; only line counts are collected.
	LogsDir     string `json:"logs_dir"`
	SyncSeconds int    `json:"sync_seconds"`
}

// AlertsConfig hosts configuration fields of alert detection.
type AlertsConfig struct {
	TaskTimeoutMinutes     int  `json:"task_timeout_minutes"`
	EnableTaskFailureAlert bool `json:"enable_task_failure_alert"`
	EnableTaskTimeoutAlert bool `json:"enable_task_timeout_alert"`
	EnableDailySummary     bool `json:"enable_daily_summary"`
	DailySummaryHour       int  `json:"daily_summary_hour"`
	DailySummaryMinute     int  `json:"daily_summary_minute"`
	CheckSeconds           int  `json:"check_seconds"`
}

// FeishuConfig hosts configuration fields of the Feishu notifier. Alert
// delivery is disabled entirely when WebhookURL is empty.
type FeishuConfig struct {
	WebhookURL string `json:"webhook_url"`
	AppID      string `json:"app_id"`
	AppSecret  string `json:"app_secret"`
	// TokenURL is the tenant access token endpoint; overridable for tests.
	TokenURL string `json:"token_url"`
	// DashboardURL is the target of the card action button.
	DashboardURL string `json:"dashboard_url"`
}

// ObservabilityConfig is the configuration for observability metrics.
type ObservabilityConfig struct {
	EnablePrometheus bool `json:"enable_prometheus"`
}

// DefaultConfig returns the default configuration of the dashboard.
func DefaultConfig() *Config {
	return &Config{
		ConfigFile: "",
		Log:        *logger.DefaultConfig(),
		DB:         *DefaultDBConfig(),
		Port:       8001,
		Root:       "static",
		Collector: CollectorConfig{
			TasksFile:   "active-tasks.json",
			LogsDir:     "logs",
			SyncSeconds: defaultSyncSeconds,
		},
		Alerts: AlertsConfig{
			TaskTimeoutMinutes:     30,
			EnableTaskFailureAlert: true,
			EnableTaskTimeoutAlert: true,
			EnableDailySummary:     true,
			DailySummaryHour:       9,
			DailySummaryMinute:     0,
			CheckSeconds:           defaultAlertCheckSeconds,
		},
		Feishu: FeishuConfig{
			TokenURL:     "https://open.feishu.cn/open-apis/auth/v3/tenant_access_token/internal",
			DashboardURL: "http://localhost:8001",
		},
		Observability: ObservabilityConfig{
			EnablePrometheus: true,
		},
	}
}

// Config is the configuration of the dashboard.
//
// It is populated, in the following order, by the configuration file,
// environment variables and command line arguments.
type Config struct {
	ConfigFile    string              `json:"config_file"`
	Log           logger.Config       `json:"log"`
	DB            DBConfig            `json:"db"`
	Port          int                 `json:"port"`
	Root          string              `json:"root"`
	Collector     CollectorConfig     `json:"collector"`
	Alerts        AlertsConfig        `json:"alerts"`
	Feishu        FeishuConfig        `json:"feishu"`
	Observability ObservabilityConfig `json:"observability"`
}

// Printable returns a printable string with secrets masked.
func (c Config) Printable() ([]byte, error) {
	const hiddenValue = "********"
	if c.Feishu.AppSecret != "" {
		c.Feishu.AppSecret = hiddenValue
	}

	optJSON, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert config to JSON")
	}
	return optJSON, nil
}

// Resolve resolves the values in the configuration.
func (c *Config) Resolve() error {
	if errs := c.Log.Validate(); len(errs) > 0 {
		return errs[0]
	}

	root, err := filepath.Abs(c.Root)
	if err != nil {
		return err
	}
	c.Root = root

	if c.Collector.SyncSeconds <= 0 {
		c.Collector.SyncSeconds = defaultSyncSeconds
	}
	if c.Alerts.CheckSeconds <= 0 {
		c.Alerts.CheckSeconds = defaultAlertCheckSeconds
	}
	if c.Alerts.TaskTimeoutMinutes <= 0 {
		return errors.Errorf(
			"alerts.task_timeout_minutes must be positive, got %d", c.Alerts.TaskTimeoutMinutes)
	}
	if c.Alerts.DailySummaryHour < 0 || c.Alerts.DailySummaryHour > 23 {
		return errors.Errorf(
			"alerts.daily_summary_hour must be in [0, 23], got %d", c.Alerts.DailySummaryHour)
	}
	if c.Alerts.DailySummaryMinute < 0 || c.Alerts.DailySummaryMinute > 59 {
		return errors.Errorf(
			"alerts.daily_summary_minute must be in [0, 59], got %d", c.Alerts.DailySummaryMinute)
	}

	if (c.Feishu.AppID == "") != (c.Feishu.AppSecret == "") {
		return errors.New("feishu.app_id and feishu.app_secret must be set together")
	}

	return nil
}
