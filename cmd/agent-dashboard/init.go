package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agentcluster/dashboard/internal"
	"github.com/agentcluster/dashboard/version"
)

var v *viper.Viper

// viperKeyDelimiter marks nested values in the configuration. The delimiter
// is ".." rather than "." so config keys may themselves contain dots without
// viper splitting them into nested objects.
const viperKeyDelimiter = ".."

//nolint:gochecknoinit
func init() {
	// The version of rootCmd is set in init() rather than when `rootCmd` is initialized,
	// because link-time variable assignments are not applied when package-scoped variables
	// are initialized.
	rootCmd.Version = version.Version
	registerConfig()
}

type configKey []string

func (c configKey) EnvName() string {
	return "DASH_" + strings.ReplaceAll(strings.ToUpper(c.FlagName()), "-", "_")
}

func (c configKey) AccessPath() string {
	return strings.ReplaceAll(strings.Join(c, viperKeyDelimiter), "-", "_")
}

func (c configKey) FlagName() string {
	return strings.Join(c, "-")
}

func registerString(flags *pflag.FlagSet, name configKey, value string, usage string) {
	flags.String(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerBool(flags *pflag.FlagSet, name configKey, value bool, usage string) {
	flags.Bool(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerInt(flags *pflag.FlagSet, name configKey, value int, usage string) {
	flags.Int(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerConfig() {
	v = viper.NewWithOptions(viper.KeyDelimiter(viperKeyDelimiter))
	v.SetTypeByDefaultValue(true)

	defaults := internal.DefaultConfig()

	// Register flags and environment variables, and set default values for the flags.
	flags := rootCmd.Flags()
	name := func(components ...string) configKey { return components }

	registerString(flags, name("config-file"),
		defaults.ConfigFile, "location of config file")

	registerString(flags, name("log", "level"),
		defaults.Log.Level, "choose logging level from [trace, debug, info, warn, error, fatal]")
	registerBool(flags, name("log", "color"),
		defaults.Log.Color, "output logs in color")

	registerString(flags, name("db", "path"),
		defaults.DB.Path, "path of the SQLite database file")

	registerInt(flags, name("port"),
		defaults.Port, "server port")
	registerString(flags, name("root"),
		defaults.Root, "static file root directory")

	registerString(flags, name("collector", "tasks-file"),
		defaults.Collector.TasksFile, "path of the external task snapshot")
	registerString(flags, name("collector", "logs-dir"),
		defaults.Collector.LogsDir, "directory of worker cron logs")
	registerInt(flags, name("collector", "sync-seconds"),
		defaults.Collector.SyncSeconds, "seconds between sync passes")

	registerInt(flags, name("alerts", "task-timeout-minutes"),
		defaults.Alerts.TaskTimeoutMinutes, "minutes before a running task is considered timed out")
	registerBool(flags, name("alerts", "enable-task-failure-alert"),
		defaults.Alerts.EnableTaskFailureAlert, "alert on failed tasks")
	registerBool(flags, name("alerts", "enable-task-timeout-alert"),
		defaults.Alerts.EnableTaskTimeoutAlert, "alert on timed-out tasks")
	registerBool(flags, name("alerts", "enable-daily-summary"),
		defaults.Alerts.EnableDailySummary, "send the daily summary report")
	registerInt(flags, name("alerts", "daily-summary-hour"),
		defaults.Alerts.DailySummaryHour, "hour (UTC) of the daily summary")
	registerInt(flags, name("alerts", "daily-summary-minute"),
		defaults.Alerts.DailySummaryMinute, "minute of the daily summary")
	registerInt(flags, name("alerts", "check-seconds"),
		defaults.Alerts.CheckSeconds, "seconds between alert checks")

	registerString(flags, name("feishu", "webhook-url"),
		defaults.Feishu.WebhookURL, "Feishu bot webhook URL; empty disables delivery")
	registerString(flags, name("feishu", "app-id"),
		defaults.Feishu.AppID, "Feishu app id for the tenant token flow")
	registerString(flags, name("feishu", "app-secret"),
		defaults.Feishu.AppSecret, "Feishu app secret for the tenant token flow")
	registerString(flags, name("feishu", "dashboard-url"),
		defaults.Feishu.DashboardURL, "dashboard URL used in card action buttons")

	registerBool(flags, name("observability", "enable-prometheus"),
		defaults.Observability.EnablePrometheus, "expose prometheus metrics on /metrics")
}
