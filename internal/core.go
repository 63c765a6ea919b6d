// Package internal wires the dashboard together: state store, collector,
// alerting pipeline, scheduler and the HTTP surface.
package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/agentcluster/dashboard/internal/alerts"
	"github.com/agentcluster/dashboard/internal/api"
	"github.com/agentcluster/dashboard/internal/collector"
	"github.com/agentcluster/dashboard/internal/config"
	"github.com/agentcluster/dashboard/internal/db"
	"github.com/agentcluster/dashboard/internal/feishu"
)

// Config is an alias so that cmd does not reach into internal/config.
type Config = config.Config

// DefaultConfig returns the default dashboard configuration.
func DefaultConfig() *Config {
	return config.DefaultConfig()
}

// Dashboard is the top-level object holding every component of the service.
type Dashboard struct {
	InstanceID string

	version string
	config  *Config

	store     *db.Store
	collector *collector.Collector
	notifier  *feishu.Notifier
	manager   *alerts.Manager
	scheduler gocron.Scheduler
	echo      *echo.Echo
}

// New creates a dashboard from the validated configuration.
func New(version string, cfg *Config) *Dashboard {
	return &Dashboard{
		InstanceID: uuid.New().String(),
		version:    version,
		config:     cfg,
	}
}

// Run starts every component and blocks until the context is canceled or the
// HTTP server fails. Shutdown stops the scheduler first so no job is running
// while the store closes.
func (d *Dashboard) Run(ctx context.Context) error {
	log.Infof("agent dashboard %s (instance %s)", d.version, d.InstanceID)

	store, err := db.Connect(&d.config.DB)
	if err != nil {
		return errors.Wrap(err, "connecting to database")
	}
	d.store = store

	d.collector = collector.New(store, d.config.Collector)
	d.notifier = feishu.New(d.config.Feishu)
	d.manager = alerts.NewManager(store, d.notifier, d.config.Alerts)
	if !d.notifier.IsEnabled() {
		log.Info("feishu webhook not configured; alert delivery disabled")
	}

	// Initial sync so the API serves data before the first scheduled pass.
	result := d.collector.SyncAll(ctx)
	log.Infof("initial sync: %d tasks processed, %d errors",
		result.ActiveTasks.Processed, result.ActiveTasks.Errors)

	if err := d.startScheduler(ctx); err != nil {
		_ = store.Close()
		return errors.Wrap(err, "starting scheduler")
	}

	d.setupEchoServer()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- d.echo.Start(fmt.Sprintf(":%d", d.config.Port))
	}()

	select {
	case err := <-serverErr:
		_ = d.close(context.Background())
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
		log.Info("shutting down")
		return d.close(context.Background())
	}
}

// startScheduler registers the three periodic jobs. Every job runs in
// singleton mode: an invocation never overlaps itself, which the detector's
// check-then-create and the collector's upserts rely on.
func (d *Dashboard) startScheduler(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return err
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(time.Duration(d.config.Collector.SyncSeconds)*time.Second),
		gocron.NewTask(func() { d.collector.SyncAll(ctx) }),
		gocron.WithName("task-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return err
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(time.Duration(d.config.Alerts.CheckSeconds)*time.Second),
		gocron.NewTask(func() {
			result := d.manager.CheckAndAlert(ctx)
			if result.AlertsGenerated > 0 || len(result.Errors) > 0 {
				log.Infof("alert check: %d generated, %d sent, %d errors",
					result.AlertsGenerated, result.AlertsSent, len(result.Errors))
			}
		}),
		gocron.WithName("alert-check"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return err
	}

	if _, err := scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(
			uint(d.config.Alerts.DailySummaryHour),
			uint(d.config.Alerts.DailySummaryMinute),
			0,
		))),
		gocron.NewTask(func() {
			if d.manager.SendDailySummary(ctx) {
				log.Info("daily summary delivered")
			}
		}),
		gocron.WithName("daily-summary"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return err
	}

	scheduler.Start()
	d.scheduler = scheduler
	log.Infof("scheduler started: sync every %ds, alert check every %ds, summary at %02d:%02d UTC",
		d.config.Collector.SyncSeconds, d.config.Alerts.CheckSeconds,
		d.config.Alerts.DailySummaryHour, d.config.Alerts.DailySummaryMinute)
	return nil
}

func (d *Dashboard) setupEchoServer() {
	d.echo = echo.New()
	d.echo.HideBanner = true
	d.echo.HidePort = true
	d.echo.Use(middleware.Recover())
	d.echo.HTTPErrorHandler = api.JSONErrorHandler

	d.registerRoutes()

	if d.config.Observability.EnablePrometheus {
		d.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	if _, err := os.Stat(d.config.Root); err == nil {
		d.echo.Static("/static", d.config.Root)
		d.echo.GET("/dashboard", func(c echo.Context) error {
			return c.File(d.config.Root + "/index.html")
		})
		d.echo.GET("/", func(c echo.Context) error {
			return c.Redirect(http.StatusMovedPermanently, "/dashboard")
		})
	}

	log.Infof("http server listening on :%d", d.config.Port)
}

func (d *Dashboard) close(ctx context.Context) error {
	var merr *multierror.Error

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if d.echo != nil {
		if err := d.echo.Shutdown(shutdownCtx); err != nil {
			merr = multierror.Append(merr, errors.Wrap(err, "shutting down http server"))
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Shutdown(); err != nil {
			merr = multierror.Append(merr, errors.Wrap(err, "shutting down scheduler"))
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			merr = multierror.Append(merr, errors.Wrap(err, "closing store"))
		}
	}
	return merr.ErrorOrNil()
}
