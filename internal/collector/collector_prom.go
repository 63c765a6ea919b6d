package collector

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	promNamespace = "dashboard"
	promSubsystem = "collector"
)

var (
	syncPasses = prom.NewCounter(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "sync_passes_total",
		Help:      "completed sync passes",
	})
	tasksProcessed = prom.NewCounter(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "tasks_processed_total",
		Help:      "task snapshot entries reconciled",
	})
	syncErrors = prom.NewCounterVec(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "errors_total",
		Help:      "per-entry errors during sync passes",
	}, []string{"source"})
)

func init() {
	prom.MustRegister(syncPasses)
	prom.MustRegister(tasksProcessed)
	prom.MustRegister(syncErrors)
}
