package alerts

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	promNamespace = "dashboard"
	promSubsystem = "alerts"
)

var (
	alertsGenerated = prom.NewCounter(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "generated_total",
		Help:      "alerts created by detection passes",
	})
	alertsSent = prom.NewCounter(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "sent_total",
		Help:      "alerts delivered and marked sent",
	})
	deliveryFailures = prom.NewCounter(prom.CounterOpts{
		Namespace: promNamespace,
		Subsystem: promSubsystem,
		Name:      "delivery_failures_total",
		Help:      "alert deliveries that failed",
	})
)

func init() {
	prom.MustRegister(alertsGenerated)
	prom.MustRegister(alertsSent)
	prom.MustRegister(deliveryFailures)
}
