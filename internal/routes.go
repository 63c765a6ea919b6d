package internal

import (
	"github.com/agentcluster/dashboard/internal/api"
)

func (d *Dashboard) registerRoutes() {
	apiGroup := d.echo.Group("/api")

	apiGroup.GET("/agents", api.Route(d.getAgents))
	apiGroup.GET("/agents/:name", api.Route(d.getAgent))

	apiGroup.GET("/tasks", api.Route(d.getTasks))
	apiGroup.GET("/tasks/:task_id", api.Route(d.getTask))

	apiGroup.GET("/alerts", api.Route(d.getAlerts))
	apiGroup.POST("/alerts/check", api.Route(d.postAlertCheck))
	apiGroup.POST("/alerts/summary", api.Route(d.postDailySummary))

	apiGroup.GET("/stats", api.Route(d.getStats))
	apiGroup.POST("/sync", api.Route(d.postSync))

	d.echo.GET("/health", api.Route(d.getHealth))
}
