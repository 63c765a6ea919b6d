package internal

import (
	"github.com/labstack/echo/v4"
)

func (d *Dashboard) getStats(c echo.Context) (interface{}, error) {
	return d.store.Stats(c.Request().Context())
}

func (d *Dashboard) postSync(c echo.Context) (interface{}, error) {
	result := d.collector.SyncAll(c.Request().Context())
	return map[string]interface{}{
		"success": true,
		"result":  result,
	}, nil
}

func (d *Dashboard) getHealth(c echo.Context) (interface{}, error) {
	dbOK := d.store.Ping(c.Request().Context()) == nil
	status := "healthy"
	if !dbOK {
		status = "degraded"
	}
	return map[string]interface{}{
		"status":      status,
		"instance_id": d.InstanceID,
		"version":     d.version,
		"database":    dbOK,
		"scheduler":   d.scheduler != nil,
	}, nil
}
