package internal

import (
	"github.com/labstack/echo/v4"

	"github.com/agentcluster/dashboard/internal/api"
)

func (d *Dashboard) getAlerts(c echo.Context) (interface{}, error) {
	args := struct {
		Limit *int `query:"limit"`
	}{}
	if err := api.BindArgs(&args, c); err != nil {
		return nil, err
	}

	limit := 0
	if args.Limit != nil {
		limit = *args.Limit
	}
	alerts, err := d.store.Alerts(c.Request().Context(), limit)
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// postAlertCheck manually triggers one scan-and-notify cycle. It shares the
// scheduled jobs' manager, so the same dedup state applies.
func (d *Dashboard) postAlertCheck(c echo.Context) (interface{}, error) {
	return d.manager.CheckAndAlert(c.Request().Context()), nil
}

func (d *Dashboard) postDailySummary(c echo.Context) (interface{}, error) {
	sent := d.manager.SendDailySummary(c.Request().Context())
	return map[string]bool{"sent": sent}, nil
}
