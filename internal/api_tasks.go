package internal

import (
	"github.com/labstack/echo/v4"

	"github.com/agentcluster/dashboard/internal/api"
	"github.com/agentcluster/dashboard/internal/db"
	"github.com/agentcluster/dashboard/pkg/model"
)

func (d *Dashboard) getTasks(c echo.Context) (interface{}, error) {
	args := struct {
		AgentName *string `query:"agent_name"`
		Status    *string `query:"status"`
		Limit     *int    `query:"limit"`
	}{}
	if err := api.BindArgs(&args, c); err != nil {
		return nil, err
	}

	filter := db.TaskFilter{}
	if args.AgentName != nil {
		filter.AgentName = *args.AgentName
	}
	if args.Status != nil {
		filter.Status = model.TaskStatus(*args.Status)
	}
	if args.Limit != nil {
		filter.Limit = *args.Limit
	}

	tasks, err := d.store.Tasks(c.Request().Context(), filter)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (d *Dashboard) getTask(c echo.Context) (interface{}, error) {
	args := struct {
		TaskID string `path:"task_id"`
	}{}
	if err := api.BindArgs(&args, c); err != nil {
		return nil, err
	}

	task, err := d.store.TaskByID(c.Request().Context(), args.TaskID)
	if err != nil {
		return nil, api.AsErrNotFound("task %q", args.TaskID)
	}
	return task, nil
}
