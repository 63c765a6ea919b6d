package internal

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agentcluster/dashboard/internal/api"
	"github.com/agentcluster/dashboard/pkg/model"
)

type agentStatistics struct {
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	FailedTasks    int     `json:"failed_tasks"`
	SuccessRate    float64 `json:"success_rate"`
	TotalTokens    int     `json:"total_tokens"`
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
}

type agentResponse struct {
	Name          string            `json:"name"`
	DisplayName   string            `json:"display_name"`
	Description   string            `json:"description"`
	Status        model.AgentStatus `json:"status"`
	CurrentTaskID *string           `json:"current_task_id"`
	Statistics    agentStatistics   `json:"statistics"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func toAgentResponse(agent *model.Agent) agentResponse {
	return agentResponse{
		Name:          agent.Name,
		DisplayName:   agent.DisplayName,
		Description:   agent.Description,
		Status:        agent.Status,
		CurrentTaskID: agent.CurrentTaskID,
		Statistics: agentStatistics{
			TotalTasks:     agent.TotalTasks,
			CompletedTasks: agent.CompletedTasks,
			FailedTasks:    agent.FailedTasks,
			SuccessRate:    agent.SuccessRate(),
			TotalTokens:    agent.TotalTokens,
			InputTokens:    agent.InputTokens,
			OutputTokens:   agent.OutputTokens,
		},
		UpdatedAt: agent.UpdatedAt,
	}
}

func (d *Dashboard) getAgents(c echo.Context) (interface{}, error) {
	agents, err := d.store.Agents(c.Request().Context())
	if err != nil {
		return nil, err
	}
	out := make([]agentResponse, 0, len(agents))
	for _, agent := range agents {
		out = append(out, toAgentResponse(agent))
	}
	return out, nil
}

func (d *Dashboard) getAgent(c echo.Context) (interface{}, error) {
	args := struct {
		Name string `path:"name"`
	}{}
	if err := api.BindArgs(&args, c); err != nil {
		return nil, err
	}

	agent, err := d.store.AgentByName(c.Request().Context(), args.Name)
	if err != nil {
		return nil, api.AsErrNotFound("agent %q", args.Name)
	}
	return toAgentResponse(agent), nil
}
