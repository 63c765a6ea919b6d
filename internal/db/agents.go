package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/agentcluster/dashboard/pkg/model"
)

// Agents returns all agents ordered by name.
func (s *Store) Agents(ctx context.Context) (model.Agents, error) {
	agents := model.Agents{}
	err := s.bun.NewSelect().
		Model(&agents).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return agents, nil
}

// AgentByName returns the agent with the given name, or ErrNotFound.
func (s *Store) AgentByName(ctx context.Context, name string) (*model.Agent, error) {
	agent := &model.Agent{}
	err := s.bun.NewSelect().
		Model(agent).
		Where("name = ?", name).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return agent, nil
}

// UpdateAgentStatus sets the agent's status and refreshes updated_at. The
// current task reference is only overwritten when a non-empty task id is
// given; going idle does not clear the last reference.
func (s *Store) UpdateAgentStatus(
	ctx context.Context, name string, status model.AgentStatus, currentTaskID string,
) error {
	q := s.bun.NewUpdate().
		Model((*model.Agent)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("name = ?", name)
	if currentTaskID != "" {
		q = q.Set("current_task_id = ?", currentTaskID)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(ErrNotFound, "agent %q", name)
	}
	return nil
}
