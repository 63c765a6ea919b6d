// Package db is the state store of the dashboard: a bun-managed SQLite
// database holding the agent, task and alert tables. Every exported
// operation commits in its own transaction; callers never see a multi-call
// transaction.
package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/extra/bundebug"
	_ "modernc.org/sqlite"

	"github.com/agentcluster/dashboard/internal/config"
	"github.com/agentcluster/dashboard/pkg/model"
)

// ErrNotFound is returned if nothing is found.
var ErrNotFound = errors.New("not found")

// Store provides access to the dashboard database.
type Store struct {
	sql *sql.DB
	bun *bun.DB
	log *log.Entry
}

// Connect opens the database, runs migrations and seeds the default agent
// roster if the agents table is empty.
func Connect(cfg *config.DBConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "creating database directory")
		}
	}

	// modernc driver pragmas use the _pragma=name(value) DSN form.
	sqlDB, err := sql.Open(
		"sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	// SQLite supports a single writer at a time.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	bunDB := bun.NewDB(sqlDB, sqlitedialect.New())
	bunDB.AddQueryHook(bundebug.NewQueryHook(bundebug.FromEnv("BUNDEBUG")))

	s := &Store{
		sql: sqlDB,
		bun: bunDB,
		log: log.WithField("component", "db"),
	}
	if err := s.migrate(context.TODO()); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "migrating database")
	}
	if err := s.seedAgents(context.TODO()); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "seeding default agents")
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.bun.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.bun.PingContext(ctx)
}

// Bun returns the underlying bun handle, for queries that have no dedicated
// store operation (tests, mostly).
func (s *Store) Bun() *bun.DB {
	return s.bun
}

func (s *Store) migrate(ctx context.Context) error {
	models := []interface{}{
		(*model.Agent)(nil),
		(*model.Task)(nil),
		(*model.Alert)(nil),
	}
	for _, m := range models {
		if _, err := s.bun.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	if _, err := s.bun.NewCreateIndex().
		Model((*model.Task)(nil)).
		Index("tasks_task_id_idx").
		Column("task_id").
		Unique().
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}
	if _, err := s.bun.NewCreateIndex().
		Model((*model.Alert)(nil)).
		Index("alerts_task_type_idx").
		Column("task_id", "alert_type", "is_sent").
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}
	return nil
}

// defaultAgents is the fixed worker roster; created once when the agents
// table is empty and never deleted.
var defaultAgents = []model.Agent{
	{Name: "chief", DisplayName: "Chief", Description: "Lead agent coordinating task assignment"},
	{Name: "coder", DisplayName: "Coder", Description: "Engineering agent handling code work"},
	{Name: "hr", DisplayName: "HR", Description: "People agent handling hiring and staffing"},
	{Name: "analyst", DisplayName: "Analyst", Description: "Analysis agent producing data reports"},
	{Name: "ops", DisplayName: "Ops", Description: "Operations agent running infra and monitoring"},
}

func (s *Store) seedAgents(ctx context.Context) error {
	count, err := s.bun.NewSelect().Model((*model.Agent)(nil)).Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	agents := make(model.Agents, 0, len(defaultAgents))
	for _, a := range defaultAgents {
		a := a
		a.Status = model.AgentIdle
		a.CreatedAt = now
		a.UpdatedAt = now
		agents = append(agents, &a)
	}
	if _, err := s.bun.NewInsert().Model(&agents).Exec(ctx); err != nil {
		return err
	}
	s.log.Infof("seeded %d default agents", len(agents))
	return nil
}
