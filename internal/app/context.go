package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/config"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/db"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/migrate"
)

// Open prepares a workspace: opens the database, applies migrations and loads
// taskmanager.yml (defaults when absent). The returned close func releases the database.
func Open(ctx context.Context, workspace string, log *zap.Logger) (engine.Engine, func() error, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return engine.Engine{}, nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return engine.Engine{}, nil, fmt.Errorf("open db: %w", err)
	}
	version, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("migrate: %w", err)
	}
	policy := cfg.AuthPolicy()
	log.Debug("workspace opened",
		zap.String("db", db.Path(workspace)),
		zap.Int("schema_version", version),
		zap.String("task_view", string(policy.TaskView)),
		zap.Bool("project_invite_requires_team", policy.ProjectInviteRequiresTeam))
	e := engine.New(conn, cfg)
	e.Log = log
	return e, conn.Close, nil
}
