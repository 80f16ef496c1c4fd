// Package app wires the workspace store, config and review engine
// together for the CLI and server entry points.
package app

import (
	"database/sql"
	"fmt"

	"accessreview/internal/config"
	"accessreview/internal/db"
	"accessreview/internal/logging"
	"accessreview/internal/migrate"
	"accessreview/internal/review"
)

// Env is a fully wired runtime: open store, loaded config, engine.
type Env struct {
	DB     *sql.DB
	Config *config.Config
	Engine review.Engine
}

// Close releases the store connection.
func (e *Env) Close() error {
	if e.DB != nil {
		return e.DB.Close()
	}
	return nil
}

// Open prepares the workspace: ensures the directory, opens and
// migrates the store, loads config and builds the engine.
func Open(workspace string) (*Env, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(workspace)
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	log := logging.New(cfg.Log.Level)
	return &Env{
		DB:     conn,
		Config: cfg,
		Engine: review.New(conn, cfg, log),
	}, nil
}
