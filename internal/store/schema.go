package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/questd/internal/config"
	"go.uber.org/zap"
)

// schema is applied in order by Migrate. {{ts}} expands to the backend's
// timestamp type.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL UNIQUE,
		hashed_password TEXT NOT NULL,
		avatar TEXT,
		name TEXT,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS missions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_by_id TEXT NOT NULL REFERENCES users (id),
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS missions_created_by_id_idx ON missions (created_by_id)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		points INTEGER NOT NULL CONSTRAINT tasks_points_positive CHECK (points > 0),
		mission_id TEXT NOT NULL REFERENCES missions (id),
		position INTEGER NOT NULL DEFAULT 0,
		deadline {{ts}},
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		is_final BOOLEAN NOT NULL DEFAULT FALSE,
		boss_type TEXT,
		boss_name TEXT,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tasks_mission_position_idx ON tasks (mission_id, position)`,
	`CREATE TABLE IF NOT EXISTS mission_participants (
		mission_id TEXT NOT NULL REFERENCES missions (id),
		user_id TEXT NOT NULL REFERENCES users (id),
		total_points INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		joined_at {{ts}} NOT NULL,
		PRIMARY KEY (mission_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS mission_participants_user_id_idx ON mission_participants (user_id)`,
}

// Migrate creates any missing tables and indexes. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	ts := "TIMESTAMP"
	if s.driver == config.DriverPostgres {
		ts = "TIMESTAMPTZ"
	}

	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, strings.ReplaceAll(stmt, "{{ts}}", ts)); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	s.logger.Info("schema migrated", zap.Int("statements", len(schema)))
	return nil
}
