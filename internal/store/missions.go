package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// CreateMission inserts an empty mission. A missing creator is ErrNotFound.
func (s *Store) CreateMission(ctx context.Context, in NewMission) (*Mission, error) {
	var m *Mission
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		m, err = s.insertMission(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("mission created", zap.String("mission.id", m.ID))
	return m, nil
}

// CreateMissionWithTasks inserts a mission and its tasks atomically. Tasks
// keep their input order as their position. Any failure leaves no rows.
func (s *Store) CreateMissionWithTasks(ctx context.Context, in NewMission, tasks []NewTask) (*Mission, error) {
	for i, t := range tasks {
		if err := validateNewTask(t); err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
	}
	m, err := s.insertMissionTree(ctx, in, tasks)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("mission created with tasks",
		zap.String("mission.id", m.ID), zap.Int("tasks", len(m.Tasks)))
	return m, nil
}

// insertMissionTree is the unvalidated transactional body of
// CreateMissionWithTasks; the database constraints are the last line.
func (s *Store) insertMissionTree(ctx context.Context, in NewMission, tasks []NewTask) (*Mission, error) {
	var m *Mission
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if m, err = s.insertMission(ctx, tx, in); err != nil {
			return err
		}
		m.Tasks = make([]*Task, 0, len(tasks))
		for i, nt := range tasks {
			t := s.newTaskRow(m.ID, i, nt)
			if _, err := tx.NewInsert().Model(t).Exec(ctx); err != nil {
				return translate("create", "task", err)
			}
			m.Tasks = append(m.Tasks, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) insertMission(ctx context.Context, tx bun.IDB, in NewMission) (*Mission, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: mission name is required", apiv1.ErrInvalidArgument)
	}
	if in.CreatedByID == "" {
		return nil, fmt.Errorf("%w: creator is required", apiv1.ErrInvalidArgument)
	}

	ok, err := userExists(ctx, tx, in.CreatedByID)
	if err != nil {
		return nil, translate("check", "user", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: creator %s", apiv1.ErrNotFound, in.CreatedByID)
	}

	status := in.Status
	if status == "" {
		status = StatusActive
	}
	now := s.timestamp()
	m := &Mission{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Status:      status,
		CreatedByID: in.CreatedByID,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsActive:    true,
	}
	if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
		return nil, translate("create", "mission", err)
	}
	return m, nil
}

// GetMission returns the mission with its participants (and their users)
// in join order.
func (s *Store) GetMission(ctx context.Context, id string) (*Mission, error) {
	m := new(Mission)
	err := s.db.NewSelect().Model(m).
		Relation("Participants", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("mp.joined_at ASC, mp.user_id ASC")
		}).
		Relation("Participants.User").
		Where("m.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, translate("get", "mission", err)
	}
	return m, nil
}

// ListMissions returns every mission ordered by creation time.
func (s *Store) ListMissions(ctx context.Context) ([]*Mission, error) {
	missions := make([]*Mission, 0)
	if err := s.db.NewSelect().Model(&missions).OrderExpr("m.created_at ASC, m.id ASC").Scan(ctx); err != nil {
		return nil, translate("list", "missions", err)
	}
	return missions, nil
}

// ListMissionsForUser returns the missions a user created or participates
// in, each once, ordered by creation time.
func (s *Store) ListMissionsForUser(ctx context.Context, userID string) ([]*Mission, error) {
	ok, err := userExists(ctx, s.db, userID)
	if err != nil {
		return nil, translate("check", "user", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: user %s", apiv1.ErrNotFound, userID)
	}

	joined := s.db.NewSelect().
		Model((*Participant)(nil)).
		ColumnExpr("mp.mission_id").
		Where("mp.user_id = ?", userID)

	missions := make([]*Mission, 0)
	err = s.db.NewSelect().Model(&missions).
		WhereOr("m.created_by_id = ?", userID).
		WhereOr("m.id IN (?)", joined).
		OrderExpr("m.created_at ASC, m.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, translate("list", "missions", err)
	}
	return missions, nil
}

func missionExists(ctx context.Context, db bun.IDB, id string) (bool, error) {
	return db.NewSelect().Model((*Mission)(nil)).Where("m.id = ?", id).Exists(ctx)
}

func (s *Store) requireMission(ctx context.Context, db bun.IDB, id string) error {
	ok, err := missionExists(ctx, db, id)
	if err != nil {
		return translate("check", "mission", err)
	}
	if !ok {
		return fmt.Errorf("%w: mission %s", apiv1.ErrNotFound, id)
	}
	return nil
}
