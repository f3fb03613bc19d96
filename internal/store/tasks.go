package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

func validateNewTask(t NewTask) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: task title is required", apiv1.ErrInvalidArgument)
	}
	if t.Points <= 0 {
		return fmt.Errorf("%w: task points must be positive, got %d", apiv1.ErrInvalidArgument, t.Points)
	}
	if !ValidBossType(t.BossType) {
		return fmt.Errorf("%w: unknown boss type %q", apiv1.ErrInvalidArgument, t.BossType)
	}
	return nil
}

func (s *Store) newTaskRow(missionID string, position int, nt NewTask) *Task {
	now := s.timestamp()
	t := &Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(nt.Title),
		Description: nt.Description,
		Points:      nt.Points,
		MissionID:   missionID,
		Position:    position,
		IsFinal:     nt.IsFinal,
		BossType:    nt.BossType,
		BossName:    nt.BossName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nt.Deadline != nil {
		d := nt.Deadline.UTC().Truncate(time.Microsecond)
		t.Deadline = &d
	}
	return t
}

// CreateTask appends a task to a mission. A missing mission is ErrNotFound;
// an empty title or non-positive points is ErrInvalidArgument.
func (s *Store) CreateTask(ctx context.Context, missionID string, in NewTask) (*Task, error) {
	if err := validateNewTask(in); err != nil {
		return nil, err
	}

	var t *Task
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := s.requireMission(ctx, tx, missionID); err != nil {
			return err
		}

		var next int
		err := tx.NewSelect().
			Model((*Task)(nil)).
			ColumnExpr("COALESCE(MAX(t.position) + 1, 0)").
			Where("t.mission_id = ?", missionID).
			Scan(ctx, &next)
		if err != nil {
			return translate("position", "task", err)
		}

		t = s.newTaskRow(missionID, next, in)
		if _, err := tx.NewInsert().Model(t).Exec(ctx); err != nil {
			return translate("create", "task", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTasks returns a mission's tasks in position order.
func (s *Store) ListTasks(ctx context.Context, missionID string) ([]*Task, error) {
	if err := s.requireMission(ctx, s.db, missionID); err != nil {
		return nil, err
	}
	tasks := make([]*Task, 0)
	err := s.db.NewSelect().Model(&tasks).
		Where("t.mission_id = ?", missionID).
		OrderExpr("t.position ASC, t.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, translate("list", "tasks", err)
	}
	return tasks, nil
}

// UpdateTask applies a partial update to a task of the given mission.
func (s *Store) UpdateTask(ctx context.Context, missionID, taskID string, upd TaskUpdate) (*Task, error) {
	if err := validateTaskUpdate(upd); err != nil {
		return nil, err
	}

	t := new(Task)
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(t).
			Where("t.id = ?", taskID).
			Where("t.mission_id = ?", missionID).
			Scan(ctx)
		if err != nil {
			return translate("get", "task", err)
		}

		applyTaskUpdate(t, upd)
		t.UpdatedAt = s.timestamp()

		if _, err := tx.NewUpdate().Model(t).WherePK().Exec(ctx); err != nil {
			return translate("update", "task", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func validateTaskUpdate(upd TaskUpdate) error {
	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return fmt.Errorf("%w: task title cannot be empty", apiv1.ErrInvalidArgument)
	}
	if upd.Points != nil && *upd.Points <= 0 {
		return fmt.Errorf("%w: task points must be positive, got %d", apiv1.ErrInvalidArgument, *upd.Points)
	}
	if upd.BossType != nil && !ValidBossType(*upd.BossType) {
		return fmt.Errorf("%w: unknown boss type %q", apiv1.ErrInvalidArgument, *upd.BossType)
	}
	return nil
}

func applyTaskUpdate(t *Task, upd TaskUpdate) {
	if upd.Title != nil {
		t.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Points != nil {
		t.Points = *upd.Points
	}
	if upd.Completed != nil {
		t.Completed = *upd.Completed
	}
	switch {
	case upd.ClearDeadline:
		t.Deadline = nil
	case upd.Deadline != nil:
		d := upd.Deadline.UTC().Truncate(time.Microsecond)
		t.Deadline = &d
	}
	if upd.IsFinal != nil {
		t.IsFinal = *upd.IsFinal
	}
	if upd.BossType != nil {
		t.BossType = *upd.BossType
	}
	if upd.BossName != nil {
		t.BossName = *upd.BossName
	}
}
