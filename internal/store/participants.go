package store

import (
	"context"
	"database/sql"
	"fmt"

	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// AddParticipant adds a user to a mission with zero points. A missing
// mission or user is ErrNotFound; an existing membership is ErrConflict.
func (s *Store) AddParticipant(ctx context.Context, missionID, userID string) (*Participant, error) {
	p := &Participant{
		MissionID: missionID,
		UserID:    userID,
		Status:    StatusActive,
		JoinedAt:  s.timestamp(),
	}

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := s.requireMission(ctx, tx, missionID); err != nil {
			return err
		}
		ok, err := userExists(ctx, tx, userID)
		if err != nil {
			return translate("check", "user", err)
		}
		if !ok {
			return fmt.Errorf("%w: user %s", apiv1.ErrNotFound, userID)
		}

		if _, err := tx.NewInsert().Model(p).Exec(ctx); err != nil {
			return translate("create", "participant", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("participant added",
		zap.String("mission.id", missionID), zap.String("user.id", userID))
	return p, nil
}

// Leaderboard returns a mission's participants with their users ranked by
// total points, highest first. Ties go to the earlier joiner, then to the
// lower user id.
func (s *Store) Leaderboard(ctx context.Context, missionID string) ([]*Participant, error) {
	if err := s.requireMission(ctx, s.db, missionID); err != nil {
		return nil, err
	}
	rows := make([]*Participant, 0)
	err := s.db.NewSelect().Model(&rows).
		Relation("User").
		Where("mp.mission_id = ?", missionID).
		OrderExpr("mp.total_points DESC, mp.joined_at ASC, mp.user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, translate("leaderboard", "participants", err)
	}
	return rows, nil
}
