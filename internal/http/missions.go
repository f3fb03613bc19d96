package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questd/internal/store"
	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
	"github.com/fyrsmithlabs/questd/pkg/auth"
)

// creatorID picks the mission owner: the body's createdById when set,
// otherwise the authenticated user.
func creatorID(c echo.Context, requested string) string {
	if requested != "" {
		return requested
	}
	if p, ok := auth.PrincipalFrom(c); ok {
		return p.UserID
	}
	return ""
}

func (s *Server) handleCreateMission(c echo.Context) error {
	var req CreateMissionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	m, err := s.deps.Store.CreateMission(ctx, store.NewMission{
		Name:        req.Name,
		Description: req.Description,
		CreatedByID: creatorID(c, req.CreatedByID),
	})
	if err != nil {
		return err
	}
	s.publishMissionCreated(ctx, m)
	return c.JSON(http.StatusCreated, m)
}

func (s *Server) handleCreateMissionWithTasks(c echo.Context) error {
	var req CreateMissionWithTasksRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	suggestions := append(req.Tasks, req.Suggestions...)

	// CommitAsMission publishes mission.created itself.
	m, err := s.deps.Planner.CommitAsMission(c.Request().Context(),
		creatorID(c, req.CreatedByID), req.Name, req.Description, suggestions)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (s *Server) handleListMissions(c echo.Context) error {
	missions, err := s.deps.Store.ListMissions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, missions)
}

func (s *Server) handleGetMission(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	m, err := s.deps.Store.GetMission(c.Request().Context(), id)
	if err != nil {
		return err
	}
	detail := MissionDetail{Mission: m, Participants: m.Participants}
	if detail.Participants == nil {
		detail.Participants = []*store.Participant{}
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) handleAddParticipant(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req AddParticipantRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.UserID == "" {
		return fmt.Errorf("%w: user_id is required", apiv1.ErrInvalidArgument)
	}
	ctx := c.Request().Context()

	p, err := s.deps.Store.AddParticipant(ctx, id, req.UserID)
	if err != nil {
		return err
	}
	if err := s.deps.Events.ParticipantJoined(ctx, p); err != nil {
		s.logger.Warn("failed to publish participant.joined",
			zap.String("mission_id", p.MissionID), zap.Error(err))
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	rows, err := s.deps.Store.Leaderboard(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *Server) handleCreateTask(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req CreateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	t, err := s.deps.Store.CreateTask(c.Request().Context(), id, store.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Points:      req.Points,
		Deadline:    req.Deadline,
		IsFinal:     req.IsFinal,
		BossType:    req.BossType,
		BossName:    req.BossName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (s *Server) handleListTasks(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	tasks, err := s.deps.Store.ListTasks(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleUpdateTask(c echo.Context) error {
	missionID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	taskID, err := pathID(c, "taskId")
	if err != nil {
		return err
	}
	var req UpdateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	upd := store.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Points:      req.Points,
		Completed:   req.Completed,
		IsFinal:     req.IsFinal,
		BossType:    req.BossType,
		BossName:    req.BossName,
	}
	switch raw := bytes.TrimSpace(req.Deadline); {
	case len(raw) == 0:
	case bytes.Equal(raw, []byte("null")):
		upd.ClearDeadline = true
	default:
		var deadline time.Time
		if err := json.Unmarshal(raw, &deadline); err != nil {
			return fmt.Errorf("%w: deadline must be an RFC 3339 timestamp", apiv1.ErrInvalidArgument)
		}
		upd.Deadline = &deadline
	}

	t, err := s.deps.Store.UpdateTask(c.Request().Context(), missionID, taskID, upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handlePlanMission(c echo.Context) error {
	var req PlanRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	suggestions, err := s.deps.Planner.Generate(c.Request().Context(), req.Prompt)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, suggestions)
}

func (s *Server) publishMissionCreated(ctx context.Context, m *store.Mission) {
	if err := s.deps.Events.MissionCreated(ctx, m); err != nil {
		s.logger.Warn("failed to publish mission.created",
			zap.String("mission_id", m.ID), zap.Error(err))
	}
}
