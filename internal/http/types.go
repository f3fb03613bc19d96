package http

import (
	"encoding/json"
	"time"

	"github.com/fyrsmithlabs/questd/internal/planner"
	"github.com/fyrsmithlabs/questd/internal/store"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Database string `json:"database"`
}

// LoginResponse is the response body for POST /auth/login.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *store.User `json:"user"`
}

// CreateUserRequest is the request body for POST /users.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
	Name     string `json:"name"`
}

// CreateMissionRequest is the request body for POST /missions. An empty
// CreatedByID means the authenticated user.
type CreateMissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedByID string `json:"createdById"`
}

// CreateMissionWithTasksRequest is the request body for
// POST /missions/with-tasks. Tasks and Suggestions are concatenated.
type CreateMissionWithTasksRequest struct {
	CreateMissionRequest
	Tasks       []planner.TaskSuggestion `json:"tasks"`
	Suggestions []planner.TaskSuggestion `json:"suggestions"`
}

// MissionDetail is a mission with its participants, always serialized as a
// list.
type MissionDetail struct {
	*store.Mission
	Participants []*store.Participant `json:"participants"`
}

// AddParticipantRequest is the request body for
// POST /missions/:id/participants.
type AddParticipantRequest struct {
	UserID string `json:"user_id"`
}

// CreateTaskRequest is the request body for POST /missions/:id/tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Points      int        `json:"points"`
	Deadline    *time.Time `json:"deadline"`
	IsFinal     bool       `json:"isFinal"`
	BossType    string     `json:"bossType"`
	BossName    string     `json:"bossName"`
}

// UpdateTaskRequest is the request body for
// PATCH /missions/:id/tasks/:taskId. Absent fields are unchanged; a null
// deadline clears it.
type UpdateTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Points      *int            `json:"points"`
	Completed   *bool           `json:"completed"`
	Deadline    json.RawMessage `json:"deadline"`
	IsFinal     *bool           `json:"isFinal"`
	BossType    *string         `json:"bossType"`
	BossName    *string         `json:"bossName"`
}

// PlanRequest is the request body for the AI planning routes.
type PlanRequest struct {
	Prompt string `json:"prompt"`
}
