package store

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a registered account. The password hash never leaves the store
// in serialized form.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk" json:"id"`
	Email     string    `bun:"email,notnull" json:"email"`
	Username  string    `bun:"username,notnull" json:"username"`
	Password  string    `bun:"hashed_password,notnull" json:"-"`
	Avatar    string    `bun:"avatar,nullzero" json:"avatar,omitempty"`
	Name      string    `bun:"name,nullzero" json:"name,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
	IsActive  bool      `bun:"is_active,notnull" json:"isActive"`
}

// Mission groups tasks under a creator. Tasks and Participants are only
// populated by reads that ask for them.
type Mission struct {
	bun.BaseModel `bun:"table:missions,alias:m"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description,nullzero" json:"description"`
	Status      string    `bun:"status,notnull" json:"status"`
	CreatedByID string    `bun:"created_by_id,notnull" json:"createdById"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updatedAt"`
	IsActive    bool      `bun:"is_active,notnull" json:"isActive"`

	Tasks        []*Task        `bun:"rel:has-many,join:id=mission_id" json:"tasks,omitempty"`
	Participants []*Participant `bun:"rel:has-many,join:id=mission_id" json:"participants,omitempty"`
}

// Task is a unit of work worth Points. Position is the insertion order
// within the mission and defines display order.
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID          string     `bun:"id,pk" json:"id"`
	Title       string     `bun:"title,notnull" json:"title"`
	Description string     `bun:"description,nullzero" json:"description"`
	Points      int        `bun:"points,notnull" json:"points"`
	MissionID   string     `bun:"mission_id,notnull" json:"missionId"`
	Position    int        `bun:"position,notnull" json:"position"`
	Deadline    *time.Time `bun:"deadline" json:"deadline,omitempty"`
	Completed   bool       `bun:"completed,notnull" json:"completed"`
	IsFinal     bool       `bun:"is_final,notnull" json:"isFinal"`
	BossType    string     `bun:"boss_type,nullzero" json:"bossType,omitempty"`
	BossName    string     `bun:"boss_name,nullzero" json:"bossName,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull" json:"updatedAt"`
}

// Participant records a user's membership in a mission. The pair is the
// primary key.
type Participant struct {
	bun.BaseModel `bun:"table:mission_participants,alias:mp"`

	MissionID   string    `bun:"mission_id,pk" json:"mission_id"`
	UserID      string    `bun:"user_id,pk" json:"user_id"`
	TotalPoints int       `bun:"total_points,notnull" json:"total_points"`
	Status      string    `bun:"status,notnull" json:"status"`
	JoinedAt    time.Time `bun:"joined_at,notnull" json:"joined_at"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

// NewUser is the input to CreateUser. Password is plain text.
type NewUser struct {
	Email    string
	Username string
	Password string
	Avatar   string
	Name     string
}

// NewMission is the input to CreateMission.
type NewMission struct {
	Name        string
	Description string
	Status      string
	CreatedByID string
}

// NewTask is the input to CreateTask and CreateMissionWithTasks.
type NewTask struct {
	Title       string
	Description string
	Points      int
	Deadline    *time.Time
	IsFinal     bool
	BossType    string
	BossName    string
}

// TaskUpdate is a partial update; nil fields are left unchanged.
type TaskUpdate struct {
	Title         *string
	Description   *string
	Points        *int
	Completed     *bool
	Deadline      *time.Time
	ClearDeadline bool
	IsFinal       *bool
	BossType      *string
	BossName      *string
}

const (
	// StatusActive is the default mission and participant status.
	StatusActive = "active"

	// BossNone marks a task without a boss.
	BossNone = "none"
)

// bossTypes is the catalogue of boss artwork the client can render.
var bossTypes = map[string]bool{
	BossNone: true,
	"fish-1": true, "fish-2": true, "fish-3": true,
	"fish-4": true, "fish-5": true, "fish-6": true,
}

// ValidBossType reports whether t is empty or a known boss type.
func ValidBossType(t string) bool {
	return t == "" || bossTypes[t]
}
