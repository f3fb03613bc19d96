// Package events publishes questd domain events to NATS.
//
// Events are notifications only. A failed publish is reported to the caller
// but never undoes the write that produced it.
package events

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/questd/internal/store"
)

// Event subjects, relative to the configured prefix.
const (
	SubjectMissionCreated    = "mission.created"
	SubjectParticipantJoined = "participant.joined"
)

// Publisher emits domain events.
type Publisher interface {
	MissionCreated(ctx context.Context, m *store.Mission) error
	ParticipantJoined(ctx context.Context, p *store.Participant) error
	Close() error
}

// MissionCreatedEvent is the payload of a mission.created event.
type MissionCreatedEvent struct {
	MissionID   string    `json:"mission_id"`
	Name        string    `json:"name"`
	CreatedByID string    `json:"created_by_id"`
	TaskCount   int       `json:"task_count"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ParticipantJoinedEvent is the payload of a participant.joined event.
type ParticipantJoinedEvent struct {
	MissionID  string    `json:"mission_id"`
	UserID     string    `json:"user_id"`
	JoinedAt   time.Time `json:"joined_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Nop discards every event. It is used when no NATS URL is configured.
type Nop struct{}

func (Nop) MissionCreated(context.Context, *store.Mission) error        { return nil }
func (Nop) ParticipantJoined(context.Context, *store.Participant) error { return nil }
func (Nop) Close() error                                                { return nil }

var _ Publisher = Nop{}
