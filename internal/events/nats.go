package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/fyrsmithlabs/questd/internal/logging"
	"github.com/fyrsmithlabs/questd/internal/store"
)

// HeaderRequestID carries the originating HTTP request id, when known.
const HeaderRequestID = "Questd-Request-Id"

// NATSPublisher publishes JSON events on <prefix>.<subject>.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	owned  bool
	logger *zap.Logger
	now    func() time.Time
}

// Connect returns a publisher for cfg. An empty NATS URL yields Nop.
func Connect(cfg config.EventsConfig, logger *zap.Logger) (Publisher, error) {
	if cfg.NATSURL == "" {
		return Nop{}, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("questd"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.NATSURL, err)
	}
	logger.Info("connected to NATS", zap.String("url", cfg.NATSURL))

	p := NewNATSPublisher(nc, cfg.SubjectPrefix, logger)
	p.owned = true
	return p, nil
}

// NewNATSPublisher wraps an existing connection. Close does not close a
// connection the publisher did not open.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger, now: time.Now}
}

// Subject returns the full subject for an event name.
func (p *NATSPublisher) Subject(name string) string {
	if p.prefix == "" {
		return name
	}
	return p.prefix + "." + name
}

// MissionCreated publishes mission.created.
func (p *NATSPublisher) MissionCreated(ctx context.Context, m *store.Mission) error {
	return p.publish(ctx, SubjectMissionCreated, MissionCreatedEvent{
		MissionID:   m.ID,
		Name:        m.Name,
		CreatedByID: m.CreatedByID,
		TaskCount:   len(m.Tasks),
		OccurredAt:  p.now().UTC(),
	})
}

// ParticipantJoined publishes participant.joined.
func (p *NATSPublisher) ParticipantJoined(ctx context.Context, pt *store.Participant) error {
	return p.publish(ctx, SubjectParticipantJoined, ParticipantJoinedEvent{
		MissionID:  pt.MissionID,
		UserID:     pt.UserID,
		JoinedAt:   pt.JoinedAt,
		OccurredAt: p.now().UTC(),
	})
}

func (p *NATSPublisher) publish(ctx context.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}

	msg := nats.NewMsg(p.Subject(name))
	msg.Data = data
	if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Header.Set(HeaderRequestID, id)
	}

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s event: %w", name, err)
	}
	p.logger.Debug("event published", zap.String("subject", msg.Subject))
	return nil
}

// Close flushes pending messages and closes an owned connection.
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return nil
	}
	err := p.nc.Flush()
	p.nc.Close()
	return err
}

var _ Publisher = (*NATSPublisher)(nil)
