// Package planner turns a free-text goal into task suggestions using a
// generative model, and commits accepted suggestions as a mission.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/fyrsmithlabs/questd/internal/events"
	"github.com/fyrsmithlabs/questd/internal/store"
	apiv1 "github.com/fyrsmithlabs/questd/pkg/api/v1"
)

// MinPromptLength is the shortest accepted prompt, in runes, after trimming.
const MinPromptLength = 10

// MissionStore persists a mission together with its tasks.
type MissionStore interface {
	CreateMissionWithTasks(ctx context.Context, in store.NewMission, tasks []store.NewTask) (*store.Mission, error)
}

// Planner generates and commits mission plans.
type Planner struct {
	cfg         config.PlannerConfig
	instruction string

	gen      Generator
	missions MissionStore
	events   events.Publisher
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *Metrics
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the planner logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// WithTracer sets the tracer used for generator spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Planner) { p.tracer = t }
}

// WithPublisher sets the event publisher for committed missions.
func WithPublisher(pub events.Publisher) Option {
	return func(p *Planner) { p.events = pub }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(p *Planner) { p.metrics = m }
}

// New creates a Planner. gen may be nil: the planner is still usable for
// commits and reports ErrServiceMisconfigured from Generate.
func New(cfg config.PlannerConfig, gen Generator, missions MissionStore, opts ...Option) *Planner {
	p := &Planner{
		cfg:         cfg,
		instruction: Instruction(cfg.MinPoints, cfg.MaxPoints),
		gen:         gen,
		missions:    missions,
		events:      events.Nop{},
		logger:      zap.NewNop(),
		tracer:      otel.Tracer("questd.planner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	return p
}

// Configured reports whether a generator is available.
func (p *Planner) Configured() bool {
	return p.gen != nil
}

// Generate asks the model for a plan for prompt.
//
// Output that is not a JSON array degrades to an empty list rather than an
// error. Elements that fail validation are dropped.
func (p *Planner) Generate(ctx context.Context, prompt string) ([]TaskSuggestion, error) {
	request := strings.TrimSpace(prompt)
	if err := p.checkPrompt(request); err != nil {
		p.metrics.observe(OutcomeInvalidArgument)
		return nil, err
	}
	if !p.Configured() {
		p.metrics.observe(OutcomeMisconfigured)
		return nil, fmt.Errorf("%w: planner API key is not configured", apiv1.ErrServiceMisconfigured)
	}

	ctx, span := p.tracer.Start(ctx, "planner.generate", trace.WithAttributes(
		attribute.String("planner.provider", p.cfg.Provider),
		attribute.String("planner.model", p.cfg.Model),
		attribute.Int("planner.prompt_length", utf8.RuneCountInString(request)),
	))
	defer span.End()

	raw, err := p.callGenerator(ctx, BuildPrompt(p.instruction, request))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generator failed")
		p.metrics.observe(OutcomeUpstreamError)
		p.logger.Warn("planner generator failed", zap.String("provider", p.cfg.Provider), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", apiv1.ErrUpstreamUnavailable, err)
	}

	suggestions, dropped := ParseSuggestions(raw)
	span.SetAttributes(
		attribute.Int("planner.suggestions", len(suggestions)),
		attribute.Int("planner.dropped", dropped),
	)
	if dropped > 0 {
		p.metrics.Dropped.Add(float64(dropped))
		p.logger.Debug("dropped invalid suggestions", zap.Int("dropped", dropped))
	}
	if len(suggestions) == 0 {
		p.metrics.observe(OutcomeEmpty)
	} else {
		p.metrics.observe(OutcomeOK)
	}
	return suggestions, nil
}

func (p *Planner) checkPrompt(request string) error {
	n := utf8.RuneCountInString(request)
	if n < MinPromptLength {
		return fmt.Errorf("%w: prompt must be at least %d characters", apiv1.ErrInvalidArgument, MinPromptLength)
	}
	if p.cfg.MaxPromptLength > 0 && n > p.cfg.MaxPromptLength {
		return fmt.Errorf("%w: prompt must be at most %d characters", apiv1.ErrInvalidArgument, p.cfg.MaxPromptLength)
	}
	return nil
}

func (p *Planner) callGenerator(ctx context.Context, fullPrompt string) (string, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	raw, err := p.gen.Generate(ctx, fullPrompt)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "", fmt.Errorf("generator timed out after %s: %w", p.cfg.Timeout, err)
	}
	return raw, err
}

// CommitAsMission stores suggestions as a new mission owned by creatorID.
// The mission and every task are written in one transaction, tasks in input
// order.
func (p *Planner) CommitAsMission(ctx context.Context, creatorID, name, description string, suggestions []TaskSuggestion) (*store.Mission, error) {
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("%w: at least one suggestion is required", apiv1.ErrInvalidArgument)
	}
	tasks := make([]store.NewTask, len(suggestions))
	for i, s := range suggestions {
		if !s.Valid() {
			return nil, fmt.Errorf("%w: suggestion %d needs a title, a description and positive points", apiv1.ErrInvalidArgument, i)
		}
		tasks[i] = store.NewTask{
			Title:       strings.TrimSpace(s.Title),
			Description: strings.TrimSpace(s.Description),
			Points:      s.Points,
		}
	}

	m, err := p.missions.CreateMissionWithTasks(ctx, store.NewMission{
		Name:        name,
		Description: description,
		CreatedByID: creatorID,
	}, tasks)
	if err != nil {
		return nil, err
	}

	if err := p.events.MissionCreated(ctx, m); err != nil {
		p.logger.Warn("failed to publish mission.created",
			zap.String("mission_id", m.ID), zap.Error(err))
	}
	return m, nil
}
