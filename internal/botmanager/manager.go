package botmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/notetaker/internal/instrumentation"
	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/recall"
	"github.com/teemow/notetaker/internal/store"
)

// DefaultTolerance is how far the current time may be from an event's
// expected join time for a join to be issued.
const DefaultTolerance = 2 * time.Minute

// ErrNoAgent is returned when an event has no recording agent.
var ErrNoAgent = errors.New("event has no recording agent")

// Agents is the recording-agent provider.
type Agents interface {
	CreateAgent(ctx context.Context, req recall.CreateAgentRequest) (recall.Agent, error)
	JoinAgent(ctx context.Context, id string) error
	LeaveAgent(ctx context.Context, id string) error
	Status(ctx context.Context, id string) (recall.Status, error)
	Transcript(ctx context.Context, id string) (string, bool, error)
	RecordingURL(ctx context.Context, id string) (string, bool, error)
	Attendees(ctx context.Context, id string) ([]recall.Participant, error)
}

// Store is the persistence the manager needs.
type Store interface {
	GetEvent(ctx context.Context, id uint) (*store.CalendarEvent, error)
	SetEventAgent(ctx context.Context, eventID uint, agentID string) error
	JoinCandidates(ctx context.Context, userID uint, now time.Time) ([]store.CalendarEvent, error)
	HarvestCandidates(ctx context.Context, userID uint, now time.Time) ([]store.CalendarEvent, error)
	MeetingByAgent(ctx context.Context, agentID string) (*store.Meeting, error)
	CreateMeeting(ctx context.Context, m *store.Meeting, attendees []store.AttendeeInput) error
	UpdateMeetingTranscript(ctx context.Context, meetingID uint, transcript, recordingURL string) error
}

// Manager drives recording agents through their lifecycle: creation for
// eligible events, timed joins and harvesting of finished meetings.
type Manager struct {
	agents    Agents
	store     Store
	now       func() time.Time
	tolerance time.Duration
	audit     *instrumentation.AuditLogger
	metrics   *instrumentation.Metrics
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTolerance sets the join tolerance.
func WithTolerance(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.tolerance = d
		}
	}
}

// WithAuditLogger records every agent action.
func WithAuditLogger(a *instrumentation.AuditLogger) Option {
	return func(m *Manager) {
		m.audit = a
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Manager.
func New(agents Agents, st Store, opts ...Option) *Manager {
	m := &Manager{
		agents:    agents,
		store:     st,
		now:       time.Now,
		tolerance: DefaultTolerance,
		metrics:   &instrumentation.Metrics{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tolerance returns the configured join tolerance.
func (m *Manager) Tolerance() time.Duration {
	return m.tolerance
}

// Leave commands the agent of an event to leave its meeting.
func (m *Manager) Leave(ctx context.Context, eventID uint) error {
	event, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if !event.HasAgent() {
		return ErrNoAgent
	}

	action := instrumentation.NewAgentAction(instrumentation.ActionLeave).
		WithUser(event.UserID, "").
		WithEvent(event.ID, event.MeetingLink).
		WithAgent(event.Agent()).
		WithSpanContext(ctx)

	err = m.agents.LeaveAgent(ctx, event.Agent())
	m.audit.LogAgentAction(action.Complete(err))
	if err != nil {
		return fmt.Errorf("failed to remove agent %s from event %d: %w", event.Agent(), event.ID, err)
	}

	m.logger.Info("agent left meeting", logging.EventID(event.ID), logging.AgentID(event.Agent()))
	return nil
}

// AgentStatus reports the provider-side state of the agent recording an
// event of userID. Events of other users are reported as store.ErrNotFound.
func (m *Manager) AgentStatus(ctx context.Context, userID, eventID uint) (recall.Status, error) {
	event, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return recall.Status{}, err
	}
	if event.UserID != userID {
		return recall.Status{}, store.ErrNotFound
	}
	if !event.HasAgent() {
		return recall.Status{}, ErrNoAgent
	}

	status, err := m.agents.Status(ctx, event.Agent())
	if err != nil {
		return recall.Status{}, fmt.Errorf("failed to get status of agent %s: %w", event.Agent(), err)
	}
	return status, nil
}
