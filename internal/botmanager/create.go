package botmanager

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teemow/notetaker/internal/instrumentation"
	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/recall"
	"github.com/teemow/notetaker/internal/store"
)

var errEmptyAgentID = errors.New("provider returned no agent id")

// CreateResult classifies the outcome of Create.
type CreateResult string

const (
	// Created means a new agent was requested and recorded on the event.
	Created CreateResult = "created"
	// Existing means the event already had an agent.
	Existing CreateResult = "existing"
	// Ineligible means the event has no meeting link or recording is disabled.
	Ineligible CreateResult = "ineligible"
	// Failed means the provider or the store rejected the creation.
	Failed CreateResult = "failed"
)

// CreateOutcome is the result of Create. AgentID is set for Created and
// Existing; Err is set for Failed.
type CreateOutcome struct {
	AgentID string
	Result  CreateResult
	Err     error
}

// HasAgent reports whether the event has an agent after Create.
func (o CreateOutcome) HasAgent() bool {
	return o.AgentID != ""
}

// Create ensures the event has a recording agent. It is idempotent: an event
// that already has an agent keeps it and no provider call is made. Ineligible
// events are a no-op. Provider failures are reported in the outcome and never
// returned as errors. On success event.AgentID is updated.
func (m *Manager) Create(ctx context.Context, event *store.CalendarEvent, leadMinutes int) CreateOutcome {
	if event.HasAgent() {
		return CreateOutcome{AgentID: event.Agent(), Result: Existing}
	}
	if event.MeetingLink == "" || !event.RecordingEnabled {
		return CreateOutcome{Result: Ineligible}
	}

	logger := m.logger.With(logging.UserID(event.UserID), logging.EventID(event.ID))
	ctx, span := instrumentation.StartSpan(ctx, "agent.create",
		instrumentation.NewSpanAttributeBuilder().WithUser(event.UserID).WithEvent(event.ID).Build()...)

	action := instrumentation.NewAgentAction(instrumentation.ActionCreate).
		WithUser(event.UserID, "").
		WithEvent(event.ID, event.MeetingLink).
		WithSpanContext(ctx)

	outcome := m.create(ctx, event)

	action.WithAgent(outcome.AgentID).Complete(outcome.Err)
	m.audit.LogAgentAction(action)
	instrumentation.EndSpan(span, outcome.Err)

	status := instrumentation.StatusSuccess
	if outcome.Result == Failed {
		status = instrumentation.StatusError
		logger.Error("failed to create recording agent", logging.Err(outcome.Err))
	} else {
		logger.Info("recording agent created",
			logging.AgentID(outcome.AgentID),
			slog.Time("join_at", event.StartTime.Add(-time.Duration(leadMinutes)*time.Minute)))
	}
	m.metrics.RecordAgentCreated(ctx, event.MeetingPlatform, status, event.UserID)

	return outcome
}

func (m *Manager) create(ctx context.Context, event *store.CalendarEvent) CreateOutcome {
	agent, err := m.agents.CreateAgent(ctx, recall.CreateAgentRequest{
		MeetingURL: event.MeetingLink,
		StartTime:  event.StartTime,
		Name:       recall.BotName(event.Title, event.ID),
	})
	if err != nil {
		return CreateOutcome{Result: Failed, Err: err}
	}
	if agent.ID == "" {
		return CreateOutcome{Result: Failed, Err: errEmptyAgentID}
	}

	if err := m.store.SetEventAgent(ctx, event.ID, agent.ID); err != nil {
		return CreateOutcome{Result: Failed, Err: err}
	}

	id := agent.ID
	event.AgentID = &id
	return CreateOutcome{AgentID: id, Result: Created}
}

// CreateForEvent loads an event and runs Create on it.
func (m *Manager) CreateForEvent(ctx context.Context, eventID uint, leadMinutes int) (CreateOutcome, error) {
	event, err := m.store.GetEvent(ctx, eventID)
	if err != nil {
		return CreateOutcome{}, err
	}
	return m.Create(ctx, event, leadMinutes), nil
}
