package botmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teemow/notetaker/internal/instrumentation"
	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/recall"
	"github.com/teemow/notetaker/internal/store"
)

// UnknownAttendee names participants reported without name or email.
const UnknownAttendee = "Unknown"

// CompletionResult aggregates one CheckCompleted run.
type CompletionResult struct {
	Created     int                     `json:"created"`
	Updated     int                     `json:"updated"`
	Errors      []string                `json:"errors"`
	AgentStates map[string]recall.State `json:"agent_states"`
}

// CheckCompleted harvests the user's finished agents into meetings. An agent
// without a meeting gets one once it reports a terminal state or a
// transcript. An agent with a meeting only ever updates it, filling in a
// transcript that became available later. Events are processed
// independently; failures are collected.
func (m *Manager) CheckCompleted(ctx context.Context, userID uint) (*CompletionResult, error) {
	result := &CompletionResult{Errors: []string{}, AgentStates: map[string]recall.State{}}
	logger := logging.WithUser(m.logger, userID)

	events, err := m.store.HarvestCandidates(ctx, userID, m.now())
	if err != nil {
		return result, err
	}
	logger.Debug("checking finished agents", slog.Int("events", len(events)))

	for i := range events {
		event := &events[i]
		kind, err := m.harvest(ctx, event, result)
		if err != nil {
			msg := fmt.Sprintf("error processing event %d: %v", event.ID, err)
			result.Errors = append(result.Errors, msg)
			logger.Error("failed to harvest agent", logging.EventID(event.ID), logging.AgentID(event.Agent()), logging.Err(err))
			continue
		}

		switch kind {
		case instrumentation.HarvestCreated:
			result.Created++
		case instrumentation.HarvestUpdated:
			result.Updated++
		default:
			continue
		}
		m.metrics.RecordMeetingHarvested(ctx, kind)
	}

	return result, nil
}

// harvest processes one event and returns the harvest kind, or "" when
// nothing changed.
func (m *Manager) harvest(ctx context.Context, event *store.CalendarEvent, result *CompletionResult) (string, error) {
	agentID := event.Agent()

	existing, err := m.store.MeetingByAgent(ctx, agentID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	status, err := m.agents.Status(ctx, agentID)
	if err != nil {
		return "", fmt.Errorf("status: %w", err)
	}
	result.AgentStates[agentID] = status.State

	if existing != nil {
		if !status.TranscriptAvailable || existing.TranscriptAvailable {
			return "", nil
		}
		return instrumentation.HarvestUpdated, m.backfill(ctx, existing, agentID)
	}

	if !status.State.Terminal() && !status.TranscriptAvailable {
		return "", nil
	}
	return instrumentation.HarvestCreated, m.materialize(ctx, event, agentID)
}

func (m *Manager) backfill(ctx context.Context, meeting *store.Meeting, agentID string) error {
	text := m.transcript(ctx, agentID)
	recording := m.recordingURL(ctx, agentID)
	if err := m.store.UpdateMeetingTranscript(ctx, meeting.ID, text, recording); err != nil {
		return err
	}
	m.logger.Info("meeting transcript backfilled",
		logging.AgentID(agentID), slog.Uint64("meeting_id", uint64(meeting.ID)), slog.Bool("transcript", text != ""))
	return nil
}

func (m *Manager) materialize(ctx context.Context, event *store.CalendarEvent, agentID string) error {
	action := instrumentation.NewAgentAction(instrumentation.ActionHarvest).
		WithUser(event.UserID, "").
		WithEvent(event.ID, event.MeetingLink).
		WithAgent(agentID).
		WithSpanContext(ctx)

	text := m.transcript(ctx, agentID)
	recording := m.recordingURL(ctx, agentID)

	participants, err := m.agents.Attendees(ctx, agentID)
	if err != nil {
		m.logger.Warn("attendees unavailable", logging.AgentID(agentID), logging.Err(err))
		participants = nil
	}

	platform := event.MeetingPlatform
	if platform == "" {
		platform = store.DefaultPlatform
	}
	eventID := event.ID
	meeting := &store.Meeting{
		UserID:              event.UserID,
		CalendarEventID:     &eventID,
		AgentID:             agentID,
		Title:               event.Title,
		StartTime:           event.StartTime,
		EndTime:             event.EndTime,
		Platform:            platform,
		TranscriptAvailable: text != "",
	}
	if text != "" {
		meeting.Transcript = &text
	}
	if recording != "" {
		meeting.RecordingURL = &recording
	}

	err = m.store.CreateMeeting(ctx, meeting, AttendeeInputs(participants))
	m.audit.LogAgentAction(action.Complete(err))
	if err != nil {
		return err
	}

	m.logger.Info("meeting created",
		logging.AgentID(agentID),
		logging.EventID(event.ID),
		slog.Uint64("meeting_id", uint64(meeting.ID)),
		slog.Int("attendees", len(participants)),
		slog.Bool("transcript", meeting.TranscriptAvailable))
	return nil
}

// transcript returns the agent's transcript text, or "" when unavailable.
// Download failures are logged and treated as unavailable.
func (m *Manager) transcript(ctx context.Context, agentID string) string {
	text, ok, err := m.agents.Transcript(ctx, agentID)
	if err != nil {
		m.logger.Warn("transcript unavailable", logging.AgentID(agentID), logging.Err(err))
		return ""
	}
	if !ok {
		return ""
	}
	return text
}

func (m *Manager) recordingURL(ctx context.Context, agentID string) string {
	u, ok, err := m.agents.RecordingURL(ctx, agentID)
	if err != nil {
		m.logger.Warn("recording unavailable", logging.AgentID(agentID), logging.Err(err))
		return ""
	}
	if !ok {
		return ""
	}
	return u
}

// AttendeeInputs converts reported participants to attendee identities. The
// name falls back to the email, then to UnknownAttendee.
func AttendeeInputs(participants []recall.Participant) []store.AttendeeInput {
	out := make([]store.AttendeeInput, 0, len(participants))
	for _, p := range participants {
		name := p.Name
		if name == "" {
			name = p.Email
		}
		if name == "" {
			name = UnknownAttendee
		}
		out = append(out, store.AttendeeInput{Name: name, Email: p.Email})
	}
	return out
}
