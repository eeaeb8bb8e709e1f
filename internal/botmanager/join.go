package botmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/teemow/notetaker/internal/instrumentation"
	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/store"
)

// JoinResult aggregates one ScheduleJoins run.
type JoinResult struct {
	Joined      int      `json:"joined"`
	Skipped     int      `json:"skipped"`
	Errors      []string `json:"errors"`
	LeadMinutes int      `json:"lead_minutes"`
}

// JoinDue reports whether an agent for an event starting at start should
// join now: the expected join time (start minus lead) lies within tolerance
// of now, inclusive.
func JoinDue(start, now time.Time, lead, tolerance time.Duration) bool {
	delta := start.Add(-lead).Sub(now)
	if delta < 0 {
		delta = -delta
	}
	return delta <= tolerance
}

// ScheduleJoins commands the user's agents to join meetings that are due.
// Every event with an agent, recording enabled and not yet ended is
// evaluated on each run; only the tolerance check filters by start time.
// Agents already in the meeting are skipped.
func (m *Manager) ScheduleJoins(ctx context.Context, userID uint, leadMinutes int) (*JoinResult, error) {
	now := m.now()
	result := &JoinResult{Errors: []string{}, LeadMinutes: leadMinutes}
	logger := logging.WithUser(m.logger, userID)

	events, err := m.store.JoinCandidates(ctx, userID, now)
	if err != nil {
		return result, err
	}

	lead := time.Duration(leadMinutes) * time.Minute
	for i := range events {
		event := &events[i]
		if !JoinDue(event.StartTime, now, lead, m.tolerance) {
			result.Skipped++
			continue
		}

		joined, err := m.join(ctx, event)
		switch {
		case err != nil:
			msg := fmt.Sprintf("error joining agent for event %d: %v", event.ID, err)
			result.Errors = append(result.Errors, msg)
			logger.Error("failed to join agent", logging.EventID(event.ID), logging.AgentID(event.Agent()), logging.Err(err))
		case joined:
			result.Joined++
			logger.Info("agent joining meeting", logging.EventID(event.ID), logging.AgentID(event.Agent()))
		default:
			result.Skipped++
		}
	}

	return result, nil
}

// join issues the join command unless the agent is already in the meeting.
func (m *Manager) join(ctx context.Context, event *store.CalendarEvent) (bool, error) {
	agentID := event.Agent()

	status, err := m.agents.Status(ctx, agentID)
	if err != nil {
		m.metrics.RecordAgentJoin(ctx, instrumentation.StatusError)
		return false, fmt.Errorf("status: %w", err)
	}
	if status.State.InMeeting() {
		m.logger.Debug("agent already in meeting",
			logging.AgentID(agentID), logging.Status(status.State.String()))
		m.metrics.RecordAgentJoin(ctx, instrumentation.StatusSkipped)
		return false, nil
	}

	action := instrumentation.NewAgentAction(instrumentation.ActionJoin).
		WithUser(event.UserID, "").
		WithEvent(event.ID, event.MeetingLink).
		WithAgent(agentID).
		WithSpanContext(ctx)

	err = m.agents.JoinAgent(ctx, agentID)
	m.audit.LogAgentAction(action.Complete(err))
	if err != nil {
		m.metrics.RecordAgentJoin(ctx, instrumentation.StatusError)
		return false, err
	}

	m.metrics.RecordAgentJoin(ctx, instrumentation.StatusSuccess)
	return true, nil
}
