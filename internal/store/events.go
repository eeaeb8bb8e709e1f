package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FindEvent returns the event with the given external id on an account.
func (s *Store) FindEvent(ctx context.Context, accountID uint, externalID string) (*CalendarEvent, error) {
	var e CalendarEvent
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND external_id = ?", accountID, externalID).
		First(&e).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// GetEvent returns the event with id.
func (s *Store) GetEvent(ctx context.Context, id uint) (*CalendarEvent, error) {
	var e CalendarEvent
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// UpsertEvent inserts e or, when an event with the same account and external
// id exists, overwrites its provider-sourced fields. RecordingEnabled and
// AgentID of an existing row are preserved. On return e reflects the stored
// row.
func (s *Store) UpsertEvent(ctx context.Context, e *CalendarEvent) (created bool, err error) {
	e.StartTime = e.StartTime.UTC()
	e.EndTime = e.EndTime.UTC()

	existing, err := s.FindEvent(ctx, e.AccountID, e.ExternalID)
	switch {
	case errors.Is(err, ErrNotFound):
		if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
			return false, fmt.Errorf("failed to create event %s: %w", e.ExternalID, err)
		}
		return true, nil
	case err != nil:
		return false, err
	}

	updates := map[string]any{
		"user_id":          e.UserID,
		"title":            e.Title,
		"description":      e.Description,
		"start_time":       e.StartTime,
		"end_time":         e.EndTime,
		"location":         e.Location,
		"meeting_link":     e.MeetingLink,
		"meeting_platform": e.MeetingPlatform,
		"updated_at":       time.Now(),
	}
	if err := s.db.WithContext(ctx).Model(existing).Updates(updates).Error; err != nil {
		return false, fmt.Errorf("failed to update event %s: %w", e.ExternalID, err)
	}

	e.ID = existing.ID
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = existing.UpdatedAt
	e.RecordingEnabled = existing.RecordingEnabled
	e.AgentID = existing.AgentID
	return false, nil
}

// SetEventAgent records the agent created for an event.
func (s *Store) SetEventAgent(ctx context.Context, eventID uint, agentID string) error {
	res := s.db.WithContext(ctx).Model(&CalendarEvent{}).Where("id = ?", eventID).
		Updates(map[string]any{"agent_id": agentID, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to set agent of event %d: %w", eventID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRecordingEnabled toggles recording for an event owned by userID and
// returns the updated event.
func (s *Store) SetRecordingEnabled(ctx context.Context, userID, eventID uint, enabled bool) (*CalendarEvent, error) {
	res := s.db.WithContext(ctx).Model(&CalendarEvent{}).
		Where("id = ? AND user_id = ?", eventID, userID).
		Updates(map[string]any{"recording_enabled": enabled, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update event %d: %w", eventID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetEvent(ctx, eventID)
}

// UpcomingEvents returns the user's events that have not ended by now and
// start before until, ordered by start time.
func (s *Store) UpcomingEvents(ctx context.Context, userID uint, now, until time.Time, limit int) ([]CalendarEvent, error) {
	var events []CalendarEvent
	q := s.db.WithContext(ctx).
		Where("user_id = ? AND end_time > ? AND start_time <= ?", userID, now.UTC(), until.UTC()).
		Order("start_time")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events for user %d: %w", userID, err)
	}
	return events, nil
}

// JoinCandidates returns the user's events that have an agent, have
// recording enabled and have not ended by now.
func (s *Store) JoinCandidates(ctx context.Context, userID uint, now time.Time) ([]CalendarEvent, error) {
	var events []CalendarEvent
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND agent_id IS NOT NULL AND agent_id <> '' AND recording_enabled = ? AND end_time > ?", userID, true, now.UTC()).
		Order("start_time").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list join candidates for user %d: %w", userID, err)
	}
	return events, nil
}

// HarvestCandidates returns the user's events that have an agent and ended
// before now.
func (s *Store) HarvestCandidates(ctx context.Context, userID uint, now time.Time) ([]CalendarEvent, error) {
	var events []CalendarEvent
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND agent_id IS NOT NULL AND agent_id <> '' AND end_time < ?", userID, now.UTC()).
		Order("end_time").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list harvest candidates for user %d: %w", userID, err)
	}
	return events, nil
}
