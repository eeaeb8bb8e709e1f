package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// MeetingByAgent returns the meeting recorded by agentID.
func (s *Store) MeetingByAgent(ctx context.Context, agentID string) (*Meeting, error) {
	var m Meeting
	if err := s.db.WithContext(ctx).Where("agent_id = ?", agentID).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// GetMeeting returns a meeting of userID with its attendees.
func (s *Store) GetMeeting(ctx context.Context, userID, id uint) (*Meeting, error) {
	var m Meeting
	err := s.db.WithContext(ctx).
		Preload("Attendees").
		Where("id = ? AND user_id = ?", id, userID).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// ListMeetings returns the user's meetings that ended before now, most
// recent first, with attendees.
func (s *Store) ListMeetings(ctx context.Context, userID uint, now time.Time, limit, offset int) ([]Meeting, error) {
	var meetings []Meeting
	q := s.db.WithContext(ctx).
		Preload("Attendees").
		Where("user_id = ? AND end_time < ?", userID, now.UTC()).
		Order("start_time DESC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&meetings).Error; err != nil {
		return nil, fmt.Errorf("failed to list meetings for user %d: %w", userID, err)
	}
	return meetings, nil
}

// CreateMeeting inserts m and links its attendees in one transaction.
// Attendees are reused when one with the same name and email (or the same
// name and no email) already exists.
func (s *Store) CreateMeeting(ctx context.Context, m *Meeting, attendees []AttendeeInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m.Attendees = nil
		m.StartTime = m.StartTime.UTC()
		m.EndTime = m.EndTime.UTC()
		if err := tx.Create(m).Error; err != nil {
			return fmt.Errorf("failed to create meeting for agent %s: %w", m.AgentID, err)
		}

		linked := make([]Attendee, 0, len(attendees))
		seen := make(map[uint]bool, len(attendees))
		for _, in := range attendees {
			a, err := findOrCreateAttendee(tx, in)
			if err != nil {
				return err
			}
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			linked = append(linked, *a)
		}

		if len(linked) == 0 {
			return nil
		}
		if err := tx.Model(m).Association("Attendees").Append(linked); err != nil {
			return fmt.Errorf("failed to link attendees of meeting %d: %w", m.ID, err)
		}
		return nil
	})
}

func findOrCreateAttendee(tx *gorm.DB, in AttendeeInput) (*Attendee, error) {
	var a Attendee
	q := tx.Where("name = ?", in.Name)
	if in.Email != "" {
		q = q.Where("email = ?", in.Email)
	} else {
		q = q.Where("email IS NULL")
	}

	err := q.First(&a).Error
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up attendee %q: %w", in.Name, err)
	}

	a = Attendee{Name: in.Name}
	if in.Email != "" {
		email := in.Email
		a.Email = &email
	}
	if err := tx.Create(&a).Error; err != nil {
		return nil, fmt.Errorf("failed to create attendee %q: %w", in.Name, err)
	}
	return &a, nil
}

// UpdateMeetingTranscript stores a transcript that became available after
// the meeting was created. Empty values leave the stored ones untouched.
func (s *Store) UpdateMeetingTranscript(ctx context.Context, meetingID uint, transcript, recordingURL string) error {
	updates := map[string]any{"updated_at": time.Now()}
	if transcript != "" {
		updates["transcript"] = transcript
		updates["transcript_available"] = true
	}
	if recordingURL != "" {
		updates["recording_url"] = recordingURL
	}

	res := s.db.WithContext(ctx).Model(&Meeting{}).Where("id = ?", meetingID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update meeting %d: %w", meetingID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
