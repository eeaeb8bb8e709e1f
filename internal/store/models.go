package store

import (
	"time"
)

// DefaultLeadMinutes is used when a user has no settings row.
const DefaultLeadMinutes = 5

// DefaultPlatform is stored on meetings whose event had no recognized platform.
const DefaultPlatform = "unknown"

// User owns calendar accounts, events and meetings.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"size:255;uniqueIndex;not null"`
	Name      string `gorm:"size:255"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Settings *UserSettings `gorm:"constraint:OnDelete:CASCADE"`
}

// UserSettings holds per-user preferences.
type UserSettings struct {
	ID                   uint `gorm:"primaryKey"`
	UserID               uint `gorm:"uniqueIndex;not null"`
	BotJoinMinutesBefore int  `gorm:"not null;default:5"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CalendarAccount is a connected external calendar with its credentials.
// Accounts are deactivated, never deleted.
type CalendarAccount struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"index;not null"`
	Provider     string `gorm:"size:32;not null;default:google"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	AccessToken  string `gorm:"type:text;not null"`
	RefreshToken string `gorm:"type:text"`
	TokenExpiry  *time.Time
	Active       bool `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CalendarEvent is the local copy of a provider event. ExternalID is unique
// per account. RecordingEnabled and AgentID are owned locally and survive
// re-synchronization.
type CalendarEvent struct {
	ID               uint      `gorm:"primaryKey"`
	UserID           uint      `gorm:"index;not null"`
	AccountID        uint      `gorm:"not null;uniqueIndex:uq_calendar_event_account_event,priority:1"`
	ExternalID       string    `gorm:"size:255;not null;index;uniqueIndex:uq_calendar_event_account_event,priority:2"`
	Title            string    `gorm:"type:text;not null"`
	Description      string    `gorm:"type:text"`
	StartTime        time.Time `gorm:"not null;index"`
	EndTime          time.Time `gorm:"not null;index"`
	Location         string    `gorm:"type:text"`
	MeetingLink      string    `gorm:"type:text"`
	MeetingPlatform  string    `gorm:"size:32"`
	RecordingEnabled bool      `gorm:"not null;default:false"`
	AgentID          *string   `gorm:"size:128;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasAgent reports whether a recording agent was created for the event.
func (e *CalendarEvent) HasAgent() bool {
	return e.AgentID != nil && *e.AgentID != ""
}

// Agent returns the agent id or "".
func (e *CalendarEvent) Agent() string {
	if e.AgentID == nil {
		return ""
	}
	return *e.AgentID
}

// Meeting is the record of a recorded meeting. There is at most one Meeting
// per agent.
type Meeting struct {
	ID                  uint   `gorm:"primaryKey"`
	UserID              uint   `gorm:"index;not null"`
	CalendarEventID     *uint  `gorm:"index"`
	AgentID             string `gorm:"size:128;uniqueIndex;not null"`
	Title               string `gorm:"type:text;not null"`
	StartTime           time.Time
	EndTime             time.Time
	Platform            string  `gorm:"size:32;not null"`
	Transcript          *string `gorm:"type:text"`
	TranscriptAvailable bool    `gorm:"not null;default:false"`
	RecordingURL        *string `gorm:"type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Attendees []Attendee `gorm:"many2many:meeting_attendees"`
}

// Attendee is a participant shared across meetings, identified by name and
// optional email.
type Attendee struct {
	ID        uint    `gorm:"primaryKey"`
	Name      string  `gorm:"size:255;not null;uniqueIndex:uq_attendee_name_email,priority:1"`
	Email     *string `gorm:"size:255;uniqueIndex:uq_attendee_name_email,priority:2"`
	CreatedAt time.Time
}

// AttendeeInput describes a participant reported for a meeting.
type AttendeeInput struct {
	Name  string
	Email string
}

func allModels() []any {
	return []any{
		&User{},
		&UserSettings{},
		&CalendarAccount{},
		&CalendarEvent{},
		&Meeting{},
		&Attendee{},
	}
}
