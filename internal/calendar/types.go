package calendar

import (
	"errors"
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/notetaker/internal/meetinglink"
)

// DefaultWindowLength is how far ahead a sync looks by default.
const DefaultWindowLength = 30 * 24 * time.Hour

// DefaultMaxResults caps the number of events fetched per account.
const DefaultMaxResults = 50

// ErrReconnectRequired matches authorization failures that need the user to
// reconnect the calendar account.
var ErrReconnectRequired = errors.New("reconnect account")

// Account carries the credential material of one connected calendar.
type Account struct {
	ID           uint
	Email        string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow returns the window from now to DefaultWindowLength ahead.
func DefaultWindow(now time.Time) Window {
	return Window{Start: now, End: now.Add(DefaultWindowLength)}
}

// AuthError is an authorization or permission failure reported by a provider.
type AuthError struct {
	StatusCode int
	Account    string
	Err        error
}

func (e *AuthError) Error() string {
	var reason string
	switch e.StatusCode {
	case 401:
		reason = "credentials are invalid or expired"
	case 403:
		reason = "calendar access denied, check granted scopes"
	case 404:
		reason = "primary calendar not found"
	default:
		reason = "credentials could not be refreshed"
	}
	msg := fmt.Sprintf("authentication failed for %s: %s; please reconnect the account", e.Account, reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is makes every AuthError match ErrReconnectRequired.
func (e *AuthError) Is(target error) bool {
	return target == ErrReconnectRequired
}

// Event is one calendar occurrence as reported by a provider.
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Status      string
	Start       time.Time
	End         time.Time
	AllDay      bool
	HangoutLink string
	EntryPoints []meetinglink.EntryPoint
	Attendees   []AttendeeInfo

	// RawStart and RawEnd keep the provider's time strings. TimeErr is set
	// when one of them could not be parsed.
	RawStart string
	RawEnd   string
	TimeErr  error
}

// AttendeeInfo represents information about an event attendee
type AttendeeInfo struct {
	Email          string
	DisplayName    string
	ResponseStatus string // "needsAction", "declined", "tentative", "accepted"
	Organizer      bool
}

// HasTimes reports whether both start and end were provided.
func (e Event) HasTimes() bool {
	return e.RawStart != "" && e.RawEnd != ""
}

// LinkSource returns the fields meeting-link detection looks at.
func (e Event) LinkSource() meetinglink.Source {
	return meetinglink.Source{
		HangoutLink: e.HangoutLink,
		EntryPoints: e.EntryPoints,
		Description: e.Description,
		Location:    e.Location,
	}
}

// naive layouts accepted when a provider omits the UTC offset.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTime parses an RFC3339 timestamp, a timestamp without offset (taken
// as UTC) or an all-day date (midnight UTC).
func ParseTime(value string) (t time.Time, allDay bool, err error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, false, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, false, nil
		}
	}
	if t, err := time.ParseInLocation(time.DateOnly, value, time.UTC); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("unparseable time %q", value)
}

// toEvent converts a Google Calendar event to an Event
func toEvent(event *calendar.Event) Event {
	if event == nil {
		return Event{}
	}

	e := Event{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Status:      event.Status,
		HangoutLink: event.HangoutLink,
	}

	e.RawStart = eventDateTime(event.Start)
	e.RawEnd = eventDateTime(event.End)
	if e.HasTimes() {
		var startErr, endErr error
		e.Start, e.AllDay, startErr = ParseTime(e.RawStart)
		e.End, _, endErr = ParseTime(e.RawEnd)
		e.TimeErr = errors.Join(startErr, endErr)
	}

	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep == nil {
				continue
			}
			e.EntryPoints = append(e.EntryPoints, meetinglink.EntryPoint{
				Type: ep.EntryPointType,
				URI:  ep.Uri,
			})
		}
	}

	for _, att := range event.Attendees {
		if att == nil {
			continue
		}
		e.Attendees = append(e.Attendees, AttendeeInfo{
			Email:          att.Email,
			DisplayName:    att.DisplayName,
			ResponseStatus: att.ResponseStatus,
			Organizer:      att.Organizer,
		})
	}

	return e
}

func eventDateTime(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.DateTime != "" {
		return dt.DateTime
	}
	return dt.Date
}
