package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/notetaker/internal/meetinglink"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    time.Time
		allDay  bool
		wantErr bool
	}{
		{
			name:  "utc",
			value: "2024-05-01T10:00:00Z",
			want:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "offset",
			value: "2024-05-01T12:00:00+02:00",
			want:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:  "fractional seconds",
			value: "2024-05-01T10:00:00.250Z",
			want:  time.Date(2024, 5, 1, 10, 0, 0, 250_000_000, time.UTC),
		},
		{
			name:  "no offset taken as utc",
			value: "2024-05-01T10:00:00",
			want:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "all day",
			value:  "2024-05-01",
			want:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			allDay: true,
		},
		{
			name:    "garbage",
			value:   "tomorrow",
			wantErr: true,
		},
		{
			name:    "empty",
			value:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, allDay, err := ParseTime(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, tt.allDay, allDay)
		})
	}
}

func TestToEvent(t *testing.T) {
	ev := toEvent(&calendar.Event{
		Id:          "ev1",
		Summary:     "Planning",
		Description: "join https://zoom.us/j/123",
		Location:    "Room 1",
		Status:      "confirmed",
		Start:       &calendar.EventDateTime{DateTime: "2024-05-01T10:00:00Z"},
		End:         &calendar.EventDateTime{DateTime: "2024-05-01T11:00:00Z"},
		ConferenceData: &calendar.ConferenceData{
			EntryPoints: []*calendar.EntryPoint{
				{EntryPointType: "phone", Uri: "tel:+1"},
				nil,
				{EntryPointType: "video", Uri: "https://teams.microsoft.com/l/meetup-join/x"},
			},
		},
		Attendees: []*calendar.EventAttendee{
			{Email: "bob@example.com", DisplayName: "Bob", ResponseStatus: "accepted", Organizer: true},
			nil,
		},
	})

	assert.Equal(t, "ev1", ev.ID)
	assert.True(t, ev.HasTimes())
	assert.NoError(t, ev.TimeErr)
	assert.False(t, ev.AllDay)
	assert.Equal(t, time.Hour, ev.End.Sub(ev.Start))
	assert.Len(t, ev.EntryPoints, 2)
	require.Len(t, ev.Attendees, 1)
	assert.True(t, ev.Attendees[0].Organizer)

	link := meetinglink.Extract(ev.LinkSource())
	assert.Equal(t, meetinglink.PlatformTeams, link.Platform)
}

func TestToEvent_Times(t *testing.T) {
	tests := []struct {
		name     string
		start    *calendar.EventDateTime
		end      *calendar.EventDateTime
		hasTimes bool
		allDay   bool
		timeErr  bool
	}{
		{
			name:     "all day",
			start:    &calendar.EventDateTime{Date: "2024-05-01"},
			end:      &calendar.EventDateTime{Date: "2024-05-02"},
			hasTimes: true,
			allDay:   true,
		},
		{
			name:  "missing end",
			start: &calendar.EventDateTime{DateTime: "2024-05-01T10:00:00Z"},
		},
		{
			name: "missing both",
		},
		{
			name:     "unparseable",
			start:    &calendar.EventDateTime{DateTime: "soon"},
			end:      &calendar.EventDateTime{DateTime: "2024-05-01T11:00:00Z"},
			hasTimes: true,
			timeErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := toEvent(&calendar.Event{Id: "x", Start: tt.start, End: tt.end})
			assert.Equal(t, tt.hasTimes, ev.HasTimes())
			assert.Equal(t, tt.allDay, ev.AllDay)
			assert.Equal(t, tt.timeErr, ev.TimeErr != nil)
		})
	}
}

func TestToEvent_Nil(t *testing.T) {
	assert.Equal(t, Event{}, toEvent(nil))
}

func TestAuthError(t *testing.T) {
	inner := errors.New("boom")
	err := error(&AuthError{StatusCode: 401, Account: "a@example.com", Err: inner})

	assert.True(t, errors.Is(err, ErrReconnectRequired))
	assert.True(t, errors.Is(err, inner))
	assert.Contains(t, err.Error(), "a@example.com")
	assert.Contains(t, err.Error(), "please reconnect")

	bare := &AuthError{Account: "a@example.com"}
	assert.Contains(t, bare.Error(), "could not be refreshed")
}

func TestDefaultWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	w := DefaultWindow(now)
	assert.Equal(t, now, w.Start)
	assert.Equal(t, now.AddDate(0, 0, 30), w.End)
}
