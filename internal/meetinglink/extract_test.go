package meetinglink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		src      Source
		expected Link
	}{
		{
			name:     "hangout link",
			src:      Source{HangoutLink: "https://meet.google.com/abc-defg-hij"},
			expected: Link{Platform: PlatformMeet, URL: "https://meet.google.com/abc-defg-hij"},
		},
		{
			name: "hangout link wins over description",
			src: Source{
				HangoutLink: "https://meet.google.com/abc-defg-hij",
				Description: "Backup: https://zoom.us/j/123456789",
			},
			expected: Link{Platform: PlatformMeet, URL: "https://meet.google.com/abc-defg-hij"},
		},
		{
			name: "zoom entry point",
			src: Source{EntryPoints: []EntryPoint{
				{Type: "phone", URI: "tel:+1-555-0100"},
				{Type: "video", URI: "https://acme.zoom.us/j/987654321?pwd=xyz"},
			}},
			expected: Link{Platform: PlatformZoom, URL: "https://acme.zoom.us/j/987654321?pwd=xyz"},
		},
		{
			name: "teams entry point on web.microsoft.com",
			src: Source{EntryPoints: []EntryPoint{
				{Type: "video", URI: "https://teams.web.microsoft.com/meet/123"},
			}},
			expected: Link{Platform: PlatformTeams, URL: "https://teams.web.microsoft.com/meet/123"},
		},
		{
			name: "unknown entry point host keeps url",
			src: Source{EntryPoints: []EntryPoint{
				{Type: "video", URI: "https://webex.example.com/room/42"},
			}},
			expected: Link{Platform: PlatformNone, URL: "https://webex.example.com/room/42"},
		},
		{
			name: "entry point without uri falls through to text",
			src: Source{
				EntryPoints: []EntryPoint{{Type: "video"}},
				Location:    "meet.google.com/abc-defg-hij",
			},
			expected: Link{Platform: PlatformMeet, URL: "https://meet.google.com/abc-defg-hij"},
		},
		{
			name: "entry point wins over description",
			src: Source{
				EntryPoints: []EntryPoint{{Type: "video", URI: "https://meet.google.com/xyz-abcd-efg"}},
				Description: "https://zoom.us/j/123",
			},
			expected: Link{Platform: PlatformMeet, URL: "https://meet.google.com/xyz-abcd-efg"},
		},
		{
			name:     "zoom in description",
			src:      Source{Description: "Join Zoom Meeting https://us02web.zoom.us/j/85012345678 now"},
			expected: Link{Platform: PlatformZoom, URL: "https://us02web.zoom.us/j/85012345678"},
		},
		{
			name:     "zoom personal room",
			src:      Source{Description: "https://zoom.us/my/janedoe"},
			expected: Link{Platform: PlatformZoom, URL: "https://zoom.us/my/janedoe"},
		},
		{
			name:     "bare zoom link gets scheme",
			src:      Source{Location: "zoom.us/j/123456"},
			expected: Link{Platform: PlatformZoom, URL: "https://zoom.us/j/123456"},
		},
		{
			name:     "teams in description",
			src:      Source{Description: `<a href="https://teams.microsoft.com/l/meetup-join/19%3ameeting_abc/0">Join</a>`},
			expected: Link{Platform: PlatformTeams, URL: "https://teams.microsoft.com/l/meetup-join/19%3ameeting_abc/0"},
		},
		{
			name: "zoom wins over meet in free text",
			src: Source{
				Description: "Primary: https://meet.google.com/abc-defg-hij",
				Location:    "Fallback: https://zoom.us/j/111",
			},
			expected: Link{Platform: PlatformZoom, URL: "https://zoom.us/j/111"},
		},
		{
			name: "teams wins over meet in free text",
			src: Source{
				Description: "https://meet.google.com/abc-defg-hij or https://teams.microsoft.com/l/meetup-join/xyz",
			},
			expected: Link{Platform: PlatformTeams, URL: "https://teams.microsoft.com/l/meetup-join/xyz"},
		},
		{
			name:     "meet in location",
			src:      Source{Location: "https://meet.google.com/abc-defg-hij"},
			expected: Link{Platform: PlatformMeet, URL: "https://meet.google.com/abc-defg-hij"},
		},
		{
			name:     "text is lowercased",
			src:      Source{Description: "HTTPS://MEET.GOOGLE.COM/ABC-DEFG-HIJ"},
			expected: Link{Platform: PlatformMeet, URL: "https://meet.google.com/abc-defg-hij"},
		},
		{
			name:     "no link",
			src:      Source{Description: "Lunch at the usual place", Location: "Cafeteria"},
			expected: Link{},
		},
		{
			name:     "empty source",
			src:      Source{},
			expected: Link{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.src)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.expected.URL != "", got.Found())
		})
	}
}

func TestClassifyURL(t *testing.T) {
	tests := []struct {
		uri      string
		expected Platform
	}{
		{"https://meet.google.com/abc-defg-hij", PlatformMeet},
		{"https://ZOOM.US/j/1", PlatformZoom},
		{"https://teams.microsoft.com/l/meetup-join/1", PlatformTeams},
		{"https://teams.web.microsoft.com/meet/1", PlatformTeams},
		{"https://example.com", PlatformNone},
		{"", PlatformNone},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyURL(tt.uri))
		})
	}
}

func TestPlatformString(t *testing.T) {
	assert.Equal(t, "unknown", PlatformNone.String())
	assert.Equal(t, "zoom", PlatformZoom.String())
}
