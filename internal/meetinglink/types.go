package meetinglink

// Platform identifies a video-conferencing product.
type Platform string

const (
	PlatformNone  Platform = ""
	PlatformMeet  Platform = "meet"
	PlatformZoom  Platform = "zoom"
	PlatformTeams Platform = "teams"
)

// String returns the platform tag, or "unknown" when no platform was detected.
func (p Platform) String() string {
	if p == PlatformNone {
		return "unknown"
	}
	return string(p)
}

// EntryPoint is one structured way of joining a conference.
type EntryPoint struct {
	// Type is the entry point type, e.g. "video", "phone", "more"
	Type string
	URI  string
}

// Source holds the parts of a calendar event that may carry a meeting link.
type Source struct {
	// HangoutLink is the calendar provider's native conferencing link
	HangoutLink string
	EntryPoints []EntryPoint
	Description string
	Location    string
}

// Link is the result of an extraction. A Link may carry a URL without a
// platform when the URL came from structured conference data on an
// unrecognized host.
type Link struct {
	Platform Platform
	URL      string
}

// Found reports whether a URL was detected.
func (l Link) Found() bool {
	return l.URL != ""
}
