package meetinglink

import (
	"regexp"
	"strings"
)

const entryPointVideo = "video"

// Patterns are matched against lowercased text. Within a platform the first
// matching pattern wins.
var (
	zoomPatterns = []*regexp.Regexp{
		regexp.MustCompile(`https?://(?:[a-z0-9-]+\.)?zoom\.us/j/(\d+)`),
		regexp.MustCompile(`https?://(?:[a-z0-9-]+\.)?zoom\.us/my/([a-z0-9]+)`),
		regexp.MustCompile(`zoom\.us/j/(\d+)`),
		regexp.MustCompile(`zoom\.us/my/([a-z0-9]+)`),
	}

	teamsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`https?://teams\.microsoft\.com/l/meetup-join/[^\s<>"')]+`),
		regexp.MustCompile(`https?://[a-z0-9-]+\.web\.microsoft\.com/meet/[^\s<>"')]+`),
	}

	meetPatterns = []*regexp.Regexp{
		regexp.MustCompile(`https?://meet\.google\.com/[a-z]+-[a-z]+-[a-z]+`),
		regexp.MustCompile(`meet\.google\.com/[a-z]+-[a-z]+-[a-z]+`),
	}
)

// Extract returns the meeting link of an event, or an empty Link when none
// of the sources carries one.
func Extract(src Source) Link {
	if src.HangoutLink != "" {
		return Link{Platform: PlatformMeet, URL: src.HangoutLink}
	}

	for _, ep := range src.EntryPoints {
		if ep.Type != entryPointVideo || ep.URI == "" {
			continue
		}
		return Link{Platform: ClassifyURL(ep.URI), URL: ep.URI}
	}

	return DetectInText(src.Description, src.Location)
}

// ClassifyURL maps a conference URL to its platform by hostname substring.
// Unrecognized URLs yield PlatformNone.
func ClassifyURL(uri string) Platform {
	lower := strings.ToLower(uri)
	switch {
	case strings.Contains(lower, "meet.google.com"):
		return PlatformMeet
	case strings.Contains(lower, "zoom.us"):
		return PlatformZoom
	case strings.Contains(lower, "teams.microsoft.com"), strings.Contains(lower, "web.microsoft.com"):
		return PlatformTeams
	default:
		return PlatformNone
	}
}

// DetectInText scans free text for a meeting URL. Zoom is tried first, then
// Teams, then Meet, so that the platform order decides ties when several
// links are present.
func DetectInText(description, location string) Link {
	text := strings.ToLower(description + " " + location)

	for _, re := range zoomPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if strings.HasPrefix(m[0], "http") {
			return Link{Platform: PlatformZoom, URL: m[0]}
		}
		return Link{Platform: PlatformZoom, URL: "https://zoom.us/j/" + m[1]}
	}

	for _, re := range teamsPatterns {
		if m := re.FindString(text); m != "" {
			return Link{Platform: PlatformTeams, URL: m}
		}
	}

	for _, re := range meetPatterns {
		m := re.FindString(text)
		if m == "" {
			continue
		}
		if strings.HasPrefix(m, "http") {
			return Link{Platform: PlatformMeet, URL: m}
		}
		return Link{Platform: PlatformMeet, URL: "https://" + m}
	}

	return Link{}
}
