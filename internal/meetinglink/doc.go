// Package meetinglink detects the video-conferencing link of a calendar event.
//
// Detection looks at three places, in order of authority:
//
//  1. The provider's native conferencing field (Google's hangout link).
//  2. Structured conference entry points of type "video".
//  3. Free text in the description and location, scanned for Zoom, then
//     Microsoft Teams, then Google Meet URLs.
//
// The first source that yields a link wins. Extraction is a pure function
// and never performs network calls.
//
// Example usage:
//
//	link := meetinglink.Extract(meetinglink.Source{
//	    Description: "Join at https://zoom.us/j/123456789",
//	})
//	if link.Found() {
//	    fmt.Println(link.Platform, link.URL) // zoom https://zoom.us/j/123456789
//	}
package meetinglink
