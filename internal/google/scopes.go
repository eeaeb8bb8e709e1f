package google

import (
	calendar "google.golang.org/api/calendar/v3"
)

// DefaultOAuthScopes are the scopes requested when a calendar account is
// connected.
//
// The scopes provide access to:
//   - OpenID identity and the account email
//   - Google Calendar: read-only
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Google Calendar scope
	calendar.CalendarReadonlyScope,
}
