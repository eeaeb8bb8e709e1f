// Package calendar reads events from external calendar providers.
//
// A Provider is selected by explicit configuration (see NewProvider). The
// only implementation today is GoogleProvider, which reads the primary
// Google calendar of an account through the Calendar v3 API.
//
// Authorization failures are reported as *AuthError, which matches
// ErrReconnectRequired so callers can tell the user to reconnect the account:
//
//	events, err := provider.FetchEvents(ctx, account, calendar.DefaultWindow(time.Now()), 50)
//	if errors.Is(err, calendar.ErrReconnectRequired) {
//	    // skip the account for this cycle
//	}
package calendar
