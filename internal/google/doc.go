// Package google provides the OAuth2 configuration and token refresh used to
// reach Google APIs on behalf of connected calendar accounts.
//
// Tokens are owned by the store; this package never persists them. Refresh
// reports whether a token changed so callers can write it back.
package google
