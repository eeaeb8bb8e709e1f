package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNotConfigured is returned when the OAuth client credentials are missing.
var ErrNotConfigured = errors.New("google oauth client is not configured")

// ErrNoRefreshToken is returned when an expired token cannot be refreshed.
var ErrNoRefreshToken = errors.New("token expired and no refresh token is stored")

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Configured reports whether client id and secret are set.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// OAuthConfig returns the OAuth2 configuration for Google calendar access.
func OAuthConfig(cfg Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       DefaultOAuthScopes,
	}
}

// Token builds an oauth2.Token from stored credential material.
func Token(accessToken, refreshToken string, expiry time.Time) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		RefreshToken: refreshToken,
		Expiry:       expiry,
	}
}

// Refresh returns a usable token. A still-valid token is returned as is with
// refreshed=false; an expired one is exchanged using its refresh token.
func Refresh(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) (fresh *oauth2.Token, refreshed bool, err error) {
	if conf == nil || conf.ClientID == "" || conf.ClientSecret == "" {
		return nil, false, ErrNotConfigured
	}
	if token == nil || token.AccessToken == "" {
		return nil, false, errors.New("no access token stored")
	}
	if token.Valid() {
		return token, false, nil
	}
	if token.RefreshToken == "" {
		return nil, false, ErrNoRefreshToken
	}

	fresh, err = conf.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, false, fmt.Errorf("failed to refresh token: %w", err)
	}
	return fresh, fresh.AccessToken != token.AccessToken, nil
}

// HTTPClient returns an HTTP client authorized with token that refreshes it
// transparently. The client is configured to use HTTP/1.1 to avoid HTTP/2
// protocol errors.
func HTTPClient(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) *http.Client {
	client := conf.Client(ctx, token)

	// Force HTTP/1.1 by disabling HTTP/2
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}

	return client
}
