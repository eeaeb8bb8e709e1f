package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2"

	"github.com/teemow/notetaker/internal/google"
	"github.com/teemow/notetaker/internal/instrumentation"
)

// Provider names accepted by NewProvider.
const (
	ProviderGoogle = "google"
)

// Provider is a source of calendar events.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// RefreshCredentials returns a usable token for the account. ok is false
	// when the account cannot be authorized and must be reconnected.
	RefreshCredentials(ctx context.Context, account Account) (token *oauth2.Token, ok bool)

	// FetchEvents returns the account's events in window, at most maxResults.
	// Authorization failures are returned as *AuthError.
	FetchEvents(ctx context.Context, account Account, window Window, maxResults int) ([]Event, error)
}

// ProviderConfig holds what any provider implementation may need.
type ProviderConfig struct {
	Google  google.Config
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// NewProvider returns the implementation registered under name.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderGoogle, "":
		return NewGoogleProvider(google.OAuthConfig(cfg.Google),
			WithMetrics(cfg.Metrics),
			WithLogger(cfg.Logger),
		), nil
	default:
		return nil, fmt.Errorf("unsupported calendar provider %q", name)
	}
}
