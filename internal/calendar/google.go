package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/notetaker/internal/google"
	"github.com/teemow/notetaker/internal/instrumentation"
	"github.com/teemow/notetaker/internal/logging"
)

const primaryCalendar = "primary"

// GoogleProvider reads the primary Google calendar of an account.
type GoogleProvider struct {
	oauth    *oauth2.Config
	endpoint string
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithEndpoint overrides the Calendar API base URL.
func WithEndpoint(endpoint string) GoogleOption {
	return func(p *GoogleProvider) {
		p.endpoint = endpoint
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) GoogleOption {
	return func(p *GoogleProvider) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GoogleOption {
	return func(p *GoogleProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewGoogleProvider creates a GoogleProvider using conf for authorization.
func NewGoogleProvider(conf *oauth2.Config, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		oauth:   conf,
		metrics: &instrumentation.Metrics{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(logging.Provider(instrumentation.ProviderGoogleCalendar))
	return p
}

// Name implements Provider.
func (p *GoogleProvider) Name() string {
	return ProviderGoogle
}

// RefreshCredentials implements Provider.
func (p *GoogleProvider) RefreshCredentials(ctx context.Context, account Account) (*oauth2.Token, bool) {
	logger := p.logger.With(logging.AccountID(account.ID), logging.UserHash(account.Email))

	token, refreshed, err := google.Refresh(ctx, p.oauth, google.Token(account.AccessToken, account.RefreshToken, account.Expiry))
	if err != nil {
		p.metrics.RecordTokenRefresh(ctx, instrumentation.ProviderGoogleCalendar, instrumentation.StatusError)
		logger.Warn("credential refresh failed", logging.Err(err))
		return nil, false
	}

	if refreshed {
		p.metrics.RecordTokenRefresh(ctx, instrumentation.ProviderGoogleCalendar, instrumentation.StatusSuccess)
		logger.Info("credentials refreshed", slog.String("token", logging.SanitizeToken(token.AccessToken)))
	}
	return token, true
}

// FetchEvents implements Provider. Recurring events are expanded into single
// occurrences. Ordering by start time is requested and dropped again when
// the API rejects it.
func (p *GoogleProvider) FetchEvents(ctx context.Context, account Account, window Window, maxResults int) (events []Event, err error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	ctx, span := instrumentation.StartProviderSpan(ctx, instrumentation.ProviderGoogleCalendar, instrumentation.OperationList,
		instrumentation.NewSpanAttributeBuilder().Build()...)
	start := time.Now()
	defer func() {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		p.metrics.RecordProviderOperation(ctx, instrumentation.ProviderGoogleCalendar, instrumentation.OperationList, status, time.Since(start))
		instrumentation.EndSpan(span, err)
	}()

	token, ok := p.RefreshCredentials(ctx, account)
	if !ok {
		return nil, &AuthError{Account: account.Email}
	}

	svc, err := p.service(ctx, token)
	if err != nil {
		return nil, err
	}

	timeMin := window.Start.UTC().Format(time.RFC3339)
	timeMax := window.End.UTC().Format(time.RFC3339)

	list := func(ordered bool, pageToken string, limit int) (*calendar.Events, error) {
		call := svc.Events.List(primaryCalendar).
			Context(ctx).
			TimeMin(timeMin).
			TimeMax(timeMax).
			MaxResults(int64(limit)).
			SingleEvents(true)
		if ordered {
			call = call.OrderBy("startTime")
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		return call.Do()
	}

	ordered := true
	page, err := list(ordered, "", maxResults)
	if isOrderByRejected(err) {
		p.logger.Warn("retrying event list without ordering", logging.AccountID(account.ID))
		ordered = false
		page, err = list(ordered, "", maxResults)
	}
	if err != nil {
		return nil, classifyError(account, err)
	}

	for {
		for _, item := range page.Items {
			events = append(events, toEvent(item))
		}
		if page.NextPageToken == "" || len(events) >= maxResults {
			break
		}
		page, err = list(ordered, page.NextPageToken, maxResults-len(events))
		if err != nil {
			return nil, classifyError(account, err)
		}
	}

	if len(events) > maxResults {
		events = events[:maxResults]
	}

	p.logger.Debug("fetched calendar events",
		logging.AccountID(account.ID),
		slog.Int("count", len(events)),
		slog.String("time_min", timeMin),
		slog.String("time_max", timeMax))

	return events, nil
}

func (p *GoogleProvider) service(ctx context.Context, token *oauth2.Token) (*calendar.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(google.HTTPClient(ctx, p.oauth, token))}
	if p.endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return svc, nil
}

func isOrderByRejected(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Error(), "orderBy")
}

// classifyError maps authorization failures to *AuthError.
func classifyError(account Account, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return &AuthError{StatusCode: apiErr.Code, Account: account.Email, Err: err}
		}
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &AuthError{Account: account.Email, Err: err}
	}
	return fmt.Errorf("failed to list events for %s: %w", account.Email, err)
}
