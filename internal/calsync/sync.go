package calsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/notetaker/internal/botmanager"
	"github.com/teemow/notetaker/internal/calendar"
	"github.com/teemow/notetaker/internal/instrumentation"
	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/meetinglink"
	"github.com/teemow/notetaker/internal/store"
)

// DefaultTitle is stored for events without a summary.
const DefaultTitle = "Untitled Event"

// ErrNoActiveAccounts is returned when the user has no calendar to sync.
var ErrNoActiveAccounts = errors.New("no active calendar accounts found; connect a calendar account first")

// Store is the persistence the synchronizer needs.
type Store interface {
	ActiveAccounts(ctx context.Context, userID uint) ([]store.CalendarAccount, error)
	UpdateAccountToken(ctx context.Context, accountID uint, accessToken, refreshToken string, expiry time.Time) error
	Tx(ctx context.Context, fn func(tx *store.Store) error) error
}

// AgentCreator creates recording agents for synced events.
type AgentCreator interface {
	Create(ctx context.Context, event *store.CalendarEvent, leadMinutes int) botmanager.CreateOutcome
}

// Options controls one Sync run.
type Options struct {
	// CreateBots requests agent creation for eligible events.
	CreateBots bool
	// LeadMinutes is how long before the start an agent should join.
	LeadMinutes int
}

// BotCreation records an agent created during a sync.
type BotCreation struct {
	EventID uint   `json:"event_id"`
	AgentID string `json:"agent_id"`
}

// EventSummary describes one synced event.
type EventSummary struct {
	ID               uint      `json:"id"`
	AccountID        uint      `json:"account_id"`
	ExternalID       string    `json:"external_id"`
	Title            string    `json:"title"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Location         string    `json:"location,omitempty"`
	MeetingLink      string    `json:"meeting_link,omitempty"`
	MeetingPlatform  string    `json:"meeting_platform,omitempty"`
	RecordingEnabled bool      `json:"recording_enabled"`
	AgentID          string    `json:"agent_id,omitempty"`
}

// Result aggregates a Sync run over all accounts of a user.
type Result struct {
	Synced      int            `json:"synced"`
	Created     int            `json:"created"`
	Updated     int            `json:"updated"`
	Errors      []string       `json:"errors"`
	CreateBots  bool           `json:"create_bots"`
	LeadMinutes int            `json:"lead_minutes"`
	BotsCreated []BotCreation  `json:"bots_created"`
	Events      []EventSummary `json:"events"`
}

// Synchronizer copies calendar events into the store.
type Synchronizer struct {
	store      Store
	provider   calendar.Provider
	creator    AgentCreator
	now        func() time.Time
	window     time.Duration
	maxResults int
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWindow sets how far ahead events are fetched.
func WithWindow(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithMaxResults caps the events fetched per account.
func WithMaxResults(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Synchronizer) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Synchronizer. creator may be nil when agents are never
// created during sync.
func New(st Store, provider calendar.Provider, creator AgentCreator, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:      st,
		provider:   provider,
		creator:    creator,
		now:        time.Now,
		window:     calendar.DefaultWindowLength,
		maxResults: calendar.DefaultMaxResults,
		metrics:    &instrumentation.Metrics{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync synchronizes every active calendar account of a user. Accounts are
// isolated: a failing account is recorded in Result.Errors and the others
// still sync. The only error returned is ErrNoActiveAccounts or a failure
// to list the accounts; the Result is non-nil in both cases.
func (s *Synchronizer) Sync(ctx context.Context, userID uint, opts Options) (*Result, error) {
	result := &Result{
		Errors:      []string{},
		CreateBots:  opts.CreateBots,
		LeadMinutes: opts.LeadMinutes,
		BotsCreated: []BotCreation{},
		Events:      []EventSummary{},
	}
	logger := logging.WithOperation(logging.WithUser(s.logger, userID), "calendar_sync")

	ctx, span := instrumentation.StartSpan(ctx, "calendar.sync",
		instrumentation.NewSpanAttributeBuilder().WithUser(userID).Build()...)
	defer span.End()

	accounts, err := s.store.ActiveAccounts(ctx, userID)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}
	if len(accounts) == 0 {
		logger.Warn("no active calendar accounts")
		result.Errors = append(result.Errors, ErrNoActiveAccounts.Error())
		return result, ErrNoActiveAccounts
	}

	now := s.now()
	window := calendar.Window{Start: now, End: now.Add(s.window)}
	for i := range accounts {
		s.syncAccount(ctx, logger, &accounts[i], window, opts, result)
	}

	s.metrics.RecordEventsSynced(ctx, instrumentation.HarvestCreated, result.Created)
	s.metrics.RecordEventsSynced(ctx, instrumentation.HarvestUpdated, result.Updated)

	logger.Info("calendar sync completed",
		slog.Int("accounts", len(accounts)),
		slog.Int("synced", result.Synced),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("bots_created", len(result.BotsCreated)),
		slog.Int("errors", len(result.Errors)))
	instrumentation.SetSpanSuccess(span)
	return result, nil
}

// accountResult holds what one account contributes once its transaction
// committed.
type accountResult struct {
	synced, created, updated int
	errors                   []string
	events                   []*store.CalendarEvent
}

func (s *Synchronizer) syncAccount(ctx context.Context, logger *slog.Logger, acct *store.CalendarAccount, window calendar.Window, opts Options, result *Result) {
	logger = logger.With(logging.AccountID(acct.ID), logging.UserHash(acct.Email))

	account := calendar.Account{
		ID:           acct.ID,
		Email:        acct.Email,
		AccessToken:  acct.AccessToken,
		RefreshToken: acct.RefreshToken,
	}
	if acct.TokenExpiry != nil {
		account.Expiry = *acct.TokenExpiry
	}

	token, ok := s.provider.RefreshCredentials(ctx, account)
	if !ok {
		err := &calendar.AuthError{Account: acct.Email}
		result.Errors = append(result.Errors, err.Error())
		logger.Warn("skipping account with unusable credentials")
		return
	}
	s.persistToken(ctx, logger, acct, &account, token)

	events, err := s.provider.FetchEvents(ctx, account, window, s.maxResults)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to fetch events from %s: %v", acct.Email, err))
		logger.Error("failed to fetch events", logging.Err(err),
			slog.Bool("reconnect_required", errors.Is(err, calendar.ErrReconnectRequired)))
		return
	}
	if len(events) == 0 {
		logger.Info("no events in sync window")
		return
	}

	var ar accountResult
	err = s.store.Tx(ctx, func(tx *store.Store) error {
		ar = accountResult{}
		for _, ev := range events {
			err := tx.Tx(ctx, func(sp *store.Store) error {
				return s.upsert(ctx, sp, logger, acct, ev, &ar)
			})
			if err != nil {
				ar.errors = append(ar.errors, fmt.Sprintf("error processing event %s: %v", ev.ID, err))
				logger.Warn("skipping event that could not be stored", logging.EventID(ev.ID), logging.Err(err))
			}
		}
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("error syncing account %s: %v", acct.Email, err))
		logger.Error("account sync rolled back", logging.Err(err))
		return
	}

	result.Synced += ar.synced
	result.Created += ar.created
	result.Updated += ar.updated
	result.Errors = append(result.Errors, ar.errors...)

	for _, ev := range ar.events {
		if opts.CreateBots && s.creator != nil && ev.MeetingLink != "" && ev.RecordingEnabled && !ev.HasAgent() {
			s.createAgent(ctx, logger, ev, opts.LeadMinutes, result)
		}
		result.Events = append(result.Events, summarize(ev))
	}

	logger.Info("account synced", slog.Int("events", ar.synced))
}

// persistToken stores a refreshed access token and switches account to it.
// A failure to persist is logged; the fresh token is still used.
func (s *Synchronizer) persistToken(ctx context.Context, logger *slog.Logger, acct *store.CalendarAccount, account *calendar.Account, token *oauth2.Token) {
	if token == nil || token.AccessToken == "" || token.AccessToken == account.AccessToken {
		return
	}

	account.AccessToken = token.AccessToken
	account.Expiry = token.Expiry
	if token.RefreshToken != "" {
		account.RefreshToken = token.RefreshToken
	}

	if err := s.store.UpdateAccountToken(ctx, acct.ID, token.AccessToken, token.RefreshToken, token.Expiry); err != nil {
		logger.Warn("failed to persist refreshed token", logging.Err(err))
		return
	}
	logger.Debug("refreshed token persisted")
}

// upsert stores one provider event. Events without id or times are skipped,
// unparseable times are recorded as errors. It runs in its own savepoint so a
// store failure only rolls back this event.
func (s *Synchronizer) upsert(ctx context.Context, tx *store.Store, logger *slog.Logger, acct *store.CalendarAccount, ev calendar.Event, ar *accountResult) error {
	if ev.ID == "" {
		logger.Warn("skipping event without id", slog.String("title", ev.Summary))
		return nil
	}
	if !ev.HasTimes() {
		logger.Debug("skipping event without start or end", logging.EventID(ev.ID))
		return nil
	}
	if ev.TimeErr != nil {
		msg := fmt.Sprintf("error parsing datetime for event %s (start: %s, end: %s): %v", ev.ID, ev.RawStart, ev.RawEnd, ev.TimeErr)
		ar.errors = append(ar.errors, msg)
		logger.Warn("skipping event with unparseable time", logging.EventID(ev.ID), logging.Err(ev.TimeErr))
		return nil
	}

	link := meetinglink.Extract(ev.LinkSource())
	title := ev.Summary
	if title == "" {
		title = DefaultTitle
	}

	row := &store.CalendarEvent{
		UserID:          acct.UserID,
		AccountID:       acct.ID,
		ExternalID:      ev.ID,
		Title:           title,
		Description:     ev.Description,
		StartTime:       ev.Start,
		EndTime:         ev.End,
		Location:        ev.Location,
		MeetingLink:     link.URL,
		MeetingPlatform: string(link.Platform),
	}
	created, err := tx.UpsertEvent(ctx, row)
	if err != nil {
		return err
	}

	if created {
		ar.created++
	} else {
		ar.updated++
	}
	ar.synced++
	ar.events = append(ar.events, row)
	return nil
}

func (s *Synchronizer) createAgent(ctx context.Context, logger *slog.Logger, ev *store.CalendarEvent, leadMinutes int, result *Result) {
	outcome := s.creator.Create(ctx, ev, leadMinutes)
	switch outcome.Result {
	case botmanager.Created:
		result.BotsCreated = append(result.BotsCreated, BotCreation{EventID: ev.ID, AgentID: outcome.AgentID})
	case botmanager.Failed:
		result.Errors = append(result.Errors, fmt.Sprintf("error creating agent for event %s: %v", ev.ExternalID, outcome.Err))
		logger.Warn("agent creation failed", logging.EventID(ev.ID), logging.Err(outcome.Err))
	}
}

func summarize(ev *store.CalendarEvent) EventSummary {
	return EventSummary{
		ID:               ev.ID,
		AccountID:        ev.AccountID,
		ExternalID:       ev.ExternalID,
		Title:            ev.Title,
		StartTime:        ev.StartTime,
		EndTime:          ev.EndTime,
		Location:         ev.Location,
		MeetingLink:      ev.MeetingLink,
		MeetingPlatform:  ev.MeetingPlatform,
		RecordingEnabled: ev.RecordingEnabled,
		AgentID:          ev.Agent(),
	}
}
