package calsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/notetaker/internal/botmanager"
	"github.com/teemow/notetaker/internal/calendar"
	"github.com/teemow/notetaker/internal/store"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	events     map[string][]calendar.Event
	fetchErr   map[string]error
	noRefresh  map[string]bool
	newToken   map[string]*oauth2.Token
	windows    []calendar.Window
	maxResults []int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		events:    map[string][]calendar.Event{},
		fetchErr:  map[string]error{},
		noRefresh: map[string]bool{},
		newToken:  map[string]*oauth2.Token{},
	}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) RefreshCredentials(ctx context.Context, account calendar.Account) (*oauth2.Token, bool) {
	if p.noRefresh[account.Email] {
		return nil, false
	}
	if tok, ok := p.newToken[account.Email]; ok {
		return tok, true
	}
	return &oauth2.Token{AccessToken: account.AccessToken, Expiry: account.Expiry}, true
}

func (p *fakeProvider) FetchEvents(ctx context.Context, account calendar.Account, window calendar.Window, maxResults int) ([]calendar.Event, error) {
	p.windows = append(p.windows, window)
	p.maxResults = append(p.maxResults, maxResults)
	if err := p.fetchErr[account.Email]; err != nil {
		return nil, err
	}
	return p.events[account.Email], nil
}

type fakeCreator struct {
	calls   []uint
	fail    bool
	counter int
}

func (c *fakeCreator) Create(ctx context.Context, event *store.CalendarEvent, leadMinutes int) botmanager.CreateOutcome {
	c.calls = append(c.calls, event.ID)
	if c.fail {
		return botmanager.CreateOutcome{Result: botmanager.Failed, Err: errors.New("provider down")}
	}
	c.counter++
	id := fmt.Sprintf("agent-%d", c.counter)
	event.AgentID = &id
	return botmanager.CreateOutcome{AgentID: id, Result: botmanager.Created}
}

type fixture struct {
	store    *store.Store
	provider *fakeProvider
	creator  *fakeCreator
	sync     *Synchronizer
	userID   uint
	accounts map[string]uint
}

func newFixture(t *testing.T, emails ...string) *fixture {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	st, err := store.Open(store.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close() })

	u := &store.User{Email: "owner@example.com"}
	require.NoError(t, st.CreateUser(ctx, u))

	accounts := map[string]uint{}
	for _, email := range emails {
		a := &store.CalendarAccount{UserID: u.ID, Email: email, AccessToken: "access-" + email, RefreshToken: "refresh"}
		require.NoError(t, st.CreateAccount(ctx, a))
		accounts[email] = a.ID
	}

	provider := newFakeProvider()
	creator := &fakeCreator{}
	return &fixture{
		store:    st,
		provider: provider,
		creator:  creator,
		sync: New(st, provider, creator,
			WithClock(func() time.Time { return testNow }),
			WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		),
		userID:   u.ID,
		accounts: accounts,
	}
}

func event(id, title string, start time.Time) calendar.Event {
	return calendar.Event{
		ID:       id,
		Summary:  title,
		Start:    start,
		End:      start.Add(time.Hour),
		RawStart: start.Format(time.RFC3339),
		RawEnd:   start.Add(time.Hour).Format(time.RFC3339),
	}
}

func TestSync_HangoutLink(t *testing.T) {
	f := newFixture(t, "a@example.com")
	ev := event("ext-1", "Standup", testNow.Add(time.Hour))
	ev.HangoutLink = "https://meet.google.com/abc-defg-hij"
	ev.Description = "backup https://zoom.us/j/123"
	f.provider.events["a@example.com"] = []calendar.Event{ev}

	res, err := f.sync.Sync(context.Background(), f.userID, Options{LeadMinutes: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 1, res.Created)
	assert.Empty(t, res.Errors)

	stored, err := f.store.FindEvent(context.Background(), f.accounts["a@example.com"], "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "meet", stored.MeetingPlatform)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", stored.MeetingLink)
	assert.False(t, stored.RecordingEnabled)

	require.Len(t, f.provider.windows, 1)
	assert.Equal(t, testNow, f.provider.windows[0].Start)
	assert.Equal(t, testNow.Add(30*24*time.Hour), f.provider.windows[0].End)
	assert.Equal(t, calendar.DefaultMaxResults, f.provider.maxResults[0])
}

func TestSync_ResyncUpdates(t *testing.T) {
	f := newFixture(t, "a@example.com")
	ctx := context.Background()
	f.provider.events["a@example.com"] = []calendar.Event{event("ext-1", "v1", testNow.Add(time.Hour))}

	_, err := f.sync.Sync(ctx, f.userID, Options{})
	require.NoError(t, err)

	stored, err := f.store.FindEvent(ctx, f.accounts["a@example.com"], "ext-1")
	require.NoError(t, err)
	_, err = f.store.SetRecordingEnabled(ctx, f.userID, stored.ID, true)
	require.NoError(t, err)

	f.provider.events["a@example.com"] = []calendar.Event{event("ext-1", "v2", testNow.Add(2*time.Hour))}
	res, err := f.sync.Sync(ctx, f.userID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)

	var count int64
	require.NoError(t, f.store.DB().Model(&store.CalendarEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stored, err = f.store.FindEvent(ctx, f.accounts["a@example.com"], "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", stored.Title)
	assert.True(t, stored.RecordingEnabled, "recording toggle survives re-sync")
}

func TestSync_SameExternalIDAcrossAccounts(t *testing.T) {
	f := newFixture(t, "a@example.com", "b@example.com")
	f.provider.events["a@example.com"] = []calendar.Event{event("evt-42", "A", testNow.Add(time.Hour))}
	f.provider.events["b@example.com"] = []calendar.Event{event("evt-42", "B", testNow.Add(time.Hour))}

	res, err := f.sync.Sync(context.Background(), f.userID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Empty(t, res.Errors)

	var count int64
	require.NoError(t, f.store.DB().Model(&store.CalendarEvent{}).Where("external_id = ?", "evt-42").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSync_AccountIsolation(t *testing.T) {
	f := newFixture(t, "a@example.com", "b@example.com", "c@example.com")
	f.provider.noRefresh["a@example.com"] = true
	f.provider.fetchErr["b@example.com"] = &calendar.AuthError{StatusCode: 403, Account: "b@example.com"}
	f.provider.events["c@example.com"] = []calendar.Event{event("ok", "fine", testNow.Add(time.Hour))}

	res, err := f.sync.Sync(context.Background(), f.userID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "reconnect")
	assert.Contains(t, res.Errors[1], "b@example.com")
	assert.Contains(t, res.Errors[1], "reconnect")
}

func TestSync_SkipsAndDataErrors(t *testing.T) {
	f := newFixture(t, "a@example.com")

	noID := event("", "no id", testNow)
	noTimes := calendar.Event{ID: "no-times", Summary: "x", RawStart: "2024-05-01T10:00:00Z"}
	badTime := calendar.Event{ID: "bad", RawStart: "soon", RawEnd: "later", TimeErr: errors.New("unparseable time")}
	untitled := event("untitled", "", testNow.Add(time.Hour))
	f.provider.events["a@example.com"] = []calendar.Event{noID, noTimes, badTime, untitled}

	res, err := f.sync.Sync(context.Background(), f.userID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "bad")

	require.Len(t, res.Events, 1)
	assert.Equal(t, DefaultTitle, res.Events[0].Title)
}

func TestSync_StoreErrorSkipsOnlyThatEvent(t *testing.T) {
	f := newFixture(t, "a@example.com")
	require.NoError(t, f.store.DB().Exec(`CREATE TRIGGER reject_bad_event BEFORE INSERT ON calendar_events
		WHEN NEW.external_id = 'bad'
		BEGIN SELECT RAISE(ABORT, 'rejected by trigger'); END`).Error)

	f.provider.events["a@example.com"] = []calendar.Event{
		event("good-1", "first", testNow.Add(time.Hour)),
		event("bad", "broken", testNow.Add(2*time.Hour)),
		event("good-2", "second", testNow.Add(3*time.Hour)),
	}

	res, err := f.sync.Sync(context.Background(), f.userID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, 2, res.Created)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "error processing event bad")
	require.Len(t, res.Events, 2)

	var count int64
	require.NoError(t, f.store.DB().Model(&store.CalendarEvent{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSync_LongLocationIsStored(t *testing.T) {
	f := newFixture(t, "a@example.com")
	ev := event("long", "Offsite", testNow.Add(time.Hour))
	ev.Location = strings.Repeat("Building 7, Floor 3, Room 12; ", 40)
	f.provider.events["a@example.com"] = []calendar.Event{ev}

	res, err := f.sync.Sync(context.Background(), f.userID, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)

	stored, err := f.store.FindEvent(context.Background(), f.accounts["a@example.com"], "long")
	require.NoError(t, err)
	assert.Equal(t, ev.Location, stored.Location)
}

func TestSync_NoActiveAccounts(t *testing.T) {
	f := newFixture(t)

	res, err := f.sync.Sync(context.Background(), f.userID, Options{CreateBots: true, LeadMinutes: 5})
	assert.ErrorIs(t, err, ErrNoActiveAccounts)
	require.NotNil(t, res)
	assert.Equal(t, []string{ErrNoActiveAccounts.Error()}, res.Errors)
	assert.True(t, res.CreateBots)
}

func TestSync_PersistsRefreshedToken(t *testing.T) {
	f := newFixture(t, "a@example.com")
	expiry := testNow.Add(time.Hour)
	f.provider.newToken["a@example.com"] = &oauth2.Token{AccessToken: "fresh", Expiry: expiry}

	_, err := f.sync.Sync(context.Background(), f.userID, Options{})
	require.NoError(t, err)

	acct, err := f.store.GetAccount(context.Background(), f.accounts["a@example.com"])
	require.NoError(t, err)
	assert.Equal(t, "fresh", acct.AccessToken)
	assert.Equal(t, "refresh", acct.RefreshToken)
	require.NotNil(t, acct.TokenExpiry)
	assert.True(t, expiry.Equal(*acct.TokenExpiry))
}

func TestSync_CreateBots(t *testing.T) {
	f := newFixture(t, "a@example.com")
	ctx := context.Background()

	withLink := event("with-link", "Planning", testNow.Add(time.Hour))
	withLink.Description = "join at https://zoom.us/j/987654"
	noLink := event("no-link", "Lunch", testNow.Add(2*time.Hour))
	f.provider.events["a@example.com"] = []calendar.Event{withLink, noLink}

	// first sync stores the events; recording is off by default
	res, err := f.sync.Sync(ctx, f.userID, Options{CreateBots: true, LeadMinutes: 5})
	require.NoError(t, err)
	assert.Empty(t, res.BotsCreated)
	assert.Empty(t, f.creator.calls)

	for _, ext := range []string{"with-link", "no-link"} {
		ev, err := f.store.FindEvent(ctx, f.accounts["a@example.com"], ext)
		require.NoError(t, err)
		_, err = f.store.SetRecordingEnabled(ctx, f.userID, ev.ID, true)
		require.NoError(t, err)
	}

	res, err = f.sync.Sync(ctx, f.userID, Options{CreateBots: true, LeadMinutes: 5})
	require.NoError(t, err)
	require.Len(t, res.BotsCreated, 1)
	assert.Equal(t, "agent-1", res.BotsCreated[0].AgentID)
	assert.Len(t, f.creator.calls, 1)

	// without CreateBots nothing is requested
	res, err = f.sync.Sync(ctx, f.userID, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.BotsCreated)
	assert.Len(t, f.creator.calls, 1)
}

func TestSync_CreateBotsFailureIsRecorded(t *testing.T) {
	f := newFixture(t, "a@example.com")
	ctx := context.Background()
	f.creator.fail = true

	ev := event("e1", "Planning", testNow.Add(time.Hour))
	ev.HangoutLink = "https://meet.google.com/abc-defg-hij"
	f.provider.events["a@example.com"] = []calendar.Event{ev}

	_, err := f.sync.Sync(ctx, f.userID, Options{})
	require.NoError(t, err)
	stored, err := f.store.FindEvent(ctx, f.accounts["a@example.com"], "e1")
	require.NoError(t, err)
	_, err = f.store.SetRecordingEnabled(ctx, f.userID, stored.ID, true)
	require.NoError(t, err)

	res, err := f.sync.Sync(ctx, f.userID, Options{CreateBots: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "provider down")
}
