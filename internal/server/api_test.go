package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/notetaker/internal/botmanager"
	"github.com/teemow/notetaker/internal/calsync"
	"github.com/teemow/notetaker/internal/queue"
	"github.com/teemow/notetaker/internal/recall"
	"github.com/teemow/notetaker/internal/store"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeSyncer struct {
	opts   []calsync.Options
	result *calsync.Result
	err    error
}

func (f *fakeSyncer) Sync(ctx context.Context, userID uint, opts calsync.Options) (*calsync.Result, error) {
	f.opts = append(f.opts, opts)
	return f.result, f.err
}

type fakeAgents struct {
	outcome   botmanager.CreateOutcome
	leaveErr  error
	status    recall.Status
	statusErr error
	leads     []int
	left      []uint
	inspected []uint
}

func (f *fakeAgents) CreateForEvent(ctx context.Context, eventID uint, leadMinutes int) (botmanager.CreateOutcome, error) {
	f.leads = append(f.leads, leadMinutes)
	return f.outcome, nil
}

func (f *fakeAgents) AgentStatus(ctx context.Context, userID, eventID uint) (recall.Status, error) {
	f.inspected = append(f.inspected, eventID)
	return f.status, f.statusErr
}

func (f *fakeAgents) Leave(ctx context.Context, eventID uint) error {
	f.left = append(f.left, eventID)
	return f.leaveErr
}

type apiFixture struct {
	store     *store.Store
	syncer    *fakeSyncer
	agents    *fakeAgents
	publisher *queue.MemoryBroker
	handler   http.Handler
	userID    uint
	events    map[string]uint
	meetingID uint
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	st, err := store.Open(store.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close() })

	u := &store.User{Email: "owner@example.com"}
	require.NoError(t, st.CreateUser(ctx, u))
	require.NoError(t, st.SetLeadMinutes(ctx, u.ID, 7))
	acct := &store.CalendarAccount{UserID: u.ID, Email: "a@example.com"}
	require.NoError(t, st.CreateAccount(ctx, acct))

	events := map[string]uint{}
	for i, ext := range []string{"soon", "later"} {
		e := &store.CalendarEvent{
			UserID:          u.ID,
			AccountID:       acct.ID,
			ExternalID:      ext,
			Title:           ext,
			StartTime:       testNow.Add(time.Duration(i+1) * time.Hour),
			EndTime:         testNow.Add(time.Duration(i+2) * time.Hour),
			MeetingLink:     "https://meet.google.com/abc-defg-hij",
			MeetingPlatform: "meet",
		}
		_, err := st.UpsertEvent(ctx, e)
		require.NoError(t, err)
		events[ext] = e.ID
	}

	transcript := "Alice: hello"
	m := &store.Meeting{
		UserID:              u.ID,
		AgentID:             "agent-done",
		Title:               "Retro",
		StartTime:           testNow.Add(-2 * time.Hour),
		EndTime:             testNow.Add(-time.Hour),
		Platform:            "zoom",
		Transcript:          &transcript,
		TranscriptAvailable: true,
	}
	require.NoError(t, st.CreateMeeting(ctx, m, []store.AttendeeInput{{Name: "Alice"}, {Name: "Bob", Email: "bob@example.com"}}))

	f := &apiFixture{
		store:     st,
		syncer:    &fakeSyncer{result: &calsync.Result{Synced: 2, Errors: []string{}}},
		agents:    &fakeAgents{},
		publisher: queue.NewMemoryBroker(10),
		userID:    u.ID,
		events:    events,
		meetingID: m.ID,
	}
	f.handler = NewAPIRouter(APIDeps{
		Store:     st,
		Syncer:    f.syncer,
		Agents:    f.agents,
		Publisher: f.publisher,
		Now:       func() time.Time { return testNow },
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAPI_Sync(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/sync?create_bots=true", f.userID))
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[calsync.Result](t, rec)
	assert.Equal(t, 2, res.Synced)

	require.Len(t, f.syncer.opts, 1)
	assert.True(t, f.syncer.opts[0].CreateBots)
	assert.Equal(t, 7, f.syncer.opts[0].LeadMinutes)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/sync?lead_minutes=2", f.userID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.syncer.opts[1].LeadMinutes)
	assert.True(t, f.syncer.opts[1].CreateBots)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/users/%d/sync?create_bots=false", f.userID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.syncer.opts[2].CreateBots)
}

func TestAPI_SyncErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		wantCode int
	}{
		{name: "no accounts", path: "/api/v1/users/1/sync", err: calsync.ErrNoActiveAccounts, wantCode: http.StatusBadRequest},
		{name: "store down", path: "/api/v1/users/1/sync", err: errors.New("db down"), wantCode: http.StatusInternalServerError},
		{name: "bad user", path: "/api/v1/users/abc/sync", wantCode: http.StatusBadRequest},
		{name: "bad flag", path: "/api/v1/users/1/sync?create_bots=maybe", wantCode: http.StatusBadRequest},
		{name: "bad lead", path: "/api/v1/users/1/sync?lead_minutes=-1", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			f.syncer.err = tt.err
			if tt.err != nil {
				f.syncer.result = &calsync.Result{Errors: []string{tt.err.Error()}}
			}
			rec := f.do(t, http.MethodPost, tt.path)
			assert.Equal(t, tt.wantCode, rec.Code)
			body := decode[errorResponse](t, rec)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestAPI_UpcomingEventsAndToggle(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/events", f.userID))
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]eventResponse](t, rec)
	require.Len(t, events, 2)
	assert.Equal(t, "soon", events[0].Title)
	assert.False(t, events[0].RecordingEnabled)

	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/users/%d/events/%d/recording?enabled=true", f.userID, f.events["soon"]))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[eventResponse](t, rec).RecordingEnabled)

	stored, err := f.store.GetEvent(context.Background(), f.events["soon"])
	require.NoError(t, err)
	assert.True(t, stored.RecordingEnabled)

	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/users/%d/events/%d/recording", f.userID, f.events["soon"]))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/users/%d/events/%d/recording?enabled=true", f.userID+1, f.events["soon"]))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CreateAgent(t *testing.T) {
	tests := []struct {
		name     string
		outcome  botmanager.CreateOutcome
		wantCode int
	}{
		{name: "created", outcome: botmanager.CreateOutcome{AgentID: "a1", Result: botmanager.Created}, wantCode: http.StatusCreated},
		{name: "existing", outcome: botmanager.CreateOutcome{AgentID: "a1", Result: botmanager.Existing}, wantCode: http.StatusOK},
		{name: "ineligible", outcome: botmanager.CreateOutcome{Result: botmanager.Ineligible}, wantCode: http.StatusUnprocessableEntity},
		{name: "failed", outcome: botmanager.CreateOutcome{Result: botmanager.Failed, Err: errors.New("503")}, wantCode: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			f.agents.outcome = tt.outcome

			rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/agent", f.events["soon"]))
			assert.Equal(t, tt.wantCode, rec.Code)
			resp := decode[agentResponse](t, rec)
			assert.Equal(t, string(tt.outcome.Result), resp.Result)
			assert.Equal(t, tt.outcome.AgentID, resp.AgentID)
			assert.Equal(t, []int{7}, f.agents.leads)
		})
	}
}

func TestAPI_CreateAgentUnknownEvent(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodPost, "/api/v1/events/9999/agent")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.agents.leads)
}

func TestAPI_AgentStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    recall.Status
		err       error
		wantCode  int
		wantState string
	}{
		{
			name:      "recording",
			status:    recall.Status{AgentID: "agent-1", State: recall.StateRecording, Code: "in_call_recording"},
			wantCode:  http.StatusOK,
			wantState: "recording",
		},
		{name: "no agent", err: botmanager.ErrNoAgent, wantCode: http.StatusNotFound},
		{name: "other user's event", err: store.ErrNotFound, wantCode: http.StatusNotFound},
		{name: "provider forgot agent", err: fmt.Errorf("failed to get status: %w", recall.ErrNotFound), wantCode: http.StatusNotFound},
		{name: "provider error", err: errors.New("timeout"), wantCode: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			f.agents.status = tt.status
			f.agents.statusErr = tt.err

			rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/events/%d/agent", f.userID, f.events["soon"]))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, []uint{f.events["soon"]}, f.agents.inspected)
			if tt.wantState != "" {
				res := decode[map[string]any](t, rec)
				assert.Equal(t, tt.wantState, res["state"])
				assert.Equal(t, "agent-1", res["agent_id"])
				assert.Equal(t, "in_call_recording", res["status_code"])
			}
		})
	}
}

func TestAPI_RemoveAgent(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "left", wantCode: http.StatusNoContent},
		{name: "no agent", err: botmanager.ErrNoAgent, wantCode: http.StatusConflict},
		{name: "unknown event", err: store.ErrNotFound, wantCode: http.StatusNotFound},
		{name: "provider error", err: errors.New("timeout"), wantCode: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			f.agents.leaveErr = tt.err
			rec := f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/events/%d/agent", f.events["soon"]))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, []uint{f.events["soon"]}, f.agents.left)
		})
	}
}

func TestAPI_SubmitSweep(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/sweeps/joins?user_id=3")
	require.Equal(t, http.StatusAccepted, rec.Code)
	resp := decode[sweepResponse](t, rec)
	assert.Equal(t, queue.KindScheduleJoins, resp.Kind)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, 1, f.publisher.Len())

	rec = f.do(t, http.MethodPost, "/api/v1/sweeps/sync?create_bots=true")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 2, f.publisher.Len())

	rec = f.do(t, http.MethodPost, "/api/v1/sweeps/create_agent")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/v1/sweeps/reboot")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 2, f.publisher.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := f.publisher.Consume(ctx)
	require.NoError(t, err)
	first := <-msgs
	assert.Equal(t, uint(3), first.Job.UserID)
	second := <-msgs
	assert.True(t, second.Job.CreateBots)
}

func TestAPI_SubmitSweepWithoutQueue(t *testing.T) {
	h := NewAPIRouter(APIDeps{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sweeps/joins", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPI_Meetings(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/meetings", f.userID))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]meetingResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Retro", list[0].Title)
	assert.True(t, list[0].TranscriptAvailable)
	assert.Empty(t, list[0].Transcript)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/meetings?offset=1", f.userID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]meetingResponse](t, rec))

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/meetings?limit=0", f.userID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/meetings/%d", f.userID, f.meetingID))
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[meetingResponse](t, rec)
	assert.Equal(t, "Alice: hello", detail.Transcript)
	require.Len(t, detail.Attendees, 2)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/meetings/%d", f.userID+1, f.meetingID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_HealthRoutes(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_CORS(t *testing.T) {
	h := NewAPIRouter(APIDeps{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sweeps/joins", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/sweeps/joins", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
