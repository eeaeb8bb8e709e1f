package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/teemow/notetaker/internal/botmanager"
	"github.com/teemow/notetaker/internal/calsync"
	"github.com/teemow/notetaker/internal/instrumentation"
	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/queue"
	"github.com/teemow/notetaker/internal/recall"
	"github.com/teemow/notetaker/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	defaultDaysAhead = 30
)

// Store is the persistence the trigger API reads and toggles.
type Store interface {
	GetEvent(ctx context.Context, id uint) (*store.CalendarEvent, error)
	LeadMinutes(ctx context.Context, userID uint, def int) (int, error)
	SetRecordingEnabled(ctx context.Context, userID, eventID uint, enabled bool) (*store.CalendarEvent, error)
	UpcomingEvents(ctx context.Context, userID uint, now, until time.Time, limit int) ([]store.CalendarEvent, error)
	ListMeetings(ctx context.Context, userID uint, now time.Time, limit, offset int) ([]store.Meeting, error)
	GetMeeting(ctx context.Context, userID, id uint) (*store.Meeting, error)
}

// Syncer runs a calendar sync for one user.
type Syncer interface {
	Sync(ctx context.Context, userID uint, opts calsync.Options) (*calsync.Result, error)
}

// Agents creates, inspects and removes recording agents for single events.
type Agents interface {
	CreateForEvent(ctx context.Context, eventID uint, leadMinutes int) (botmanager.CreateOutcome, error)
	AgentStatus(ctx context.Context, userID, eventID uint) (recall.Status, error)
	Leave(ctx context.Context, eventID uint) error
}

// Publisher submits sweep jobs.
type Publisher interface {
	Publish(ctx context.Context, job queue.Job) error
}

// APIDeps are the collaborators of the trigger API.
type APIDeps struct {
	Store              Store
	Syncer             Syncer
	Agents             Agents
	Publisher          Publisher
	Health             *HealthChecker
	Metrics            *instrumentation.Metrics
	Logger             *slog.Logger
	DefaultLeadMinutes int
	Now                func() time.Time
	// AllowedOrigins enables CORS for browser callers when non-empty.
	AllowedOrigins []string
}

type api struct {
	APIDeps
}

// NewAPIRouter builds the trigger API: manual sync, per-event agent
// creation and removal, the recording toggle, sweep submission and
// read access to events and meetings.
func NewAPIRouter(deps APIDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = &instrumentation.Metrics{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.DefaultLeadMinutes <= 0 {
		deps.DefaultLeadMinutes = store.DefaultLeadMinutes
	}
	if deps.Health == nil {
		deps.Health = NewHealthChecker()
	}
	a := &api{APIDeps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.observe)
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	deps.Health.RegisterHealthEndpoints(r)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/sync", a.syncUser)
			r.Get("/events", a.upcomingEvents)
			r.Patch("/events/{eventID}/recording", a.toggleRecording)
			r.Get("/events/{eventID}/agent", a.agentStatus)
			r.Get("/meetings", a.listMeetings)
			r.Get("/meetings/{meetingID}", a.getMeeting)
		})
		r.Post("/events/{eventID}/agent", a.createAgent)
		r.Delete("/events/{eventID}/agent", a.removeAgent)
		r.Post("/sweeps/{kind}", a.submitSweep)
	})
	return r
}

// observe logs and records every request under its route pattern.
func (a *api) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			pattern = rc.RoutePattern()
		}
		pattern = instrumentation.NormalizeRoutePattern(pattern)
		duration := time.Since(start)
		a.Metrics.RecordHTTPRequest(r.Context(), r.Method, pattern, ww.Status(), duration)
		a.Logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", pattern),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", duration),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *api) fail(w http.ResponseWriter, code int, msg string, err error) {
	if code >= http.StatusInternalServerError {
		a.Logger.Error(msg, logging.Err(err))
	}
	if err != nil && code < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, code, errorResponse{Error: msg})
}

func (a *api) failStore(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		a.fail(w, http.StatusNotFound, "not found", nil)
		return
	}
	a.fail(w, http.StatusInternalServerError, msg, err)
}

func pathID(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name + ": " + raw)
	}
	return uint(id), nil
}

func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, errors.New("invalid " + name + ": " + raw)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, true, errors.New("invalid " + name + ": " + raw)
	}
	return b, true, nil
}

func (a *api) leadMinutes(r *http.Request, userID uint) (int, error) {
	n, err := queryInt(r, "lead_minutes", 0, 0, 60)
	if err != nil || n > 0 {
		return n, err
	}
	lead, err := a.Store.LeadMinutes(r.Context(), userID, a.DefaultLeadMinutes)
	if err != nil {
		return a.DefaultLeadMinutes, nil
	}
	return lead, nil
}

func (a *api) syncUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	createBots, set, err := queryBool(r, "create_bots")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	if !set {
		createBots = true
	}
	lead, err := a.leadMinutes(r, userID)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}

	result, err := a.Syncer.Sync(r.Context(), userID, calsync.Options{CreateBots: createBots, LeadMinutes: lead})
	switch {
	case errors.Is(err, calsync.ErrNoActiveAccounts):
		a.fail(w, http.StatusBadRequest, "", err)
	case err != nil:
		a.fail(w, http.StatusInternalServerError, "calendar sync failed", err)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

type eventResponse struct {
	ID               uint      `json:"id"`
	Title            string    `json:"title"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Location         string    `json:"location,omitempty"`
	MeetingLink      string    `json:"meeting_link,omitempty"`
	MeetingPlatform  string    `json:"meeting_platform,omitempty"`
	RecordingEnabled bool      `json:"recording_enabled"`
	AgentID          string    `json:"agent_id,omitempty"`
}

func toEventResponse(e *store.CalendarEvent) eventResponse {
	return eventResponse{
		ID:               e.ID,
		Title:            e.Title,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		Location:         e.Location,
		MeetingLink:      e.MeetingLink,
		MeetingPlatform:  e.MeetingPlatform,
		RecordingEnabled: e.RecordingEnabled,
		AgentID:          e.Agent(),
	}
}

func (a *api) upcomingEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	days, err := queryInt(r, "days_ahead", defaultDaysAhead, 1, 365)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}

	now := a.Now()
	events, err := a.Store.UpcomingEvents(r.Context(), userID, now, now.AddDate(0, 0, days), limit)
	if err != nil {
		a.failStore(w, "failed to list events", err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for i := range events {
		out = append(out, toEventResponse(&events[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) toggleRecording(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	eventID, err := pathID(r, "eventID")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	enabled, set, err := queryBool(r, "enabled")
	if err == nil && !set {
		err = errors.New("enabled is required")
	}
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}

	event, err := a.Store.SetRecordingEnabled(r.Context(), userID, eventID, enabled)
	if err != nil {
		a.failStore(w, "failed to update recording setting", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

type agentResponse struct {
	EventID uint   `json:"event_id"`
	AgentID string `json:"agent_id,omitempty"`
	Result  string `json:"result"`
	Error   string `json:"error,omitempty"`
}

func (a *api) createAgent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	event, err := a.Store.GetEvent(r.Context(), eventID)
	if err != nil {
		a.failStore(w, "failed to load event", err)
		return
	}
	lead, err := a.leadMinutes(r, event.UserID)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}

	outcome, err := a.Agents.CreateForEvent(r.Context(), eventID, lead)
	if err != nil {
		a.failStore(w, "failed to create agent", err)
		return
	}

	resp := agentResponse{EventID: eventID, AgentID: outcome.AgentID, Result: string(outcome.Result)}
	code := http.StatusOK
	switch outcome.Result {
	case botmanager.Created:
		code = http.StatusCreated
	case botmanager.Ineligible:
		code = http.StatusUnprocessableEntity
		resp.Error = "event has no meeting link or recording is disabled"
	case botmanager.Failed:
		code = http.StatusBadGateway
		if outcome.Err != nil {
			resp.Error = outcome.Err.Error()
		}
	}
	writeJSON(w, code, resp)
}

type agentStatusResponse struct {
	EventID             uint   `json:"event_id"`
	AgentID             string `json:"agent_id"`
	State               string `json:"state"`
	Code                string `json:"status_code,omitempty"`
	TranscriptAvailable bool   `json:"transcript_available"`
	RecordingAvailable  bool   `json:"recording_available"`
}

func (a *api) agentStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	eventID, err := pathID(r, "eventID")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}

	status, err := a.Agents.AgentStatus(r.Context(), userID, eventID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, agentStatusResponse{
			EventID:             eventID,
			AgentID:             status.AgentID,
			State:               status.State.String(),
			Code:                status.Code,
			TranscriptAvailable: status.TranscriptAvailable,
			RecordingAvailable:  status.RecordingAvailable,
		})
	case errors.Is(err, botmanager.ErrNoAgent):
		a.fail(w, http.StatusNotFound, "", err)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, recall.ErrNotFound):
		a.fail(w, http.StatusNotFound, "not found", nil)
	default:
		a.fail(w, http.StatusBadGateway, "failed to get agent status", err)
	}
}

func (a *api) removeAgent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	err = a.Agents.Leave(r.Context(), eventID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, botmanager.ErrNoAgent):
		a.fail(w, http.StatusConflict, "", err)
	case errors.Is(err, store.ErrNotFound):
		a.fail(w, http.StatusNotFound, "not found", nil)
	default:
		a.fail(w, http.StatusBadGateway, "failed to remove agent", err)
	}
}

type sweepResponse struct {
	JobID string     `json:"job_id"`
	Kind  queue.Kind `json:"kind"`
}

func (a *api) submitSweep(w http.ResponseWriter, r *http.Request) {
	if a.Publisher == nil {
		a.fail(w, http.StatusServiceUnavailable, "job queue is not configured", nil)
		return
	}
	kind, err := queue.ParseKind(chi.URLParam(r, "kind"))
	if err != nil || kind == queue.KindCreateAgent {
		a.fail(w, http.StatusNotFound, "unknown sweep", nil)
		return
	}
	userID, err := queryInt(r, "user_id", 0, 0, int(^uint32(0)>>1))
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	createBots, _, err := queryBool(r, "create_bots")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}

	job := queue.NewJob(kind)
	job.UserID = uint(userID)
	job.CreateBots = createBots
	if err := a.Publisher.Publish(r.Context(), job); err != nil {
		a.fail(w, http.StatusServiceUnavailable, "failed to submit sweep", err)
		return
	}
	a.Logger.Info("sweep submitted", logging.JobID(job.ID.String()), logging.Sweep(string(kind)))
	writeJSON(w, http.StatusAccepted, sweepResponse{JobID: job.ID.String(), Kind: kind})
}

type attendeeResponse struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type meetingResponse struct {
	ID                  uint               `json:"id"`
	CalendarEventID     *uint              `json:"calendar_event_id,omitempty"`
	AgentID             string             `json:"agent_id"`
	Title               string             `json:"title"`
	StartTime           time.Time          `json:"start_time"`
	EndTime             time.Time          `json:"end_time"`
	Platform            string             `json:"platform"`
	TranscriptAvailable bool               `json:"transcript_available"`
	RecordingURL        string             `json:"recording_url,omitempty"`
	Transcript          string             `json:"transcript,omitempty"`
	Attendees           []attendeeResponse `json:"attendees,omitempty"`
}

func toMeetingResponse(m *store.Meeting, detail bool) meetingResponse {
	resp := meetingResponse{
		ID:                  m.ID,
		CalendarEventID:     m.CalendarEventID,
		AgentID:             m.AgentID,
		Title:               m.Title,
		StartTime:           m.StartTime,
		EndTime:             m.EndTime,
		Platform:            m.Platform,
		TranscriptAvailable: m.TranscriptAvailable,
	}
	if m.RecordingURL != nil {
		resp.RecordingURL = *m.RecordingURL
	}
	if !detail {
		return resp
	}
	if m.Transcript != nil {
		resp.Transcript = *m.Transcript
	}
	resp.Attendees = make([]attendeeResponse, 0, len(m.Attendees))
	for _, at := range m.Attendees {
		ar := attendeeResponse{Name: at.Name}
		if at.Email != nil {
			ar.Email = *at.Email
		}
		resp.Attendees = append(resp.Attendees, ar)
	}
	return resp
}

func (a *api) listMeetings(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	offset, err := queryInt(r, "offset", 0, 0, 1<<30)
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}

	meetings, err := a.Store.ListMeetings(r.Context(), userID, a.Now(), limit, offset)
	if err != nil {
		a.failStore(w, "failed to list meetings", err)
		return
	}
	out := make([]meetingResponse, 0, len(meetings))
	for i := range meetings {
		out = append(out, toMeetingResponse(&meetings[i], false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) getMeeting(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	meetingID, err := pathID(r, "meetingID")
	if err != nil {
		a.fail(w, http.StatusBadRequest, "", err)
		return
	}
	m, err := a.Store.GetMeeting(r.Context(), userID, meetingID)
	if err != nil {
		a.failStore(w, "failed to load meeting", err)
		return
	}
	writeJSON(w, http.StatusOK, toMeetingResponse(m, true))
}
