package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/notetaker/internal/botmanager"
	"github.com/teemow/notetaker/internal/calsync"
	"github.com/teemow/notetaker/internal/instrumentation"
	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/queue"
	"github.com/teemow/notetaker/internal/store"
)

const (
	// DefaultMaxRetries is how often a failed sweep is re-submitted.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is the pause before a failed sweep is re-submitted.
	DefaultRetryDelay = 60 * time.Second
)

// Users enumerates users and their agent settings.
type Users interface {
	ListUsers(ctx context.Context) ([]store.User, error)
	LeadMinutes(ctx context.Context, userID uint, def int) (int, error)
}

// Bots runs the agent lifecycle operations for one user or event.
type Bots interface {
	ScheduleJoins(ctx context.Context, userID uint, leadMinutes int) (*botmanager.JoinResult, error)
	CheckCompleted(ctx context.Context, userID uint) (*botmanager.CompletionResult, error)
	CreateForEvent(ctx context.Context, eventID uint, leadMinutes int) (botmanager.CreateOutcome, error)
}

// Syncer synchronizes one user's calendars.
type Syncer interface {
	Sync(ctx context.Context, userID uint, opts calsync.Options) (*calsync.Result, error)
}

// Publisher submits jobs, typically a queue.Broker.
type Publisher interface {
	Publish(ctx context.Context, job queue.Job) error
}

// SweepResult aggregates one job over all processed users.
type SweepResult struct {
	RunID       string     `json:"run_id"`
	Kind        queue.Kind `json:"kind"`
	Attempt     int        `json:"attempt"`
	Users       int        `json:"users"`
	Joined      int        `json:"joined,omitempty"`
	Skipped     int        `json:"skipped,omitempty"`
	Created     int        `json:"created,omitempty"`
	Updated     int        `json:"updated,omitempty"`
	Synced      int        `json:"synced,omitempty"`
	BotsCreated int        `json:"bots_created,omitempty"`
	AgentID     string     `json:"agent_id,omitempty"`
	Errors      []string   `json:"errors"`
	DurationMS  int64      `json:"duration_ms"`
}

// Dispatcher executes jobs against the core services.
type Dispatcher struct {
	users       Users
	bots        Bots
	syncer      Syncer
	publisher   Publisher
	defaultLead int
	maxRetries  int
	retryDelay  time.Duration
	after       func(time.Duration) <-chan time.Time
	metrics     *instrumentation.Metrics
	logger      *slog.Logger

	retries  sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSyncer enables calendar sync jobs.
func WithSyncer(s Syncer) Option {
	return func(d *Dispatcher) {
		d.syncer = s
	}
}

// WithPublisher sets where retries are submitted. Without a publisher a
// failed sweep is not retried.
func WithPublisher(p Publisher) Option {
	return func(d *Dispatcher) {
		d.publisher = p
	}
}

// WithDefaultLeadMinutes sets the lead used for users without settings.
func WithDefaultLeadMinutes(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.defaultLead = n
		}
	}
}

// WithRetry sets the retry budget and delay for failed sweeps.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(d *Dispatcher) {
		if maxRetries >= 0 {
			d.maxRetries = maxRetries
		}
		if delay >= 0 {
			d.retryDelay = delay
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(users Users, bots Bots, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		users:       users,
		bots:        bots,
		defaultLead: store.DefaultLeadMinutes,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		after:       time.After,
		metrics:     &instrumentation.Metrics{},
		logger:      slog.Default(),
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle implements queue.Handler. A sweep that fails as a whole is
// re-submitted after the retry delay until the retry budget is spent.
// Agent creation jobs are not retried.
func (d *Dispatcher) Handle(ctx context.Context, job queue.Job) error {
	_, err := d.Run(ctx, job)
	if err == nil {
		return nil
	}
	if job.Kind == queue.KindCreateAgent || d.publisher == nil {
		return err
	}
	if job.Attempt >= d.maxRetries {
		return fmt.Errorf("%s gave up after %d attempts: %w", job.Kind, job.Attempt+1, err)
	}

	next := job.Retry()
	d.logger.Warn("sweep failed, retrying",
		logging.JobID(job.ID.String()),
		logging.Sweep(string(job.Kind)),
		slog.Int("attempt", next.Attempt),
		slog.Duration("delay", d.retryDelay),
		logging.Err(err))

	d.retries.Add(1)
	go func() {
		defer d.retries.Done()
		select {
		case <-d.after(d.retryDelay):
		case <-ctx.Done():
			d.logger.Warn("dropping sweep retry on shutdown", logging.JobID(next.ID.String()))
			return
		case <-d.stop:
			d.logger.Warn("dropping sweep retry on shutdown", logging.JobID(next.ID.String()))
			return
		}
		if perr := d.publisher.Publish(ctx, next); perr != nil {
			d.logger.Error("failed to submit sweep retry", logging.JobID(next.ID.String()), logging.Err(perr))
		}
	}()
	return nil
}

// Stop drops retries that are still waiting for their delay.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// WaitRetries blocks until pending retry submissions finished.
func (d *Dispatcher) WaitRetries() {
	d.retries.Wait()
}

// Run executes job once and returns its aggregate. The error is non-nil
// only when the job could not run at all, for example when users cannot be
// listed.
func (d *Dispatcher) Run(ctx context.Context, job queue.Job) (*SweepResult, error) {
	start := time.Now()
	result := &SweepResult{
		RunID:   job.ID.String(),
		Kind:    job.Kind,
		Attempt: job.Attempt,
		Errors:  []string{},
	}
	if job.ID == uuid.Nil {
		result.RunID = uuid.NewString()
	}

	ctx, span := instrumentation.StartSweepSpan(ctx, string(job.Kind),
		instrumentation.NewSpanAttributeBuilder().WithUser(job.UserID).Build()...)
	defer span.End()

	logger := logging.WithSweep(d.logger, string(job.Kind)).With(logging.JobID(result.RunID))
	if traceID := instrumentation.GetTraceID(ctx); traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}

	var err error
	switch job.Kind {
	case queue.KindScheduleJoins:
		err = d.forEachUser(ctx, job, result, d.scheduleJoins)
	case queue.KindPollCompleted:
		err = d.forEachUser(ctx, job, result, d.checkCompleted)
	case queue.KindSyncCalendar:
		if d.syncer == nil {
			err = errors.New("calendar sync is not configured")
			break
		}
		err = d.forEachUser(ctx, job, result, d.syncCalendar)
	case queue.KindCreateAgent:
		err = d.createAgent(ctx, job, result)
	default:
		err = fmt.Errorf("unknown job kind %q", job.Kind)
	}

	duration := time.Since(start)
	result.DurationMS = duration.Milliseconds()

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		logger.Error("sweep failed", logging.Err(err), slog.Duration("duration", duration))
	} else {
		instrumentation.SetSpanSuccess(span)
		logger.Info("sweep completed",
			slog.Int("users", result.Users),
			slog.Int("joined", result.Joined),
			slog.Int("skipped", result.Skipped),
			slog.Int("created", result.Created),
			slog.Int("updated", result.Updated),
			slog.Int("synced", result.Synced),
			slog.Int("errors", len(result.Errors)),
			slog.Duration("duration", duration))
	}
	d.metrics.RecordSweep(ctx, string(job.Kind), status, duration)
	return result, err
}

type userFunc func(ctx context.Context, job queue.Job, userID uint, result *SweepResult, all bool)

// forEachUser runs fn for the job's user, or for every user sequentially
// when the job is not scoped.
func (d *Dispatcher) forEachUser(ctx context.Context, job queue.Job, result *SweepResult, fn userFunc) error {
	if job.UserID != 0 {
		result.Users = 1
		fn(ctx, job, job.UserID, result, false)
		return nil
	}

	users, err := d.users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range users {
		result.Users++
		fn(ctx, job, u.ID, result, true)
	}
	return nil
}

func (d *Dispatcher) leadMinutes(ctx context.Context, job queue.Job, userID uint) int {
	if job.LeadMinutes > 0 {
		return job.LeadMinutes
	}
	lead, err := d.users.LeadMinutes(ctx, userID, d.defaultLead)
	if err != nil {
		d.logger.Warn("failed to load lead minutes, using default",
			logging.UserID(userID), slog.Int("default", d.defaultLead), logging.Err(err))
		return d.defaultLead
	}
	return lead
}

func (d *Dispatcher) scheduleJoins(ctx context.Context, job queue.Job, userID uint, result *SweepResult, _ bool) {
	res, err := d.bots.ScheduleJoins(ctx, userID, d.leadMinutes(ctx, job, userID))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("user %d: %v", userID, err))
		return
	}
	result.Joined += res.Joined
	result.Skipped += res.Skipped
	result.Errors = append(result.Errors, res.Errors...)
}

func (d *Dispatcher) checkCompleted(ctx context.Context, job queue.Job, userID uint, result *SweepResult, _ bool) {
	res, err := d.bots.CheckCompleted(ctx, userID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("user %d: %v", userID, err))
		return
	}
	result.Created += res.Created
	result.Updated += res.Updated
	result.Errors = append(result.Errors, res.Errors...)
}

func (d *Dispatcher) syncCalendar(ctx context.Context, job queue.Job, userID uint, result *SweepResult, all bool) {
	res, err := d.syncer.Sync(ctx, userID, calsync.Options{
		CreateBots:  job.CreateBots,
		LeadMinutes: d.leadMinutes(ctx, job, userID),
	})
	if errors.Is(err, calsync.ErrNoActiveAccounts) && all {
		// users without a connected calendar are not an error for a sweep
		return
	}
	if res != nil {
		result.Synced += res.Synced
		result.Created += res.Created
		result.Updated += res.Updated
		result.BotsCreated += len(res.BotsCreated)
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, fmt.Sprintf("user %d: %s", userID, e))
		}
		return
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("user %d: %v", userID, err))
	}
}

func (d *Dispatcher) createAgent(ctx context.Context, job queue.Job, result *SweepResult) error {
	if job.EventID == 0 {
		return errors.New("create_agent job without event id")
	}
	result.Users = 1
	outcome, err := d.bots.CreateForEvent(ctx, job.EventID, d.leadMinutes(ctx, job, job.UserID))
	if err != nil {
		return err
	}
	switch outcome.Result {
	case botmanager.Created:
		result.BotsCreated = 1
	case botmanager.Failed:
		result.Errors = append(result.Errors, fmt.Sprintf("error creating agent for event %d: %v", job.EventID, outcome.Err))
	}
	result.AgentID = outcome.AgentID
	return nil
}
