package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/queue"
)

const (
	DefaultJoinInterval       = 2 * time.Minute
	DefaultCompletionInterval = 5 * time.Minute
	DefaultSyncInterval       = 15 * time.Minute
)

// Schedule submits a job of Kind every Interval.
type Schedule struct {
	Kind       queue.Kind
	Interval   time.Duration
	CreateBots bool
}

// Schedules builds the periodic schedules. A zero interval disables the
// corresponding sweep.
func Schedules(joins, completions, sync time.Duration) []Schedule {
	var out []Schedule
	if joins > 0 {
		out = append(out, Schedule{Kind: queue.KindScheduleJoins, Interval: joins})
	}
	if completions > 0 {
		out = append(out, Schedule{Kind: queue.KindPollCompleted, Interval: completions})
	}
	if sync > 0 {
		out = append(out, Schedule{Kind: queue.KindSyncCalendar, Interval: sync, CreateBots: true})
	}
	return out
}

// Runner is the periodic trigger. It does not run sweeps itself, it only
// publishes jobs; a slow sweep therefore never delays the next tick.
type Runner struct {
	publisher Publisher
	schedules []Schedule
	logger    *slog.Logger
}

// NewRunner creates a Runner. A nil logger uses slog.Default.
func NewRunner(p Publisher, schedules []Schedule, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{publisher: p, schedules: schedules, logger: logger}
}

// Run ticks every schedule until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range r.schedules {
		wg.Add(1)
		go func(s Schedule) {
			defer wg.Done()
			r.tick(ctx, s)
		}(s)
	}
	wg.Wait()
}

func (r *Runner) tick(ctx context.Context, s Schedule) {
	logger := logging.WithSweep(r.logger, string(s.Kind))
	logger.Info("schedule started", slog.Duration("interval", s.Interval))

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("schedule stopped")
			return
		case <-ticker.C:
			job := queue.NewJob(s.Kind)
			job.CreateBots = s.CreateBots
			if err := r.publisher.Publish(ctx, job); err != nil {
				logger.Error("failed to submit sweep", logging.JobID(job.ID.String()), logging.Err(err))
				continue
			}
			logger.Debug("sweep submitted", logging.JobID(job.ID.String()))
		}
	}
}
