package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teemow/notetaker/internal/instrumentation"
	"github.com/teemow/notetaker/internal/logging"
)

// Handler executes a job.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// Worker runs a pool of goroutines consuming from a Broker.
//
// A job whose handler succeeds is acknowledged. A failing job is rejected
// without requeue: retrying is the handler's decision, it can publish a
// follow-up attempt itself. A handler panic is recovered and treated as a
// failure.
type Worker struct {
	broker      Broker
	handler     Handler
	concurrency int
	metrics     *instrumentation.Metrics
	logger      logging.Logger
	wg          sync.WaitGroup
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithConcurrency sets the number of consuming goroutines.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithWorkerMetrics sets the metrics recorder.
func WithWorkerMetrics(m *instrumentation.Metrics) WorkerOption {
	return func(w *Worker) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithWorkerLogger sets the logger.
func WithWorkerLogger(l logging.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker creates a Worker with a single goroutine unless configured
// otherwise.
func NewWorker(b Broker, h Handler, opts ...WorkerOption) *Worker {
	w := &Worker{
		broker:      b,
		handler:     h,
		concurrency: 1,
		metrics:     &instrumentation.Metrics{},
		logger:      logging.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the consumers and returns once all of them subscribed.
// Consumers stop taking jobs when ctx is done. A job already running keeps
// going on a context that is not cancelled with ctx; Wait blocks until it
// finished.
func (w *Worker) Start(ctx context.Context) error {
	jobCtx := context.WithoutCancel(ctx)
	for i := 0; i < w.concurrency; i++ {
		msgs, err := w.broker.Consume(ctx)
		if err != nil {
			return fmt.Errorf("worker %d failed to consume: %w", i, err)
		}
		w.wg.Add(1)
		go func(idx int) {
			defer w.wg.Done()
			w.logger.Debug("worker started", "worker", idx)
			for d := range msgs {
				w.process(jobCtx, d)
			}
			w.logger.Debug("worker stopped", "worker", idx)
		}(i)
	}
	return nil
}

// Wait blocks until every consumer goroutine returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) process(ctx context.Context, d *Delivery) {
	job := d.Job
	start := time.Now()

	ctx, span := instrumentation.StartJobSpan(ctx, string(job.Kind),
		instrumentation.NewSpanAttributeBuilder().WithUser(job.UserID).WithEvent(job.EventID).WithAttempt(job.Attempt).Build()...)
	defer span.End()

	err := w.run(ctx, job)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		w.metrics.RecordJob(ctx, string(job.Kind), instrumentation.StatusError)
		w.logger.Error("job failed", "job_id", job.ID.String(), "kind", string(job.Kind),
			"attempt", job.Attempt, "duration", time.Since(start), "error", err)
		if nerr := d.Nack(false); nerr != nil {
			w.logger.Warn("failed to reject job", "job_id", job.ID.String(), "error", nerr)
		}
		return
	}

	instrumentation.SetSpanSuccess(span)
	w.metrics.RecordJob(ctx, string(job.Kind), instrumentation.StatusSuccess)
	w.logger.Info("job completed", "job_id", job.ID.String(), "kind", string(job.Kind),
		"attempt", job.Attempt, "duration", time.Since(start))
	if aerr := d.Ack(); aerr != nil {
		w.logger.Warn("failed to acknowledge job", "job_id", job.ID.String(), "error", aerr)
	}
}

func (w *Worker) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job, r)
		}
	}()
	return w.handler.Handle(ctx, job)
}
