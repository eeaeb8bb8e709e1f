package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/queue"
)

func newWorkerCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process sweep jobs from the message queue",
		Long: `Consume sweep jobs from RabbitMQ until interrupted. QUEUE_URL must be set;
jobs are submitted by "notetaker serve" or the trigger API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.QueueURL == "" {
				return errors.New("QUEUE_URL is required for the worker")
			}
			if concurrency > 0 {
				cfg.WorkerConcurrency = concurrency
			}
			logger := newLogger(cfg, logging.FormatJSON)

			broker, err := newBroker(cfg, logger)
			if err != nil {
				return err
			}
			defer broker.Close()

			a, err := newApp(ctx, cfg, logger, appOptions{instrumented: true, publisher: broker})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			worker := queue.NewWorker(broker, a.dispatcher,
				queue.WithConcurrency(cfg.WorkerConcurrency),
				queue.WithWorkerMetrics(a.instr.Metrics()),
				queue.WithWorkerLogger(logging.NewSlogAdapter(logger)),
			)
			if err := worker.Start(ctx); err != nil {
				return err
			}
			logger.Info("worker running", "concurrency", cfg.WorkerConcurrency)

			<-ctx.Done()
			logger.Info("shutdown signal received")
			worker.Wait()
			a.dispatcher.Stop()
			a.dispatcher.WaitRetries()
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Number of concurrent consumers (overrides WORKER_CONCURRENCY)")
	return cmd
}
