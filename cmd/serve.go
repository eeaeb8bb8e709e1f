package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/queue"
	"github.com/teemow/notetaker/internal/scheduler"
	"github.com/teemow/notetaker/internal/server"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	httpAddr  string
	migrate   bool
	scheduler bool
	worker    bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the trigger API, the sweep scheduler and a worker",
		Long: `Run notetaker as a service.

The service exposes the HTTP trigger API and health probes, submits join,
completion and sync sweeps on their intervals, and processes sweep jobs with
an in-process worker. When QUEUE_URL is set, jobs travel through RabbitMQ so
that additional "notetaker worker" processes can share the load; otherwise
an in-process queue is used.

Examples:
  # Single process with an in-process queue
  notetaker serve

  # API only, sweeps are scheduled and processed elsewhere
  notetaker serve --scheduler=false --worker=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "Apply database migrations on startup")
	cmd.Flags().BoolVar(&opts.scheduler, "scheduler", true, "Submit sweeps on their configured intervals")
	cmd.Flags().BoolVar(&opts.worker, "worker", true, "Process sweep jobs in this process")

	return cmd
}

func runServe(opts serveOptions) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.httpAddr != "" {
		cfg.HTTPAddr = opts.httpAddr
	}
	logger := newLogger(cfg, logging.FormatJSON)

	broker, err := newBroker(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Warn("failed to close queue", logging.Err(err))
		}
	}()

	a, err := newApp(ctx, cfg, logger, appOptions{instrumented: true, publisher: broker})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		if err := a.close(closeCtx); err != nil {
			logger.Warn("failed to release resources", logging.Err(err))
		}
	}()

	if opts.migrate {
		if err := a.store.Migrate(ctx); err != nil {
			return err
		}
	}

	health := server.NewHealthChecker()
	health.SetReady(false)
	health.AddCheck("database", a.store.Ping)

	var metricsServer *server.MetricsServer
	if a.instr.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			InstrumentationProvider: a.instr,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
	}

	var worker *queue.Worker
	if opts.worker {
		worker = queue.NewWorker(broker, a.dispatcher,
			queue.WithConcurrency(cfg.WorkerConcurrency),
			queue.WithWorkerMetrics(a.instr.Metrics()),
			queue.WithWorkerLogger(logging.NewSlogAdapter(logger)),
		)
		if err := worker.Start(ctx); err != nil {
			return err
		}
	}

	var background sync.WaitGroup
	if opts.scheduler {
		runner := scheduler.NewRunner(broker,
			scheduler.Schedules(cfg.JoinInterval, cfg.CompletionInterval, cfg.SyncInterval), logger)
		background.Add(1)
		go func() {
			defer background.Done()
			runner.Run(ctx)
		}()
	}

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewAPIRouter(server.APIDeps{
			Store:              a.store,
			Syncer:             a.syncer,
			Agents:             a.manager,
			Publisher:          broker,
			Health:             health,
			Metrics:            a.instr.Metrics(),
			Logger:             logger,
			DefaultLeadMinutes: cfg.DefaultLeadMinutes,
			AllowedOrigins:     cfg.CORSAllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", slog.String("addr", cfg.HTTPAddr))
		serverErr <- httpServer.ListenAndServe()
	}()
	health.SetReady(true)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("HTTP server failed: %w", err)
		}
		cancel()
	}

	health.SetShuttingDown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", logging.Err(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", logging.Err(err))
		}
	}
	background.Wait()
	if worker != nil {
		worker.Wait()
	}
	a.dispatcher.Stop()
	a.dispatcher.WaitRetries()
	logger.Info("shutdown complete")
	return runErr
}
