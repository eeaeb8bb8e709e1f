package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/teemow/notetaker/internal/botmanager"
	"github.com/teemow/notetaker/internal/calendar"
	"github.com/teemow/notetaker/internal/calsync"
	"github.com/teemow/notetaker/internal/config"
	"github.com/teemow/notetaker/internal/instrumentation"
	"github.com/teemow/notetaker/internal/logging"
	"github.com/teemow/notetaker/internal/queue"
	"github.com/teemow/notetaker/internal/recall"
	"github.com/teemow/notetaker/internal/scheduler"
	"github.com/teemow/notetaker/internal/store"
)

// app holds the components shared by the commands.
type app struct {
	instr      *instrumentation.Provider
	store      *store.Store
	manager    *botmanager.Manager
	syncer     *calsync.Synchronizer
	dispatcher *scheduler.Dispatcher
}

// appOptions select how much of the process a command needs.
type appOptions struct {
	// instrumented starts the OpenTelemetry provider when metrics are enabled.
	instrumented bool
	// publisher receives sweep retries; nil disables retries.
	publisher scheduler.Publisher
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the slog default.
// Flags win over the configuration, which wins over defaultFormat.
func newLogger(cfg *config.Config, defaultFormat string) *slog.Logger {
	format := firstNonEmpty(flags.logFormat, cfg.LogFormat, defaultFormat)
	level := firstNonEmpty(flags.logLevel, cfg.LogLevel)
	logger := slog.New(logging.NewHandler(os.Stderr, format, level))
	slog.SetDefault(logger)
	return logger
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// newApp opens the database and wires the calendar provider, the recording
// client, the agent manager, the synchronizer and the sweep dispatcher.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	instrConfig.Enabled = instrConfig.Enabled && opts.instrumented && cfg.MetricsEnabled
	if err := instrConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instrumentation configuration: %w", err)
	}
	instr, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	metrics := instr.Metrics()

	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		_ = instr.Shutdown(ctx)
		return nil, err
	}

	provider, err := calendar.NewProvider(cfg.CalendarProvider, calendar.ProviderConfig{
		Google:  cfg.Google(),
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		_ = st.Close()
		_ = instr.Shutdown(ctx)
		return nil, err
	}

	recallOpts := cfg.Recall()
	recallOpts.Metrics = metrics
	recallOpts.Logger = logger
	agents := recall.NewClient(recallOpts)

	manager := botmanager.New(agents, st,
		botmanager.WithTolerance(cfg.JoinTolerance),
		botmanager.WithAuditLogger(instr.AuditLogger(logger)),
		botmanager.WithMetrics(metrics),
		botmanager.WithLogger(logger),
	)
	syncer := calsync.New(st, provider, manager,
		calsync.WithWindow(cfg.SyncWindow),
		calsync.WithMaxResults(cfg.SyncMaxResults),
		calsync.WithMetrics(metrics),
		calsync.WithLogger(logger),
	)

	dispatcherOpts := []scheduler.Option{
		scheduler.WithSyncer(syncer),
		scheduler.WithDefaultLeadMinutes(cfg.DefaultLeadMinutes),
		scheduler.WithRetry(cfg.MaxRetries, cfg.RetryDelay),
		scheduler.WithMetrics(metrics),
		scheduler.WithLogger(logger),
	}
	if opts.publisher != nil {
		dispatcherOpts = append(dispatcherOpts, scheduler.WithPublisher(opts.publisher))
	}

	return &app{
		instr:      instr,
		store:      st,
		manager:    manager,
		syncer:     syncer,
		dispatcher: scheduler.NewDispatcher(st, manager, dispatcherOpts...),
	}, nil
}

// close releases the database and flushes telemetry.
func (a *app) close(ctx context.Context) error {
	return errors.Join(a.store.Close(), a.instr.Shutdown(ctx))
}

// newBroker returns the RabbitMQ broker when QUEUE_URL is set and an
// in-process broker otherwise.
func newBroker(cfg *config.Config, logger *slog.Logger) (queue.Broker, error) {
	if cfg.QueueURL == "" {
		logger.Info("QUEUE_URL not set, using in-process queue")
		return queue.NewMemoryBroker(0), nil
	}
	b, err := queue.NewRabbitBroker(cfg.QueueURL, cfg.QueueName,
		queue.WithPrefetch(cfg.WorkerConcurrency),
		queue.WithRabbitLogger(logging.NewSlogAdapter(logger)),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to message queue", slog.String("queue", cfg.QueueName))
	return b, nil
}
