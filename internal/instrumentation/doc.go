// Package instrumentation provides OpenTelemetry instrumentation for the
// notetaker service and its workers.
//
// # Metrics
//
// HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Provider Metrics:
//   - provider_operations_total: Counter of calendar and recording service calls
//   - provider_operation_duration_seconds: Histogram of provider call durations
//   - oauth_token_refresh_total: Counter of credential refresh attempts
//
// Sweep Metrics:
//   - sweep_runs_total: Counter of periodic sweep runs by sweep and status
//   - sweep_duration_seconds: Histogram of sweep durations
//
// Domain Metrics:
//   - calendar_events_synced_total: Events created or updated by calendar sync
//   - agents_created_total: Recording agents created, by platform and status
//   - agent_joins_total: Join commands issued
//   - meetings_harvested_total: Meetings materialized from finished recordings
//   - jobs_processed_total: Queued jobs handled by workers
//
// # Tracing
//
// Spans are created for sweeps (sweep.<name>), provider calls
// (<provider>.<operation>) and queued jobs (job.<kind>).
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: notetaker)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	m := provider.Metrics()
//	m.RecordSweep(ctx, instrumentation.SweepJoins, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
