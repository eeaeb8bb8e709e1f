package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrProvider  = "provider"
	attrSweep     = "sweep"
	attrKind      = "kind"
	attrPlatform  = "platform"
	attrUser      = "user"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// External provider metrics (calendar, recording service)
	providerOperationsTotal   metric.Int64Counter
	providerOperationDuration metric.Float64Histogram

	// Periodic sweep metrics
	sweepRunsTotal metric.Int64Counter
	sweepDuration  metric.Float64Histogram

	// Domain metrics
	calendarEventsSynced metric.Int64Counter
	agentsCreatedTotal   metric.Int64Counter
	agentJoinsTotal      metric.Int64Counter
	meetingsHarvested    metric.Int64Counter
	tokenRefreshTotal    metric.Int64Counter

	// Queue metrics
	jobsProcessedTotal metric.Int64Counter

	// detailedLabels controls whether per-user labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.providerOperationsTotal, err = meter.Int64Counter(
		"provider_operations_total",
		metric.WithDescription("Total number of calls to external providers"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider_operations_total counter: %w", err)
	}

	m.providerOperationDuration, err = meter.Float64Histogram(
		"provider_operation_duration_seconds",
		metric.WithDescription("External provider call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider_operation_duration_seconds histogram: %w", err)
	}

	m.sweepRunsTotal, err = meter.Int64Counter(
		"sweep_runs_total",
		metric.WithDescription("Total number of periodic sweep runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep_runs_total counter: %w", err)
	}

	m.sweepDuration, err = meter.Float64Histogram(
		"sweep_duration_seconds",
		metric.WithDescription("Periodic sweep duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep_duration_seconds histogram: %w", err)
	}

	m.calendarEventsSynced, err = meter.Int64Counter(
		"calendar_events_synced_total",
		metric.WithDescription("Total number of calendar events created or updated by sync"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_events_synced_total counter: %w", err)
	}

	m.agentsCreatedTotal, err = meter.Int64Counter(
		"agents_created_total",
		metric.WithDescription("Total number of recording agents created"),
		metric.WithUnit("{agent}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agents_created_total counter: %w", err)
	}

	m.agentJoinsTotal, err = meter.Int64Counter(
		"agent_joins_total",
		metric.WithDescription("Total number of join commands issued to recording agents"),
		metric.WithUnit("{join}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_joins_total counter: %w", err)
	}

	m.meetingsHarvested, err = meter.Int64Counter(
		"meetings_harvested_total",
		metric.WithDescription("Total number of meeting records materialized from finished recordings"),
		metric.WithUnit("{meeting}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create meetings_harvested_total counter: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of calendar credential refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	m.jobsProcessedTotal, err = meter.Int64Counter(
		"jobs_processed_total",
		metric.WithDescription("Total number of queued jobs handled by workers"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create jobs_processed_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordProviderOperation records a call to an external provider.
//
// Parameters:
//   - provider: ProviderGoogleCalendar or ProviderRecall
//   - operation: Operation type (list, get, create, join, leave, download, refresh)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the call
func (m *Metrics) RecordProviderOperation(ctx context.Context, provider, operation, status string, duration time.Duration) {
	if m.providerOperationsTotal == nil || m.providerOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrProvider, provider),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.providerOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.providerOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSweep records one run of a periodic sweep.
func (m *Metrics) RecordSweep(ctx context.Context, sweep, status string, duration time.Duration) {
	if m.sweepRunsTotal == nil || m.sweepDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrSweep, sweep),
		attribute.String(attrStatus, status),
	}

	m.sweepRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.sweepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordEventsSynced adds count calendar events of the given kind
// (HarvestCreated or HarvestUpdated).
func (m *Metrics) RecordEventsSynced(ctx context.Context, kind string, count int) {
	if m.calendarEventsSynced == nil || count <= 0 {
		return
	}
	m.calendarEventsSynced.Add(ctx, int64(count), metric.WithAttributes(attribute.String(attrKind, kind)))
}

// RecordAgentCreated records a recording agent creation attempt. The user id
// is attached only when detailed labels are enabled.
func (m *Metrics) RecordAgentCreated(ctx context.Context, platform, status string, userID uint) {
	if m.agentsCreatedTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrPlatform, PlatformLabel(platform)),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && userID != 0 {
		attrs = append(attrs, attribute.String(attrUser, strconv.FormatUint(uint64(userID), 10)))
	}

	m.agentsCreatedTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAgentJoin records a join command result.
func (m *Metrics) RecordAgentJoin(ctx context.Context, status string) {
	if m.agentJoinsTotal == nil {
		return
	}
	m.agentJoinsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordMeetingHarvested records a meeting materialized from a finished recording.
func (m *Metrics) RecordMeetingHarvested(ctx context.Context, kind string) {
	if m.meetingsHarvested == nil {
		return
	}
	m.meetingsHarvested.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}

// RecordTokenRefresh records a credential refresh attempt.
// Status should be one of: "success", "error", "skipped"
func (m *Metrics) RecordTokenRefresh(ctx context.Context, provider, status string) {
	if m.tokenRefreshTotal == nil {
		return
	}
	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrProvider, provider),
		attribute.String(attrStatus, status),
	))
}

// RecordJob records a queued job handled by a worker.
func (m *Metrics) RecordJob(ctx context.Context, kind, status string) {
	if m.jobsProcessedTotal == nil {
		return
	}
	m.jobsProcessedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrStatus, status),
	))
}
