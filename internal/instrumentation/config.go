package instrumentation

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is the name of the service (default: notetaker)
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// ServiceInstanceID is the unique instance identifier (default: hostname)
	ServiceInstanceID string

	// K8sNamespace is the Kubernetes namespace where the service is running
	K8sNamespace string

	// K8sPodName is the Kubernetes pod name
	K8sPodName string

	// Enabled determines if instrumentation is active (default: true)
	// Set to false via INSTRUMENTATION_ENABLED=false to disable metrics and tracing
	Enabled bool

	// MetricsExporter specifies the metrics exporter type
	// Options: "prometheus", "otlp", "stdout" (default: "prometheus")
	MetricsExporter string

	// TracingExporter specifies the tracing exporter type
	// Options: "otlp", "stdout", "none" (default: "none")
	TracingExporter string

	// OTLPEndpoint is the OTLP collector endpoint without protocol prefix,
	// e.g. "localhost:4318"
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP export. Local development only.
	OTLPInsecure bool

	// TraceSamplingRate is the sampling rate for traces (0.0 to 1.0, default: 0.1)
	TraceSamplingRate float64

	// DetailedLabels adds per-user labels to agent metrics. Keep disabled in
	// production.
	DetailedLabels bool

	// AuditLogging configures the audit trail of agent actions.
	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	// Enabled determines if audit logging is active (default: true)
	Enabled bool

	// IncludePII controls whether full account emails are written to audit
	// entries. When false (default) only hashed identifiers are logged.
	IncludePII bool
}

// DefaultConfig returns a Config read from the standard OpenTelemetry
// environment variables and the notetaker-specific switches.
func DefaultConfig() Config {
	return Config{
		ServiceName:       env("OTEL_SERVICE_NAME", "notetaker", parseString),
		ServiceVersion:    "unknown",
		ServiceInstanceID: env("OTEL_SERVICE_INSTANCE_ID", "", parseString),
		K8sNamespace:      env("K8S_NAMESPACE", env("POD_NAMESPACE", "", parseString), parseString),
		K8sPodName:        env("K8S_POD_NAME", env("HOSTNAME", "", parseString), parseString),
		Enabled:           env("INSTRUMENTATION_ENABLED", true, strconv.ParseBool),
		MetricsExporter:   env("METRICS_EXPORTER", ExporterPrometheus, parseString),
		TracingExporter:   env("TRACING_EXPORTER", ExporterNone, parseString),
		OTLPEndpoint:      env("OTEL_EXPORTER_OTLP_ENDPOINT", "", parseString),
		OTLPInsecure:      env("OTEL_EXPORTER_OTLP_INSECURE", false, strconv.ParseBool),
		TraceSamplingRate: env("OTEL_TRACES_SAMPLER_ARG", 0.1, parseFloat),
		DetailedLabels:    env("METRICS_DETAILED_LABELS", false, strconv.ParseBool),
		AuditLogging: AuditLoggingConfig{
			Enabled:    env("AUDIT_LOGGING_ENABLED", true, strconv.ParseBool),
			IncludePII: env("AUDIT_LOGGING_INCLUDE_PII", false, strconv.ParseBool),
		},
	}
}

var (
	metricsExporters = map[string]bool{ExporterPrometheus: true, ExporterOTLP: true, ExporterStdout: true}
	tracingExporters = map[string]bool{ExporterOTLP: true, ExporterStdout: true, ExporterNone: true}
)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate))
	}
	if c.MetricsExporter != "" && !metricsExporters[c.MetricsExporter] {
		errs = append(errs, fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter))
	}
	if c.TracingExporter != "" && !tracingExporters[c.TracingExporter] {
		errs = append(errs, fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter))
	}
	if c.OTLPEndpoint == "" {
		if c.TracingExporter == ExporterOTLP {
			errs = append(errs, fmt.Errorf("OTLP endpoint is required when using OTLP tracing exporter"))
		}
		if c.MetricsExporter == ExporterOTLP {
			errs = append(errs, fmt.Errorf("OTLP endpoint is required when using OTLP metrics exporter"))
		}
	}
	return errors.Join(errs...)
}

// env returns the parsed value of key, or def when it is unset or does not
// parse.
func env[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func parseString(s string) (string, error) { return s, nil }

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

// Constants for metric label values.
const (
	// Status values
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"

	// External providers
	ProviderGoogleCalendar = "google_calendar"
	ProviderRecall         = "recall"

	// Sweep names
	SweepJoins       = "schedule_joins"
	SweepCompletions = "poll_completed"
	SweepCalendar    = "sync_calendar"

	// Harvest kinds
	HarvestCreated = "created"
	HarvestUpdated = "updated"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// DefaultMetricInterval is the export interval of periodic readers.
	DefaultMetricInterval = 10 * time.Second
)
