package instrumentation

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Agent actions recorded in the audit trail.
const (
	ActionCreate  = "create"
	ActionJoin    = "join"
	ActionLeave   = "leave"
	ActionHarvest = "harvest"
)

// AgentAction captures one action taken against a recording agent on behalf
// of a user.
//
// # Privacy Considerations
//
// AccountEmail contains PII. It is only written when the audit logger is
// configured with IncludePII; otherwise the domain is logged instead.
type AgentAction struct {
	Action       string
	UserID       uint
	AccountEmail string
	EventID      uint
	AgentID      string
	MeetingURL   string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewAgentAction creates a new AgentAction with timing started.
// Call Complete() when the action finishes.
func NewAgentAction(action string) *AgentAction {
	return &AgentAction{
		Action:    action,
		StartTime: time.Now(),
	}
}

// WithUser sets the owning user and the calendar account email.
func (a *AgentAction) WithUser(userID uint, email string) *AgentAction {
	a.UserID = userID
	a.AccountEmail = email
	return a
}

// WithEvent sets the calendar event and meeting link the action concerns.
func (a *AgentAction) WithEvent(eventID uint, meetingURL string) *AgentAction {
	a.EventID = eventID
	a.MeetingURL = meetingURL
	return a
}

// WithAgent sets the recording agent id.
func (a *AgentAction) WithAgent(agentID string) *AgentAction {
	a.AgentID = agentID
	return a
}

// WithSpanContext extracts trace context from the current span.
func (a *AgentAction) WithSpanContext(ctx context.Context) *AgentAction {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		a.TraceID = span.SpanContext().TraceID().String()
		a.SpanID = span.SpanContext().SpanID().String()
	}
	return a
}

// Complete marks the action as finished and calculates its duration.
func (a *AgentAction) Complete(err error) *AgentAction {
	a.Duration = time.Since(a.StartTime)
	a.Success = err == nil
	if err != nil {
		a.Error = err.Error()
	}
	return a
}

// Status returns "success" or "error" based on the Success field.
func (a *AgentAction) Status() string {
	if a.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for the action. includePII selects
// between the full account email and its domain.
func (a *AgentAction) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", a.Action),
		slog.String("user_id", strconv.FormatUint(uint64(a.UserID), 10)),
		slog.Duration("duration", a.Duration),
		slog.Bool("success", a.Success),
	}

	if includePII {
		attrs = append(attrs, slog.String("account", a.AccountEmail))
	} else {
		attrs = append(attrs, slog.String("user_domain", ExtractUserDomain(a.AccountEmail)))
	}
	if a.EventID != 0 {
		attrs = append(attrs, slog.Uint64("event_id", uint64(a.EventID)))
	}
	if a.AgentID != "" {
		attrs = append(attrs, slog.String("agent_id", a.AgentID))
	}
	if includePII && a.MeetingURL != "" {
		attrs = append(attrs, slog.String("meeting_url", a.MeetingURL))
	}
	if a.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", a.TraceID))
	}
	if a.SpanID != "" && includePII {
		attrs = append(attrs, slog.String("span_id", a.SpanID))
	}
	if a.Error != "" {
		attrs = append(attrs, slog.String("error", a.Error))
	}

	return attrs
}

// AuditLogger provides structured audit logging for agent actions.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates a new AuditLogger with the given slog.Logger.
// By default, PII is not included in logs.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether to include full email addresses in audit logs.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogAgentAction writes one audit entry. A nil receiver is a no-op so
// callers can hold an optional audit logger.
func (al *AuditLogger) LogAgentAction(a *AgentAction) {
	if al == nil || !al.enabled || a == nil {
		return
	}

	attrs := a.LogAttrs(al.includePII)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if a.Success {
		al.logger.Info("agent_action", args...)
	} else {
		al.logger.Warn("agent_action_failed", args...)
	}
}
