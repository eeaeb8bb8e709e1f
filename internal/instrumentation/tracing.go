package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the notetaker packages.
const TracerName = "github.com/teemow/notetaker"

// Span attribute keys.
const (
	SpanAttrProvider  = "notetaker.provider"
	SpanAttrOperation = "notetaker.operation"
	SpanAttrSweep     = "notetaker.sweep"
	SpanAttrUserID    = "notetaker.user_id"
	SpanAttrEventID   = "notetaker.event_id"
	SpanAttrAgentID   = "notetaker.agent_id"
	SpanAttrJobKind   = "notetaker.job_kind"
	SpanAttrAttempt   = "notetaker.attempt"
)

// SpanAttributeBuilder collects span attributes, skipping zero ids.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

// NewSpanAttributeBuilder creates a new SpanAttributeBuilder.
func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{attrs: make([]attribute.KeyValue, 0, 4)}
}

// WithUser adds the local user id.
func (b *SpanAttributeBuilder) WithUser(userID uint) *SpanAttributeBuilder {
	if userID != 0 {
		b.attrs = append(b.attrs, attribute.Int64(SpanAttrUserID, int64(userID)))
	}
	return b
}

// WithEvent adds the local calendar event id.
func (b *SpanAttributeBuilder) WithEvent(eventID uint) *SpanAttributeBuilder {
	if eventID != 0 {
		b.attrs = append(b.attrs, attribute.Int64(SpanAttrEventID, int64(eventID)))
	}
	return b
}

// WithAgent adds the recording agent id.
func (b *SpanAttributeBuilder) WithAgent(agentID string) *SpanAttributeBuilder {
	if agentID != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrAgentID, agentID))
	}
	return b
}

// WithAttempt adds the delivery attempt of a queued job; first attempts are
// not tagged.
func (b *SpanAttributeBuilder) WithAttempt(attempt int) *SpanAttributeBuilder {
	if attempt > 0 {
		b.attrs = append(b.attrs, attribute.Int(SpanAttrAttempt, attempt))
	}
	return b
}

// Build returns the constructed attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

func start(ctx context.Context, name string, kind trace.SpanKind, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(kind),
	)
}

// StartSpan starts an internal span. The caller ends it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, name, trace.SpanKindInternal, attrs)
}

// StartSweepSpan starts the span "sweep.<name>" around one sweep run.
func StartSweepSpan(ctx context.Context, sweep string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{attribute.String(SpanAttrSweep, sweep)}, attrs...)
	return start(ctx, "sweep."+sweep, trace.SpanKindInternal, attrs)
}

// StartProviderSpan starts the client span "<provider>.<operation>" around
// a call to the calendar or recording provider.
func StartProviderSpan(ctx context.Context, provider, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{
		attribute.String(SpanAttrProvider, provider),
		attribute.String(SpanAttrOperation, operation),
	}, attrs...)
	return start(ctx, provider+"."+operation, trace.SpanKindClient, attrs)
}

// StartJobSpan starts the consumer span "job.<kind>" for a queued job.
func StartJobSpan(ctx context.Context, kind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{attribute.String(SpanAttrJobKind, kind)}, attrs...)
	return start(ctx, "job."+kind, trace.SpanKindConsumer, attrs)
}

// SetSpanError records err on the span and marks it failed.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		SetSpanError(span, err)
	} else {
		SetSpanSuccess(span)
	}
	span.End()
}

// GetTraceID returns the trace id of the span in ctx, or "" when ctx
// carries no sampled span.
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
