package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrTurnID       = "turn.id"
	AttrTabID        = "tab.id"
	AttrQueryLength  = "turn.query.length"
	AttrEventType    = "stream.event.type"
	AttrPartial      = "stream.event.partial"
	AttrTool         = "stream.tool"
	AttrPlanSteps    = "plan.steps"
	AttrSingleWidget = "plan.single_widget"
	AttrWidgetQuery  = "widget.query.length"
	AttrTurnOutcome  = "turn.outcome"
	AttrErrorMessage = "error.message"
)

// Span names.
const (
	SpanTurn        = "chat.turn"
	SpanPlanApprove = "plan.approve"
	SpanBuildWidget = "widget.build"
)

// Event names.
const (
	EventStream        = "stream.event"
	EventPlanProposed  = "plan.proposed"
	EventPlanRejected  = "plan.rejected"
	EventDisconnected  = "conn.disconnected"
	EventTurnCancelled = "turn.cleared"
)

// StartTurn opens the span covering one user turn.
func StartTurn(ctx context.Context, tracer trace.Tracer, turnID, tabID string, queryLen int) (context.Context, trace.Span) {
	return tracer.Start(ctx, SpanTurn,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrTurnID, turnID),
			attribute.String(AttrTabID, tabID),
			attribute.Int(AttrQueryLength, queryLen),
		),
	)
}

// RecordStreamEvent adds one inbound stream event to span.
func RecordStreamEvent(span trace.Span, eventType string, partial bool, tool string) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrEventType, eventType),
		attribute.Bool(AttrPartial, partial),
	}
	if tool != "" {
		attrs = append(attrs, attribute.String(AttrTool, tool))
	}
	span.AddEvent(EventStream, trace.WithAttributes(attrs...))
}

// EndTurn sets the outcome and ends span. A non-nil err marks it failed.
func EndTurn(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String(AttrTurnOutcome, outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
