package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan opens a domain span ("engagement.toggle_reaction", "chat.send_message", ...)
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return otel.Tracer("gunwadex").Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err (if any) and ends the span
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func TargetAttrs(kind, id string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("target.type", kind),
		attribute.String("target.id", id),
	}
}

func UserAttr(userID string) attribute.KeyValue {
	return attribute.String("user.id", userID)
}

func ConversationAttr(conversationID string) attribute.KeyValue {
	return attribute.String("chat.conversation_id", conversationID)
}
