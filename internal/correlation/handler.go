package correlation

import (
	"context"
	"log/slog"
)

// Handler decorates a slog.Handler, adding the identifiers bound in the record's context
// as attributes.
type Handler struct {
	next slog.Handler
}

// NewHandler wraps next so every record logged with a context gets correlation_id, event_id,
// topic, task_name and task_instance attributes when present.
func NewHandler(next slog.Handler) *Handler {
	return &Handler{next: next}
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if ctx != nil {
		record.AddAttrs(Attrs(ctx)...)
	}
	return h.next.Handle(ctx, record)
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name)}
}

// Attrs returns the identifiers bound in ctx as slog attributes.
func Attrs(ctx context.Context) []slog.Attr {
	attrs := make([]slog.Attr, 0, 5)
	if id, ok := CorrelationID(ctx); ok {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	if id, ok := EventID(ctx); ok {
		attrs = append(attrs, slog.String("event_id", id.String()))
	}
	if topic, ok := Topic(ctx); ok {
		attrs = append(attrs, slog.String("topic", topic))
	}
	if name, ok := TaskName(ctx); ok {
		attrs = append(attrs, slog.String("task_name", name))
	}
	if instance, ok := TaskInstance(ctx); ok {
		attrs = append(attrs, slog.String("task_instance", instance))
	}
	return attrs
}
