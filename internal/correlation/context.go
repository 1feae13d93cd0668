// Package correlation carries dispatch identifiers through context.Context and exposes them
// to log/slog records.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

// correlationIDKey is a context key type for storing the correlation id.
type correlationIDKey struct{}

// eventIDKey is a context key type for storing the outbox event id.
type eventIDKey struct{}

// topicKey is a context key type for storing the outbox topic.
type topicKey struct{}

// taskNameKey is a context key type for storing the scheduled task name.
type taskNameKey struct{}

// taskInstanceKey is a context key type for storing the scheduled task instance id.
type taskInstanceKey struct{}

// WithCorrelationID stores the correlation id in the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationID retrieves the correlation id from the context.
// Returns ("", false) if none was set.
func CorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationIDKey{}).(string)
	return id, ok && id != ""
}

// EnsureCorrelationID returns the correlation id carried by ctx or a fresh UUIDv7 when absent.
func EnsureCorrelationID(ctx context.Context) string {
	if id, ok := CorrelationID(ctx); ok {
		return id
	}
	return uuid.Must(uuid.NewV7()).String()
}

// WithEvent binds an outbox delivery (event id and topic) into the context.
func WithEvent(ctx context.Context, eventID uuid.UUID, topic string) context.Context {
	ctx = context.WithValue(ctx, eventIDKey{}, eventID)
	return context.WithValue(ctx, topicKey{}, topic)
}

// EventID retrieves the outbox event id from the context.
func EventID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(eventIDKey{}).(uuid.UUID)
	return id, ok
}

// Topic retrieves the outbox topic from the context.
func Topic(ctx context.Context) (string, bool) {
	topic, ok := ctx.Value(topicKey{}).(string)
	return topic, ok
}

// WithTask binds a scheduled task execution (task name and instance id) into the context.
func WithTask(ctx context.Context, taskName, taskInstance string) context.Context {
	ctx = context.WithValue(ctx, taskNameKey{}, taskName)
	return context.WithValue(ctx, taskInstanceKey{}, taskInstance)
}

// TaskName retrieves the scheduled task name from the context.
func TaskName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(taskNameKey{}).(string)
	return name, ok
}

// TaskInstance retrieves the scheduled task instance id from the context.
func TaskInstance(ctx context.Context) (string, bool) {
	instance, ok := ctx.Value(taskInstanceKey{}).(string)
	return instance, ok
}
