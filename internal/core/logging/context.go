package logging

import "context"

type contextKey string

const (
	sourceKey  contextKey = "source"
	cycleIDKey contextKey = "cycle_id"
)

// WithSource tags the context with the producer that delivered a notification
// (poll, push, background).
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey, source)
}

// WithCycleID adds a poll cycle identifier to the context.
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDKey, cycleID)
}

// GetSource retrieves the source from the context.
// Returns empty string if not present.
func GetSource(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey).(string); ok {
		return s
	}
	return ""
}

// GetCycleID retrieves the poll cycle ID from the context.
// Returns empty string if not present.
func GetCycleID(ctx context.Context) string {
	if id, ok := ctx.Value(cycleIDKey).(string); ok {
		return id
	}
	return ""
}
