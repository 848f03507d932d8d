package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook extracts source and cycle_id from context and adds them to log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if source := GetSource(ctx); source != "" {
		e.Str("source", source)
	}

	if cycleID := GetCycleID(ctx); cycleID != "" {
		e.Str("cycle_id", cycleID)
	}
}
