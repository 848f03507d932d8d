package executil

import (
	"context"
	"sync"
)

type RecordedCommand struct {
	Cmd  string
	Args []string
}

// RecordingExecutor is a test double. Outputs and Errors are keyed by
// program name.
type RecordingExecutor struct {
	Outputs map[string][]byte
	Errors  map[string]error

	mu       sync.Mutex
	Commands []RecordedCommand
}

func (e *RecordingExecutor) Run(_ context.Context, cmd string, args ...string) ([]byte, error) {
	e.mu.Lock()
	e.Commands = append(e.Commands, RecordedCommand{Cmd: cmd, Args: args})
	e.mu.Unlock()

	return e.Outputs[cmd], e.Errors[cmd]
}

func (e *RecordingExecutor) Reset() {
	e.mu.Lock()
	e.Commands = nil
	e.mu.Unlock()
}
