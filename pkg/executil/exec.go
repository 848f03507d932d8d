// Package executil runs external helper programs such as URL openers.
package executil

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// maxOutputLen bounds captured helper output so failures stay log-sized.
const maxOutputLen = 500

// Executor runs a program and returns its combined output.
type Executor interface {
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
}

// cappedBuffer keeps the first max bytes written and reports full writes
// so the child never sees a short-write error.
type cappedBuffer struct {
	bytes.Buffer
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.Len(); room > 0 {
		b.Buffer.Write(p[:min(room, len(p))])
	}
	return len(p), nil
}

// RealExecutor starts processes with os/exec.
type RealExecutor struct{}

// Run waits for cmd to exit. A failing command's output is folded into the
// error, and the *exec.ExitError stays reachable with errors.As.
func (RealExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	out := &cappedBuffer{max: maxOutputLen}

	c := exec.CommandContext(ctx, cmd, args...)
	c.Stdout, c.Stderr = out, out

	err := c.Run()
	if err == nil {
		return out.Bytes(), nil
	}
	if msg := strings.TrimSpace(out.String()); msg != "" {
		return out.Bytes(), fmt.Errorf("exec %s: %s: %w", cmd, msg, err)
	}
	return out.Bytes(), fmt.Errorf("exec %s: %w", cmd, err)
}
