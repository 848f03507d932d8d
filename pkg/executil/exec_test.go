package executil

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealExecutor_Run(t *testing.T) {
	ctx := context.Background()
	e := RealExecutor{}

	out, err := e.Run(ctx, "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestRealExecutor_OutputCapped(t *testing.T) {
	ctx := context.Background()
	e := RealExecutor{}

	long := strings.Repeat("A", maxOutputLen*2)
	_, err := e.Run(ctx, "sh", "-c", "printf '%s' '"+long+"' >&2; exit 1")
	require.Error(t, err)

	assert.NotContains(t, err.Error(), strings.Repeat("A", maxOutputLen+1))
	assert.Contains(t, err.Error(), strings.Repeat("A", maxOutputLen))

	var exitErr *exec.ExitError
	assert.ErrorAs(t, err, &exitErr)
}

func TestRealExecutor_MissingCommand(t *testing.T) {
	_, err := RealExecutor{}.Run(context.Background(), "cinq-definitely-not-installed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cinq-definitely-not-installed")
}

func TestRecordingExecutor(t *testing.T) {
	ctx := context.Background()
	e := &RecordingExecutor{
		Outputs: map[string][]byte{"xdg-open": []byte("ok")},
		Errors:  map[string]error{"open": errors.New("nope")},
	}

	out, err := e.Run(ctx, "xdg-open", "http://x")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))

	_, err = e.Run(ctx, "open", "http://y")
	require.Error(t, err)

	require.Len(t, e.Commands, 2)
	assert.Equal(t, RecordedCommand{Cmd: "xdg-open", Args: []string{"http://x"}}, e.Commands[0])

	e.Reset()
	assert.Empty(t, e.Commands)
}
