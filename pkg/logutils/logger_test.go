package logutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "cinq.log")

	l, closer, err := New("info", file)
	require.NoError(t, err)

	l.Info().Str("k", "v").Msg("hello")
	l.Debug().Msg("filtered")
	closer()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.NotContains(t, string(data), "filtered")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, closer, err := New("chatty", "")
	require.Error(t, err)
	closer()
}
