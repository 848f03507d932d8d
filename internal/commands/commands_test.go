package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cinq/internal/core/config"
	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/notifier/push"
	"github.com/colonyops/cinq/internal/notifier/settings"
)

func TestParseToggle(t *testing.T) {
	for _, raw := range []string{"on", "ON", "true", "yes", "1"} {
		v, err := parseToggle(raw)
		require.NoError(t, err, raw)
		assert.True(t, v, raw)
	}
	for _, raw := range []string{"off", "false", "no", "0"} {
		v, err := parseToggle(raw)
		require.NoError(t, err, raw)
		assert.False(t, v, raw)
	}
	_, err := parseToggle("maybe")
	assert.Error(t, err)
}

func TestSettingPatch(t *testing.T) {
	tests := []struct {
		name string
		want settings.Patch
	}{
		{"sound", settings.Patch{Sound: settings.Bool(false)}},
		{"in-app", settings.Patch{InApp: settings.Bool(false)}},
		{"Badge", settings.Patch{Badge: settings.Bool(false)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := settingPatch(tt.name, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := settingPatch("push", true)
	assert.Error(t, err, "push goes through the push manager")
}

func TestSubscribeMessage(t *testing.T) {
	denied := &push.Failure{Reason: push.ReasonDenied, Message: "blocked"}
	assert.Contains(t, subscribeMessage(denied), "reset-permission")

	unsupported := &push.Failure{Reason: push.ReasonUnsupported}
	assert.Contains(t, subscribeMessage(unsupported), "vapid_public_key")

	other := errors.New("boom")
	assert.Contains(t, subscribeMessage(other), "boom")
}

func TestFilterItems(t *testing.T) {
	items := []notify.Item{
		{ID: "1", Read: false},
		{ID: "2", Read: true},
		{ID: "3", Read: false},
		{ID: "4", Read: false},
	}

	assert.Len(t, filterItems(items, false, 0), 4)
	assert.Len(t, filterItems(items, false, 2), 2)

	unread := filterItems(items, true, 0)
	require.Len(t, unread, 3)
	assert.Equal(t, "3", unread[1].ID)

	assert.Len(t, filterItems(items, true, 1), 1)
}

func TestPrintItems(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer

	printItems(&buf, []notify.Item{
		{ID: "a1", Title: "Alice", Body: "salut\nça va", Timestamp: now.Add(-2 * time.Hour)},
		{ID: "b2", Title: "Bob", Body: "ping", Timestamp: now.Add(-3 * time.Hour), Read: true},
	}, now)

	out := buf.String()
	assert.Contains(t, out, "●")
	assert.Contains(t, out, "a1")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "salut ça va")
	assert.Contains(t, out, "Bob")
}

func TestValidateReport(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	report := validate(&cfg, "")
	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
	assert.NotEmpty(t, report.Warnings)

	cfg.Badge.Color = "not-a-color"
	report = validate(&cfg, "")
	assert.False(t, report.Valid)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "badge.color", report.Errors[0].Field)

	var buf bytes.Buffer
	printReport(&buf, report)
	assert.Contains(t, buf.String(), "1 error(s) found")
}

func TestWriteTokenFile(t *testing.T) {
	assert.Error(t, writeTokenFile("", "tok"))

	path := filepath.Join(t.TempDir(), "nested", "token")
	require.NoError(t, writeTokenFile(path, "tok"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tok\n", string(data))
}
