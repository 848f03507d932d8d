package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "missing.yaml"), dir)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Poll.Foreground)
	assert.Equal(t, 120*time.Second, cfg.Poll.Background)
	assert.Equal(t, 300*time.Second, cfg.Poll.Idle)
	assert.Equal(t, 5*time.Minute, cfg.Poll.IdleThreshold)
	assert.Equal(t, 4, cfg.Poll.MaxBackoff)
	assert.Equal(t, 60*time.Second, cfg.Poll.BackoffResetAfter)
	assert.Equal(t, 5*time.Second, cfg.Toast.Duration)
	assert.Equal(t, "Cinq", cfg.Badge.Title)
	assert.Equal(t, filepath.Join(dir, "favicon.png"), cfg.Badge.Output)
	assert.Equal(t, dir, cfg.DataDir)
}

func TestLoad_FileOverridesAndDefaultsFill(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  base_url: https://cinq.example.com/
  token: abc
poll:
  foreground: 10s
  max_backoff: 8
badge:
  title: Chat
`), 0o600))

	cfg, err := Load(path, dir)
	require.NoError(t, err)

	assert.Equal(t, "https://cinq.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "/api/messages", cfg.Server.PollPath)
	assert.Equal(t, 10*time.Second, cfg.Poll.Foreground)
	assert.Equal(t, 120*time.Second, cfg.Poll.Background)
	assert.Equal(t, 8, cfg.Poll.MaxBackoff)
	assert.Equal(t, "Chat", cfg.Badge.Title)
	assert.Equal(t, "https://cinq.example.com/app.html", cfg.AppURL())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvVAPIDPublicKey, "env-key")
	t.Setenv(EnvToken, "env-token")

	cfg, err := Load("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Push.VAPIDPublicKey)
	assert.Equal(t, "env-token", cfg.Server.Token)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll: [nope"), 0o600))

	_, err := Load(path, dir)
	assert.ErrorContains(t, err, "parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no data dir", mutate: func(c *Config) { c.DataDir = "" }, wantErr: "data directory"},
		{name: "no base url", mutate: func(c *Config) { c.Server.BaseURL = "" }, wantErr: "base_url"},
		{name: "zero backoff", mutate: func(c *Config) { c.Poll.MaxBackoff = 0 }, wantErr: "max_backoff"},
		{name: "negative interval", mutate: func(c *Config) { c.Poll.Idle = -time.Second }, wantErr: "intervals"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestResolveToken(t *testing.T) {
	t.Run("inline token wins", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Server.Token = "inline"
		cfg.Server.TokenFile = "/does/not/matter"

		tok, err := cfg.ResolveToken()
		require.NoError(t, err)
		assert.Equal(t, "inline", tok)
	})

	t.Run("token file trimmed", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Server.TokenFile = filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(cfg.Server.TokenFile, []byte("from-file\n"), 0o600))

		tok, err := cfg.ResolveToken()
		require.NoError(t, err)
		assert.Equal(t, "from-file", tok)
	})

	t.Run("missing file means unauthenticated", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Server.TokenFile = filepath.Join(t.TempDir(), "absent")

		tok, err := cfg.ResolveToken()
		require.NoError(t, err)
		assert.Empty(t, tok)
	})
}
