// Package config handles configuration loading and validation for cinq.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvVAPIDPublicKey = "CINQ_VAPID_PUBLIC_KEY"
	EnvToken          = "CINQ_TOKEN"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Poll      PollConfig      `yaml:"poll"`
	Push      PushConfig      `yaml:"push"`
	Sounds    SoundsConfig    `yaml:"sounds"`
	Badge     BadgeConfig     `yaml:"badge"`
	Toast     ToastConfig     `yaml:"toast"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	TUI       TUIConfig       `yaml:"tui"`
	Database  DatabaseConfig  `yaml:"database"`
	DevServer DevServerConfig `yaml:"devserver"`
	DataDir   string          `yaml:"-"` // set by caller, not from config file
}

// ServerConfig locates the messaging server and its credentials.
type ServerConfig struct {
	BaseURL        string        `yaml:"base_url"`
	PollPath       string        `yaml:"poll_path"`
	PushPath       string        `yaml:"push_path"`
	AppPath        string        `yaml:"app_path"` // navigation target when a message has no url
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Token          string        `yaml:"token"`
	TokenFile      string        `yaml:"token_file"`
}

// PollConfig holds the adaptive polling cadence.
type PollConfig struct {
	Foreground        time.Duration `yaml:"foreground"`
	Background        time.Duration `yaml:"background"`
	Idle              time.Duration `yaml:"idle"`
	IdleThreshold     time.Duration `yaml:"idle_threshold"`
	MaxBackoff        int           `yaml:"max_backoff"`
	BackoffResetAfter time.Duration `yaml:"backoff_reset_after"`
}

// PushConfig configures background push delivery.
type PushConfig struct {
	VAPIDPublicKey string `yaml:"vapid_public_key"`
	RelayURL       string `yaml:"relay_url"`
}

// SoundsConfig points at the audio cues. Empty paths disable the cue.
type SoundsConfig struct {
	Message       string  `yaml:"message"`
	Ping          string  `yaml:"ping"`
	MessageVolume float64 `yaml:"message_volume"`
	PingVolume    float64 `yaml:"ping_volume"`
}

// BadgeConfig drives the title, favicon and launcher badge surfaces.
type BadgeConfig struct {
	Title        string `yaml:"title"`
	Icon         string `yaml:"icon"`   // base icon; a plain disc is drawn when empty
	Output       string `yaml:"output"` // rendered favicon path
	Color        string `yaml:"color"`
	DesktopEntry string `yaml:"desktop_entry"`
}

// ToastConfig controls the transient toast.
type ToastConfig struct {
	Duration time.Duration `yaml:"duration"`
	Desktop  bool          `yaml:"desktop"` // mirror toasts to the desktop notification daemon
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr  string `yaml:"addr"`
	Pprof bool   `yaml:"pprof"` // also serve /debug/pprof on Addr
}

// TUIConfig styles the terminal notification center.
type TUIConfig struct {
	Theme string `yaml:"theme"`
}

// DatabaseConfig tunes the SQLite connection pool.
type DatabaseConfig struct {
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
	BusyTimeout  int `yaml:"busy_timeout"` // milliseconds
}

// DevServerConfig configures the local development server.
type DevServerConfig struct {
	Addr   string `yaml:"addr"`
	Secret string `yaml:"secret"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			BaseURL:        "http://localhost:8080",
			PollPath:       "/api/messages",
			PushPath:       "/api/push-subscribe",
			AppPath:        "/app.html",
			RequestTimeout: 15 * time.Second,
		},
		Poll: PollConfig{
			Foreground:        30 * time.Second,
			Background:        120 * time.Second,
			Idle:              300 * time.Second,
			IdleThreshold:     5 * time.Minute,
			MaxBackoff:        4,
			BackoffResetAfter: 60 * time.Second,
		},
		Push: PushConfig{
			RelayURL: "wss://push.services.mozilla.com",
		},
		Sounds: SoundsConfig{
			MessageVolume: 0.5,
			PingVolume:    0.6,
		},
		Badge: BadgeConfig{
			Title:        "Cinq",
			Color:        "#ef4444",
			DesktopEntry: "application://cinq.desktop",
		},
		Toast: ToastConfig{
			Duration: 5 * time.Second,
			Desktop:  true,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 4,
			MaxIdleConns: 2,
			BusyTimeout:  5000,
		},
		TUI: TUIConfig{
			Theme: "tokyo-night",
		},
		DevServer: DevServerConfig{
			Addr:   "127.0.0.1:8080",
			Secret: "cinq-dev-secret",
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvVAPIDPublicKey); v != "" {
		c.Push.VAPIDPublicKey = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		c.Server.Token = v
	}
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	d := DefaultConfig()

	if c.Server.PollPath == "" {
		c.Server.PollPath = d.Server.PollPath
	}
	if c.Server.PushPath == "" {
		c.Server.PushPath = d.Server.PushPath
	}
	if c.Server.AppPath == "" {
		c.Server.AppPath = d.Server.AppPath
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = d.Server.RequestTimeout
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")

	if c.Poll.Foreground == 0 {
		c.Poll.Foreground = d.Poll.Foreground
	}
	if c.Poll.Background == 0 {
		c.Poll.Background = d.Poll.Background
	}
	if c.Poll.Idle == 0 {
		c.Poll.Idle = d.Poll.Idle
	}
	if c.Poll.IdleThreshold == 0 {
		c.Poll.IdleThreshold = d.Poll.IdleThreshold
	}
	if c.Poll.MaxBackoff == 0 {
		c.Poll.MaxBackoff = d.Poll.MaxBackoff
	}
	if c.Poll.BackoffResetAfter == 0 {
		c.Poll.BackoffResetAfter = d.Poll.BackoffResetAfter
	}

	if c.Sounds.MessageVolume == 0 {
		c.Sounds.MessageVolume = d.Sounds.MessageVolume
	}
	if c.Sounds.PingVolume == 0 {
		c.Sounds.PingVolume = d.Sounds.PingVolume
	}

	if c.Badge.Title == "" {
		c.Badge.Title = d.Badge.Title
	}
	if c.Badge.Color == "" {
		c.Badge.Color = d.Badge.Color
	}
	if c.Badge.Output == "" && c.DataDir != "" {
		c.Badge.Output = filepath.Join(c.DataDir, "favicon.png")
	}

	if c.Toast.Duration == 0 {
		c.Toast.Duration = d.Toast.Duration
	}

	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = d.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = d.Database.MaxIdleConns
	}
	if c.Database.BusyTimeout == 0 {
		c.Database.BusyTimeout = d.Database.BusyTimeout
	}
}

// Validate checks that the configuration is structurally valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url cannot be empty")
	}

	if c.Poll.MaxBackoff < 1 {
		return fmt.Errorf("poll.max_backoff must be at least 1")
	}

	if c.Poll.Foreground <= 0 || c.Poll.Background <= 0 || c.Poll.Idle <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}

	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}

	return nil
}

// ResolveToken returns the bearer token, reading TokenFile when Token is unset.
// An empty result means the user is not authenticated.
func (c *Config) ResolveToken() (string, error) {
	if c.Server.Token != "" {
		return c.Server.Token, nil
	}
	if c.Server.TokenFile == "" {
		return "", nil
	}

	data, err := os.ReadFile(c.Server.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// AppURL resolves the fallback navigation target against the server.
func (c *Config) AppURL() string {
	return c.Server.BaseURL + c.Server.AppPath
}
