package config

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/hay-kot/criterio"
	"github.com/lucasb-eyer/go-colorful"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration including
// URLs, key material, colors and file accessibility. The configPath argument
// specifies the config file location to validate (empty string skips config file check).
// This calls Validate() first for basic structural validation, then adds I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateServer(),
		c.validatePoll(),
		c.validatePush(),
		c.validateBadge(),
		c.validateListeners(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Push.VAPIDPublicKey == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Push",
			Message:  "no VAPID public key configured, background push is disabled",
		})
	}

	if c.Server.Token == "" && c.Server.TokenFile == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Server",
			Message:  "no token configured, polling and push registration will be skipped",
		})
	}

	if c.Sounds.Message == "" && c.Sounds.Ping == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Sounds",
			Message:  "no sound files configured, notification sounds are silent",
		})
	}

	if c.Poll.Foreground > c.Poll.Background {
		warnings = append(warnings, ValidationWarning{
			Category: "Poll",
			Item:     "foreground",
			Message:  "foreground interval is longer than background interval",
		})
	}

	return warnings
}

// validateFileAccess checks config file, data directory and referenced files.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		criterio.Run("server.token_file", c.Server.TokenFile, fileExistsIfSet),
		criterio.Run("sounds.message", c.Sounds.Message, fileExistsIfSet),
		criterio.Run("sounds.ping", c.Sounds.Ping, fileExistsIfSet),
		criterio.Run("badge.icon", c.Badge.Icon, fileExistsIfSet),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

func (c *Config) validateServer() error {
	var errs criterio.FieldErrorsBuilder

	if err := httpURL(c.Server.BaseURL); err != nil {
		errs = errs.Append("server.base_url", err)
	}
	paths := []struct{ field, value string }{
		{"server.poll_path", c.Server.PollPath},
		{"server.push_path", c.Server.PushPath},
		{"server.app_path", c.Server.AppPath},
	}
	for _, p := range paths {
		if !strings.HasPrefix(p.value, "/") {
			errs = errs.Append(p.field, fmt.Errorf("must start with /"))
		}
	}
	if c.Server.RequestTimeout < 0 {
		errs = errs.Append("server.request_timeout", fmt.Errorf("must not be negative"))
	}

	return errs.ToError()
}

func (c *Config) validatePoll() error {
	var errs criterio.FieldErrorsBuilder

	if c.Poll.IdleThreshold <= 0 {
		errs = errs.Append("poll.idle_threshold", fmt.Errorf("must be positive"))
	}
	if c.Poll.BackoffResetAfter < 0 {
		errs = errs.Append("poll.backoff_reset_after", fmt.Errorf("must not be negative"))
	}
	if c.Poll.MaxBackoff > 64 {
		errs = errs.Append("poll.max_backoff", fmt.Errorf("must be at most 64, got %d", c.Poll.MaxBackoff))
	}

	return errs.ToError()
}

func (c *Config) validatePush() error {
	var errs criterio.FieldErrorsBuilder

	if c.Push.VAPIDPublicKey != "" {
		if err := vapidKey(c.Push.VAPIDPublicKey); err != nil {
			errs = errs.Append("push.vapid_public_key", err)
		}
	}
	if c.Push.RelayURL != "" {
		u, err := url.Parse(c.Push.RelayURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = errs.Append("push.relay_url", fmt.Errorf("must be a ws:// or wss:// URL"))
		}
	}

	return errs.ToError()
}

func (c *Config) validateBadge() error {
	var errs criterio.FieldErrorsBuilder

	if _, err := colorful.Hex(c.Badge.Color); err != nil {
		errs = errs.Append("badge.color", fmt.Errorf("invalid hex color %q", c.Badge.Color))
	}
	if c.Sounds.MessageVolume < 0 || c.Sounds.MessageVolume > 1 {
		errs = errs.Append("sounds.message_volume", fmt.Errorf("must be between 0 and 1"))
	}
	if c.Sounds.PingVolume < 0 || c.Sounds.PingVolume > 1 {
		errs = errs.Append("sounds.ping_volume", fmt.Errorf("must be between 0 and 1"))
	}

	return errs.ToError()
}

func (c *Config) validateListeners() error {
	var errs criterio.FieldErrorsBuilder

	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			errs = errs.Append("metrics.addr", fmt.Errorf("must be host:port: %w", err))
		}
	}
	if c.Metrics.Pprof && c.Metrics.Addr == "" {
		errs = errs.Append("metrics.pprof", fmt.Errorf("requires metrics.addr"))
	}
	if _, _, err := net.SplitHostPort(c.DevServer.Addr); err != nil {
		errs = errs.Append("devserver.addr", fmt.Errorf("must be host:port: %w", err))
	}

	return errs.ToError()
}

func httpURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// vapidKey checks the key is an uncompressed P-256 point in URL-safe base64.
func vapidKey(key string) error {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(key, "="))
	if err != nil {
		return fmt.Errorf("not url-safe base64: %w", err)
	}
	if len(raw) != 65 || raw[0] != 0x04 {
		return fmt.Errorf("expected 65-byte uncompressed P-256 point, got %d bytes", len(raw))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func fileExistsIfSet(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}
	return nil
}
