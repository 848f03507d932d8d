// Package push manages the lifecycle of the background push subscription.
package push

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/notifier/settings"
)

// Reason classifies a subscribe failure.
type Reason string

const (
	ReasonUnsupported      Reason = "unsupported"
	ReasonDenied           Reason = "denied"
	ReasonDismissed        Reason = "dismissed"
	ReasonNotAuthenticated Reason = "not_authenticated"
	ReasonNetwork          Reason = "network"
	ReasonRejected         Reason = "rejected"
	ReasonPlatform         Reason = "platform"
)

// Failure is the error returned by Manager operations.
type Failure struct {
	Reason  Reason
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("push %s: %s: %v", f.Reason, f.Message, f.Err)
	}
	return fmt.Sprintf("push %s: %s", f.Reason, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// ReasonOf returns the failure reason of err, or "" when err is not a Failure.
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ""
}

// Rejection is returned by a Registrar when the server refused the request.
type Rejection struct {
	Status  int
	Message string
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return fmt.Sprintf("server rejected subscription (status %d)", r.Status)
	}
	return r.Message
}

// Permissions is the notification permission state of the host.
type Permissions interface {
	Permission() notify.Permission
	// RequestPermission asks the user. It blocks until they answer.
	RequestPermission(ctx context.Context) (notify.Permission, error)
}

// Platform is the push service the subscription lives on.
type Platform interface {
	Supported() bool
	// Subscription returns the live subscription, or nil.
	Subscription(ctx context.Context) (*notify.Subscription, error)
	Subscribe(ctx context.Context, applicationServerKey []byte) (notify.Subscription, error)
	Unsubscribe(ctx context.Context) error
}

// Registrar mirrors subscriptions to the application server.
type Registrar interface {
	Register(ctx context.Context, token string, sub notify.Subscription) error
	Unregister(ctx context.Context, token string, endpoint string) error
}

// TokenSource returns the bearer token, or "" when signed out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SettingsUpdater persists the Push flag.
type SettingsUpdater interface {
	Update(ctx context.Context, patch settings.Patch) (notify.Settings, error)
}

// Deps are the collaborators of a Manager.
type Deps struct {
	Permissions Permissions
	Platform    Platform
	Registrar   Registrar
	Tokens      TokenSource
	Settings    SettingsUpdater

	// VAPIDPublicKey is the URL-safe base64 application server key. Push is
	// unsupported without it.
	VAPIDPublicKey string
}

// Status summarizes the subscription state.
type Status struct {
	Supported  bool
	Permission notify.Permission
	Subscribed bool
	Endpoint   string
}

// Manager subscribes and unsubscribes the client from background push.
type Manager struct {
	deps Deps
	log  zerolog.Logger

	mu     sync.Mutex
	denied bool
}

// New creates a manager.
func New(deps Deps) *Manager {
	return &Manager{
		deps: deps,
		log:  logging.Component("push"),
	}
}

// DecodeKey decodes a URL-safe base64 key, with or without padding.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return base64.RawURLEncoding.DecodeString(s)
}

// Supported reports whether the host can receive push messages and a key is
// configured.
func (m *Manager) Supported() bool {
	return m.deps.VAPIDPublicKey != "" &&
		m.deps.Permissions != nil &&
		m.deps.Platform != nil &&
		m.deps.Platform.Supported()
}

// Permission returns the current permission state.
func (m *Manager) Permission() notify.Permission {
	if m.deps.Permissions == nil {
		return notify.PermissionDefault
	}
	m.mu.Lock()
	denied := m.denied
	m.mu.Unlock()
	if denied {
		return notify.PermissionDenied
	}
	return m.deps.Permissions.Permission()
}

// Subscribe asks for permission when needed, ensures a platform subscription
// exists and registers it with the server. Push is enabled in the settings
// only after the server acknowledged it. Errors are *Failure.
func (m *Manager) Subscribe(ctx context.Context) error {
	if !m.Supported() {
		return &Failure{Reason: ReasonUnsupported, Message: "push notifications are not supported here"}
	}

	if err := m.ensurePermission(ctx); err != nil {
		return err
	}

	sub, err := m.ensureSubscription(ctx)
	if err != nil {
		return err
	}

	token, err := m.token(ctx)
	if err != nil {
		return err
	}

	if err := m.deps.Registrar.Register(ctx, token, sub); err != nil {
		var rej *Rejection
		if errors.As(err, &rej) {
			return &Failure{Reason: ReasonRejected, Message: rej.Error(), Err: err}
		}
		return &Failure{Reason: ReasonNetwork, Message: "could not reach the server", Err: err}
	}

	if _, err := m.deps.Settings.Update(ctx, settings.Patch{Push: settings.Bool(true)}); err != nil {
		m.log.Warn().Err(err).Msg("push enabled but settings not saved")
	}

	m.log.Info().Str("endpoint", sub.Endpoint).Msg("push subscription registered")
	return nil
}

func (m *Manager) ensurePermission(ctx context.Context) error {
	perm := m.Permission()
	if perm == notify.PermissionGranted {
		return nil
	}
	if perm == notify.PermissionDenied {
		m.markDenied()
		return deniedFailure()
	}

	perm, err := m.deps.Permissions.RequestPermission(ctx)
	if err != nil {
		return &Failure{Reason: ReasonDismissed, Message: "permission prompt was not answered", Err: err}
	}

	switch perm {
	case notify.PermissionGranted:
		return nil
	case notify.PermissionDenied:
		m.markDenied()
		return deniedFailure()
	default:
		return &Failure{Reason: ReasonDismissed, Message: "permission was not granted"}
	}
}

func (m *Manager) markDenied() {
	m.mu.Lock()
	m.denied = true
	m.mu.Unlock()
}

func deniedFailure() *Failure {
	return &Failure{
		Reason:  ReasonDenied,
		Message: "notifications are blocked; run `cinq push reset-permission` or allow them in your desktop settings",
	}
}

func (m *Manager) ensureSubscription(ctx context.Context) (notify.Subscription, error) {
	existing, err := m.deps.Platform.Subscription(ctx)
	if err != nil {
		return notify.Subscription{}, &Failure{Reason: ReasonPlatform, Message: "could not read subscription", Err: err}
	}
	if existing != nil {
		return *existing, nil
	}

	key, err := DecodeKey(m.deps.VAPIDPublicKey)
	if err != nil {
		return notify.Subscription{}, &Failure{Reason: ReasonPlatform, Message: "invalid VAPID public key", Err: err}
	}

	sub, err := m.deps.Platform.Subscribe(ctx, key)
	if err != nil {
		return notify.Subscription{}, &Failure{Reason: ReasonPlatform, Message: "could not create subscription", Err: err}
	}

	m.log.Debug().Str("endpoint", sub.Endpoint).Msg("new push subscription created")
	return sub, nil
}

func (m *Manager) token(ctx context.Context) (string, error) {
	if m.deps.Tokens == nil {
		return "", &Failure{Reason: ReasonNotAuthenticated, Message: "not signed in"}
	}
	token, err := m.deps.Tokens.Token(ctx)
	if err != nil || token == "" {
		return "", &Failure{Reason: ReasonNotAuthenticated, Message: "not signed in", Err: err}
	}
	return token, nil
}

// Unsubscribe removes the platform subscription and tells the server,
// best-effort. Push is always disabled in the settings. Only a failure to
// remove the local subscription is returned.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	var platformErr error

	if m.deps.Platform != nil && m.deps.Platform.Supported() {
		platformErr = m.unsubscribePlatform(ctx)
	}

	if _, err := m.deps.Settings.Update(ctx, settings.Patch{Push: settings.Bool(false)}); err != nil {
		m.log.Warn().Err(err).Msg("push disabled but settings not saved")
	}

	return platformErr
}

func (m *Manager) unsubscribePlatform(ctx context.Context) error {
	sub, err := m.deps.Platform.Subscription(ctx)
	if err != nil {
		return &Failure{Reason: ReasonPlatform, Message: "could not read subscription", Err: err}
	}
	if sub == nil {
		return nil
	}

	if m.deps.Tokens != nil && m.deps.Registrar != nil {
		if token, err := m.deps.Tokens.Token(ctx); err == nil && token != "" {
			if err := m.deps.Registrar.Unregister(ctx, token, sub.Endpoint); err != nil {
				m.log.Warn().Err(err).Str("endpoint", sub.Endpoint).Msg("server unsubscribe failed")
			}
		}
	}

	if err := m.deps.Platform.Unsubscribe(ctx); err != nil {
		return &Failure{Reason: ReasonPlatform, Message: "could not remove subscription", Err: err}
	}

	m.log.Info().Str("endpoint", sub.Endpoint).Msg("push subscription removed")
	return nil
}

// IsSubscribed reports whether a live platform subscription exists.
func (m *Manager) IsSubscribed(ctx context.Context) bool {
	if !m.Supported() {
		return false
	}
	sub, err := m.deps.Platform.Subscription(ctx)
	return err == nil && sub != nil
}

// Status reports the full subscription state.
func (m *Manager) Status(ctx context.Context) Status {
	st := Status{
		Supported:  m.Supported(),
		Permission: m.Permission(),
	}
	if !st.Supported {
		return st
	}
	if sub, err := m.deps.Platform.Subscription(ctx); err == nil && sub != nil {
		st.Subscribed = true
		st.Endpoint = sub.Endpoint
	}
	return st
}
