// Package consent keeps the user's answer to the notification permission
// prompt.
package consent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/core/kv"
	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
)

const permissionKey = "permission"

// ErrDismissed is returned when the prompt was closed without an answer.
var ErrDismissed = errors.New("permission prompt dismissed")

// Prompter asks a yes/no question.
type Prompter interface {
	Confirm(ctx context.Context, title, description string) (bool, error)
}

// Store persists the permission and asks for it when undecided.
type Store struct {
	kv     *kv.TypedKV[notify.Permission]
	prompt Prompter
	log    zerolog.Logger

	mu     sync.Mutex
	cached notify.Permission
}

// New creates a store. prompt may be nil when no terminal is attached; the
// permission then stays undecided.
func New(store kv.KV, prompt Prompter) *Store {
	return &Store{
		kv:     kv.Scoped[notify.Permission](store, "consent"),
		prompt: prompt,
		log:    logging.Component("consent"),
	}
}

// Permission returns the stored answer, or default.
func (s *Store) Permission() notify.Permission {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" {
		return s.cached
	}
	p, err := s.kv.GetOr(context.Background(), permissionKey, notify.PermissionDefault)
	if err != nil {
		s.log.Warn().Err(err).Msg("read permission")
		return notify.PermissionDefault
	}
	s.cached = p
	return p
}

// RequestPermission prompts when the permission is undecided. An answer is
// persisted; a dismissed prompt leaves the permission undecided.
func (s *Store) RequestPermission(ctx context.Context) (notify.Permission, error) {
	if p := s.Permission(); p != notify.PermissionDefault {
		return p, nil
	}
	if s.prompt == nil {
		return notify.PermissionDefault, fmt.Errorf("%w: no terminal to ask on", ErrDismissed)
	}

	ok, err := s.prompt.Confirm(ctx,
		"Allow Cinq notifications?",
		"New messages will show on your desktop even when Cinq is closed.")
	if err != nil {
		s.log.Debug().Ctx(ctx).Err(err).Msg("permission prompt not answered")
		return notify.PermissionDefault, err
	}

	p := notify.PermissionDenied
	if ok {
		p = notify.PermissionGranted
	}
	if err := s.set(ctx, p); err != nil {
		return p, err
	}
	s.log.Info().Ctx(ctx).Str("permission", string(p)).Msg("notification permission answered")
	return p, nil
}

// Reset forgets the stored answer so the next subscribe asks again.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, permissionKey); err != nil {
		return fmt.Errorf("reset permission: %w", err)
	}
	s.cached = ""
	return nil
}

func (s *Store) set(ctx context.Context, p notify.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(ctx, permissionKey, p); err != nil {
		return fmt.Errorf("save permission: %w", err)
	}
	s.cached = p
	return nil
}

// Huh prompts on the terminal.
type Huh struct{}

func (Huh) Confirm(ctx context.Context, title, description string) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Allow").
			Negative("Block").
			Value(&ok),
	)).RunWithContext(ctx)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrDismissed
		}
		return false, fmt.Errorf("permission prompt: %w", err)
	}
	return ok, nil
}
