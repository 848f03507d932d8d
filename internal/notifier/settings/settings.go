// Package settings owns the user's notification preferences.
package settings

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/core/kv"
	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
)

// Key is the KV key the settings are persisted under.
const Key = "cinq:notification_settings"

// Patch is a partial settings update. Nil fields are left unchanged.
type Patch struct {
	Push  *bool
	Sound *bool
	InApp *bool
	Badge *bool
}

// Bool returns a pointer to v, for building patches.
func Bool(v bool) *bool { return &v }

// Store holds the current settings in memory and persists every update.
type Store struct {
	kv  kv.KV
	log zerolog.Logger

	mu        sync.RWMutex
	current   notify.Settings
	listeners []func(old, updated notify.Settings)
}

// New creates a store primed with the defaults. Call Load to read saved values.
func New(store kv.KV) *Store {
	return &Store{
		kv:      store,
		log:     logging.Component("settings"),
		current: notify.DefaultSettings(),
	}
}

// Load reads saved settings, merging them over the defaults so fields missing
// from older saves keep their default. Unreadable data falls back to defaults.
func (s *Store) Load(ctx context.Context) (notify.Settings, error) {
	loaded := notify.DefaultSettings()
	err := s.kv.Get(ctx, Key, &loaded)
	switch {
	case err == nil:
	case kv.IsMissing(err):
		loaded = notify.DefaultSettings()
	default:
		s.log.Warn().Err(err).Msg("saved settings unreadable, using defaults")
		loaded = notify.DefaultSettings()
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()

	return loaded, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() notify.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// OnChange registers fn to run after every update that changed a value.
func (s *Store) OnChange(fn func(old, updated notify.Settings)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Update applies patch, persists the result and notifies listeners. The
// in-memory value is updated even when persisting fails; the error is
// returned so callers can surface it.
func (s *Store) Update(ctx context.Context, patch Patch) (notify.Settings, error) {
	s.mu.Lock()
	old := s.current
	next := old
	if patch.Push != nil {
		next.Push = *patch.Push
	}
	if patch.Sound != nil {
		next.Sound = *patch.Sound
	}
	if patch.InApp != nil {
		next.InApp = *patch.InApp
	}
	if patch.Badge != nil {
		next.Badge = *patch.Badge
	}
	s.current = next
	listeners := make([]func(old, updated notify.Settings), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	var persistErr error
	if err := s.kv.Set(ctx, Key, next); err != nil {
		persistErr = fmt.Errorf("save settings: %w", err)
		s.log.Error().Err(err).Msg("failed to persist settings")
	}

	if next != old {
		for _, fn := range listeners {
			fn(old, next)
		}
	}

	return next, persistErr
}
