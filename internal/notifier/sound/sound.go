// Package sound plays short audio cues for incoming notifications.
package sound

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
)

// Cue names.
const (
	CueMessage = "message"
	CuePing    = "ping"
)

// Cue is an audio file played at a fixed volume (0 to 1).
type Cue struct {
	Path   string
	Volume float64
}

// Player decodes and plays cues.
type Player interface {
	Load(name string, cue Cue) error
	Play(name string) error
}

// SettingsReader exposes the current settings.
type SettingsReader interface {
	Get() notify.Settings
}

// Manager preloads cues and plays the one matching a notification type.
type Manager struct {
	player   Player
	settings SettingsReader
	cues     map[string]Cue
	log      zerolog.Logger

	mu     sync.Mutex
	loaded map[string]bool
}

// New creates a manager. Cues with an empty path are skipped.
func New(player Player, settings SettingsReader, message, ping Cue) *Manager {
	return &Manager{
		player:   player,
		settings: settings,
		cues:     map[string]Cue{CueMessage: message, CuePing: ping},
		log:      logging.Component("sound"),
		loaded:   make(map[string]bool),
	}
}

// Preload decodes every configured cue that is not loaded yet. Failures are
// logged and leave that cue silent.
func (m *Manager) Preload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, cue := range m.cues {
		if cue.Path == "" || m.loaded[name] {
			continue
		}
		if err := m.player.Load(name, cue); err != nil {
			m.log.Warn().Err(err).Str("cue", name).Str("path", cue.Path).Msg("failed to load sound")
			continue
		}
		m.loaded[name] = true
	}
}

// Play plays the cue for t when sounds are enabled. Pings use the ping cue,
// everything else the message cue.
func (m *Manager) Play(t notify.Type) {
	if !m.settings.Get().Sound {
		return
	}

	name := CueMessage
	if t == notify.TypePing {
		name = CuePing
	}

	m.mu.Lock()
	ok := m.loaded[name]
	m.mu.Unlock()
	if !ok {
		return
	}

	if err := m.player.Play(name); err != nil {
		m.log.Debug().Err(err).Str("cue", name).Msg("sound playback blocked")
	}
}

// Silent is a Player for hosts without audio output.
type Silent struct{}

func (Silent) Load(string, Cue) error { return nil }
func (Silent) Play(string) error      { return nil }
