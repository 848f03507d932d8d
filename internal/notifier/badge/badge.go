// Package badge mirrors the unread count onto the app badge, the favicon and
// the window title.
package badge

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
)

// DefaultTitle is the window title when nothing is unread.
const DefaultTitle = "Cinq"

// AppBadge is the OS-level launcher badge.
type AppBadge interface {
	SetBadge(count int) error
	ClearBadge() error
}

// IconRenderer draws the favicon for a non-zero count.
type IconRenderer interface {
	Render(count int) (image.Image, error)
}

// FaviconSink publishes a rendered favicon, or restores the base icon.
type FaviconSink interface {
	Apply(img image.Image) error
	Restore() error
}

// TitleSink sets the window title.
type TitleSink interface {
	SetTitle(title string) error
}

// SettingsReader exposes the current settings.
type SettingsReader interface {
	Get() notify.Settings
}

// NoopRenderer renders nothing. Sync skips the favicon when it yields nil.
type NoopRenderer struct{}

func (NoopRenderer) Render(int) (image.Image, error) { return nil, nil }

// Deps are the surfaces Sync writes to. Any surface may be nil.
type Deps struct {
	App      AppBadge
	Renderer IconRenderer
	Favicon  FaviconSink
	Title    TitleSink
	Settings SettingsReader

	// BaseTitle defaults to DefaultTitle.
	BaseTitle string
}

// Sync keeps every badge surface consistent with the unread count.
type Sync struct {
	deps Deps
	log  zerolog.Logger

	mu   sync.Mutex
	last int
}

// New creates a Sync.
func New(deps Deps) *Sync {
	if deps.BaseTitle == "" {
		deps.BaseTitle = DefaultTitle
	}
	if deps.Renderer == nil {
		deps.Renderer = NoopRenderer{}
	}
	return &Sync{
		deps: deps,
		log:  logging.Component("badge"),
		last: -1,
	}
}

// Title returns the window title for count.
func Title(base string, count int) string {
	if count <= 0 {
		return base
	}
	return fmt.Sprintf("(%d) %s", count, base)
}

// IconLabel is the numeral drawn on the favicon.
func IconLabel(count int) string {
	if count > 9 {
		return "9+"
	}
	return strconv.Itoa(count)
}

// Label is the in-app indicator text.
func Label(count int) string {
	if count > 99 {
		return "99+"
	}
	return strconv.Itoa(count)
}

// Last returns the count most recently written, or -1 before the first Update.
func (s *Sync) Last() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Update writes count to every surface. When badges are disabled in the
// settings every surface is cleared instead. A failing surface does not stop
// the others; their errors are joined.
func (s *Sync) Update(count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	count = max(count, 0)
	if s.deps.Settings != nil && !s.deps.Settings.Get().Badge {
		count = 0
	}

	err := errors.Join(
		s.updateApp(count),
		s.updateFavicon(count),
		s.updateTitle(count),
	)
	if err != nil {
		s.log.Warn().Err(err).Int("count", count).Msg("badge update incomplete")
	}

	s.last = count
	return err
}

func (s *Sync) updateApp(count int) error {
	if s.deps.App == nil {
		return nil
	}
	var err error
	if count > 0 {
		err = s.deps.App.SetBadge(count)
	} else {
		err = s.deps.App.ClearBadge()
	}
	if err != nil {
		return fmt.Errorf("app badge: %w", err)
	}
	return nil
}

func (s *Sync) updateFavicon(count int) error {
	if s.deps.Favicon == nil {
		return nil
	}
	if count == 0 {
		if err := s.deps.Favicon.Restore(); err != nil {
			return fmt.Errorf("favicon restore: %w", err)
		}
		return nil
	}

	img, err := s.deps.Renderer.Render(count)
	if err != nil {
		return fmt.Errorf("favicon render: %w", err)
	}
	if img == nil {
		return nil
	}
	if err := s.deps.Favicon.Apply(img); err != nil {
		return fmt.Errorf("favicon apply: %w", err)
	}
	return nil
}

func (s *Sync) updateTitle(count int) error {
	if s.deps.Title == nil {
		return nil
	}
	if err := s.deps.Title.SetTitle(Title(s.deps.BaseTitle, count)); err != nil {
		return fmt.Errorf("title: %w", err)
	}
	return nil
}
