// Package toast shows one transient notification at a time.
package toast

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/colonyops/cinq/internal/core/logging"
	"github.com/colonyops/cinq/internal/core/notify"
)

// DefaultDuration is how long a toast stays up.
const DefaultDuration = 5 * time.Second

// Toast is what a Surface draws.
type Toast struct {
	ItemID string
	Icon   string
	Title  string
	Body   string
	URL    string
	Type   notify.Type
}

// Surface draws and removes toasts.
type Surface interface {
	Show(t Toast) error
	Hide(t Toast) error
}

// Navigator opens a toast's target.
type Navigator interface {
	Navigate(url string) error
}

// ReadMarker marks the clicked item read.
type ReadMarker interface {
	MarkItemRead(id string)
}

// Icon returns the glyph for a notification type.
func Icon(t notify.Type) string {
	switch t {
	case notify.TypePing:
		return "💫"
	case notify.TypeInfo:
		return "🔔"
	default:
		return "💬"
	}
}

// From builds the toast for item. A single-character avatar replaces the icon.
func From(item notify.Item) Toast {
	icon := Icon(item.Type)
	if utf8.RuneCountInString(item.Avatar) == 1 {
		icon = item.Avatar
	}
	return Toast{
		ItemID: item.ID,
		Icon:   icon,
		Title:  item.Title,
		Body:   item.Body,
		URL:    item.URL,
		Type:   item.Type,
	}
}

// Presenter keeps at most one toast on its surface and dismisses it after
// Duration.
type Presenter struct {
	surface  Surface
	nav      Navigator
	reads    ReadMarker
	duration time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	current *Toast
	gen     uint64
	timer   *time.Timer
}

// New creates a presenter. nav and reads may be nil.
func New(surface Surface, nav Navigator, reads ReadMarker, duration time.Duration) *Presenter {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Presenter{
		surface:  surface,
		nav:      nav,
		reads:    reads,
		duration: duration,
		log:      logging.Component("toast"),
	}
}

// SetReadMarker sets the collaborator told about clicked items.
func (p *Presenter) SetReadMarker(r ReadMarker) {
	p.mu.Lock()
	p.reads = r
	p.mu.Unlock()
}

// Present replaces the current toast with one for item.
func (p *Presenter) Present(item notify.Item) {
	t := From(item)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.hideLocked()

	if err := p.surface.Show(t); err != nil {
		p.log.Warn().Err(err).Str("title", t.Title).Msg("toast not shown")
		return
	}

	p.gen++
	gen := p.gen
	p.current = &t
	p.timer = time.AfterFunc(p.duration, func() { p.expire(gen) })
}

// Current returns the toast on screen.
func (p *Presenter) Current() (Toast, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Toast{}, false
	}
	return *p.current, true
}

// Close dismisses the current toast early.
func (p *Presenter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hideLocked()
}

// Click navigates to the toast's URL when set, marks its item read and
// dismisses it.
func (p *Presenter) Click() error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return nil
	}
	t := *p.current
	reads := p.reads
	p.hideLocked()
	p.mu.Unlock()

	if reads != nil && t.ItemID != "" {
		reads.MarkItemRead(t.ItemID)
	}

	if t.URL == "" || p.nav == nil {
		return nil
	}
	if err := p.nav.Navigate(t.URL); err != nil {
		return fmt.Errorf("navigate to %s: %w", t.URL, err)
	}
	return nil
}

func (p *Presenter) expire(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return
	}
	p.hideLocked()
}

func (p *Presenter) hideLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.current == nil {
		return
	}
	if err := p.surface.Hide(*p.current); err != nil {
		p.log.Debug().Err(err).Msg("toast hide failed")
	}
	p.current = nil
	p.gen++
}

// Discard is a Surface that draws nothing.
type Discard struct{}

func (Discard) Show(Toast) error { return nil }
func (Discard) Hide(Toast) error { return nil }
