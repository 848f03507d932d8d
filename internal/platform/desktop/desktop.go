// Package desktop renders notifications on the desktop session: D-Bus
// toasts, the launcher badge, the terminal title and URL opening.
package desktop

import (
	"fmt"
	"sync"
	"time"

	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/notifier/toast"
)

// Urgency is the freedesktop notification urgency level.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notification contains data for a desktop notification.
type Notification struct {
	Title      string
	Body       string
	Icon       string // path or icon name
	Timeout    int32  // ms, -1 = server default, 0 = never expire
	ReplacesID uint32 // 0 = new notification
	Urgency    Urgency
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify returns the notification ID, or 0 when notifications are unavailable.
	Notify(n Notification) (uint32, error)
	Close(id uint32) error
}

// Launcher sets the count shown on the application's launcher icon.
type Launcher interface {
	SetCount(count int64, visible bool) error
}

// Toasts draws toasts as desktop notifications, replacing the previous one.
type Toasts struct {
	n       Notifier
	icon    string
	timeout time.Duration

	mu     sync.Mutex
	lastID uint32
}

// NewToasts creates a toast surface on n.
func NewToasts(n Notifier, icon string, timeout time.Duration) *Toasts {
	return &Toasts{n: n, icon: icon, timeout: timeout}
}

func (t *Toasts) Show(tt toast.Toast) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	urgency := UrgencyNormal
	if tt.Type == notify.TypePing {
		urgency = UrgencyCritical
	}

	id, err := t.n.Notify(Notification{
		Title:      fmt.Sprintf("%s %s", tt.Icon, tt.Title),
		Body:       tt.Body,
		Icon:       t.icon,
		Timeout:    int32(t.timeout / time.Millisecond),
		ReplacesID: t.lastID,
		Urgency:    urgency,
	})
	if err != nil {
		return fmt.Errorf("desktop notify: %w", err)
	}
	t.lastID = id
	return nil
}

func (t *Toasts) Hide(toast.Toast) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lastID == 0 {
		return nil
	}
	id := t.lastID
	t.lastID = 0
	return t.n.Close(id)
}

// Badge adapts a Launcher to the badge surface.
type Badge struct {
	l Launcher
}

// NewBadge creates a badge surface on l.
func NewBadge(l Launcher) *Badge {
	return &Badge{l: l}
}

func (b *Badge) SetBadge(count int) error {
	return b.l.SetCount(int64(count), true)
}

func (b *Badge) ClearBadge() error {
	return b.l.SetCount(0, false)
}
