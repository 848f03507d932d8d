package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/notifier/toast"
)

// drainMsg tells the model that the bridge has pending changes.
type drainMsg struct{}

// Changes are the surface updates collected since the last drain. Only the
// latest value of each kind is kept.
type Changes struct {
	Items    []notify.Item
	HasItems bool

	Toast    *toast.Toast
	HasToast bool

	Title    string
	HasTitle bool
}

// Bridge receives panel, toast and title updates from notifier goroutines
// and hands them to the Bubble Tea loop. It implements center.Panel,
// toast.Surface and badge.TitleSink.
type Bridge struct {
	mu      sync.Mutex
	pending Changes
	signal  chan struct{}
}

// NewBridge constructs an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{signal: make(chan struct{}, 1)}
}

// Render records the latest panel contents.
func (b *Bridge) Render(items []notify.Item) {
	b.mu.Lock()
	b.pending.Items = items
	b.pending.HasItems = true
	b.mu.Unlock()
	b.notify()
}

// Show records t as the visible toast.
func (b *Bridge) Show(t toast.Toast) error {
	b.mu.Lock()
	b.pending.Toast = &t
	b.pending.HasToast = true
	b.mu.Unlock()
	b.notify()
	return nil
}

// Hide clears the visible toast.
func (b *Bridge) Hide(toast.Toast) error {
	b.mu.Lock()
	b.pending.Toast = nil
	b.pending.HasToast = true
	b.mu.Unlock()
	b.notify()
	return nil
}

// SetTitle records the window title.
func (b *Bridge) SetTitle(title string) error {
	b.mu.Lock()
	b.pending.Title = title
	b.pending.HasTitle = true
	b.mu.Unlock()
	b.notify()
	return nil
}

// Drain returns the pending changes and resets them.
func (b *Bridge) Drain() Changes {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = Changes{}
	return out
}

// Wait blocks until there are changes to drain.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		<-b.signal
		return drainMsg{}
	}
}

func (b *Bridge) notify() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}
