// Package tui implements the Bubble Tea notification center for cinq.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/core/styles"
	"github.com/colonyops/cinq/internal/notifier"
	"github.com/colonyops/cinq/internal/notifier/poll"
	"github.com/colonyops/cinq/internal/notifier/settings"
	"github.com/colonyops/cinq/internal/notifier/toast"
)

// clockInterval refreshes relative timestamps.
const clockInterval = 30 * time.Second

type clockMsg time.Time

func scheduleClock() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

// Model is the root Bubble Tea model.
type Model struct {
	n      *notifier.Notifier
	bridge *Bridge
	keys   KeyMap
	help   help.Model
	inbox  list.Model
	now    func() time.Time

	toast  *toast.Toast
	status string
	width  int
	height int
}

// New builds the model. The bridge must be the Panel, ToastSurface and Title
// the notifier was constructed with.
func New(n *notifier.Notifier, bridge *Bridge) Model {
	m := Model{
		n:      n,
		bridge: bridge,
		keys:   DefaultKeyMap(),
		help:   help.New(),
		now:    time.Now,
	}
	m.inbox = newInbox(m.now)
	return m
}

func (m Model) Init() tea.Cmd {
	m.n.Center.Open()
	return tea.Batch(m.bridge.Wait(), scheduleClock())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.inbox.SetSize(msg.Width, max(msg.Height-8, 4))
		return m, nil

	case tea.FocusMsg:
		m.n.SetVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.n.SetVisible(false)
		return m, nil

	case drainMsg:
		cmd := m.apply(m.bridge.Drain())
		return m, tea.Batch(cmd, m.bridge.Wait())

	case clockMsg:
		return m, scheduleClock()

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress {
			signal := poll.SignalClick
			if msg.IsWheel() {
				signal = poll.SignalScroll
			}
			m.n.RecordActivity(signal)
		}
		return m, nil

	case tea.KeyMsg:
		m.n.RecordActivity(poll.SignalKeyDown)
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) apply(c Changes) tea.Cmd {
	var cmd tea.Cmd
	if c.HasItems {
		m.inbox.SetItems(toListItems(c.Items))
	}
	if c.HasToast {
		m.toast = c.Toast
	}
	if c.HasTitle {
		cmd = tea.SetWindowTitle(c.Title)
	}
	return cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	m.status = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.TogglePanel):
		m.n.Center.Toggle()

	case key.Matches(msg, m.keys.ToastOpen):
		if err := m.n.Toast.Click(); err != nil {
			m.status = err.Error()
		}

	case key.Matches(msg, m.keys.ToastClose):
		m.n.Toast.Close()

	case key.Matches(msg, m.keys.ToggleSound):
		m.toggle(ctx, func(s notify.Settings) settings.Patch { return settings.Patch{Sound: settings.Bool(!s.Sound)} })

	case key.Matches(msg, m.keys.ToggleInApp):
		m.toggle(ctx, func(s notify.Settings) settings.Patch { return settings.Patch{InApp: settings.Bool(!s.InApp)} })

	case key.Matches(msg, m.keys.ToggleBadge):
		m.toggle(ctx, func(s notify.Settings) settings.Patch { return settings.Patch{Badge: settings.Bool(!s.Badge)} })

	case !m.n.Center.IsOpen():
		// The remaining keys act on the inbox.

	case key.Matches(msg, m.keys.Open):
		if it, ok := m.selected(); ok {
			if err := m.n.Center.Click(ctx, it.ID); err != nil {
				m.status = err.Error()
			}
		}

	case key.Matches(msg, m.keys.MarkRead):
		if it, ok := m.selected(); ok {
			m.n.Center.MarkAsRead(ctx, it.ID)
		}

	case key.Matches(msg, m.keys.MarkAllRead):
		m.n.Center.MarkAllAsRead(ctx)

	default:
		var cmd tea.Cmd
		m.inbox, cmd = m.inbox.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) toggle(ctx context.Context, patch func(notify.Settings) settings.Patch) {
	if _, err := m.n.Settings.Update(ctx, patch(m.n.Settings.Get())); err != nil {
		m.status = fmt.Sprintf("save settings: %v", err)
	}
}

func (m Model) selected() (notify.Item, bool) {
	entry, ok := m.inbox.SelectedItem().(inboxItem)
	if !ok {
		return notify.Item{}, false
	}
	return entry.item, true
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")

	if m.n.Center.IsOpen() {
		b.WriteString(m.inbox.View())
	} else {
		b.WriteString(styles.MutedStyle.Render("Inbox closed. Press i to open it."))
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.status))
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return overlayToast(b.String(), m.toast, m.width)
}

func (m Model) header() string {
	title := styles.HeaderStyle.Render("Cinq")
	if n := m.n.Unread.Get(); n > 0 {
		title += " " + styles.BadgeStyle.Render(fmt.Sprintf("%d", n))
	}

	s := m.n.Settings.Get()
	flags := strings.Join([]string{
		flag("sound", s.Sound),
		flag("in-app", s.InApp),
		flag("badge", s.Badge),
		flag("push", s.Push),
	}, "  ")

	gap := max(m.width-lipgloss.Width(title)-lipgloss.Width(flags), 2)
	return title + strings.Repeat(" ", gap) + flags
}

func flag(name string, on bool) string {
	if on {
		return styles.OnStyle.Render("● " + name)
	}
	return styles.OffStyle.Render("○ " + name)
}
