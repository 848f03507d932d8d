package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/core/styles"
	"github.com/colonyops/cinq/internal/notifier/toast"
)

// inboxItem wraps a notification for the list component.
type inboxItem struct {
	item notify.Item
}

func (i inboxItem) FilterValue() string {
	return i.item.Title + " " + i.item.Body
}

// inboxDelegate renders one notification per entry.
// Line 1: ● 💬 Title • 3 minutes ago
// Line 2: Body (truncated to fit)
type inboxDelegate struct {
	now func() time.Time
}

func (d inboxDelegate) Height() int  { return 2 }
func (d inboxDelegate) Spacing() int { return 1 }

func (d inboxDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d inboxDelegate) Render(w io.Writer, m list.Model, index int, li list.Item) {
	entry, ok := li.(inboxItem)
	if !ok {
		return
	}
	it := entry.item

	width := m.Width()
	if width <= 0 {
		width = 80
	}
	contentWidth := max(width-4, 10)

	mark := "  "
	title := styles.ItemTitleReadStyle.Render(it.Title)
	if !it.Read {
		mark = styles.UnreadMarkStyle.Render("●") + " "
		title = styles.ItemTitleStyle.Foreground(styles.ColorForString(it.Title)).Render(it.Title)
	}
	when := styles.ItemTimeStyle.Render(relativeTime(it.Timestamp, d.now()))
	line1 := fmt.Sprintf("%s%s %s • %s", mark, toast.Icon(it.Type), title, when)

	body := truncate(strings.ReplaceAll(it.Body, "\n", " "), contentWidth)
	line2 := "  " + styles.ItemBodyStyle.Render(body)

	border := "  "
	if index == m.Index() {
		border = styles.SelectedBorderStyle.Render("┃") + " "
	}

	_, _ = fmt.Fprintf(w, "%s%s\n", border, line1)
	_, _ = fmt.Fprintf(w, "%s%s", border, line2)
}

func newInbox(now func() time.Time) list.Model {
	l := list.New(nil, inboxDelegate{now: now}, 80, 20)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.NoItems = lipgloss.NewStyle().Foreground(styles.CurrentPalette.Muted).Padding(1, 2)
	l.SetStatusBarItemName("notification", "notifications")
	return l
}

func toListItems(items []notify.Item) []list.Item {
	out := make([]list.Item, len(items))
	for i, it := range items {
		out[i] = inboxItem{item: it}
	}
	return out
}

// relativeTime renders t relative to now, "just now" under a minute.
func relativeTime(t, now time.Time) string {
	if now.Sub(t) < time.Minute {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}
