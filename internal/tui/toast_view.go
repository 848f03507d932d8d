package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/cinq/internal/core/notify"
	"github.com/colonyops/cinq/internal/core/styles"
	"github.com/colonyops/cinq/internal/notifier/toast"
)

const toastWidth = 44

func renderToast(t toast.Toast) string {
	style := styles.ToastMessageStyle
	switch t.Type {
	case notify.TypePing:
		style = styles.ToastPingStyle
	case notify.TypeInfo:
		style = styles.ToastInfoStyle
	}

	head := t.Icon + " " + styles.ItemTitleStyle.Render(t.Title)
	body := styles.ItemBodyStyle.Render(truncate(t.Body, toastWidth-4))
	hint := styles.HelpStyle.Render("t open • x dismiss")
	return style.Width(toastWidth).Render(lipgloss.JoinVertical(lipgloss.Left, head, body, hint))
}

// overlayToast places the toast under the content, aligned right.
func overlayToast(content string, t *toast.Toast, width int) string {
	if t == nil {
		return content
	}
	box := renderToast(*t)
	if width > 0 {
		box = lipgloss.PlaceHorizontal(width, lipgloss.Right, box)
	}
	return lipgloss.JoinVertical(lipgloss.Left, content, box)
}
