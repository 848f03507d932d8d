// Package styles provides the shared lipgloss palette and styles for the CLI
// and the TUI.
package styles

import (
	"sort"

	"github.com/charmbracelet/lipgloss"
)

// Palette defines a minimal semantic theme palette.
type Palette struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Background lipgloss.Color
	Surface    lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// DefaultTheme is the name of the default theme.
const DefaultTheme = "tokyo-night"

var themes = map[string]Palette{
	"tokyo-night": {
		Primary:    "#7aa2f7",
		Secondary:  "#7dcfff",
		Foreground: "#c0caf5",
		Muted:      "#565f89",
		Background: "#1a1b26",
		Surface:    "#3b4261",
		Success:    "#9ece6a",
		Warning:    "#e0af68",
		Error:      "#f7768e",
	},
	"gruvbox": {
		Primary:    "#83a598",
		Secondary:  "#8ec07c",
		Foreground: "#ebdbb2",
		Muted:      "#665c54",
		Background: "#282828",
		Surface:    "#3c3836",
		Success:    "#b8bb26",
		Warning:    "#fabd2f",
		Error:      "#fb4934",
	},
}

// ThemeNames returns sorted names of all built-in themes.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPalette returns the palette for the given theme name.
func GetPalette(name string) (Palette, bool) {
	p, ok := themes[name]
	return p, ok
}

// CurrentPalette holds the active theme palette.
var CurrentPalette Palette

var (
	// CLI styles.
	HeaderStyle  lipgloss.Style
	LabelStyle   lipgloss.Style
	ValueStyle   lipgloss.Style
	MutedStyle   lipgloss.Style
	OnStyle      lipgloss.Style
	OffStyle     lipgloss.Style
	ErrorStyle   lipgloss.Style
	DividerStyle lipgloss.Style

	// Inbox styles.
	UnreadMarkStyle     lipgloss.Style
	ItemTitleStyle      lipgloss.Style
	ItemTitleReadStyle  lipgloss.Style
	ItemBodyStyle       lipgloss.Style
	ItemTimeStyle       lipgloss.Style
	SelectedBorderStyle lipgloss.Style

	// Toast styles, keyed by notification type.
	ToastMessageStyle lipgloss.Style
	ToastPingStyle    lipgloss.Style
	ToastInfoStyle    lipgloss.Style

	BadgeStyle lipgloss.Style
	HelpStyle  lipgloss.Style
)

// ColorPool is used for deterministic color hashing of sender names.
var ColorPool []lipgloss.Color

// SetTheme sets the active palette and rebuilds all global styles.
func SetTheme(p Palette) {
	CurrentPalette = p

	HeaderStyle = lipgloss.NewStyle().Foreground(p.Primary).Bold(true)
	LabelStyle = lipgloss.NewStyle().Foreground(p.Muted)
	ValueStyle = lipgloss.NewStyle().Foreground(p.Foreground)
	MutedStyle = lipgloss.NewStyle().Foreground(p.Muted)
	OnStyle = lipgloss.NewStyle().Foreground(p.Success)
	OffStyle = lipgloss.NewStyle().Foreground(p.Muted)
	ErrorStyle = lipgloss.NewStyle().Foreground(p.Error)
	DividerStyle = lipgloss.NewStyle().Foreground(p.Surface)

	UnreadMarkStyle = lipgloss.NewStyle().Foreground(p.Error).Bold(true)
	ItemTitleStyle = lipgloss.NewStyle().Foreground(p.Foreground).Bold(true)
	ItemTitleReadStyle = lipgloss.NewStyle().Foreground(p.Muted)
	ItemBodyStyle = lipgloss.NewStyle().Foreground(p.Foreground)
	ItemTimeStyle = lipgloss.NewStyle().Foreground(p.Muted)
	SelectedBorderStyle = lipgloss.NewStyle().Foreground(p.Primary)

	toast := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1)
	ToastMessageStyle = toast.BorderForeground(p.Primary)
	ToastPingStyle = toast.BorderForeground(p.Warning)
	ToastInfoStyle = toast.BorderForeground(p.Muted)

	BadgeStyle = lipgloss.NewStyle().
		Background(p.Error).
		Foreground(p.Background).
		Bold(true).
		Padding(0, 1)
	HelpStyle = lipgloss.NewStyle().Foreground(p.Muted)

	ColorPool = []lipgloss.Color{p.Primary, p.Secondary, p.Success, p.Warning, p.Error}
}

// ColorForString returns a deterministic color for a given string.
// The same string always produces the same color.
func ColorForString(s string) lipgloss.Color {
	var hash uint32
	for _, c := range s {
		hash = hash*31 + uint32(c)
	}
	return ColorPool[hash%uint32(len(ColorPool))]
}

// nolint:gochecknoinits // bootstrap default theme before any style is accessed.
func init() {
	SetTheme(themes[DefaultTheme])
}
