// Package tui is the bubbletea monitor for a running hub: Integrador
// responses and recorded errors scroll past as they happen.
package tui

import "github.com/charmbracelet/lipgloss"

const defaultAccentColor = "#7D56F4"

var (
	colorWhite = lipgloss.Color("#FAFAFA")
	colorGray  = lipgloss.Color("#888888")
	colorGreen = lipgloss.Color("#6BCB77")
	colorRed   = lipgloss.Color("#FF6B6B")
)

var (
	footerStyle    = lipgloss.NewStyle().Foreground(colorGray)
	timestampStyle = lipgloss.NewStyle().Foreground(colorGray)
	responseStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	errorStyle     = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	infoStyle      = lipgloss.NewStyle().Foreground(colorWhite)
)

// Theme holds the accent-dependent styles.
type Theme struct {
	header lipgloss.Style
	accent lipgloss.Style
}

// NewTheme builds a Theme from a hex color such as "#7D56F4". An empty
// string selects the default accent.
func NewTheme(accentColor string) Theme {
	if accentColor == "" {
		accentColor = defaultAccentColor
	}
	c := lipgloss.Color(accentColor)
	return Theme{
		header: lipgloss.NewStyle().
			Background(c).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true),
		accent: lipgloss.NewStyle().Foreground(c),
	}
}
