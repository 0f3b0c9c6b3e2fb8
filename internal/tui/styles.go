package tui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	accentColor = lipgloss.Color("#7C3AED") // selection, header, keys
	liveColor   = lipgloss.Color("#10B981") // live indicator, success
	brushColor  = lipgloss.Color("#F59E0B")
	alertColor  = lipgloss.Color("#EF4444")
	dimColor    = lipgloss.Color("#6B7280")
	fgColor     = lipgloss.Color("#F9FAFB")
)

// Chart colors by CSS name, as assigned to views
var cssColors = map[string]lipgloss.Color{
	"DodgerBlue":     "#1E90FF",
	"Tan":            "#D2B48C",
	"DarkGreen":      "#006400",
	"ForestGreen":    "#228B22",
	"Crimson":        "#DC143C",
	"DarkRed":        "#8B0000",
	"FireBrick":      "#B22222",
	"LightSteelBlue": "#B0C4DE",
	"Silver":         "#C0C0C0",
	"Gray":           "#808080",
}

func chartColor(name string) lipgloss.Color {
	if c, ok := cssColors[name]; ok {
		return c
	}
	return dimColor
}

// Styles
var (
	// App chrome
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(fgColor).
			Background(accentColor).
			Padding(0, 1).
			MarginBottom(1)

	// Chart cards
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimColor).
			Padding(0, 1)

	selectedCardStyle = cardStyle.
				BorderForeground(accentColor)

	cardTitleStyle = lipgloss.NewStyle().Bold(true)

	captionStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	brushStyle = lipgloss.NewStyle().Foreground(brushColor)

	// Status
	statusStyle = captionStyle.
			MarginTop(1)

	errorStyle   = lipgloss.NewStyle().Foreground(alertColor)
	successStyle = lipgloss.NewStyle().Foreground(liveColor)

	// Help
	helpKeyStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	helpDescStyle = captionStyle
)

// RenderKeyHelp renders a key binding help item
func RenderKeyHelp(key, desc string) string {
	return helpKeyStyle.Render(key) + " " + helpDescStyle.Render(desc)
}
